package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/metrics"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
	"github.com/pesio-ai/be-zoo-core/pkg/password"
)

// AuthService verifies credentials and issues sessions
type AuthService struct {
	userRepo  *repository.UserRepository
	guard     *Guard
	params    *password.Params
	dummyHash string
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewAuthService creates a new auth service. params controls the cost of
// every hash it writes; nil selects password.DefaultParams.
func NewAuthService(
	userRepo *repository.UserRepository,
	guard *Guard,
	params *password.Params,
	m *metrics.Metrics,
	log *logger.Logger,
) (*AuthService, error) {
	if params == nil {
		params = password.DefaultParams()
	}

	// Verified against when the username is unknown so both failure paths
	// spend the same hashing effort.
	dummyHash, err := password.Hash("not-a-real-password", params)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &AuthService{
		userRepo:  userRepo,
		guard:     guard,
		params:    params,
		dummyHash: dummyHash,
		metrics:   m,
		log:       log.With("auth"),
	}, nil
}

// Authenticate verifies username and password against the active users
// and returns a new session. Every credential failure is the same
// ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, pw string) (*session.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || pw == "" {
		s.metrics.ObserveAuth("invalid_credentials")
		return nil, apperrors.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetActiveByUsername(ctx, username)
	if errors.Is(err, apperrors.ErrNotFound) {
		_, _ = password.Verify(pw, s.dummyHash)
		s.fail(username, "unknown or inactive user")
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		s.metrics.ObserveAuth("storage")
		s.log.Error().Err(err).Msg("Failed to look up user")
		return nil, apperrors.Storage("authenticate", err)
	}

	ok, err := password.Verify(pw, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("Stored password hash is unreadable")
		s.fail(username, "unreadable hash")
		return nil, apperrors.ErrInvalidCredentials
	}
	if !ok {
		s.fail(username, "wrong password")
		return nil, apperrors.ErrInvalidCredentials
	}

	if password.NeedsRehash(user.PasswordHash, s.params) {
		s.rehash(ctx, user.ID, pw)
	}

	sess := session.New(user.ID, user.Username, rbac.Role(user.Role))

	s.metrics.ObserveAuth("ok")
	s.log.Info().
		Int64("user_id", user.ID).
		Str("role", user.Role).
		Str("session_id", sess.ID.String()).
		Msg("Login successful")

	return sess, nil
}

func (s *AuthService) fail(username, reason string) {
	s.metrics.ObserveAuth("invalid_credentials")
	s.log.Warn().Str("username", username).Str("reason", reason).Msg("Login failed")
}

// rehash upgrades a legacy or weaker hash after a successful login.
// Failure only costs the upgrade, never the login.
func (s *AuthService) rehash(ctx context.Context, userID int64, pw string) {
	hash, err := password.Hash(pw, s.params)
	if err == nil {
		err = s.userRepo.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to upgrade password hash")
		return
	}
	s.log.Info().Int64("user_id", userID).Msg("Password hash upgraded")
}

// ChangePasswordRequest is a self-service password change
type ChangePasswordRequest struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required"`
}

// ChangePassword replaces the session user's password after re-checking
// the current one. A wrong current password is ErrInvalidCredentials.
func (s *AuthService) ChangePassword(ctx context.Context, sess *session.Session, req *ChangePasswordRequest) error {
	op := Operation{
		Action:  "CHANGE_PASSWORD",
		Entity:  "users",
		Payload: req,
	}

	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		users := s.userRepo.WithTx(tx)

		user, err := users.GetByID(ctx, sess.UserID)
		if err != nil {
			return Change{}, err
		}

		ok, err := password.Verify(req.Current, user.PasswordHash)
		if err != nil || !ok {
			return Change{}, apperrors.ErrInvalidCredentials
		}

		hash, err := password.Hash(req.New, s.params)
		if err != nil {
			return Change{}, err
		}
		if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return Change{}, err
		}

		return Change{EntityID: user.ID, Details: "Password changed"}, nil
	})
	return err
}
