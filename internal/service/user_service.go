package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
	"github.com/pesio-ai/be-zoo-core/pkg/password"
)

// UserService manages user accounts
type UserService struct {
	userRepo *repository.UserRepository
	roleRepo *repository.RoleRepository
	guard    *Guard
	params   *password.Params
	log      *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo *repository.UserRepository,
	roleRepo *repository.RoleRepository,
	guard *Guard,
	params *password.Params,
	log *logger.Logger,
) *UserService {
	if params == nil {
		params = password.DefaultParams()
	}
	return &UserService{
		userRepo: userRepo,
		roleRepo: roleRepo,
		guard:    guard,
		params:   params,
		log:      log.With("users"),
	}
}

// CreateUserRequest is the payload for a new account. A nil IsActive
// creates an active account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,role"`
	IsActive *bool  `json:"is_active"`
}

// UpdateUserRequest changes role and active flag; a non-empty Password
// also replaces the password.
type UpdateUserRequest struct {
	Role     string `json:"role" validate:"required,role"`
	IsActive bool   `json:"is_active"`
	Password string `json:"password"`
}

// List returns every user without password hashes
func (s *UserService) List(ctx context.Context) ([]*repository.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Storage("list users", err)
	}
	return users, nil
}

// RoleGrant is a provisioned role and the capabilities it holds
type RoleGrant struct {
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
}

// Roles lists the roles the database provisions with their grants.
// A role row with no entry in the permission table grants nothing.
func (s *UserService) Roles(ctx context.Context) ([]RoleGrant, error) {
	names, err := s.roleRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Storage("list roles", err)
	}

	out := make([]RoleGrant, 0, len(names))
	for _, name := range names {
		out = append(out, RoleGrant{
			Role:         name,
			Capabilities: rbac.GrantFor(rbac.Role(name)).Entries(),
		})
	}
	return out, nil
}

// Create creates a new user with a freshly hashed password
func (s *UserService) Create(ctx context.Context, sess *session.Session, req *CreateUserRequest) (*repository.User, error) {
	req.Username = strings.TrimSpace(req.Username)

	user := &repository.User{
		Username: req.Username,
		Role:     req.Role,
		IsActive: req.IsActive == nil || *req.IsActive,
	}

	op := Operation{
		Capability: rbac.Cap(rbac.DomainUsers, rbac.ActionCreate),
		Action:     "CREATE_USER",
		Entity:     "users",
		Payload:    req,
	}

	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		if err := s.checkRole(ctx, tx, req.Role); err != nil {
			return Change{}, err
		}

		hash, err := password.Hash(req.Password, s.params)
		if err != nil {
			return Change{}, err
		}
		user.PasswordHash = hash

		if err := s.userRepo.WithTx(tx).Create(ctx, user); err != nil {
			return Change{}, err
		}
		return Change{
			EntityID: user.ID,
			Details:  fmt.Sprintf("Created user %s (%s)", user.Username, user.Role),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

// Update changes a user's role, active flag and optionally password
func (s *UserService) Update(ctx context.Context, sess *session.Session, id int64, req *UpdateUserRequest) (*repository.User, error) {
	op := Operation{
		Capability: rbac.Cap(rbac.DomainUsers, rbac.ActionUpdate),
		Action:     "UPDATE_USER",
		Entity:     "users",
		Payload:    req,
		Check: func() error {
			if id != sess.UserID {
				return nil
			}
			if !req.IsActive {
				return apperrors.NewValidationError("is_active", "cannot deactivate your own account")
			}
			if req.Role != string(sess.Role) {
				return apperrors.NewValidationError("role", "cannot change your own role")
			}
			return nil
		},
	}

	var user *repository.User
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		users := s.userRepo.WithTx(tx)

		existing, err := users.GetByID(ctx, id)
		if err != nil {
			return Change{}, err
		}
		if err := s.checkRole(ctx, tx, req.Role); err != nil {
			return Change{}, err
		}

		existing.Role = req.Role
		existing.IsActive = req.IsActive
		if err := users.Update(ctx, existing); err != nil {
			return Change{}, err
		}

		details := fmt.Sprintf("Updated user %s (%s, active=%t)", existing.Username, existing.Role, existing.IsActive)
		if req.Password != "" {
			hash, err := password.Hash(req.Password, s.params)
			if err != nil {
				return Change{}, err
			}
			if err := users.UpdatePassword(ctx, id, hash); err != nil {
				return Change{}, err
			}
			details += ", password reset"
		}

		existing.PasswordHash = ""
		user = existing
		return Change{EntityID: id, Details: details}, nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Delete deletes a user. Users cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, sess *session.Session, id int64) error {
	op := Operation{
		Capability: rbac.Cap(rbac.DomainUsers, rbac.ActionDelete),
		Action:     "DELETE_USER",
		Entity:     "users",
		Check: func() error {
			if id == sess.UserID {
				return apperrors.NewValidationError("id", "cannot delete your own account")
			}
			return nil
		},
	}

	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		users := s.userRepo.WithTx(tx)

		existing, err := users.GetByID(ctx, id)
		if err != nil {
			return Change{}, err
		}
		if err := users.Delete(ctx, id); err != nil {
			return Change{}, err
		}
		return Change{EntityID: id, Details: "Deleted user " + existing.Username}, nil
	})
	return err
}

// checkRole rejects a role the roles table does not carry
func (s *UserService) checkRole(ctx context.Context, tx store.DBTX, role string) error {
	ok, err := s.roleRepo.WithTx(tx).Exists(ctx, role)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewValidationError("role", fmt.Sprintf("role %q is not provisioned", role))
	}
	return nil
}
