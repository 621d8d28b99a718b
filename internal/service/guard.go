package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/metrics"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

// Operation describes one guarded mutation. A zero Capability admits any
// logged-in session; it is used for self-service changes.
type Operation struct {
	Capability rbac.Capability
	Action     string // audit code, e.g. CREATE_ANIMAL
	Entity     string // audited table, e.g. animals
	Payload    any    // validated before the transaction opens; may be nil

	// Check runs after Payload validation for rules tags cannot express
	Check func() error
}

// Change is what a mutation reports back for its audit record
type Change struct {
	EntityID int64
	Details  string
}

// MutateFunc performs the storage side of an operation inside tx
type MutateFunc func(ctx context.Context, tx store.DBTX) (Change, error)

// Guard runs every mutating domain operation through the same sequence:
//
//	authorize -> validate -> (mutate + audit in one transaction)
//
// A denied or invalid request never touches storage. The mutation and its
// audit record commit together or not at all.
type Guard struct {
	gateway  *store.Gateway
	audit    *AuditService
	validate *Validator
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewGuard creates a new guard
func NewGuard(
	gateway *store.Gateway,
	audit *AuditService,
	validate *Validator,
	m *metrics.Metrics,
	log *logger.Logger,
) *Guard {
	return &Guard{
		gateway:  gateway,
		audit:    audit,
		validate: validate,
		metrics:  m,
		log:      log.With("guard"),
	}
}

// Authorize fails with AuthorizationDenied unless sess holds c
func (g *Guard) Authorize(sess *session.Session, c rbac.Capability) error {
	if sess.Can(c) {
		return nil
	}
	return apperrors.Denied(roleOf(sess), c.String())
}

// Run executes op on behalf of sess
func (g *Guard) Run(ctx context.Context, sess *session.Session, op Operation, mutate MutateFunc) (Change, error) {
	start := time.Now()

	change, err := g.run(ctx, sess, op, mutate)
	g.observe(sess, op, change, err, time.Since(start))

	return change, err
}

func (g *Guard) run(ctx context.Context, sess *session.Session, op Operation, mutate MutateFunc) (Change, error) {
	if sess == nil {
		return Change{}, apperrors.Denied("", op.Action)
	}
	if op.Capability != (rbac.Capability{}) {
		if err := g.Authorize(sess, op.Capability); err != nil {
			return Change{}, err
		}
	}

	if op.Payload != nil {
		if err := g.validate.Struct(op.Payload); err != nil {
			return Change{}, err
		}
	}
	if op.Check != nil {
		if err := op.Check(); err != nil {
			return Change{}, err
		}
	}

	var change Change
	err := g.gateway.InTx(ctx, func(tx store.DBTX) error {
		c, err := mutate(ctx, tx)
		if err != nil {
			return err
		}

		entityID := c.EntityID
		if err := g.audit.Record(ctx, tx, AuditEntry{
			UserID:   sess.UserID,
			Action:   op.Action,
			Entity:   op.Entity,
			EntityID: &entityID,
			Details:  c.Details,
		}); err != nil {
			return err
		}

		change = c
		return nil
	})
	if err != nil {
		return Change{}, apperrors.Storage(op.Action, err)
	}

	return change, nil
}

func (g *Guard) observe(sess *session.Session, op Operation, change Change, err error, elapsed time.Duration) {
	outcome := apperrors.Kind(err)
	g.metrics.ObserveOperation(op.Entity, op.Action, outcome, elapsed)

	var evt *zerolog.Event
	switch outcome {
	case "ok":
		evt = g.log.Info()
	case "storage", "unknown":
		evt = g.log.Error().Err(err)
	default:
		evt = g.log.Warn().Err(err)
	}

	if sess != nil {
		evt = evt.Int64("user_id", sess.UserID).Str("role", string(sess.Role))
	}
	evt.Str("action", op.Action).
		Str("entity", op.Entity).
		Int64("entity_id", change.EntityID).
		Str("outcome", outcome).
		Dur("elapsed", elapsed).
		Msg("Guarded operation finished")
}
