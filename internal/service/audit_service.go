package service

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// AuditEntry is one action to append to the audit log
type AuditEntry struct {
	UserID   int64
	Action   string
	Entity   string
	EntityID *int64
	Details  string
}

// AuditService appends and reads audit records
type AuditService struct {
	auditRepo *repository.AuditRepository
	log       *logger.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo *repository.AuditRepository, log *logger.Logger) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		log:       log.With("audit"),
	}
}

// Record appends e through tx so it commits or rolls back with the
// mutation it describes. Storage errors are returned unchanged.
func (s *AuditService) Record(ctx context.Context, tx store.DBTX, e AuditEntry) error {
	rec := &repository.AuditRecord{
		UserID:   e.UserID,
		Action:   e.Action,
		Entity:   e.Entity,
		EntityID: e.EntityID,
	}
	if e.Details != "" {
		details := e.Details
		rec.Details = &details
	}

	if err := s.auditRepo.WithTx(tx).Insert(ctx, rec); err != nil {
		return fmt.Errorf("failed to record %s: %w", e.Action, err)
	}

	s.log.Debug().
		Int64("audit_id", rec.ID).
		Int64("user_id", e.UserID).
		Str("action", e.Action).
		Msg("Audit record appended")

	return nil
}

// Recent returns the newest audit records, newest first
func (s *AuditService) Recent(ctx context.Context, sess *session.Session, limit int) ([]*repository.AuditRecord, error) {
	c := rbac.Cap(rbac.DomainAudit, rbac.ActionView)
	if !sess.Can(c) {
		return nil, apperrors.Denied(roleOf(sess), c.String())
	}

	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	records, err := s.auditRepo.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.Storage("list audit logs", err)
	}

	return records, nil
}

func roleOf(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return string(sess.Role)
}
