package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pesio-ai/be-zoo-core/internal/store"
)

// AuditRepository handles audit log data operations. Records are
// append-only: there is no update or delete.
type AuditRepository struct {
	db store.DBTX
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db store.DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AuditRepository) WithTx(tx store.DBTX) *AuditRepository {
	return &AuditRepository{db: tx}
}

// Insert appends an audit record
func (r *AuditRepository) Insert(ctx context.Context, rec *AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	query := `
		INSERT INTO audit_logs (user_id, action, entity, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		rec.UserID, rec.Action, rec.Entity, rec.EntityID, rec.Details, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Recent retrieves the newest audit records with the actor's username
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]*AuditRecord, error) {
	query := `
		SELECT al.id, al.user_id, al.action, al.entity, al.entity_id, al.details,
		       al.created_at, COALESCE(u.username, '')
		FROM audit_logs al
		LEFT JOIN users u ON al.user_id = u.id
		ORDER BY al.created_at DESC, al.id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	records := make([]*AuditRecord, 0)
	for rows.Next() {
		rec := &AuditRecord{}
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Action, &rec.Entity, &rec.EntityID, &rec.Details,
			&rec.CreatedAt, &rec.Username,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return records, nil
}

// Count counts every audit record
func (r *AuditRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return n, nil
}
