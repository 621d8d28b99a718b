package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/store"
)

// EnclosureRepository handles enclosure data operations
type EnclosureRepository struct {
	db store.DBTX
}

// NewEnclosureRepository creates a new enclosure repository
func NewEnclosureRepository(db store.DBTX) *EnclosureRepository {
	return &EnclosureRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *EnclosureRepository) WithTx(tx store.DBTX) *EnclosureRepository {
	return &EnclosureRepository{db: tx}
}

// Create creates a new enclosure
func (r *EnclosureRepository) Create(ctx context.Context, e *Enclosure) error {
	e.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO enclosures (name, type, capacity, location, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		e.Name, e.Type, e.Capacity, e.Location, e.Notes, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create enclosure: %w", err)
	}

	return nil
}

// GetByID retrieves an enclosure by ID
func (r *EnclosureRepository) GetByID(ctx context.Context, id int64) (*Enclosure, error) {
	e := &Enclosure{}

	query := `
		SELECT id, name, type, capacity, location, notes, created_at
		FROM enclosures
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.Type, &e.Capacity, &e.Location, &e.Notes, &e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("enclosure", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enclosure: %w", err)
	}

	return e, nil
}

// List retrieves every enclosure with the number of animals it houses
func (r *EnclosureRepository) List(ctx context.Context) ([]*Enclosure, error) {
	query := `
		SELECT e.id, e.name, e.type, e.capacity, e.location, e.notes, e.created_at,
		       COUNT(a.id)
		FROM enclosures e
		LEFT JOIN animals a ON e.id = a.enclosure_id
		GROUP BY e.id, e.name, e.type, e.capacity, e.location, e.notes, e.created_at
		ORDER BY e.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enclosures: %w", err)
	}
	defer rows.Close()

	enclosures := make([]*Enclosure, 0)
	for rows.Next() {
		e := &Enclosure{}
		err := rows.Scan(
			&e.ID, &e.Name, &e.Type, &e.Capacity, &e.Location, &e.Notes, &e.CreatedAt,
			&e.AnimalCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enclosure: %w", err)
		}
		enclosures = append(enclosures, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list enclosures: %w", err)
	}

	return enclosures, nil
}

// Update overwrites every editable column of an enclosure
func (r *EnclosureRepository) Update(ctx context.Context, e *Enclosure) error {
	query := `
		UPDATE enclosures
		SET name = $1, type = $2, capacity = $3, location = $4, notes = $5
		WHERE id = $6
	`

	res, err := r.db.ExecContext(ctx, query, e.Name, e.Type, e.Capacity, e.Location, e.Notes, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update enclosure: %w", err)
	}

	return expectAffected(res, "enclosure", e.ID)
}

// Delete deletes an enclosure; its animals become unhoused
func (r *EnclosureRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enclosures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete enclosure: %w", err)
	}

	return expectAffected(res, "enclosure", id)
}

// Count counts every enclosure
func (r *EnclosureRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enclosures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count enclosures: %w", err)
	}
	return n, nil
}
