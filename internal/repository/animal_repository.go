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

// AnimalRepository handles animal data operations
type AnimalRepository struct {
	db store.DBTX
}

// NewAnimalRepository creates a new animal repository
func NewAnimalRepository(db store.DBTX) *AnimalRepository {
	return &AnimalRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AnimalRepository) WithTx(tx store.DBTX) *AnimalRepository {
	return &AnimalRepository{db: tx}
}

// Create creates a new animal
func (r *AnimalRepository) Create(ctx context.Context, a *Animal) error {
	a.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO animals (
			tag_id, name, species, sex, dob, enclosure_id,
			health_status, last_checkup, notes, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		a.TagID, a.Name, a.Species, a.Sex, a.DOB, a.EnclosureID,
		a.HealthStatus, a.LastCheckup, a.Notes, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create animal: %w", err)
	}

	return nil
}

// GetByID retrieves an animal by ID
func (r *AnimalRepository) GetByID(ctx context.Context, id int64) (*Animal, error) {
	a := &Animal{}

	query := `
		SELECT id, tag_id, name, species, sex, dob, enclosure_id,
		       health_status, last_checkup, notes, created_at
		FROM animals
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.TagID, &a.Name, &a.Species, &a.Sex, &a.DOB, &a.EnclosureID,
		&a.HealthStatus, &a.LastCheckup, &a.Notes, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("animal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get animal: %w", err)
	}

	return a, nil
}

// List retrieves every animal with the name of its enclosure
func (r *AnimalRepository) List(ctx context.Context) ([]*Animal, error) {
	query := `
		SELECT a.id, a.tag_id, a.name, a.species, a.sex, a.dob, a.enclosure_id,
		       a.health_status, a.last_checkup, a.notes, a.created_at, e.name
		FROM animals a
		LEFT JOIN enclosures e ON a.enclosure_id = e.id
		ORDER BY a.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list animals: %w", err)
	}
	defer rows.Close()

	animals := make([]*Animal, 0)
	for rows.Next() {
		a := &Animal{}
		err := rows.Scan(
			&a.ID, &a.TagID, &a.Name, &a.Species, &a.Sex, &a.DOB, &a.EnclosureID,
			&a.HealthStatus, &a.LastCheckup, &a.Notes, &a.CreatedAt, &a.EnclosureName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan animal: %w", err)
		}
		animals = append(animals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list animals: %w", err)
	}

	return animals, nil
}

// Update overwrites every editable column of an animal
func (r *AnimalRepository) Update(ctx context.Context, a *Animal) error {
	query := `
		UPDATE animals
		SET tag_id = $1, name = $2, species = $3, sex = $4, dob = $5,
		    enclosure_id = $6, health_status = $7, last_checkup = $8, notes = $9
		WHERE id = $10
	`

	res, err := r.db.ExecContext(ctx, query,
		a.TagID, a.Name, a.Species, a.Sex, a.DOB,
		a.EnclosureID, a.HealthStatus, a.LastCheckup, a.Notes, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update animal: %w", err)
	}

	return expectAffected(res, "animal", a.ID)
}

// UpdateHealth records a health status observed at checkup
func (r *AnimalRepository) UpdateHealth(ctx context.Context, id int64, status string, checkup time.Time) error {
	query := `UPDATE animals SET health_status = $1, last_checkup = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, status, checkup, id)
	if err != nil {
		return fmt.Errorf("failed to update animal health: %w", err)
	}

	return expectAffected(res, "animal", id)
}

// Delete deletes an animal; its feed schedules go with it
func (r *AnimalRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM animals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete animal: %w", err)
	}

	return expectAffected(res, "animal", id)
}

// TagInUse reports whether another animal already carries tagID
func (r *AnimalRepository) TagInUse(ctx context.Context, tagID string, exceptID int64) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM animals WHERE tag_id = $1 AND id <> $2`, tagID, exceptID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check tag id: %w", err)
	}
	return n > 0, nil
}

// Count counts every animal
func (r *AnimalRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM animals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count animals: %w", err)
	}
	return n, nil
}
