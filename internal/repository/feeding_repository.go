package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pesio-ai/be-zoo-core/internal/store"
)

// FeedingRepository handles feed schedule data operations
type FeedingRepository struct {
	db store.DBTX
}

// NewFeedingRepository creates a new feeding repository
func NewFeedingRepository(db store.DBTX) *FeedingRepository {
	return &FeedingRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *FeedingRepository) WithTx(tx store.DBTX) *FeedingRepository {
	return &FeedingRepository{db: tx}
}

// Create creates a new feed schedule
func (r *FeedingRepository) Create(ctx context.Context, f *FeedSchedule) error {
	f.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO feed_schedules (animal_id, feed_item, quantity, schedule_time, frequency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		f.AnimalID, f.FeedItem, f.Quantity, f.ScheduleTime, f.Frequency, f.CreatedAt,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to create feed schedule: %w", err)
	}

	return nil
}

// List retrieves every feed schedule in time-of-day order
func (r *FeedingRepository) List(ctx context.Context) ([]*FeedSchedule, error) {
	query := `
		SELECT fs.id, fs.animal_id, fs.feed_item, fs.quantity, fs.schedule_time,
		       fs.frequency, fs.created_at, a.name, a.species
		FROM feed_schedules fs
		JOIN animals a ON fs.animal_id = a.id
		ORDER BY fs.schedule_time, fs.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]*FeedSchedule, 0)
	for rows.Next() {
		f := &FeedSchedule{}
		err := rows.Scan(
			&f.ID, &f.AnimalID, &f.FeedItem, &f.Quantity, &f.ScheduleTime,
			&f.Frequency, &f.CreatedAt, &f.AnimalName, &f.AnimalSpecies,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed schedule: %w", err)
		}
		schedules = append(schedules, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list feed schedules: %w", err)
	}

	return schedules, nil
}

// Update overwrites every editable column of a feed schedule
func (r *FeedingRepository) Update(ctx context.Context, f *FeedSchedule) error {
	query := `
		UPDATE feed_schedules
		SET animal_id = $1, feed_item = $2, quantity = $3, schedule_time = $4, frequency = $5
		WHERE id = $6
	`

	res, err := r.db.ExecContext(ctx, query,
		f.AnimalID, f.FeedItem, f.Quantity, f.ScheduleTime, f.Frequency, f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update feed schedule: %w", err)
	}

	return expectAffected(res, "feed schedule", f.ID)
}

// Delete deletes a feed schedule
func (r *FeedingRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feed_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed schedule: %w", err)
	}

	return expectAffected(res, "feed schedule", id)
}
