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

// TicketRepository handles ticket type and ticket sale data operations
type TicketRepository struct {
	db store.DBTX
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db store.DBTX) *TicketRepository {
	return &TicketRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *TicketRepository) WithTx(tx store.DBTX) *TicketRepository {
	return &TicketRepository{db: tx}
}

// CreateType creates a new ticket type
func (r *TicketRepository) CreateType(ctx context.Context, t *TicketType) error {
	t.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO ticket_types (name, price_cents, active, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query, t.Name, t.Price, t.Active, t.CreatedAt).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to create ticket type: %w", err)
	}

	return nil
}

// GetType retrieves a ticket type by ID
func (r *TicketRepository) GetType(ctx context.Context, id int64) (*TicketType, error) {
	t := &TicketType{}

	query := `SELECT id, name, price_cents, active, created_at FROM ticket_types WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.Price, &t.Active, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("ticket type", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}

	return t, nil
}

// ListTypes retrieves ticket types by name, optionally only the sellable ones
func (r *TicketRepository) ListTypes(ctx context.Context, activeOnly bool) ([]*TicketType, error) {
	query := `SELECT id, name, price_cents, active, created_at FROM ticket_types`
	var args []any
	if activeOnly {
		query += ` WHERE active = $1`
		args = append(args, true)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket types: %w", err)
	}
	defer rows.Close()

	types := make([]*TicketType, 0)
	for rows.Next() {
		t := &TicketType{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Price, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket type: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list ticket types: %w", err)
	}

	return types, nil
}

// UpdateType changes a ticket type's name, price and active flag.
// Tickets already sold keep the price they were sold at.
func (r *TicketRepository) UpdateType(ctx context.Context, t *TicketType) error {
	query := `UPDATE ticket_types SET name = $1, price_cents = $2, active = $3 WHERE id = $4`

	res, err := r.db.ExecContext(ctx, query, t.Name, t.Price, t.Active, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket type: %w", err)
	}

	return expectAffected(res, "ticket type", t.ID)
}

// DeleteType deletes a ticket type. Fails while sold tickets reference it.
func (r *TicketRepository) DeleteType(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ticket_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket type: %w", err)
	}

	return expectAffected(res, "ticket type", id)
}

// Create records a ticket sale
func (r *TicketRepository) Create(ctx context.Context, t *Ticket) error {
	if t.IssuedAt.IsZero() {
		t.IssuedAt = time.Now()
	}
	t.IssuedAt = t.IssuedAt.UTC()

	query := `
		INSERT INTO tickets (
			ticket_type_id, buyer_name, quantity, unit_price_cents,
			total_price_cents, issued_by, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		t.TicketTypeID, t.BuyerName, t.Quantity, t.UnitPrice,
		t.TotalPrice, t.IssuedBy, t.IssuedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

// GetByID retrieves a ticket by ID
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*Ticket, error) {
	t := &Ticket{}

	query := `
		SELECT t.id, t.ticket_type_id, t.buyer_name, t.quantity, t.unit_price_cents,
		       t.total_price_cents, t.issued_by, t.issued_at, tt.name
		FROM tickets t
		JOIN ticket_types tt ON t.ticket_type_id = tt.id
		WHERE t.id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.TicketTypeID, &t.BuyerName, &t.Quantity, &t.UnitPrice,
		&t.TotalPrice, &t.IssuedBy, &t.IssuedAt, &t.TicketTypeName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("ticket", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return t, nil
}

// List retrieves sold tickets, newest first
func (r *TicketRepository) List(ctx context.Context, limit int) ([]*Ticket, error) {
	query := `
		SELECT t.id, t.ticket_type_id, t.buyer_name, t.quantity, t.unit_price_cents,
		       t.total_price_cents, t.issued_by, t.issued_at, tt.name
		FROM tickets t
		JOIN ticket_types tt ON t.ticket_type_id = tt.id
		ORDER BY t.issued_at DESC, t.id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*Ticket, 0)
	for rows.Next() {
		t := &Ticket{}
		err := rows.Scan(
			&t.ID, &t.TicketTypeID, &t.BuyerName, &t.Quantity, &t.UnitPrice,
			&t.TotalPrice, &t.IssuedBy, &t.IssuedAt, &t.TicketTypeName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	return tickets, nil
}

// Delete deletes a ticket
func (r *TicketRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}

	return expectAffected(res, "ticket", id)
}

// SalesBetween counts sales and sums revenue issued in [from, to)
func (r *TicketRepository) SalesBetween(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	query := `
		SELECT COUNT(*),
		       CAST(COALESCE(SUM(total_price_cents), 0) AS BIGINT)
		FROM tickets
		WHERE issued_at >= $1 AND issued_at < $2
	`

	s := &SalesSummary{}
	if err := r.db.QueryRowContext(ctx, query, from.UTC(), to.UTC()).Scan(&s.Count, &s.Revenue); err != nil {
		return nil, fmt.Errorf("failed to sum ticket sales: %w", err)
	}

	return s, nil
}
