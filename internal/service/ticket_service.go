package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

// DefaultTicketLimit caps List when no limit is given
const DefaultTicketLimit = 100

// TicketService manages ticket types and ticket sales
type TicketService struct {
	ticketRepo *repository.TicketRepository
	guard      *Guard
	log        *logger.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(ticketRepo *repository.TicketRepository, guard *Guard, log *logger.Logger) *TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		guard:      guard,
		log:        log.With("tickets"),
	}
}

// TicketTypeRequest is the payload for creating or updating a ticket type.
// A nil Active means active.
type TicketTypeRequest struct {
	Name   string           `json:"name" validate:"required,max=100"`
	Price  repository.Cents `json:"price_cents" validate:"gte=0"`
	Active *bool            `json:"active"`
}

func (r *TicketTypeRequest) apply(t *repository.TicketType) {
	t.Name = strings.TrimSpace(r.Name)
	t.Price = r.Price
	t.Active = r.Active == nil || *r.Active
}

// SellRequest is the payload for a ticket sale
type SellRequest struct {
	TicketTypeID int64  `json:"ticket_type_id" validate:"required,gt=0"`
	BuyerName    string `json:"buyer_name" validate:"required,max=100"`
	Quantity     int    `json:"quantity" validate:"gt=0,max=1000"`
}

// ListTypes returns every ticket type ordered by name
func (s *TicketService) ListTypes(ctx context.Context) ([]*repository.TicketType, error) {
	types, err := s.ticketRepo.ListTypes(ctx, false)
	if err != nil {
		return nil, apperrors.Storage("list ticket types", err)
	}
	return types, nil
}

// ListActiveTypes returns the ticket types that can be sold
func (s *TicketService) ListActiveTypes(ctx context.Context) ([]*repository.TicketType, error) {
	types, err := s.ticketRepo.ListTypes(ctx, true)
	if err != nil {
		return nil, apperrors.Storage("list ticket types", err)
	}
	return types, nil
}

// CreateType creates a new ticket type
func (s *TicketService) CreateType(ctx context.Context, sess *session.Session, req *TicketTypeRequest) (*repository.TicketType, error) {
	req.Name = strings.TrimSpace(req.Name)

	op := Operation{
		Capability: rbac.Cap(rbac.DomainTicketTypes, rbac.ActionCreate),
		Action:     "CREATE_TICKET_TYPE",
		Entity:     "ticket_types",
		Payload:    req,
	}

	tt := &repository.TicketType{}
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		req.apply(tt)
		if err := s.ticketRepo.WithTx(tx).CreateType(ctx, tt); err != nil {
			return Change{}, err
		}
		return Change{EntityID: tt.ID, Details: fmt.Sprintf("%s at %s", tt.Name, tt.Price)}, nil
	})
	if err != nil {
		return nil, err
	}

	return tt, nil
}

// UpdateType changes a ticket type. Tickets already sold are unaffected.
func (s *TicketService) UpdateType(ctx context.Context, sess *session.Session, id int64, req *TicketTypeRequest) (*repository.TicketType, error) {
	req.Name = strings.TrimSpace(req.Name)

	op := Operation{
		Capability: rbac.Cap(rbac.DomainTicketTypes, rbac.ActionUpdate),
		Action:     "UPDATE_TICKET_TYPE",
		Entity:     "ticket_types",
		Payload:    req,
	}

	tt := &repository.TicketType{ID: id}
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		tickets := s.ticketRepo.WithTx(tx)

		existing, err := tickets.GetType(ctx, id)
		if err != nil {
			return Change{}, err
		}

		req.apply(tt)
		tt.CreatedAt = existing.CreatedAt
		if err := tickets.UpdateType(ctx, tt); err != nil {
			return Change{}, err
		}
		return Change{
			EntityID: id,
			Details:  fmt.Sprintf("%s: %s -> %s, active=%t", tt.Name, existing.Price, tt.Price, tt.Active),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return tt, nil
}

// DeleteType deletes a ticket type. Types with sold tickets cannot be
// deleted; deactivate them instead.
func (s *TicketService) DeleteType(ctx context.Context, sess *session.Session, id int64) error {
	op := Operation{
		Capability: rbac.Cap(rbac.DomainTicketTypes, rbac.ActionDelete),
		Action:     "DELETE_TICKET_TYPE",
		Entity:     "ticket_types",
	}

	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		tickets := s.ticketRepo.WithTx(tx)

		existing, err := tickets.GetType(ctx, id)
		if err != nil {
			return Change{}, err
		}
		if err := tickets.DeleteType(ctx, id); err != nil {
			return Change{}, err
		}
		return Change{EntityID: id, Details: "Deleted ticket type " + existing.Name}, nil
	})
	return err
}

// Sell records a sale. Unit and total price are copied from the ticket
// type at this moment and never change afterwards.
func (s *TicketService) Sell(ctx context.Context, sess *session.Session, req *SellRequest) (*repository.Ticket, error) {
	req.BuyerName = strings.TrimSpace(req.BuyerName)

	op := Operation{
		Capability: rbac.Cap(rbac.DomainTickets, rbac.ActionCreate),
		Action:     "SELL_TICKET",
		Entity:     "tickets",
		Payload:    req,
	}

	ticket := &repository.Ticket{}
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		tickets := s.ticketRepo.WithTx(tx)

		tt, err := tickets.GetType(ctx, req.TicketTypeID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return Change{}, apperrors.NewValidationError("ticket_type_id", fmt.Sprintf("ticket type %d does not exist", req.TicketTypeID))
		}
		if err != nil {
			return Change{}, err
		}
		if !tt.Active {
			return Change{}, apperrors.NewValidationError("ticket_type_id", fmt.Sprintf("ticket type %s is not on sale", tt.Name))
		}

		ticket.TicketTypeID = tt.ID
		ticket.TicketTypeName = tt.Name
		ticket.BuyerName = req.BuyerName
		ticket.Quantity = req.Quantity
		ticket.UnitPrice = tt.Price
		ticket.TotalPrice = tt.Price * repository.Cents(req.Quantity)
		ticket.IssuedBy = sess.UserID

		if err := tickets.Create(ctx, ticket); err != nil {
			return Change{}, err
		}
		return Change{
			EntityID: ticket.ID,
			Details:  fmt.Sprintf("%d x %s for %s = %s", ticket.Quantity, tt.Name, ticket.BuyerName, ticket.TotalPrice),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return ticket, nil
}

// List returns the most recent sales, newest first
func (s *TicketService) List(ctx context.Context, limit int) ([]*repository.Ticket, error) {
	if limit <= 0 {
		limit = DefaultTicketLimit
	}

	tickets, err := s.ticketRepo.List(ctx, limit)
	if err != nil {
		return nil, apperrors.Storage("list tickets", err)
	}
	return tickets, nil
}

// Refund reverses a sale; the ticket no longer counts toward revenue
func (s *TicketService) Refund(ctx context.Context, sess *session.Session, id int64) error {
	return s.remove(ctx, sess, id, Operation{
		Capability: rbac.Cap(rbac.DomainTickets, rbac.ActionRefund),
		Action:     "REFUND_TICKET",
		Entity:     "tickets",
	}, "Refunded")
}

// Delete removes a ticket entered by mistake
func (s *TicketService) Delete(ctx context.Context, sess *session.Session, id int64) error {
	return s.remove(ctx, sess, id, Operation{
		Capability: rbac.Cap(rbac.DomainTickets, rbac.ActionDelete),
		Action:     "DELETE_TICKET",
		Entity:     "tickets",
	}, "Deleted")
}

func (s *TicketService) remove(ctx context.Context, sess *session.Session, id int64, op Operation, verb string) error {
	_, err := s.guard.Run(ctx, sess, op, func(ctx context.Context, tx store.DBTX) (Change, error) {
		tickets := s.ticketRepo.WithTx(tx)

		existing, err := tickets.GetByID(ctx, id)
		if err != nil {
			return Change{}, err
		}
		if err := tickets.Delete(ctx, id); err != nil {
			return Change{}, err
		}
		return Change{
			EntityID: id,
			Details: fmt.Sprintf("%s %d x %s for %s (%s)",
				verb, existing.Quantity, existing.TicketTypeName, existing.BuyerName, existing.TotalPrice),
		}, nil
	})
	return err
}

// TodaySales counts sales and sums revenue for the current local day
func (s *TicketService) TodaySales(ctx context.Context) (*repository.SalesSummary, error) {
	from, to := todayBounds(time.Now())

	summary, err := s.ticketRepo.SalesBetween(ctx, from, to)
	if err != nil {
		return nil, apperrors.Storage("sum today's sales", err)
	}
	return summary, nil
}

// todayBounds returns [midnight, next midnight) of now's local day
func todayBounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 0, 1)
}
