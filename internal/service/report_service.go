package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

// Dashboard is the headline statistics shown after login
type Dashboard struct {
	Animals      int64
	Enclosures   int64
	TicketsToday int64
	RevenueToday repository.Cents
	ActiveUsers  int64
}

// ReportService computes read-only statistics
type ReportService struct {
	animalRepo    *repository.AnimalRepository
	enclosureRepo *repository.EnclosureRepository
	ticketRepo    *repository.TicketRepository
	userRepo      *repository.UserRepository
	log           *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(
	animalRepo *repository.AnimalRepository,
	enclosureRepo *repository.EnclosureRepository,
	ticketRepo *repository.TicketRepository,
	userRepo *repository.UserRepository,
	log *logger.Logger,
) *ReportService {
	return &ReportService{
		animalRepo:    animalRepo,
		enclosureRepo: enclosureRepo,
		ticketRepo:    ticketRepo,
		userRepo:      userRepo,
		log:           log.With("reports"),
	}
}

// Dashboard gathers the headline counts for today
func (s *ReportService) Dashboard(ctx context.Context, sess *session.Session) (*Dashboard, error) {
	c := rbac.Cap(rbac.DomainReports, rbac.ActionView)
	if !sess.Can(c) {
		return nil, apperrors.Denied(roleOf(sess), c.String())
	}

	d := &Dashboard{}
	var err error

	if d.Animals, err = s.animalRepo.Count(ctx); err != nil {
		return nil, apperrors.Storage("count animals", err)
	}
	if d.Enclosures, err = s.enclosureRepo.Count(ctx); err != nil {
		return nil, apperrors.Storage("count enclosures", err)
	}
	if d.ActiveUsers, err = s.userRepo.CountActive(ctx); err != nil {
		return nil, apperrors.Storage("count users", err)
	}

	from, to := todayBounds(time.Now())
	sales, err := s.ticketRepo.SalesBetween(ctx, from, to)
	if err != nil {
		return nil, apperrors.Storage("sum today's sales", err)
	}
	d.TicketsToday = sales.Count
	d.RevenueToday = sales.Revenue

	return d, nil
}
