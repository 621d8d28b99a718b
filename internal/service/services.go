package service

import (
	"github.com/pesio-ai/be-zoo-core/internal/metrics"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
	"github.com/pesio-ai/be-zoo-core/pkg/password"
)

// Options carries the collaborators shared by every service
type Options struct {
	PasswordParams *password.Params
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
}

// Services is the full set of domain operations over one gateway
type Services struct {
	Auth       *AuthService
	Audit      *AuditService
	Users      *UserService
	Animals    *AnimalService
	Enclosures *EnclosureService
	Feeding    *FeedingService
	Tickets    *TicketService
	Reports    *ReportService
	Bootstrap  *Bootstrapper
	Guard      *Guard
}

// New wires repositories and services on top of gateway
func New(gateway *store.Gateway, opts Options) (*Services, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Nop()
	}

	db := gateway.DB()
	userRepo := repository.NewUserRepository(db)
	animalRepo := repository.NewAnimalRepository(db)
	enclosureRepo := repository.NewEnclosureRepository(db)
	feedingRepo := repository.NewFeedingRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	roleRepo := repository.NewRoleRepository(db)

	audit := NewAuditService(auditRepo, log)
	guard := NewGuard(gateway, audit, NewValidator(), m, log)

	auth, err := NewAuthService(userRepo, guard, opts.PasswordParams, m, log)
	if err != nil {
		return nil, err
	}

	return &Services{
		Auth:       auth,
		Audit:      audit,
		Users:      NewUserService(userRepo, roleRepo, guard, opts.PasswordParams, log),
		Animals:    NewAnimalService(animalRepo, enclosureRepo, guard, log),
		Enclosures: NewEnclosureService(enclosureRepo, guard, log),
		Feeding:    NewFeedingService(feedingRepo, animalRepo, guard, log),
		Tickets:    NewTicketService(ticketRepo, guard, log),
		Reports:    NewReportService(animalRepo, enclosureRepo, ticketRepo, userRepo, log),
		Bootstrap:  NewBootstrapper(gateway, audit, opts.PasswordParams, log),
		Guard:      guard,
	}, nil
}
