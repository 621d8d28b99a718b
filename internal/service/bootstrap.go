package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
	"github.com/pesio-ai/be-zoo-core/pkg/password"
)

// DefaultTicketTypes are offered on a fresh install
var DefaultTicketTypes = []repository.TicketType{
	{Name: "Adult", Price: 2000, Active: true},
	{Name: "Child", Price: 1250, Active: true},
	{Name: "Senior", Price: 1500, Active: true},
}

// BootstrapResult reports what Bootstrap provisioned
type BootstrapResult struct {
	AdminID            int64
	AdminCreated       bool
	TicketTypesCreated int
}

// Bootstrapper provisions an empty database
type Bootstrapper struct {
	gateway *store.Gateway
	audit   *AuditService
	params  *password.Params
	log     *logger.Logger
}

// NewBootstrapper creates a new bootstrapper
func NewBootstrapper(gateway *store.Gateway, audit *AuditService, params *password.Params, log *logger.Logger) *Bootstrapper {
	if params == nil {
		params = password.DefaultParams()
	}
	return &Bootstrapper{
		gateway: gateway,
		audit:   audit,
		params:  params,
		log:     log.With("bootstrap"),
	}
}

// Run creates the first admin when no active admin exists, and the default
// ticket types when there are none. There is no session yet, so the new
// admin is the actor of every audit record written here. Running it again
// on a provisioned database changes nothing.
func (b *Bootstrapper) Run(ctx context.Context, username, pw string) (*BootstrapResult, error) {
	res := &BootstrapResult{}

	err := b.gateway.InTx(ctx, func(tx store.DBTX) error {
		users := repository.NewUserRepository(tx)
		tickets := repository.NewTicketRepository(tx)

		admins, err := users.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if admins > 0 {
			return nil
		}

		username = strings.TrimSpace(username)
		if username == "" || pw == "" {
			return &apperrors.ValidationError{Fields: map[string]string{
				"username": "bootstrap admin username and password are required",
			}}
		}

		hash, err := password.Hash(pw, b.params)
		if err != nil {
			return err
		}
		admin := &repository.User{
			Username:     username,
			PasswordHash: hash,
			Role:         string(rbac.RoleAdmin),
			IsActive:     true,
		}
		if err := users.Create(ctx, admin); err != nil {
			return err
		}
		res.AdminID = admin.ID
		res.AdminCreated = true

		if err := b.record(ctx, tx, admin.ID, "CREATE_USER", "users", admin.ID, "Bootstrap admin "+username); err != nil {
			return err
		}

		existing, err := tickets.ListTypes(ctx, false)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		for _, def := range DefaultTicketTypes {
			tt := def
			if err := tickets.CreateType(ctx, &tt); err != nil {
				return err
			}
			if err := b.record(ctx, tx, admin.ID, "CREATE_TICKET_TYPE", "ticket_types", tt.ID, fmt.Sprintf("%s at %s", tt.Name, tt.Price)); err != nil {
				return err
			}
			res.TicketTypesCreated++
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage("bootstrap", err)
	}

	b.log.Info().
		Bool("admin_created", res.AdminCreated).
		Int("ticket_types_created", res.TicketTypesCreated).
		Msg("Bootstrap finished")

	return res, nil
}

func (b *Bootstrapper) record(ctx context.Context, tx store.DBTX, actor int64, action, entity string, id int64, details string) error {
	return b.audit.Record(ctx, tx, AuditEntry{
		UserID:   actor,
		Action:   action,
		Entity:   entity,
		EntityID: &id,
		Details:  details,
	})
}
