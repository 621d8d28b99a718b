package service_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/service"
)

func TestSell_PriceIsSnapshotted(t *testing.T) {
	f := newFixture(t)
	clerk := f.login(t, "tess", rbac.RoleTicketing)

	child, err := f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Child", Price: 1250})
	require.NoError(t, err)
	assert.True(t, child.Active)

	ticket, err := f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: child.ID, BuyerName: "Ana", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, repository.Cents(1250), ticket.UnitPrice)
	assert.Equal(t, repository.Cents(3750), ticket.TotalPrice)
	assert.Equal(t, "37.50", ticket.TotalPrice.String())
	assert.Equal(t, clerk.UserID, ticket.IssuedBy)

	_, err = f.svc.Tickets.UpdateType(f.ctx, clerk, child.ID, &service.TicketTypeRequest{Name: "Child", Price: 9900})
	require.NoError(t, err)

	sold, err := f.svc.Tickets.List(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, "37.50", sold[0].TotalPrice.String())
	assert.Equal(t, "12.50", sold[0].UnitPrice.String())

	actions := f.auditActions(t)
	assert.Equal(t, []string{"CREATE_TICKET_TYPE", "SELL_TICKET", "UPDATE_TICKET_TYPE"}, actions)
}

func TestSell_Rejections(t *testing.T) {
	f := newFixture(t)
	clerk := f.login(t, "tess", rbac.RoleTicketing)
	keeper := f.login(t, "kim", rbac.RoleZookeeper)

	retired, err := f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Retired", Price: 100, Active: ptr(false)})
	require.NoError(t, err)

	_, err = f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: retired.ID, BuyerName: "Ana", Quantity: 1})
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields["ticket_type_id"], "not on sale")

	_, err = f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: retired.ID + 10, BuyerName: "Ana", Quantity: 1})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, fmt.Sprintf("ticket type %d does not exist", retired.ID+10), ve.Fields["ticket_type_id"])
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: retired.ID, BuyerName: "Ana", Quantity: 0})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity must be greater than 0", ve.Fields["quantity"])

	_, err = f.svc.Tickets.Sell(f.ctx, keeper, &service.SellRequest{TicketTypeID: retired.ID, BuyerName: "Ana", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	assert.Equal(t, []string{"CREATE_TICKET_TYPE"}, f.auditActions(t))
}

func TestTicketTypes(t *testing.T) {
	f := newFixture(t)
	clerk := f.login(t, "tess", rbac.RoleTicketing)

	adult, err := f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Adult", Price: 2000})
	require.NoError(t, err)
	_, err = f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Annual", Price: 9000, Active: ptr(false)})
	require.NoError(t, err)

	_, err = f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Adult", Price: 1})
	assert.ErrorIs(t, err, apperrors.ErrStorage, "names are unique")

	_, err = f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Free", Price: -1})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	all, err := f.svc.Tickets.ListTypes(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := f.svc.Tickets.ListActiveTypes(f.ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Adult", active[0].Name)

	_, err = f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: adult.ID, BuyerName: "Bo", Quantity: 1})
	require.NoError(t, err)

	err = f.svc.Tickets.DeleteType(f.ctx, clerk, adult.ID)
	assert.ErrorIs(t, err, apperrors.ErrStorage, "sold tickets keep their type")

	assert.ErrorIs(t, f.svc.Tickets.DeleteType(f.ctx, clerk, adult.ID+100), apperrors.ErrNotFound)
}

func TestRefundAndDelete(t *testing.T) {
	f := newFixture(t)
	clerk := f.login(t, "tess", rbac.RoleTicketing)
	keeper := f.login(t, "kim", rbac.RoleZookeeper)

	tt, err := f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Adult", Price: 2000})
	require.NoError(t, err)

	first, err := f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: tt.ID, BuyerName: "Ana", Quantity: 2})
	require.NoError(t, err)
	second, err := f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: tt.ID, BuyerName: "Bo", Quantity: 1})
	require.NoError(t, err)

	summary, err := f.svc.Tickets.TodaySales(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Count)
	assert.Equal(t, repository.Cents(6000), summary.Revenue)

	assert.ErrorIs(t, f.svc.Tickets.Refund(f.ctx, keeper, first.ID), apperrors.ErrAuthorizationDenied)

	require.NoError(t, f.svc.Tickets.Refund(f.ctx, clerk, first.ID))
	require.NoError(t, f.svc.Tickets.Delete(f.ctx, clerk, second.ID))
	assert.ErrorIs(t, f.svc.Tickets.Refund(f.ctx, clerk, first.ID), apperrors.ErrNotFound)

	summary, err = f.svc.Tickets.TodaySales(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Count)
	assert.Zero(t, summary.Revenue)

	rows := f.auditRows(t)
	require.Len(t, rows, 5)
	assert.Equal(t, "REFUND_TICKET", rows[3].Action)
	assert.Equal(t, "Refunded 2 x Adult for Ana (40.00)", *rows[3].Details)
	assert.Equal(t, "DELETE_TICKET", rows[4].Action)
}

func TestTicketList_Limit(t *testing.T) {
	f := newFixture(t)
	clerk := f.login(t, "tess", rbac.RoleTicketing)

	tt, err := f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Adult", Price: 2000})
	require.NoError(t, err)
	for _, buyer := range []string{"Ana", "Bo", "Cy"} {
		_, err := f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: tt.ID, BuyerName: buyer, Quantity: 1})
		require.NoError(t, err)
	}

	recent, err := f.svc.Tickets.List(f.ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Cy", recent[0].BuyerName)
	assert.Equal(t, "Adult", recent[0].TicketTypeName)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "root", rbac.RoleAdmin)
	clerk := f.login(t, "tess", rbac.RoleTicketing)

	_, err := f.svc.Enclosures.Create(f.ctx, admin, &service.EnclosureRequest{Name: "Savannah"})
	require.NoError(t, err)
	_, err = f.svc.Animals.Create(f.ctx, admin, leo())
	require.NoError(t, err)

	tt, err := f.svc.Tickets.CreateType(f.ctx, clerk, &service.TicketTypeRequest{Name: "Adult", Price: 2000})
	require.NoError(t, err)
	_, err = f.svc.Tickets.Sell(f.ctx, clerk, &service.SellRequest{TicketTypeID: tt.ID, BuyerName: "Ana", Quantity: 4})
	require.NoError(t, err)

	d, err := f.svc.Reports.Dashboard(f.ctx, clerk)
	require.NoError(t, err)
	assert.Equal(t, &service.Dashboard{
		Animals:      1,
		Enclosures:   1,
		TicketsToday: 1,
		RevenueToday: 8000,
		ActiveUsers:  2,
	}, d)

	_, err = f.svc.Reports.Dashboard(f.ctx, nil)
	assert.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)
}

func TestTodayBoundsSpansOneLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 3, 14, 0, 30, 0, 0, loc)

	from, to := service.TodayBounds(now)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, loc), from)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
	assert.Equal(t, time.Date(2026, 3, 13, 22, 0, 0, 0, time.UTC), from.UTC())
}
