package service_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/metrics"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/service"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

func newMockGuard(t *testing.T) (*service.Guard, sqlmock.Sqlmock, *metrics.Metrics) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.Nop()
	gw := store.New(db, store.DialectPostgres, log)
	m := metrics.New(prometheus.NewRegistry())
	audit := service.NewAuditService(repository.NewAuditRepository(db), log)

	return service.NewGuard(gw, audit, service.NewValidator(), m, log), mock, m
}

type namePayload struct {
	Name string `json:"name" validate:"required"`
}

func touch(ctx context.Context, tx store.DBTX) (service.Change, error) {
	if _, err := tx.ExecContext(ctx, "UPDATE animals SET notes = $1 WHERE id = $2", "x", 7); err != nil {
		return service.Change{}, err
	}
	return service.Change{EntityID: 7, Details: "touched"}, nil
}

func TestGuard_DeniedNeverTouchesStorage(t *testing.T) {
	g, mock, m := newMockGuard(t)
	sess := session.New(3, "tess", rbac.RoleTicketing)

	op := service.Operation{
		Capability: rbac.Cap(rbac.DomainUsers, rbac.ActionDelete),
		Action:     "DELETE_USER",
		Entity:     "users",
	}
	_, err := g.Run(context.Background(), sess, op, touch)

	assert.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("users", "DELETE_USER", "denied")))
}

func TestGuard_NilSessionDenied(t *testing.T) {
	g, mock, _ := newMockGuard(t)

	_, err := g.Run(context.Background(), nil, service.Operation{Action: "CHANGE_PASSWORD", Entity: "users"}, touch)

	assert.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_InvalidPayloadNeverTouchesStorage(t *testing.T) {
	g, mock, _ := newMockGuard(t)
	sess := session.New(1, "root", rbac.RoleAdmin)

	op := service.Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionUpdate),
		Action:     "UPDATE_ANIMAL",
		Entity:     "animals",
		Payload:    &namePayload{},
	}
	_, err := g.Run(context.Background(), sess, op, touch)

	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name is required", ve.Fields["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_CheckRunsBeforeStorage(t *testing.T) {
	g, mock, _ := newMockGuard(t)
	sess := session.New(1, "root", rbac.RoleAdmin)

	op := service.Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionUpdate),
		Action:     "UPDATE_ANIMAL",
		Entity:     "animals",
		Check:      func() error { return apperrors.NewValidationError("id", "nope") },
	}
	_, err := g.Run(context.Background(), sess, op, touch)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_CommitsMutationWithAudit(t *testing.T) {
	g, mock, m := newMockGuard(t)
	sess := session.New(1, "root", rbac.RoleAdmin)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE animals").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(int64(1), "UPDATE_ANIMAL", "animals", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	op := service.Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionUpdate),
		Action:     "UPDATE_ANIMAL",
		Entity:     "animals",
	}
	change, err := g.Run(context.Background(), sess, op, touch)

	require.NoError(t, err)
	assert.Equal(t, int64(7), change.EntityID)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("animals", "UPDATE_ANIMAL", "ok")))
}

func TestGuard_AuditFailureRollsBackMutation(t *testing.T) {
	g, mock, m := newMockGuard(t)
	sess := session.New(1, "root", rbac.RoleAdmin)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE animals").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO audit_logs").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	op := service.Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionUpdate),
		Action:     "UPDATE_ANIMAL",
		Entity:     "animals",
	}
	change, err := g.Run(context.Background(), sess, op, touch)

	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, change.EntityID)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("animals", "UPDATE_ANIMAL", "storage")))
}

func TestGuard_MutationNotFoundKeepsKind(t *testing.T) {
	g, mock, _ := newMockGuard(t)
	sess := session.New(1, "root", rbac.RoleAdmin)

	mock.ExpectBegin()
	mock.ExpectRollback()

	op := service.Operation{
		Capability: rbac.Cap(rbac.DomainAnimals, rbac.ActionDelete),
		Action:     "DELETE_ANIMAL",
		Entity:     "animals",
	}
	_, err := g.Run(context.Background(), sess, op, func(ctx context.Context, tx store.DBTX) (service.Change, error) {
		return service.Change{}, apperrors.NotFound("animal", 99)
	})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_ZeroCapabilityAdmitsAnySession(t *testing.T) {
	g, mock, _ := newMockGuard(t)
	sess := session.New(5, "kim", rbac.RoleZookeeper)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE animals").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	_, err := g.Run(context.Background(), sess, service.Operation{Action: "CHANGE_PASSWORD", Entity: "users"}, touch)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_Authorize(t *testing.T) {
	g, _, _ := newMockGuard(t)
	keeper := session.New(2, "kim", rbac.RoleZookeeper)

	assert.NoError(t, g.Authorize(keeper, rbac.Cap(rbac.DomainFeeding, rbac.ActionDelete)))
	assert.ErrorIs(t, g.Authorize(keeper, rbac.Cap(rbac.DomainAnimals, rbac.ActionDelete)), apperrors.ErrAuthorizationDenied)
	assert.ErrorIs(t, g.Authorize(nil, rbac.Cap(rbac.DomainAnimals, rbac.ActionView)), apperrors.ErrAuthorizationDenied)
}
