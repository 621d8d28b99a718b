package service_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-zoo-core/internal/metrics"
	"github.com/pesio-ai/be-zoo-core/internal/rbac"
	"github.com/pesio-ai/be-zoo-core/internal/repository"
	"github.com/pesio-ai/be-zoo-core/internal/service"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/internal/store/storetest"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
	"github.com/pesio-ai/be-zoo-core/pkg/password"
)

// testParams keeps argon2 cheap enough for unit tests
var testParams = &password.Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type fixture struct {
	ctx     context.Context
	gw      *store.Gateway
	svc     *service.Services
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gw := storetest.NewSQLite(t)
	m := metrics.New(prometheus.NewRegistry())

	svc, err := service.New(gw, service.Options{
		PasswordParams: testParams,
		Metrics:        m,
		Logger:         logger.Nop(),
	})
	require.NoError(t, err)

	return &fixture{ctx: context.Background(), gw: gw, svc: svc, metrics: m}
}

// login creates an active user directly in storage and returns its session
func (f *fixture) login(t *testing.T, username string, role rbac.Role) *session.Session {
	t.Helper()

	hash, err := password.Hash(username+"-secret", testParams)
	require.NoError(t, err)

	u := &repository.User{Username: username, PasswordHash: hash, Role: string(role), IsActive: true}
	require.NoError(t, repository.NewUserRepository(f.gw.DB()).Create(f.ctx, u))

	return session.New(u.ID, u.Username, role)
}

type auditRow struct {
	UserID   int64
	Action   string
	Entity   string
	EntityID *int64
	Details  *string
}

func (f *fixture) auditRows(t *testing.T) []auditRow {
	t.Helper()

	rows, err := f.gw.DB().QueryContext(f.ctx,
		`SELECT user_id, action, entity, entity_id, details FROM audit_logs ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var out []auditRow
	for rows.Next() {
		var r auditRow
		require.NoError(t, rows.Scan(&r.UserID, &r.Action, &r.Entity, &r.EntityID, &r.Details))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func (f *fixture) auditActions(t *testing.T) []string {
	t.Helper()

	var actions []string
	for _, r := range f.auditRows(t) {
		actions = append(actions, r.Action)
	}
	return actions
}

func ptr[T any](v T) *T {
	return &v
}
