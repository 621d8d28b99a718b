package store_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/internal/store/storetest"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	g, err := store.Open(context.Background(), store.Options{Driver: "mysql"}, logger.Nop())
	assert.Error(t, err)
	assert.Nil(t, g)
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:?_pragma=foreign_keys(1)"},
		{"zoo.db", "zoo.db?_pragma=foreign_keys(1)"},
		{"file:zoo.db?mode=rwc", "file:zoo.db?mode=rwc&_pragma=foreign_keys(1)"},
		{"zoo.db?_pragma=foreign_keys(1)", "zoo.db?_pragma=foreign_keys(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, store.SQLiteDSN(tt.dsn))
		})
	}
}

func TestOpen_ForeignKeysOnReplacedConnection(t *testing.T) {
	ctx := context.Background()
	g := storetest.NewSQLite(t)

	// Drop the only pooled connection so the next query dials a new one
	conn, err := g.SQLDB().Conn(ctx)
	require.NoError(t, err)
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()

	var on int
	require.NoError(t, g.DB().QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&on))
	assert.Equal(t, 1, on)
}

func TestMigrate_CreatesSchemaOnce(t *testing.T) {
	ctx := context.Background()
	g := storetest.NewSQLite(t)

	assert.Equal(t, store.DialectSQLite, g.Dialect())
	require.NoError(t, g.Migrate(ctx), "second run must be a no-op")

	var version, roles int
	require.NoError(t, g.DB().QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	require.NoError(t, g.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&roles))

	assert.Equal(t, len(store.Migrations()), version)
	assert.Equal(t, 3, roles)
}

func TestMigrations_EveryDialectCovered(t *testing.T) {
	for i, m := range store.Migrations() {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Description)
		assert.Len(t, m.SQLite, len(m.Postgres), "migration %d", m.Version)
	}
}

func TestInTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	g := storetest.NewSQLite(t)

	err := g.InTx(ctx, func(tx store.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO enclosures (name) VALUES ($1)`, "Savannah")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = g.InTx(ctx, func(tx store.DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO enclosures (name) VALUES ($1)`, "Aviary"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, g.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM enclosures`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestInTx_RollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := store.New(db, store.DialectPostgres, logger.Nop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = g.InTx(context.Background(), func(tx store.DBTX) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := store.New(db, store.DialectPostgres, logger.Nop())

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err = g.InTx(context.Background(), func(tx store.DBTX) error { return nil })
	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	g := storetest.NewSQLite(t)

	_, err := g.DB().ExecContext(ctx,
		`INSERT INTO feed_schedules (animal_id, feed_item, quantity, schedule_time, frequency) VALUES ($1, $2, $3, $4, $5)`,
		999, "Meat", "5kg", "09:00", "Daily",
	)
	assert.Error(t, err)
}
