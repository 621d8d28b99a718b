// Package store owns the relational connection pool.
//
// A Gateway is opened once at process start, handed by reference to every
// repository and service that needs storage, and closed at shutdown.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

// DefaultMaxConns matches the pool size the desktop client always used
const DefaultMaxConns = 5

// Dialect identifies the SQL flavour of the backing database
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DBTX is satisfied by *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configure Open
type Options struct {
	// Driver is "pgx" or "sqlite".
	Driver   string
	DSN      string
	MaxConns int
}

// Gateway is the explicitly owned handle on the database pool
type Gateway struct {
	db      *sql.DB
	dialect Dialect
	log     *logger.Logger
}

// Open connects to the database and verifies the connection
func Open(ctx context.Context, opts Options, log *logger.Logger) (*Gateway, error) {
	var dialect Dialect
	switch opts.Driver {
	case "pgx":
		dialect = DialectPostgres
	case "sqlite":
		dialect = DialectSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	dsn := opts.DSN
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	if dialect == DialectSQLite {
		// One connection keeps an in-memory database shared and
		// serialises writers.
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	if dialect == DialectPostgres {
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	g := &Gateway{db: db, dialect: dialect, log: log}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("driver", opts.Driver).
		Int("max_conns", maxConns).
		Msg("Database connection established")

	return g, nil
}

// foreignKeysPragma is applied by the driver to every new connection
const foreignKeysPragma = "_pragma=foreign_keys(1)"

// sqliteDSN turns on foreign key enforcement for every pooled connection;
// SQLite keeps the setting per connection.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, foreignKeysPragma) {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + foreignKeysPragma
	}
	return dsn + "?" + foreignKeysPragma
}

// New wraps an already opened *sql.DB. Used with sqlmock in tests.
func New(db *sql.DB, dialect Dialect, log *logger.Logger) *Gateway {
	return &Gateway{db: db, dialect: dialect, log: log}
}

// DB returns the pool for single-statement work
func (g *Gateway) DB() DBTX {
	return g.db
}

// Dialect returns the SQL flavour of the database
func (g *Gateway) Dialect() Dialect {
	return g.dialect
}

// Stats returns pool statistics
func (g *Gateway) Stats() sql.DBStats {
	return g.db.Stats()
}

// Ping checks that the database is reachable
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// Close releases every pooled connection
func (g *Gateway) Close() error {
	g.log.Info().Msg("Closing database connection pool")
	return g.db.Close()
}

// InTx runs fn as one unit of work. The transaction commits when fn
// returns nil and rolls back on error or panic; either way the connection
// goes back to the pool.
func (g *Gateway) InTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			g.log.Error().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
