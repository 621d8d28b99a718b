package store

import (
	"context"
	"fmt"
	"time"
)

// Migration is one versioned schema change. Each dialect gets its own
// statements; both must leave the schema in the same logical state.
type Migration struct {
	Version     int
	Description string
	Postgres    []string
	SQLite      []string
}

// Migrations returns every schema migration in version order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles and users tables",
			Postgres: []string{
				`CREATE TABLE IF NOT EXISTS roles (
					id SERIAL PRIMARY KEY,
					name VARCHAR(50) NOT NULL UNIQUE
				)`,
				`INSERT INTO roles (name) VALUES ('admin'), ('zookeeper'), ('ticketing')`,
				`CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(100) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					role_id INTEGER NOT NULL REFERENCES roles(id),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
			},
			SQLite: []string{
				`CREATE TABLE IF NOT EXISTS roles (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE
				)`,
				`INSERT INTO roles (name) VALUES ('admin'), ('zookeeper'), ('ticketing')`,
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					username TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					role_id INTEGER NOT NULL REFERENCES roles(id),
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
			},
		},
		{
			Version:     2,
			Description: "Create enclosures, animals and feed_schedules tables",
			Postgres: []string{
				`CREATE TABLE IF NOT EXISTS enclosures (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					type VARCHAR(100) NOT NULL DEFAULT '',
					capacity INTEGER NOT NULL DEFAULT 0,
					location VARCHAR(255) NOT NULL DEFAULT '',
					notes TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS animals (
					id BIGSERIAL PRIMARY KEY,
					tag_id VARCHAR(50) NOT NULL UNIQUE,
					name VARCHAR(100) NOT NULL,
					species VARCHAR(100) NOT NULL,
					sex VARCHAR(10) NOT NULL DEFAULT 'Unknown',
					dob DATE,
					enclosure_id BIGINT REFERENCES enclosures(id) ON DELETE SET NULL,
					health_status VARCHAR(100) NOT NULL DEFAULT 'Healthy',
					last_checkup DATE,
					notes TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_animals_enclosure_id ON animals(enclosure_id)`,
				`CREATE TABLE IF NOT EXISTS feed_schedules (
					id BIGSERIAL PRIMARY KEY,
					animal_id BIGINT NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
					feed_item VARCHAR(100) NOT NULL,
					quantity VARCHAR(50) NOT NULL,
					schedule_time VARCHAR(5) NOT NULL,
					frequency VARCHAR(50) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_feed_schedules_animal_id ON feed_schedules(animal_id)`,
			},
			SQLite: []string{
				`CREATE TABLE IF NOT EXISTS enclosures (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					type TEXT NOT NULL DEFAULT '',
					capacity INTEGER NOT NULL DEFAULT 0,
					location TEXT NOT NULL DEFAULT '',
					notes TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS animals (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					tag_id TEXT NOT NULL UNIQUE,
					name TEXT NOT NULL,
					species TEXT NOT NULL,
					sex TEXT NOT NULL DEFAULT 'Unknown',
					dob DATE,
					enclosure_id INTEGER REFERENCES enclosures(id) ON DELETE SET NULL,
					health_status TEXT NOT NULL DEFAULT 'Healthy',
					last_checkup DATE,
					notes TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_animals_enclosure_id ON animals(enclosure_id)`,
				`CREATE TABLE IF NOT EXISTS feed_schedules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					animal_id INTEGER NOT NULL REFERENCES animals(id) ON DELETE CASCADE,
					feed_item TEXT NOT NULL,
					quantity TEXT NOT NULL,
					schedule_time TEXT NOT NULL,
					frequency TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_feed_schedules_animal_id ON feed_schedules(animal_id)`,
			},
		},
		{
			Version:     3,
			Description: "Create ticket_types and tickets tables",
			Postgres: []string{
				`CREATE TABLE IF NOT EXISTS ticket_types (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL UNIQUE,
					price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
					active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS tickets (
					id BIGSERIAL PRIMARY KEY,
					ticket_type_id BIGINT NOT NULL REFERENCES ticket_types(id),
					buyer_name VARCHAR(100) NOT NULL,
					quantity INTEGER NOT NULL CHECK (quantity > 0),
					unit_price_cents BIGINT NOT NULL,
					total_price_cents BIGINT NOT NULL,
					issued_by BIGINT NOT NULL,
					issued_at TIMESTAMPTZ NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_tickets_issued_at ON tickets(issued_at)`,
			},
			SQLite: []string{
				`CREATE TABLE IF NOT EXISTS ticket_types (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
					active BOOLEAN NOT NULL DEFAULT 1,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS tickets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					ticket_type_id INTEGER NOT NULL REFERENCES ticket_types(id),
					buyer_name TEXT NOT NULL,
					quantity INTEGER NOT NULL CHECK (quantity > 0),
					unit_price_cents INTEGER NOT NULL,
					total_price_cents INTEGER NOT NULL,
					issued_by INTEGER NOT NULL,
					issued_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_tickets_issued_at ON tickets(issued_at)`,
			},
		},
		{
			Version:     4,
			Description: "Create audit_logs table",
			Postgres: []string{
				`CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					action VARCHAR(50) NOT NULL,
					entity VARCHAR(50) NOT NULL,
					entity_id BIGINT,
					details TEXT,
					created_at TIMESTAMPTZ NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id)`,
			},
			SQLite: []string{
				`CREATE TABLE IF NOT EXISTS audit_logs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL,
					action TEXT NOT NULL,
					entity TEXT NOT NULL,
					entity_id INTEGER,
					details TEXT,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id)`,
			},
		},
	}
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction.
func (g *Gateway) Migrate(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	if err := g.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range Migrations() {
		if m.Version <= current {
			continue
		}

		statements := m.Postgres
		if g.dialect == DialectSQLite {
			statements = m.SQLite
		}

		err := g.InTx(ctx, func(tx DBTX) error {
			for _, stmt := range statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)`,
				m.Version, m.Description, time.Now().UTC(),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		g.log.Info().
			Int("version", m.Version).
			Str("description", m.Description).
			Msg("Applied migration")
	}

	return nil
}
