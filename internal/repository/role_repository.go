package repository

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-zoo-core/internal/store"
)

// RoleRepository reads the role rows users reference. Role names are
// seeded by migration; what a role may do lives in package rbac.
type RoleRepository struct {
	db store.DBTX
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db store.DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *RoleRepository) WithTx(tx store.DBTX) *RoleRepository {
	return &RoleRepository{db: tx}
}

// List retrieves every role name in alphabetical order
func (r *RoleRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return names, nil
}

// Exists reports whether a role row with the given name exists
func (r *RoleRepository) Exists(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE name = $1`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return n > 0, nil
}
