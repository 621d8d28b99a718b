package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pesio-ai/be-zoo-core/internal/apperrors"
	"github.com/pesio-ai/be-zoo-core/internal/store"
)

// UserRepository handles user data operations
type UserRepository struct {
	db store.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db store.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *UserRepository) WithTx(tx store.DBTX) *UserRepository {
	return &UserRepository{db: tx}
}

// Create creates a new user, resolving the role name to its row
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	user.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO users (username, password_hash, role_id, is_active, created_at)
		VALUES ($1, $2, (SELECT id FROM roles WHERE name = $3), $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetActiveByUsername retrieves an active user, including the password hash
func (r *UserRepository) GetActiveByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, r.name, u.is_active, u.created_at
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE u.username = $1 AND u.is_active = $2
	`

	return r.getOne(ctx, query, username, true)
}

// GetByID retrieves a user by ID, including the password hash
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, r.name, u.is_active, u.created_at
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE u.id = $1
	`

	user, err := r.getOne(ctx, query, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("user", id)
	}
	return user, err
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*User, error) {
	user := &User{}

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// List retrieves every user without password hashes
func (r *UserRepository) List(ctx context.Context) ([]*User, error) {
	query := `
		SELECT u.id, u.username, r.name, u.is_active, u.created_at
		FROM users u
		JOIN roles r ON u.role_id = r.id
		ORDER BY u.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		user := &User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Role, &user.IsActive, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// Update changes a user's role and active flag
func (r *UserRepository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET role_id = (SELECT id FROM roles WHERE name = $1), is_active = $2
		WHERE id = $3
	`

	res, err := r.db.ExecContext(ctx, query, user.Role, user.IsActive, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return expectAffected(res, "user", user.ID)
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return expectAffected(res, "user", id)
}

// Delete deletes a user
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectAffected(res, "user", id)
}

// CountActive counts users allowed to log in
func (r *UserRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_active = $1`, true).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// CountAdmins counts active users holding the admin role
func (r *UserRepository) CountAdmins(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM users u
		JOIN roles r ON u.role_id = r.id
		WHERE r.name = $1 AND u.is_active = $2
	`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, "admin", true).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

// expectAffected maps a zero-row update or delete to NotFound
func expectAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(entity, id)
	}
	return nil
}
