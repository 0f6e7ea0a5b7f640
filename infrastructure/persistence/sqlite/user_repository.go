package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"collabgraph-backend/domain/entities"
	apperrors "collabgraph-backend/pkg/errors"
)

// UserRepository implements ports.UserRepository on SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user; username and email collisions surface as
// conflict errors.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, email, avatar, is_online, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, strings.ToLower(user.Email), user.Avatar,
		user.IsOnline, user.LastSeen, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("username or email already taken")
		}
		return apperrors.NewDatabaseError("create user", err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return r.scanOne(r.db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, avatar, is_online, last_seen, created_at, updated_at
		 FROM users WHERE id = ?`, id))
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return r.scanOne(r.db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, avatar, is_online, last_seen, created_at, updated_at
		 FROM users WHERE username = ?`, username))
}

// List returns all users.
func (r *UserRepository) List(ctx context.Context) ([]*entities.User, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT id, username, email, avatar, is_online, last_seen, created_at, updated_at
		 FROM users ORDER BY username`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list users", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// Update persists mutable user fields.
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	user.UpdatedAt = time.Now()
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, avatar = ?, is_online = ?, last_seen = ?, updated_at = ?
		WHERE id = ?`,
		user.Username, strings.ToLower(user.Email), user.Avatar,
		user.IsOnline, user.LastSeen, user.UpdatedAt, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("username or email already taken")
		}
		return apperrors.NewDatabaseError("update user", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperrors.NewNotFoundError("user")
	}
	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewDatabaseError("delete user", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperrors.NewNotFoundError("user")
	}
	return nil
}

// SetOnline flips the online flag and refreshes lastSeen.
func (r *UserRepository) SetOnline(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE users SET is_online = ?, last_seen = ?, updated_at = ? WHERE id = ?`,
		online, lastSeen, time.Now(), id)
	if err != nil {
		return apperrors.NewDatabaseError("set user online", err)
	}
	return nil
}

// FindStaleOnline returns users flagged online whose lastSeen is older
// than the cutoff.
func (r *UserRepository) FindStaleOnline(ctx context.Context, before time.Time) ([]*entities.User, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT id, username, email, avatar, is_online, last_seen, created_at, updated_at
		 FROM users WHERE is_online = 1 AND last_seen < ?`, before)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find stale online users", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *UserRepository) scanOne(row *sql.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Avatar,
		&user.IsOnline, &user.LastSeen, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("user")
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	return &user, nil
}

func (r *UserRepository) scanAll(rows *sql.Rows) ([]*entities.User, error) {
	var users []*entities.User
	for rows.Next() {
		var user entities.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Avatar,
			&user.IsOnline, &user.LastSeen, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan user", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// isUniqueViolation reports whether the error is a unique constraint
// failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
