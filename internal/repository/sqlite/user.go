package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"
	"github.com/rs/xid"

	"github.com/sakif/bookburst/internal/apperror"
	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, email, username, password_hash, created_at, updated_at`

// UserDB is the identity store. sqlx scans rows straight into model.User
// using its db:"..." tags.
type UserDB struct {
	x     *sqlx.DB
	clock clock.Clock
}

// Users returns the identity store backed by this database.
func (db *DB) Users() *UserDB {
	return &UserDB{x: db.x, clock: db.clock}
}

// Create inserts a new user, filling in ID and timestamps.
// A clash on email or username comes back as the matching taken error.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := u.clock.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.x.ExecContext(ctx,
		`INSERT INTO users (id, email, email_key, username, username_key, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		model.IdentityKey(user.Email),
		user.Username,
		model.IdentityKey(user.Username),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if cerr := constraintError(err, user); cerr != nil {
			return cerr
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetByEmail finds a user by email, ignoring case.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getOne(ctx, "email_key", email)
}

// GetByUsername finds a user by username, ignoring case.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getOne(ctx, "username_key", username)
}

// getOne looks a user up by the IdentityKey of value on one of the fixed key
// columns above. column is never user input.
func (u *UserDB) getOne(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User
	err := u.x.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, model.IdentityKey(value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return &user, nil
}

// UpdateUsername renames the user with the given ID.
func (u *UserDB) UpdateUsername(ctx context.Context, id, username string) error {
	result, err := u.x.ExecContext(ctx,
		`UPDATE users SET username = ?, username_key = ?, updated_at = ? WHERE id = ?`,
		username, model.IdentityKey(username), u.clock.Now().UTC(), id,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.UsernameTaken(username)
		}
		return fmt.Errorf("sqlite: renaming user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// Count returns the number of stored identities.
func (u *UserDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := u.x.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// constraintError translates SQLite's UNIQUE violation message into the
// domain error for the offending column, or returns nil for other errors.
func constraintError(err error, user *model.User) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "users.email_key"):
		return apperror.EmailTaken(user.Email)
	case strings.Contains(msg, "users.username_key"):
		return apperror.UsernameTaken(user.Username)
	}
	return apperror.Conflict("user", user.ID)
}
