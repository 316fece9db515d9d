// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data: similar to classes in other languages,
// but without inheritance.
package model

import (
	"time"

	"golang.org/x/text/cases"
)

// User is the stored identity record.
//
// Email and Username are unique without regard to case: two values clash when
// their IdentityKey is equal. The database enforces this with UNIQUE key
// columns; the session service checks it before insert so the caller gets a
// precise EmailTaken / UsernameTaken error.
//
// PasswordHash is a bcrypt hash and is never serialized (json:"-"), so a User
// can't leak it through an API response or the persisted session record.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Username     string    `json:"username"  db:"username"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Identity is the sanitized view of a User held by the active session and
// written under the bookburst_user storage key.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Identity strips everything but the public identity fields.
func (u *User) Identity() Identity {
	return Identity{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
	}
}

// MinUsernameLength is the shortest username an identity may hold.
const MinUsernameLength = 3

// folder is stateless and safe for concurrent use.
var folder = cases.Fold()

// IdentityKey is the comparison form of an email or username. It applies
// Unicode case folding, so "Émile" and "émile" share a key where SQLite's
// NOCASE collation, which folds ASCII only, would keep them apart.
func IdentityKey(s string) string {
	return folder.String(s)
}
