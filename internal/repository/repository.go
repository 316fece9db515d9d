// Package repository declares the storage ports the services depend on.
// The sqlite sub-package is the production implementation; service tests use
// in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/bookburst/internal/model"
)

// Durable storage keys. The values are JSON documents.
const (
	KeySession = "bookburst_user"
	KeyBooks   = "bookburst_userBooks"
	KeyReviews = "bookburst_reviews"
)

// KVStore is a durable key-value store holding serialized records.
//
// Get returns found == false (and a nil error) when the key is absent.
// Delete of an absent key is not an error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// UserRepository stores identities. Emails and usernames compare by
// model.IdentityKey, for uniqueness and for lookups alike.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUsername(ctx context.Context, id, username string) error
	Count(ctx context.Context) (int, error)
}
