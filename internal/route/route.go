// Package route names the client-side paths and carries navigation side effects
// from the services back to whoever is driving the UI.
package route

import (
	"context"
	"net/url"
	"sync"
)

const (
	Root      = "/"
	Auth      = "/auth"
	Bookshelf = "/bookshelf"
	Explore   = "/explore"
	Timeline  = "/timeline"
)

// Book is the detail page of one shelf book.
func Book(id string) string {
	return "/books/" + url.PathEscape(id)
}

// Profile is a user's public profile page.
func Profile(username string) string {
	return "/profile/" + url.PathEscape(username)
}

// Navigator receives "go to this path" requests.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// Target holds the last navigation requested while handling one request.
type Target struct {
	mu   sync.Mutex
	path string
}

// Path returns the recorded destination, or "" if nothing navigated.
func (t *Target) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

type targetKey struct{}

// WithTarget returns a context carrying a fresh Target.
func WithTarget(ctx context.Context) (context.Context, *Target) {
	t := &Target{}
	return context.WithValue(ctx, targetKey{}, t), t
}

// ContextNavigator writes navigations into the Target found in the context.
// Navigations on a context without a Target are dropped.
type ContextNavigator struct{}

func (ContextNavigator) Navigate(ctx context.Context, path string) {
	t, ok := ctx.Value(targetKey{}).(*Target)
	if !ok {
		return
	}
	t.mu.Lock()
	t.path = path
	t.mu.Unlock()
}
