// Package service holds the business logic of BookBurst.
//
// Two stateful services back the whole application:
//
//	SessionService: who is signed in (login, signup, logout, rename)
//	CatalogService: the shelf of books and the reviews posted on them
//
// Both are constructed once per process in server.go and shared by every
// request. Each keeps its state in memory behind a sync.RWMutex and writes the
// full record to the KVStore on every change, so a restart picks up where the
// last run stopped.
//
// Every mutation reports its outcome through exactly one notify.Notifier call.
// Failures are also returned to the caller, which only has to map them to a
// status code.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/juju/clock"

	"github.com/sakif/bookburst/internal/apperror"
	"github.com/sakif/bookburst/internal/auth"
	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/notify"
	"github.com/sakif/bookburst/internal/repository"
	"github.com/sakif/bookburst/internal/route"
)

// SessionDeps are the collaborators of a SessionService.
type SessionDeps struct {
	Users     repository.UserRepository
	Store     repository.KVStore
	Passwords *auth.PasswordService
	Notifier  notify.Notifier
	Navigator route.Navigator
	Clock     clock.Clock
	Logger    *slog.Logger
	Delay     time.Duration // simulated latency of login, signup and rename
}

// SessionService owns the single active identity.
//
// The active identity is process-wide: this is a single-user application and
// whoever logs in last is "the" user. It survives restarts through the
// bookburst_user storage key.
type SessionService struct {
	users     repository.UserRepository
	store     repository.KVStore
	passwords *auth.PasswordService
	notifier  notify.Notifier
	nav       route.Navigator
	logger    *slog.Logger
	delay     time.Duration
	lat       latency

	// mu guards current and orders the writes to KeySession.
	mu      sync.RWMutex
	current *model.Identity
}

// NewSessionService restores the persisted session, if any.
// An unreadable session record is discarded and the service starts signed out.
func NewSessionService(ctx context.Context, deps SessionDeps) (*SessionService, error) {
	s := &SessionService{
		users:     deps.Users,
		store:     deps.Store,
		passwords: deps.Passwords,
		notifier:  deps.Notifier,
		nav:       deps.Navigator,
		logger:    deps.Logger,
		delay:     deps.Delay,
		lat:       latency{clock: deps.Clock},
	}

	var saved model.Identity
	found, err := getJSON(ctx, s.store, s.logger, repository.KeySession, &saved)
	if err != nil {
		return nil, fmt.Errorf("service/session: restoring session: %w", err)
	}
	switch {
	case !found:
	case saved.ID == "":
		discardCorrupt(ctx, s.store, s.logger, repository.KeySession, errors.New("identity has no id"))
	default:
		s.current = &saved
		s.logger.Info("restored session", slog.String("userID", saved.ID))
	}
	return s, nil
}

// Current returns the active identity.
func (s *SessionService) Current() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Identity{}, false
	}
	return *s.current, true
}

// IsActive reports whether userID is the signed-in identity.
// It has the shape of auth.ActiveFunc.
func (s *SessionService) IsActive(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.ID == userID
}

// Loading reports whether a login, signup or rename is in flight.
func (s *SessionService) Loading() bool {
	return s.lat.loading()
}

// Login activates the identity with the given email (any case) and password,
// replacing whatever session was active before.
//
// A wrong email and a wrong password fail the same way, with
// apperror.ErrInvalidCredentials, and leave the current session alone.
func (s *SessionService) Login(ctx context.Context, email, password string) (model.Identity, error) {
	ctx = context.WithoutCancel(ctx)
	defer s.lat.begin()()
	s.lat.wait(s.delay)

	identity, err := s.authenticate(ctx, email, password)
	if err == nil {
		err = s.activate(ctx, identity)
	}
	if err != nil {
		s.notifier.Notify(ctx, notify.Error, "Login failed: "+reason(err))
		return model.Identity{}, err
	}

	s.logger.Info("user logged in", slog.String("userID", identity.ID))
	s.notifier.Notify(ctx, notify.Success, fmt.Sprintf("Welcome back, %s!", identity.Username))
	return identity, nil
}

// LoginVerifiedEmail activates the identity owning an email address that an
// external provider has already verified. No password is checked.
func (s *SessionService) LoginVerifiedEmail(ctx context.Context, email string) (model.Identity, error) {
	ctx = context.WithoutCancel(ctx)
	defer s.lat.begin()()
	s.lat.wait(s.delay)

	identity, err := s.lookup(ctx, email)
	if err == nil {
		err = s.activate(ctx, identity)
	}
	if err != nil {
		s.notifier.Notify(ctx, notify.Error, "Login failed: "+reason(err))
		return model.Identity{}, err
	}

	s.logger.Info("user logged in via GitHub", slog.String("userID", identity.ID))
	s.notifier.Notify(ctx, notify.Success, fmt.Sprintf("Welcome back, %s!", identity.Username))
	return identity, nil
}

func (s *SessionService) lookup(ctx context.Context, email string) (model.Identity, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperror.ErrNotFound) {
		return model.Identity{}, apperror.InvalidCredentials()
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("service/session: looking up email: %w", err)
	}
	return user.Identity(), nil
}

func (s *SessionService) authenticate(ctx context.Context, email, password string) (model.Identity, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperror.ErrNotFound) {
		return model.Identity{}, apperror.InvalidCredentials()
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("service/session: looking up email: %w", err)
	}

	err = s.passwords.Verify(user.PasswordHash, password)
	if errors.Is(err, auth.ErrPasswordMismatch) {
		return model.Identity{}, apperror.InvalidCredentials()
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("service/session: verifying password for %s: %w", user.ID, err)
	}
	return user.Identity(), nil
}

// activate persists identity and makes it the current session.
func (s *SessionService) activate(ctx context.Context, identity model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := putJSON(ctx, s.store, repository.KeySession, identity); err != nil {
		return fmt.Errorf("service/session: %w", err)
	}
	s.current = &identity
	return nil
}

// Signup creates an identity. It does not sign the new identity in.
//
// The email is checked before the username, so a request that collides on
// both fails with apperror.ErrEmailTaken.
func (s *SessionService) Signup(ctx context.Context, email, password, username string) (model.Identity, error) {
	ctx = context.WithoutCancel(ctx)
	defer s.lat.begin()()
	s.lat.wait(s.delay)

	identity, err := s.register(ctx, email, password, username)
	if err != nil {
		s.notifier.Notify(ctx, notify.Error, "Signup failed: "+reason(err))
		return model.Identity{}, err
	}

	s.logger.Info("user signed up",
		slog.String("userID", identity.ID),
		slog.String("username", identity.Username),
	)
	s.notifier.Notify(ctx, notify.Success, "Account created successfully!")
	return identity, nil
}

func (s *SessionService) register(ctx context.Context, email, password, username string) (model.Identity, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)

	if email == "" || !strings.Contains(email, "@") {
		return model.Identity{}, apperror.ValidationFailed("email", "A valid email is required")
	}
	if err := validateUsername(username); err != nil {
		return model.Identity{}, err
	}
	if password == "" {
		return model.Identity{}, apperror.ValidationFailed("password", "Password is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return model.Identity{}, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.Identity{}, apperror.EmailTaken(email)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("service/session: checking email: %w", err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return model.Identity{}, apperror.UsernameTaken(username)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("service/session: checking username: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return model.Identity{}, fmt.Errorf("service/session: %w", err)
	}

	// Create re-checks uniqueness in the database, which settles a race
	// between two signups for the same name.
	user := &model.User{Email: email, Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return model.Identity{}, err
	}
	return user.Identity(), nil
}

func validateUsername(username string) error {
	if utf8.RuneCountInString(username) < model.MinUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be at least %d characters", model.MinUsernameLength))
	}
	return nil
}

// Logout ends the active session and sends the client to the root page.
// Without an active session it does nothing.
func (s *SessionService) Logout(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	userID := s.current.ID
	if err := s.store.Delete(ctx, repository.KeySession); err != nil {
		s.mu.Unlock()
		s.notifier.Notify(ctx, notify.Error, "Logout failed. Please try again.")
		return fmt.Errorf("service/session: deleting session: %w", err)
	}
	s.current = nil
	s.mu.Unlock()

	s.logger.Info("user logged out", slog.String("userID", userID))
	s.notifier.Notify(ctx, notify.Info, "Logged out successfully")
	s.nav.Navigate(ctx, route.Root)
	return nil
}

// UpdateUsername renames the signed-in identity and sends the client to the
// new profile page.
//
// Without an active session it returns nil and has no effect at all. Renaming
// to one's own name, in any case, is allowed; a name held by anybody else
// fails with apperror.ErrUsernameTaken.
func (s *SessionService) UpdateUsername(ctx context.Context, newUsername string) error {
	ctx = context.WithoutCancel(ctx)
	current, ok := s.Current()
	if !ok {
		return nil
	}

	defer s.lat.begin()()
	s.lat.wait(s.delay)

	renamed, err := s.rename(ctx, current, strings.TrimSpace(newUsername))
	if err != nil {
		s.notifier.Notify(ctx, notify.Error, "Failed to update username: "+reason(err))
		return err
	}

	s.logger.Info("username updated",
		slog.String("userID", renamed.ID),
		slog.String("from", current.Username),
		slog.String("to", renamed.Username),
	)
	s.notifier.Notify(ctx, notify.Success, fmt.Sprintf("Username updated to %s!", renamed.Username))
	s.nav.Navigate(ctx, route.Profile(renamed.Username))
	return nil
}

func (s *SessionService) rename(ctx context.Context, current model.Identity, username string) (model.Identity, error) {
	if err := validateUsername(username); err != nil {
		return model.Identity{}, err
	}

	holder, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil && holder.ID != current.ID:
		return model.Identity{}, apperror.UsernameTaken(username)
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return model.Identity{}, fmt.Errorf("service/session: checking username: %w", err)
	}

	if err := s.users.UpdateUsername(ctx, current.ID, username); err != nil {
		return model.Identity{}, err
	}

	renamed := current
	renamed.Username = username

	s.mu.Lock()
	defer s.mu.Unlock()
	// A logout during the delay wins; the stored identity is renamed but the
	// session stays closed.
	if s.current == nil || s.current.ID != current.ID {
		return renamed, nil
	}
	if err := putJSON(ctx, s.store, repository.KeySession, renamed); err != nil {
		return model.Identity{}, fmt.Errorf("service/session: %w", err)
	}
	s.current = &renamed
	return renamed, nil
}
