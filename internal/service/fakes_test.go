package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/sakif/bookburst/internal/apperror"
	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/notify"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

var errStoreDown = errors.New("store down")

// fakeKV is an in-memory repository.KVStore that counts writes.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	puts    int
	deletes int
	putErr  error
	getErr  error
	delErr  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

// Put and Delete fail on a cancelled context, as database/sql does.
func (f *fakeKV) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeKV) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.delErr != nil {
		return f.delErr
	}
	f.deletes++
	delete(f.data, key)
	return nil
}

func (f *fakeKV) raw(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return string(v), ok
}

func (f *fakeKV) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts + f.deletes
}

// fakeUserRepo is an in-memory repository.UserRepository.
// Emails and usernames compare by model.IdentityKey, like the sqlite key columns.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  []*model.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if sameKey(u.Email, user.Email) {
			return apperror.EmailTaken(user.Email)
		}
		if sameKey(u.Username, user.Username) {
			return apperror.UsernameTaken(user.Username)
		}
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	copied := *user
	f.users = append(f.users, &copied)
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool, what string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", what)
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return sameKey(u.Email, email) }, email)
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return sameKey(u.Username, username) }, username)
}

func (f *fakeUserRepo) UpdateUsername(_ context.Context, id, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID != id && sameKey(u.Username, username) {
			return apperror.UsernameTaken(username)
		}
	}
	for _, u := range f.users {
		if u.ID == id {
			u.Username = username
			return nil
		}
	}
	return apperror.NotFound("user", id)
}

func sameKey(a, b string) bool {
	return model.IdentityKey(a) == model.IdentityKey(b)
}

func (f *fakeUserRepo) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

// recorder captures notifications and navigations.
type recorder struct {
	mu    sync.Mutex
	notes []notify.Notification
	paths []string
}

func (r *recorder) Notify(_ context.Context, severity notify.Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notify.Notification{Severity: severity, Message: message})
}

func (r *recorder) Navigate(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) notifications() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notes...)
}

func (r *recorder) navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

var epoch = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClock() *testclock.Clock {
	return testclock.NewClock(epoch)
}
