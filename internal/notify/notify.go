// Package notify is the user-facing notification channel (the browser's toasts).
//
// Every auth transition and catalog mutation reports exactly one Notification.
// Delivery is fire-and-forget: a Notifier never returns an error and never
// blocks the operation that triggered it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/segmentio/ksuid"
)

// Severity is the toast style.
type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Info    Severity = "info"
	Neutral Severity = "neutral"
)

// Notification is one toast.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier accepts notifications.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string)
}

// DefaultFeedSize is how many undrained notifications a Feed keeps.
const DefaultFeedSize = 50

// Feed buffers notifications until the client drains them.
// When full, the oldest entry is dropped.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	size  int
	clock clock.Clock
}

// NewFeed returns a Feed holding at most size notifications.
// A size <= 0 uses DefaultFeedSize.
func NewFeed(size int, clk clock.Clock) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size, clock: clk}
}

// Notify appends a notification. IDs are KSUIDs, which sort by creation time.
func (f *Feed) Notify(_ context.Context, severity Severity, message string) {
	n := Notification{
		ID:        ksuid.New().String(),
		Severity:  severity,
		Message:   message,
		CreatedAt: f.clock.Now().UTC(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == f.size {
		f.items = append(f.items[:0], f.items[1:]...)
	}
	f.items = append(f.items, n)
}

// Drain returns every buffered notification, oldest first, and empties the feed.
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.items
	f.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Log writes notifications to the structured log.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, severity Severity, message string) {
	level := slog.LevelInfo
	if severity == Error {
		level = slog.LevelWarn
	}
	l.Logger.Log(ctx, level, "notification",
		slog.String("severity", string(severity)),
		slog.String("message", message),
	)
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, severity Severity, message string) {
	for _, n := range m {
		n.Notify(ctx, severity, message)
	}
}
