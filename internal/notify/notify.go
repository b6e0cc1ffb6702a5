// Package notify delivers human-readable messages to the friends' group.
//
// Delivery is best effort. Callers go through Deliver, which logs failures
// instead of returning them, so a chat outage never fails a sync.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Deliver sends text through n and logs (but swallows) any error.
func Deliver(ctx context.Context, n Notifier, logger *slog.Logger, text string) {
	if n == nil || text == "" {
		return
	}
	if err := n.Notify(ctx, text); err != nil {
		logger.Error("notification failed", "error", err)
	}
}

// LogNotifier writes messages to the log. Used when no chat is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, text string) error {
	l.Logger.Info("notification", "text", text)
	return nil
}

// Discard drops every message.
type Discard struct{}

func (Discard) Notify(context.Context, string) error { return nil }

// Multi fans a message out to several notifiers. Every notifier is tried;
// the errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every message in memory. Tests use it to assert on what
// would have been sent.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Notify(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
	return nil
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
