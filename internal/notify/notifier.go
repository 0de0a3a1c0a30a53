// Package notify provides the user-facing notification sink.
//
// Notifications are fire-and-forget: callers never depend on a response, and
// a failing sink must not fail the operation that raised the notification.
package notify

import (
	"context"
	"log/slog"
)

// Notifier is the one-way toast sink consumed by the core.
type Notifier interface {
	// Success raises a success notification.
	Success(ctx context.Context, message string)

	// Failure raises a failure notification.
	Failure(ctx context.Context, message string)
}

// LogNotifier writes notifications to the structured log. It is the default
// sink when no delivery channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Success(ctx context.Context, message string) {
	slog.Info("notification", "kind", "success", "message", message)
}

func (n *LogNotifier) Failure(ctx context.Context, message string) {
	slog.Warn("notification", "kind", "failure", "message", message)
}
