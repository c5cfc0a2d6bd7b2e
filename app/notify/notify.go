// Package notify is the boundary for user-visible notifications. The desktop
// shell substitutes its own implementation; the default one only logs.
package notify

import (
	"log/slog"
)

type Notifier interface {
	Notify(title, body string)
}

var _ Notifier = (*LogNotifier)(nil)

// LogNotifier reports notifications through the structured log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(title, body string) {
	slog.Info("Notification", "title", title, "body", body)
}
