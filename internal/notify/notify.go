// Package notify reports run outcomes to external channels
package notify

import (
	"fmt"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstate"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	RunID   string // Optional run reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// FromVerdict builds the run-completion notification
func FromVerdict(runID string, shardIndex int, v *runstate.Verdict) Notification {
	if v.Success {
		return Notification{
			Title:   fmt.Sprintf("Shard %d build succeeded", shardIndex),
			Message: fmt.Sprintf("%d targets built", v.Total),
			Type:    NotifySuccess,
			RunID:   runID,
		}
	}
	return Notification{
		Title: fmt.Sprintf("Shard %d build failed", shardIndex),
		Message: fmt.Sprintf("%d of %d targets failed, %d skipped",
			len(v.Failed), v.Total, len(v.Skipped)),
		Type:  NotifyError,
		RunID: runID,
	}
}
