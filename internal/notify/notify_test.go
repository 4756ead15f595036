package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstate"
)

func TestSlackNotifier_Send(t *testing.T) {
	// Mock Slack server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:   "Shard 0 build failed",
		Message: "1 of 3 targets failed, 2 skipped",
		Type:    NotifyError,
	})

	if err != nil {
		t.Errorf("Send failed: %v", err)
	}
}

func TestSlackNotifier_EmptyURLIsDisabled(t *testing.T) {
	notifier := NewSlackNotifier("")
	if err := notifier.Send(Notification{Title: "x"}); err != nil {
		t.Errorf("Send() with empty URL error = %v, want nil", err)
	}
}

func TestSlackColor(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}
	for _, tt := range tests {
		if got := SlackColor(tt.typ); got != tt.want {
			t.Errorf("SlackColor(%d) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestFromVerdict(t *testing.T) {
	n := FromVerdict("run-1", 2, &runstate.Verdict{Success: true, Total: 4})
	if n.Type != NotifySuccess || !strings.Contains(n.Title, "Shard 2") {
		t.Errorf("notification = %+v", n)
	}

	failed := FromVerdict("run-2", 0, &runstate.Verdict{
		Success: false,
		Total:   3,
		Failed:  make([]runstate.TargetResult, 1),
		Skipped: make([]runstate.TargetResult, 2),
	})
	if failed.Type != NotifyError {
		t.Errorf("Type = %d, want NotifyError", failed.Type)
	}
	if failed.Message != "1 of 3 targets failed, 2 skipped" {
		t.Errorf("Message = %q", failed.Message)
	}
}

func TestMultiNotifier(t *testing.T) {
	var sent int
	fn := notifierFunc(func(n Notification) error {
		sent++
		return nil
	})

	multi := NewMultiNotifier(fn, fn, NoopNotifier{})
	if err := multi.Send(Notification{}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
}

type notifierFunc func(Notification) error

func (f notifierFunc) Send(n Notification) error { return f(n) }
