package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/events"
	"github.com/syncsocial/syncsocial/internal/events/bus"
	ws "github.com/syncsocial/syncsocial/pkg/websocket"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stderr"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func newTestClient(id string) *Client {
	return &Client{
		ID:            id,
		send:          make(chan []byte, 8),
		subscriptions: make(map[string]bool),
	}
}

func waitForMessage(t *testing.T, c *Client) *ws.Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		return &msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket message")
		return nil
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name  string
		data  any
		field string
		want  string
	}{
		{"present", map[string]any{"run_id": "r-1"}, "run_id", "r-1"},
		{"missing field", map[string]any{"other": "x"}, "run_id", ""},
		{"wrong type", map[string]any{"run_id": 7}, "run_id", ""},
		{"not a map", "r-1", "run_id", ""},
		{"nil data", nil, "run_id", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractID(tt.data, tt.field); got != tt.want {
				t.Errorf("extractID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAutomationBroadcasterLoginSessionStatus(t *testing.T) {
	log := newTestLogger(t)
	hub := NewHub(ws.NewDispatcher(), log)
	eventBus := bus.NewMemoryEventBus(log)
	defer eventBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := RegisterAutomationNotifications(ctx, eventBus, hub, log)
	defer b.Close()

	watcher := newTestClient("watcher")
	bystander := newTestClient("bystander")
	hub.clients[watcher] = true
	hub.clients[bystander] = true
	hub.SubscribeToTopic(watcher, LoginSessionTopic("ls-1"))

	data := map[string]any{
		"login_session_id": "ls-1",
		"workspace_id":     "ws-1",
		"status":           "active",
	}
	event := bus.NewEvent(events.LoginSessionStatusChanged, "test", data)
	subject := events.BuildLoginSessionStatusSubject("ls-1")
	if err := eventBus.Publish(context.Background(), subject, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	msg := waitForMessage(t, watcher)
	if msg.Action != ws.ActionLoginSessionStatus {
		t.Errorf("action = %q, want %q", msg.Action, ws.ActionLoginSessionStatus)
	}
	var payload map[string]any
	if err := msg.ParsePayload(&payload); err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	if payload["status"] != "active" {
		t.Errorf("status = %v, want active", payload["status"])
	}

	select {
	case <-bystander.send:
		t.Error("unsubscribed client received a topic notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAutomationBroadcasterRunFinished(t *testing.T) {
	log := newTestLogger(t)
	hub := NewHub(ws.NewDispatcher(), log)
	eventBus := bus.NewMemoryEventBus(log)
	defer eventBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := RegisterAutomationNotifications(ctx, eventBus, hub, log)
	defer b.Close()

	watcher := newTestClient("watcher")
	hub.clients[watcher] = true
	hub.SubscribeToTopic(watcher, RunTopic("run-1"))

	runEvent := bus.NewEvent(events.RunFinished, "test", map[string]any{
		"run_id": "run-1",
		"status": "succeeded",
	})
	if err := eventBus.Publish(context.Background(), events.BuildRunFinishedSubject("run-1"), runEvent); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	msg := waitForMessage(t, watcher)
	if msg.Action != ws.ActionRunFinished {
		t.Errorf("action = %q, want %q", msg.Action, ws.ActionRunFinished)
	}

	// Account-run completions route to the parent run's topic.
	accountRunEvent := bus.NewEvent(events.AccountRunFinished, "test", map[string]any{
		"run_id":         "run-1",
		"account_run_id": "ar-1",
		"status":         "failed",
	})
	if err := eventBus.Publish(context.Background(), events.BuildAccountRunFinishedSubject("ar-1"), accountRunEvent); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	msg = waitForMessage(t, watcher)
	if msg.Action != ws.ActionAccountRunFinished {
		t.Errorf("action = %q, want %q", msg.Action, ws.ActionAccountRunFinished)
	}
}

func TestAutomationBroadcasterClose(t *testing.T) {
	log := newTestLogger(t)
	hub := NewHub(ws.NewDispatcher(), log)
	eventBus := bus.NewMemoryEventBus(log)
	defer eventBus.Close()

	b := RegisterAutomationNotifications(context.Background(), eventBus, hub, log)
	if len(b.subscriptions) != 3 {
		t.Fatalf("subscriptions = %d, want 3", len(b.subscriptions))
	}
	b.Close()
	if b.subscriptions != nil {
		t.Error("subscriptions not cleared after Close")
	}

	watcher := newTestClient("watcher")
	hub.clients[watcher] = true
	hub.SubscribeToTopic(watcher, LoginSessionTopic("ls-1"))

	event := bus.NewEvent(events.LoginSessionStatusChanged, "test", map[string]any{"login_session_id": "ls-1"})
	if err := eventBus.Publish(context.Background(), events.BuildLoginSessionStatusSubject("ls-1"), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-watcher.send:
		t.Error("received notification after broadcaster was closed")
	case <-time.After(100 * time.Millisecond):
	}
}
