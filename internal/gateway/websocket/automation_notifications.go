package websocket

import (
	"context"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/events"
	"github.com/syncsocial/syncsocial/internal/events/bus"
	ws "github.com/syncsocial/syncsocial/pkg/websocket"
)

// AutomationBroadcaster forwards automation events from the event bus to
// clients watching the affected login session or run.
type AutomationBroadcaster struct {
	hub           *Hub
	subscriptions []bus.Subscription
	logger        *logger.Logger
}

// RegisterAutomationNotifications bridges login-session status changes and
// run/account-run completions onto the WebSocket hub. The broadcaster closes
// when ctx is canceled.
func RegisterAutomationNotifications(ctx context.Context, eventBus bus.EventBus, hub *Hub, log *logger.Logger) *AutomationBroadcaster {
	b := &AutomationBroadcaster{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws-automation-broadcaster")),
	}
	if eventBus == nil {
		return b
	}

	b.subscribe(eventBus, events.BuildLoginSessionStatusWildcardSubject(), ws.ActionLoginSessionStatus,
		"login_session_id", LoginSessionTopic)
	b.subscribe(eventBus, events.RunFinished+".*", ws.ActionRunFinished,
		"run_id", RunTopic)
	b.subscribe(eventBus, events.AccountRunFinished+".*", ws.ActionAccountRunFinished,
		"run_id", RunTopic)

	go func() {
		<-ctx.Done()
		b.Close()
	}()

	return b
}

// Close unsubscribes from the event bus.
func (b *AutomationBroadcaster) Close() {
	for _, sub := range b.subscriptions {
		if sub != nil && sub.IsValid() {
			_ = sub.Unsubscribe()
		}
	}
	b.subscriptions = nil
}

func (b *AutomationBroadcaster) subscribe(eventBus bus.EventBus, subject, action, idField string, topic func(string) string) {
	sub, err := eventBus.Subscribe(subject, func(ctx context.Context, event *bus.Event) error {
		id := extractID(event.Data, idField)
		if id == "" {
			return nil
		}
		msg, err := ws.NewNotification(action, event.Data)
		if err != nil {
			b.logger.Error("failed to build websocket notification",
				zap.String("action", action),
				zap.Error(err))
			return nil
		}
		b.hub.BroadcastToTopic(topic(id), msg)
		return nil
	})
	if err != nil {
		b.logger.Error("failed to subscribe to events",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	b.subscriptions = append(b.subscriptions, sub)
}

func extractID(data any, field string) string {
	m, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m[field].(string)
	return id
}
