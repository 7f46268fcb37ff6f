package websocket

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/events/bus"
	ws "github.com/syncsocial/syncsocial/pkg/websocket"
)

// Gateway bundles the websocket hub, dispatcher and HTTP handler.
type Gateway struct {
	Hub        *Hub
	Dispatcher *ws.Dispatcher
	Handler    *Handler
	logger     *logger.Logger
}

// NewGateway wires up the websocket stack.
func NewGateway(log *logger.Logger) *Gateway {
	dispatcher := ws.NewDispatcher()
	hub := NewHub(dispatcher, log)
	handler := NewHandler(hub, log)

	RegisterHealthHandler(dispatcher)

	return &Gateway{
		Hub:        hub,
		Dispatcher: dispatcher,
		Handler:    handler,
		logger:     log,
	}
}

// ConnectEventBus bridges automation events onto websocket topics. The
// returned broadcaster must be closed on shutdown.
func (g *Gateway) ConnectEventBus(ctx context.Context, eventBus bus.EventBus) *AutomationBroadcaster {
	return RegisterAutomationNotifications(ctx, eventBus, g.Hub, g.logger)
}

// SetupRoutes registers the websocket endpoint on the router.
func (g *Gateway) SetupRoutes(router *gin.Engine) {
	router.GET("/ws", g.Handler.HandleConnection)
}
