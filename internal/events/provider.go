package events

import (
	"fmt"
	"strings"

	"github.com/syncsocial/syncsocial/internal/common/config"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/events/bus"
)

// ProvidedBus exposes the active bus plus the concrete implementation behind
// it, for callers that need implementation-specific behavior.
type ProvidedBus struct {
	Bus    bus.EventBus
	Memory *bus.MemoryEventBus
	NATS   *bus.NATSEventBus
}

// Provide selects the event bus from config: NATS when a URL is set,
// otherwise the in-process bus. The returned cleanup shuts the bus down.
func Provide(cfg *config.Config, log *logger.Logger) (*ProvidedBus, func() error, error) {
	if strings.TrimSpace(cfg.NATS.URL) == "" {
		memBus := bus.NewMemoryEventBus(log)
		return &ProvidedBus{Bus: memBus, Memory: memBus}, func() error { return nil }, nil
	}

	natsBus, err := bus.NewNATSEventBus(cfg.NATS, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize NATS event bus: %w", err)
	}
	return &ProvidedBus{Bus: natsBus, NATS: natsBus}, func() error { natsBus.Close(); return nil }, nil
}
