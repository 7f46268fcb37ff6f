package websocket

import "context"

// HandlerFunc processes one request envelope and returns the reply frame.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

// Dispatcher routes request envelopes to the handler registered for their
// action. Registration happens at startup; Dispatch is safe for concurrent
// use once registration is done.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// RegisterFunc binds a handler to an action, replacing any previous binding.
func (d *Dispatcher) RegisterFunc(action string, handler HandlerFunc) {
	d.handlers[action] = handler
}

// Dispatch invokes the handler for the message's action. Unknown actions
// produce an error frame rather than a Go error, so the client always gets
// a reply.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (*Message, error) {
	handler, ok := d.handlers[msg.Action]
	if !ok {
		return NewError(msg.ID, msg.Action, ErrorCodeUnknownAction,
			"Unknown action: "+msg.Action, nil)
	}
	return handler(ctx, msg)
}
