package handlers

import "options-flow-tracker/models"

// MessageHandler is the base interface for consumers of decoded stream messages
type MessageHandler interface {
	// Handle processes one decoded message
	Handle(msg Message) error

	// Kinds returns the message kinds the handler subscribes to
	Kinds() []models.EventKind
}

// HandlerFunc adapts a function to MessageHandler for the given kinds
type HandlerFunc struct {
	fn    func(Message) error
	kinds []models.EventKind
}

// NewHandlerFunc wraps fn as a MessageHandler
func NewHandlerFunc(fn func(Message) error, kinds ...models.EventKind) *HandlerFunc {
	return &HandlerFunc{fn: fn, kinds: kinds}
}

// Handle calls the wrapped function
func (h *HandlerFunc) Handle(msg Message) error { return h.fn(msg) }

// Kinds returns the subscribed kinds
func (h *HandlerFunc) Kinds() []models.EventKind { return h.kinds }
