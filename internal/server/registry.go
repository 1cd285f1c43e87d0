package server

import (
	"context"

	"github.com/tidechat/realtime/internal/domain"
)

// Handler processes one inbound event. A non-nil envelope is sent back to
// the triggering connection only.
type Handler interface {
	Handle(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error)

func (f HandlerFunc) Handle(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	return f(ctx, msg)
}

// Registry routes inbound envelopes to their handler by event type.
type Registry struct {
	handlers map[domain.EventType]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.EventType]Handler),
	}
}

func (r *Registry) Register(eventType domain.EventType, handler Handler) {
	r.handlers[eventType] = handler
}

func (r *Registry) Handle(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	handler, ok := r.handlers[msg.Type]
	if !ok {
		return nil, domain.E(domain.KindInvalidRequest, "unknown event type")
	}
	return handler.Handle(ctx, msg)
}
