package job

import (
	"context"

	"github.com/vutran-dev/relay-be/internal/domain"
)

// Handler processes one validated job. The returned error drives the worker
// runtime's ack/requeue/dead-letter decision.
type Handler interface {
	Handle(ctx context.Context, env *Envelope, payload Payload) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env *Envelope, payload Payload) error

func (f HandlerFunc) Handle(ctx context.Context, env *Envelope, payload Payload) error {
	return f(ctx, env, payload)
}

// Dispatcher routes envelopes to handlers by job type. Register is the sole
// registration point for new job types; the consuming loop stays
// type-agnostic.
type Dispatcher struct {
	handlers map[Type]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Type]Handler)}
}

// Register binds a handler to a job type, replacing any previous binding.
func (d *Dispatcher) Register(t Type, h Handler) {
	d.handlers[t] = h
}

// Dispatch validates the envelope's payload and routes it. A job type with no
// registered handler is a permanent failure even if the type is known
// elsewhere in the system: this worker cannot process it and retrying will
// not change that.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) error {
	payload, err := DecodePayload(env)
	if err != nil {
		return err
	}
	h, ok := d.handlers[env.Type]
	if !ok {
		return domain.Invalid("no handler registered for job type %q", env.Type)
	}
	return h.Handle(ctx, env, payload)
}
