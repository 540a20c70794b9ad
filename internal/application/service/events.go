package service

import (
	"context"

	"github.com/fieldops/field-reports/internal/domain/event"
)

// Publisher receives draft lifecycle events. Delivery is fire and forget.
type Publisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// Option configures a service
type Option func(*options)

type options struct {
	events Publisher
}

// WithEvents publishes lifecycle events to p.
func WithEvents(p Publisher) Option {
	return func(o *options) {
		o.events = p
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// publish detaches evt from the request context so handlers outlive it.
func (o options) publish(ctx context.Context, evt *event.Event) {
	if o.events == nil {
		return
	}
	o.events.DispatchAsync(context.WithoutCancel(ctx), evt)
}
