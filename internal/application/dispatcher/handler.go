package dispatcher

import (
	"context"

	"github.com/fieldops/field-reports/internal/domain/event"
)

// Handler reacts to a draft event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a subscription
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
