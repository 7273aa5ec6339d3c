package transition

import (
	"context"
	"strings"
)

// DefaultChannel is applied to emitted events that do not name a channel.
const DefaultChannel = "updates"

// Config controls event emission defaults supplied by the host.
type Config struct {
	Enabled bool
	Channel string
}

// Emitter fans out lifecycle events to hooks, filling in the configured
// channel. A nil or disabled emitter silently drops everything, so callers
// can emit unconditionally.
type Emitter struct {
	hooks   Hooks
	channel string
	enabled bool
}

// NewEmitter constructs an emitter. It is enabled only when cfg says so and
// at least one non-nil hook is attached.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	attached := hooks.compact()
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{
		hooks:   attached,
		channel: channel,
		enabled: cfg.Enabled && len(attached) > 0,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Emit forwards the event to all hooks, applying the default channel when the
// event does not carry one.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
