package transition

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Event describes one driver decision that can be fanned out to hooks: a
// produced state, a suppressed stale result, or a skipped invocation.
type Event struct {
	// Verb is the decision kind, e.g. "update.produced".
	Verb string
	// State is the variant tag of the produced state, empty for skips and
	// suppressions.
	State string
	// Current is the variant tag the driver dispatched on.
	Current string
	// AttemptID identifies the attempt, zero when no attempt was started.
	AttemptID uint64
	// ActorID and TenantID are host-supplied audit identities; the core
	// never sets them.
	ActorID    string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Hook receives normalized transition events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []Hook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes the event and forwards it to every hook. Events without a
// verb are dropped. Hook errors do not stop the fan-out; they are joined and
// returned together.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if normalized.Verb == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// compact returns h without nil entries, or nil when nothing remains.
func (h Hooks) compact() Hooks {
	if len(h) == 0 {
		return nil
	}
	out := make(Hooks, 0, len(h))
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeEvent trims whitespace, clones metadata, and ensures a timestamp
// is present.
func NormalizeEvent(event Event) Event {
	event.Verb = strings.TrimSpace(event.Verb)
	event.State = strings.TrimSpace(event.State)
	event.Current = strings.TrimSpace(event.Current)
	event.ActorID = strings.TrimSpace(event.ActorID)
	event.TenantID = strings.TrimSpace(event.TenantID)
	event.Channel = strings.TrimSpace(event.Channel)
	event.Metadata = cloneMap(event.Metadata)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return event
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
