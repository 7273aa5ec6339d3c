package transition

import "time"

// Verbs emitted by the driver.
const (
	VerbProduced   = "update.produced"
	VerbSuppressed = "update.suppressed"
	VerbSkipped    = "update.skipped"
)

// EventInput describes the common fields for driver lifecycle events.
type EventInput struct {
	AttemptID  uint64
	State      string
	Current    string
	ActorID    string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildProducedEvent constructs a normalized event for a produced state.
func BuildProducedEvent(input EventInput) Event {
	return buildEvent(VerbProduced, input)
}

// BuildSuppressedEvent constructs a normalized event for a stale result that
// was dropped by the cancellation check.
func BuildSuppressedEvent(input EventInput) Event {
	return buildEvent(VerbSuppressed, input)
}

// BuildSkippedEvent constructs a normalized event for an invocation that
// produced nothing.
func BuildSkippedEvent(input EventInput) Event {
	return buildEvent(VerbSkipped, input)
}

func buildEvent(verb string, input EventInput) Event {
	return NormalizeEvent(Event{
		Verb:       verb,
		State:      input.State,
		Current:    input.Current,
		AttemptID:  input.AttemptID,
		ActorID:    input.ActorID,
		TenantID:   input.TenantID,
		Channel:    input.Channel,
		Metadata:   input.Metadata,
		OccurredAt: input.OccurredAt,
	})
}
