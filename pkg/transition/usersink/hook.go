package usersink

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-updates/pkg/transition"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts transition events to a go-users ActivitySink so hosts can audit
// refresh activity per actor and tenant.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// Events without a verb and hooks without a sink are no-ops.
func (h Hook) Notify(ctx context.Context, event transition.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = transition.NormalizeEvent(event)
	if event.Verb == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, toRecord(event))
}

// toRecord flattens the event. The attempt id becomes the object id; the
// variant tags travel in the record data next to any host metadata.
func toRecord(event transition.Event) usertypes.ActivityRecord {
	data := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.State != "" {
		data["state"] = event.State
	}
	if event.Current != "" {
		data["current"] = event.Current
	}
	if len(data) == 0 {
		data = nil
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: "update",
		ObjectID:   strconv.FormatUint(event.AttemptID, 10),
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: occurredAt,
	}
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
