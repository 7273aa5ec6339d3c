package updates

import (
	"encoding/json"
	"time"
)

// Snapshot is a JSON-serialisable description of an Update for logging and
// audit trails. It flattens the variant into a tagged record; the typed state
// itself is not round-trippable through it.
type Snapshot struct {
	State      string    `json:"state"`
	AttemptID  uint64    `json:"attempt_id,omitempty"`
	Value      any       `json:"value,omitempty"`
	Optimistic bool      `json:"optimistic,omitempty"`
	HasValue   bool      `json:"has_value"`
	Error      string    `json:"error,omitempty"`
	Stack      string    `json:"stack,omitempty"`
	At         time.Time `json:"at,omitzero"`
	Previous   *Snapshot `json:"previous,omitempty"`
}

// Describe projects u into a Snapshot.
func Describe[T any](u Update[T]) Snapshot {
	snapshot := Snapshot{
		State:    StateName[T](u),
		HasValue: u.HasValue(),
		At:       stateTime[T](u),
	}
	if id, ok := AttemptID[T](u); ok {
		snapshot.AttemptID = id
	}
	if value, optimistic, ok := availableValue[T](u); ok {
		snapshot.Value = value
		snapshot.Optimistic = optimistic
	}
	switch s := u.(type) {
	case FailedUpdate[T]:
		if s.Err != nil {
			snapshot.Error = s.Err.Error()
		}
		snapshot.Stack = s.Stack
	case Refreshing[T]:
		previous := Describe[T](s.Previous)
		snapshot.Previous = &previous
	case FailedRefresh[T]:
		if s.Err != nil {
			snapshot.Error = s.Err.Error()
		}
		snapshot.Stack = s.Stack
		previous := Describe[T](s.Previous)
		snapshot.Previous = &previous
	}
	return snapshot
}

// ToJSON serialises the snapshot for logging or transport helpers.
func (s Snapshot) ToJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(alias(s))
}

// SnapshotFromJSON deserialises a payload previously generated via ToJSON.
func SnapshotFromJSON(payload []byte) (Snapshot, error) {
	type alias Snapshot
	var snapshot alias
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, err
	}
	return Snapshot(snapshot), nil
}
