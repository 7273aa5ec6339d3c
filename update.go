package updates

import "time"

// Update models the lifecycle of a single asynchronously produced value as a
// closed set of six states. Exactly one concrete variant backs any Update at a
// time: NotLoaded, Updating, Updated, FailedUpdate, Refreshing or
// FailedRefresh. The set is sealed; consumers dispatch on it via Match or
// MatchPartial rather than type assertions.
//
// States are immutable values. The driver never mutates a state it read; it
// only produces successors.
type Update[T any] interface {
	// IsLoading reports whether an attempt is currently in flight.
	IsLoading() bool
	// HasFailed reports whether the state is a failure variant.
	HasFailed() bool
	// HasSucceeded reports whether the state is a confirmed success.
	HasSucceeded() bool
	// HasValue reports whether Value would return something other than the
	// fallback: a confirmed value, a retained previous value, or an
	// optimistic value supplied for an in-flight attempt.
	HasValue() bool

	sealed()
}

// NotLoaded is the initial state: no load has been attempted yet. All
// NotLoaded values are equivalent regardless of instance.
type NotLoaded[T any] struct{}

// Updating is a first load in flight. OptimisticValue, when non-nil, is shown
// to consumers until the attempt settles.
type Updating[T any] struct {
	ID              uint64
	OptimisticValue *T
	StartedAt       time.Time
}

// Updated is a confirmed success, either from a first load or a refresh.
type Updated[T any] struct {
	ID        uint64
	Value     T
	UpdatedAt time.Time
}

// FailedUpdate is a failed first load; no value was ever obtained. Stack is
// non-empty only when the failure was a recovered producer panic.
type FailedUpdate[T any] struct {
	ID       uint64
	Err      error
	Stack    string
	FailedAt time.Time
}

// Refreshing is a refresh of an already successful value in flight. Previous
// is the concrete Updated being refreshed; a refresh cannot exist without a
// prior success.
type Refreshing[T any] struct {
	ID              uint64
	OptimisticValue *T
	StartedAt       time.Time
	Previous        Updated[T]
}

// FailedRefresh is a failed refresh; the last known good value is retained in
// Previous.
type FailedRefresh[T any] struct {
	ID       uint64
	Previous Updated[T]
	Err      error
	Stack    string
	FailedAt time.Time
}

func (NotLoaded[T]) sealed()     {}
func (Updating[T]) sealed()      {}
func (Updated[T]) sealed()       {}
func (FailedUpdate[T]) sealed()  {}
func (Refreshing[T]) sealed()    {}
func (FailedRefresh[T]) sealed() {}

func (NotLoaded[T]) IsLoading() bool     { return false }
func (Updating[T]) IsLoading() bool      { return true }
func (Updated[T]) IsLoading() bool       { return false }
func (FailedUpdate[T]) IsLoading() bool  { return false }
func (Refreshing[T]) IsLoading() bool    { return true }
func (FailedRefresh[T]) IsLoading() bool { return false }

func (NotLoaded[T]) HasFailed() bool     { return false }
func (Updating[T]) HasFailed() bool      { return false }
func (Updated[T]) HasFailed() bool       { return false }
func (FailedUpdate[T]) HasFailed() bool  { return true }
func (Refreshing[T]) HasFailed() bool    { return false }
func (FailedRefresh[T]) HasFailed() bool { return true }

func (NotLoaded[T]) HasSucceeded() bool     { return false }
func (Updating[T]) HasSucceeded() bool      { return false }
func (Updated[T]) HasSucceeded() bool       { return true }
func (FailedUpdate[T]) HasSucceeded() bool  { return false }
func (Refreshing[T]) HasSucceeded() bool    { return false }
func (FailedRefresh[T]) HasSucceeded() bool { return false }

func (NotLoaded[T]) HasValue() bool    { return false }
func (u Updating[T]) HasValue() bool   { return u.OptimisticValue != nil }
func (Updated[T]) HasValue() bool      { return true }
func (FailedUpdate[T]) HasValue() bool { return false }
func (Refreshing[T]) HasValue() bool   { return true }
func (FailedRefresh[T]) HasValue() bool {
	return true
}

// AttemptID returns the attempt identifier carried by u. NotLoaded carries
// none and reports ok=false.
func AttemptID[T any](u Update[T]) (id uint64, ok bool) {
	switch s := u.(type) {
	case NotLoaded[T]:
		return 0, false
	case Updating[T]:
		return s.ID, true
	case Updated[T]:
		return s.ID, true
	case FailedUpdate[T]:
		return s.ID, true
	case Refreshing[T]:
		return s.ID, true
	case FailedRefresh[T]:
		return s.ID, true
	default:
		return 0, false
	}
}

// StateName returns the variant tag for logging and events.
func StateName[T any](u Update[T]) string {
	switch u.(type) {
	case NotLoaded[T]:
		return "not_loaded"
	case Updating[T]:
		return "updating"
	case Updated[T]:
		return "updated"
	case FailedUpdate[T]:
		return "failed_update"
	case Refreshing[T]:
		return "refreshing"
	case FailedRefresh[T]:
		return "failed_refresh"
	default:
		return "unknown"
	}
}

// Equal reports structural equality between two updates: same variant, same
// attempt id, and equal payloads. Optimistic values compare by contents, not
// by pointer. Errors compare by interface equality. NotLoaded values are
// always equal to each other.
func Equal[T comparable](a, b Update[T]) bool {
	switch av := a.(type) {
	case NotLoaded[T]:
		_, ok := b.(NotLoaded[T])
		return ok
	case Updating[T]:
		bv, ok := b.(Updating[T])
		return ok && av.ID == bv.ID &&
			optimisticEqual(av.OptimisticValue, bv.OptimisticValue) &&
			av.StartedAt.Equal(bv.StartedAt)
	case Updated[T]:
		bv, ok := b.(Updated[T])
		return ok && updatedEqual(av, bv)
	case FailedUpdate[T]:
		bv, ok := b.(FailedUpdate[T])
		return ok && av.ID == bv.ID && av.Err == bv.Err &&
			av.Stack == bv.Stack && av.FailedAt.Equal(bv.FailedAt)
	case Refreshing[T]:
		bv, ok := b.(Refreshing[T])
		return ok && av.ID == bv.ID &&
			optimisticEqual(av.OptimisticValue, bv.OptimisticValue) &&
			av.StartedAt.Equal(bv.StartedAt) &&
			updatedEqual(av.Previous, bv.Previous)
	case FailedRefresh[T]:
		bv, ok := b.(FailedRefresh[T])
		return ok && av.ID == bv.ID && av.Err == bv.Err &&
			av.Stack == bv.Stack && av.FailedAt.Equal(bv.FailedAt) &&
			updatedEqual(av.Previous, bv.Previous)
	default:
		return false
	}
}

func updatedEqual[T comparable](a, b Updated[T]) bool {
	return a.ID == b.ID && a.Value == b.Value && a.UpdatedAt.Equal(b.UpdatedAt)
}

func optimisticEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Optimistic wraps v for use as an optimistic value.
func Optimistic[T any](v T) *T {
	return &v
}
