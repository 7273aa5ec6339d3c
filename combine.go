package updates

import "time"

// Combine merges two independent update lifecycles into one, so that
// consumers tracking a pair of resources (two halves of a page, two backing
// queries) observe a single aggregate state. The result is decided by an
// explicit 36-cell table keyed on the pair of variants. The table is neither
// symmetric nor associative: a first-load failure on the left always wins,
// while refresh failures keep the merged previous value. Callers that merge
// in both orders must consult the table for each order.
//
// The composite attempt id is the bitwise XOR of the contributing ids, with
// NotLoaded contributing zero. XOR is a deterministic pairing: the same
// (idA, idB) pair always produces the same composite id.
//
// combineValues is applied whenever both sides carry a value, including the
// previous values retained by refresh-family states.
func Combine[A, B, C any](a Update[A], b Update[B], combineValues func(A, B) C) Update[C] {
	if combineValues == nil {
		panic("updates: Combine requires combineValues")
	}
	id := xorIDs[A, B](a, b)

	switch av := a.(type) {
	case NotLoaded[A]:
		switch bv := b.(type) {
		case FailedUpdate[B]:
			return FailedUpdate[C]{ID: id, Err: bv.Err, Stack: bv.Stack, FailedAt: bv.FailedAt}
		case FailedRefresh[B]:
			// No joint previous value exists, so the refresh failure
			// degrades to a first-load failure.
			return FailedUpdate[C]{ID: id, Err: bv.Err, Stack: bv.Stack, FailedAt: bv.FailedAt}
		default:
			return NotLoaded[C]{}
		}

	case Updating[A]:
		switch bv := b.(type) {
		case FailedUpdate[B]:
			return FailedUpdate[C]{ID: id, Err: bv.Err, Stack: bv.Stack, FailedAt: bv.FailedAt}
		case FailedRefresh[B]:
			return FailedUpdate[C]{ID: id, Err: bv.Err, Stack: bv.Stack, FailedAt: bv.FailedAt}
		default:
			// Still waiting on the first load of a, whatever b knows.
			return Updating[C]{
				ID:              id,
				OptimisticValue: combineOptimistic(a, b, combineValues),
				StartedAt:       laterTime(stateTime[A](a), stateTime[B](b)),
			}
		}

	case Updated[A]:
		switch bv := b.(type) {
		case NotLoaded[B]:
			return NotLoaded[C]{}
		case Updating[B]:
			return Updating[C]{
				ID:              id,
				OptimisticValue: combineOptimistic(a, b, combineValues),
				StartedAt:       laterTime(av.UpdatedAt, bv.StartedAt),
			}
		case Updated[B]:
			return Updated[C]{
				ID:        id,
				Value:     combineValues(av.Value, bv.Value),
				UpdatedAt: laterTime(av.UpdatedAt, bv.UpdatedAt),
			}
		case FailedUpdate[B]:
			return FailedUpdate[C]{ID: id, Err: bv.Err, Stack: bv.Stack, FailedAt: bv.FailedAt}
		case Refreshing[B]:
			return Refreshing[C]{
				ID:              id,
				OptimisticValue: combineOptimistic(a, b, combineValues),
				StartedAt:       laterTime(av.UpdatedAt, bv.StartedAt),
				Previous:        mergeUpdated(av, bv.Previous, combineValues),
			}
		case FailedRefresh[B]:
			return FailedRefresh[C]{
				ID:       id,
				Previous: mergeUpdated(av, bv.Previous, combineValues),
				Err:      bv.Err,
				Stack:    bv.Stack,
				FailedAt: bv.FailedAt,
			}
		}

	case FailedUpdate[A]:
		// First-load failure on the left makes the pair a first-load
		// failure, regardless of the right side.
		return FailedUpdate[C]{ID: id, Err: av.Err, Stack: av.Stack, FailedAt: av.FailedAt}

	case Refreshing[A]:
		switch bv := b.(type) {
		case NotLoaded[B]:
			return Updating[C]{
				ID:              id,
				OptimisticValue: combineOptimistic(a, b, combineValues),
				StartedAt:       av.StartedAt,
			}
		case Updating[B]:
			return Updating[C]{
				ID:              id,
				OptimisticValue: combineOptimistic(a, b, combineValues),
				StartedAt:       laterTime(av.StartedAt, bv.StartedAt),
			}
		case Updated[B]:
			return Refreshing[C]{
				ID:              id,
				OptimisticValue: combineOptimistic(a, b, combineValues),
				StartedAt:       laterTime(av.StartedAt, bv.UpdatedAt),
				Previous:        mergeUpdated(av.Previous, bv, combineValues),
			}
		case FailedUpdate[B]:
			return FailedUpdate[C]{ID: id, Err: bv.Err, Stack: bv.Stack, FailedAt: bv.FailedAt}
		case Refreshing[B]:
			return Refreshing[C]{
				ID:              id,
				OptimisticValue: combineOptimistic(a, b, combineValues),
				StartedAt:       laterTime(av.StartedAt, bv.StartedAt),
				Previous:        mergeUpdated(av.Previous, bv.Previous, combineValues),
			}
		case FailedRefresh[B]:
			return FailedRefresh[C]{
				ID:       id,
				Previous: mergeUpdated(av.Previous, bv.Previous, combineValues),
				Err:      bv.Err,
				Stack:    bv.Stack,
				FailedAt: bv.FailedAt,
			}
		}

	case FailedRefresh[A]:
		switch bv := b.(type) {
		case NotLoaded[B]:
			// No joint previous value exists.
			return FailedUpdate[C]{ID: id, Err: av.Err, Stack: av.Stack, FailedAt: av.FailedAt}
		case Updating[B]:
			return Updating[C]{
				ID:              id,
				OptimisticValue: combineOptimistic(a, b, combineValues),
				StartedAt:       laterTime(av.FailedAt, bv.StartedAt),
			}
		case Updated[B]:
			return FailedRefresh[C]{
				ID:       id,
				Previous: mergeUpdated(av.Previous, bv, combineValues),
				Err:      av.Err,
				Stack:    av.Stack,
				FailedAt: av.FailedAt,
			}
		case FailedUpdate[B]:
			// Both sides failed; the harder first-load failure shape wins,
			// the richer refresh failure supplies the error.
			return FailedUpdate[C]{ID: id, Err: av.Err, Stack: av.Stack, FailedAt: av.FailedAt}
		case Refreshing[B]:
			return FailedRefresh[C]{
				ID:       id,
				Previous: mergeUpdated(av.Previous, bv.Previous, combineValues),
				Err:      av.Err,
				Stack:    av.Stack,
				FailedAt: av.FailedAt,
			}
		case FailedRefresh[B]:
			return FailedRefresh[C]{
				ID:       id,
				Previous: mergeUpdated(av.Previous, bv.Previous, combineValues),
				Err:      av.Err,
				Stack:    av.Stack,
				FailedAt: laterTime(av.FailedAt, bv.FailedAt),
			}
		}
	}
	panic("updates: Combine reached unknown variant pair")
}

func xorIDs[A, B any](a Update[A], b Update[B]) uint64 {
	idA, _ := AttemptID[A](a)
	idB, _ := AttemptID[B](b)
	return idA ^ idB
}

func mergeUpdated[A, B, C any](a Updated[A], b Updated[B], combineValues func(A, B) C) Updated[C] {
	return Updated[C]{
		ID:        a.ID ^ b.ID,
		Value:     combineValues(a.Value, b.Value),
		UpdatedAt: laterTime(a.UpdatedAt, b.UpdatedAt),
	}
}

// combineOptimistic yields a composite optimistic value only when both sides
// have an available value and at least one of them is itself optimistic.
// Confirmed values flowing through refresh states stay in Previous instead.
func combineOptimistic[A, B, C any](a Update[A], b Update[B], combineValues func(A, B) C) *C {
	aVal, aOpt, aOK := availableValue[A](a)
	bVal, bOpt, bOK := availableValue[B](b)
	if !aOK || !bOK {
		return nil
	}
	if !aOpt && !bOpt {
		return nil
	}
	combined := combineValues(aVal, bVal)
	return &combined
}

func stateTime[T any](u Update[T]) time.Time {
	switch s := u.(type) {
	case Updating[T]:
		return s.StartedAt
	case Updated[T]:
		return s.UpdatedAt
	case FailedUpdate[T]:
		return s.FailedAt
	case Refreshing[T]:
		return s.StartedAt
	case FailedRefresh[T]:
		return s.FailedAt
	default:
		return time.Time{}
	}
}

func laterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
