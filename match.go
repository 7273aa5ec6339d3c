package updates

import "fmt"

// Cases holds one handler per variant for an exhaustive Match. Every handler
// is mandatory; a nil handler is a contract violation and Match panics when it
// is reached.
type Cases[T, K any] struct {
	NotLoaded     func() K
	Updating      func(Updating[T]) K
	Updated       func(Updated[T]) K
	FailedUpdate  func(FailedUpdate[T]) K
	Refreshing    func(Refreshing[T]) K
	FailedRefresh func(FailedRefresh[T]) K
}

// PartialCases holds optional per-variant handlers plus a mandatory OrElse
// fallback used for every variant without a handler.
type PartialCases[T, K any] struct {
	NotLoaded     func() K
	Updating      func(Updating[T]) K
	Updated       func(Updated[T]) K
	FailedUpdate  func(FailedUpdate[T]) K
	Refreshing    func(Refreshing[T]) K
	FailedRefresh func(FailedRefresh[T]) K
	OrElse        func() K
}

// Match dispatches exhaustively on the variant of u.
func Match[T, K any](u Update[T], cases Cases[T, K]) K {
	switch s := u.(type) {
	case NotLoaded[T]:
		if cases.NotLoaded == nil {
			panic(missingCase("NotLoaded"))
		}
		return cases.NotLoaded()
	case Updating[T]:
		if cases.Updating == nil {
			panic(missingCase("Updating"))
		}
		return cases.Updating(s)
	case Updated[T]:
		if cases.Updated == nil {
			panic(missingCase("Updated"))
		}
		return cases.Updated(s)
	case FailedUpdate[T]:
		if cases.FailedUpdate == nil {
			panic(missingCase("FailedUpdate"))
		}
		return cases.FailedUpdate(s)
	case Refreshing[T]:
		if cases.Refreshing == nil {
			panic(missingCase("Refreshing"))
		}
		return cases.Refreshing(s)
	case FailedRefresh[T]:
		if cases.FailedRefresh == nil {
			panic(missingCase("FailedRefresh"))
		}
		return cases.FailedRefresh(s)
	default:
		panic(fmt.Sprintf("updates: unknown variant %T", u))
	}
}

// MatchPartial dispatches on the variant of u, falling back to OrElse for any
// variant without a handler. OrElse is mandatory.
func MatchPartial[T, K any](u Update[T], cases PartialCases[T, K]) K {
	if cases.OrElse == nil {
		panic("updates: MatchPartial requires OrElse")
	}
	switch s := u.(type) {
	case NotLoaded[T]:
		if cases.NotLoaded != nil {
			return cases.NotLoaded()
		}
	case Updating[T]:
		if cases.Updating != nil {
			return cases.Updating(s)
		}
	case Updated[T]:
		if cases.Updated != nil {
			return cases.Updated(s)
		}
	case FailedUpdate[T]:
		if cases.FailedUpdate != nil {
			return cases.FailedUpdate(s)
		}
	case Refreshing[T]:
		if cases.Refreshing != nil {
			return cases.Refreshing(s)
		}
	case FailedRefresh[T]:
		if cases.FailedRefresh != nil {
			return cases.FailedRefresh(s)
		}
	}
	return cases.OrElse()
}

// Value returns the available value of u, or fallback() when u carries none.
// Availability follows HasValue: confirmed values, retained previous values,
// and optimistic values for in-flight attempts all count.
func Value[T any](u Update[T], fallback func() T) T {
	if fallback == nil {
		panic("updates: Value requires a fallback")
	}
	v, _, ok := availableValue[T](u)
	if !ok {
		return fallback()
	}
	return v
}

// MapValue applies onValue to the available value of u, reporting whether the
// value is optimistic (sourced from OptimisticValue rather than a confirmed
// result). When u carries no value, orElse is used.
func MapValue[T, K any](u Update[T], onValue func(value T, isOptimistic bool) K, orElse func() K) K {
	if onValue == nil || orElse == nil {
		panic("updates: MapValue requires onValue and orElse")
	}
	v, optimistic, ok := availableValue[T](u)
	if !ok {
		return orElse()
	}
	return onValue(v, optimistic)
}

// MapError applies onError to the failure carried by u. Only FailedUpdate and
// FailedRefresh dispatch to onError; every other variant uses orElse. The
// stack argument is empty unless the failure was a recovered producer panic.
func MapError[T, K any](u Update[T], onError func(err error, stack string) K, orElse func() K) K {
	if onError == nil || orElse == nil {
		panic("updates: MapError requires onError and orElse")
	}
	switch s := u.(type) {
	case FailedUpdate[T]:
		return onError(s.Err, s.Stack)
	case FailedRefresh[T]:
		return onError(s.Err, s.Stack)
	default:
		return orElse()
	}
}

func availableValue[T any](u Update[T]) (value T, isOptimistic bool, ok bool) {
	switch s := u.(type) {
	case Updated[T]:
		return s.Value, false, true
	case FailedRefresh[T]:
		return s.Previous.Value, false, true
	case Refreshing[T]:
		if s.OptimisticValue != nil {
			return *s.OptimisticValue, true, true
		}
		return s.Previous.Value, false, true
	case Updating[T]:
		if s.OptimisticValue != nil {
			return *s.OptimisticValue, true, true
		}
	}
	var zero T
	return zero, false, false
}

func missingCase(variant string) string {
	return fmt.Sprintf("updates: Match missing handler for %s", variant)
}
