package updates

import (
	"context"
	"fmt"
	"iter"
	"runtime/debug"
	"time"

	"github.com/goliatone/go-updates/pkg/transition"
)

// Run executes one lifecycle step against the state returned by current and
// returns a lazy, single-use sequence of the states it produces. Depending on
// the current variant, the expiration policy and the override policy, the
// sequence yields zero states (invocation ignored or value still fresh), one
// state (the attempt was superseded mid-flight) or two states (transient then
// terminal).
//
// The transient Updating/Refreshing state is always yielded before the
// producer runs; the terminal state is yielded only if this attempt's id is
// still the one visible through current after the producer settles. A stale
// result is dropped silently; the producer is never forcibly aborted.
//
// producer and current must not be nil; Run panics otherwise.
func Run[T any](ctx context.Context, producer Producer[T], current StateFn[T], opts ...RunOption[T]) iter.Seq[Update[T]] {
	if producer == nil {
		panic("updates: producer is required")
	}
	if current == nil {
		panic("updates: current state accessor is required")
	}
	cfg := applyRunOptions(opts)

	return func(yield func(Update[T]) bool) {
		if ctx == nil {
			ctx = context.Background()
		}

		state := current()
		currentName := StateName[T](state)
		plan, ok := cfg.plan(state)
		if !ok {
			cfg.logger().LogTransition(TransitionLogEvent{
				Op:      "skip",
				Current: currentName,
			})
			cfg.emit(ctx, transition.BuildSkippedEvent(transition.EventInput{
				Current:    currentName,
				OccurredAt: cfg.now(),
			}))
			return
		}

		id := cfg.idSource().Next()
		startedAt := cfg.now()

		var transient Update[T]
		if plan.refresh {
			transient = Refreshing[T]{
				ID:              id,
				OptimisticValue: cfg.optimistic,
				StartedAt:       startedAt,
				Previous:        plan.previous,
			}
		} else {
			transient = Updating[T]{
				ID:              id,
				OptimisticValue: cfg.optimistic,
				StartedAt:       startedAt,
			}
		}
		cfg.produced(ctx, transient, currentName, 0)
		if !yield(transient) {
			return
		}

		begin := time.Now()
		value, stack, err := invokeProducer(ctx, producer)
		elapsed := time.Since(begin)

		latestID, _ := AttemptID[T](current())
		if latestID != id {
			// Another attempt claimed ownership while the producer ran; the
			// result belongs to a superseded id and is dropped.
			cfg.logger().LogTransition(TransitionLogEvent{
				Op:        "suppress",
				AttemptID: id,
				Current:   currentName,
				Elapsed:   elapsed,
				Err:       err,
			})
			cfg.emit(ctx, transition.BuildSuppressedEvent(transition.EventInput{
				AttemptID:  id,
				Current:    currentName,
				OccurredAt: cfg.now(),
			}))
			return
		}

		var terminal Update[T]
		switch {
		case err == nil:
			terminal = Updated[T]{ID: id, Value: value, UpdatedAt: cfg.now()}
		case plan.refresh:
			terminal = FailedRefresh[T]{
				ID:       id,
				Previous: plan.previous,
				Err:      err,
				Stack:    stack,
				FailedAt: cfg.now(),
			}
		default:
			terminal = FailedUpdate[T]{
				ID:       id,
				Err:      err,
				Stack:    stack,
				FailedAt: cfg.now(),
			}
		}
		cfg.produced(ctx, terminal, currentName, elapsed)
		yield(terminal)
	}
}

type runPlan[T any] struct {
	refresh  bool
	previous Updated[T]
}

// plan decides whether this invocation acts at all, and whether it is a fresh
// load or a refresh wrapping a previous success.
func (cfg *runConfig[T]) plan(state Update[T]) (runPlan[T], bool) {
	switch s := state.(type) {
	case NotLoaded[T]:
		return runPlan[T]{}, true
	case FailedUpdate[T]:
		return runPlan[T]{}, true
	case Updated[T]:
		if !cfg.expired(s, cfg.now()) {
			return runPlan[T]{}, false
		}
		return runPlan[T]{refresh: true, previous: s}, true
	case FailedRefresh[T]:
		// A failed refresh is always stale.
		return runPlan[T]{refresh: true, previous: s.Previous}, true
	case Updating[T]:
		if cfg.policy != OverrideCancelPrevious {
			return runPlan[T]{}, false
		}
		return runPlan[T]{}, true
	case Refreshing[T]:
		if cfg.policy != OverrideCancelPrevious {
			return runPlan[T]{}, false
		}
		return runPlan[T]{refresh: true, previous: s.Previous}, true
	default:
		return runPlan[T]{}, false
	}
}

func (cfg *runConfig[T]) produced(ctx context.Context, state Update[T], currentName string, elapsed time.Duration) {
	id, _ := AttemptID[T](state)
	var err error
	switch s := state.(type) {
	case FailedUpdate[T]:
		err = s.Err
	case FailedRefresh[T]:
		err = s.Err
	}
	cfg.logger().LogTransition(TransitionLogEvent{
		Op:        "produce",
		State:     StateName[T](state),
		AttemptID: id,
		Current:   currentName,
		Elapsed:   elapsed,
		Err:       err,
	})
	cfg.emit(ctx, transition.BuildProducedEvent(transition.EventInput{
		AttemptID:  id,
		State:      StateName[T](state),
		Current:    currentName,
		OccurredAt: cfg.now(),
	}))
}

func (cfg *runConfig[T]) emit(ctx context.Context, event transition.Event) {
	if !cfg.hooks.Enabled() {
		return
	}
	// Hook failures never disturb the lifecycle; they surface through the
	// hooks' own error handling.
	_ = cfg.hooks.Notify(ctx, event)
}

func invokeProducer[T any](ctx context.Context, producer Producer[T]) (value T, stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("updates: producer panic: %v", r)
			stack = string(debug.Stack())
		}
	}()
	value, err = producer(ctx)
	return value, stack, err
}
