package updates

import (
	"context"
	"time"

	"github.com/goliatone/go-updates/pkg/transition"
)

// Producer is the asynchronous operation that computes the next value. It may
// return an error or panic; both become failure states, never propagate.
type Producer[T any] func(ctx context.Context) (T, error)

// StateFn returns the latest accepted state. It must never return stale
// reads: the driver's stale-write suppression is only correct when every
// produced state is visible through it before the next cancellation check.
type StateFn[T any] func() Update[T]

// Clock supplies the current time; injectable for tests.
type Clock func() time.Time

// OverridePolicy governs what Run does when an attempt is already in flight.
type OverridePolicy int

const (
	// OverrideIgnore leaves the in-flight attempt alone; Run produces nothing.
	OverrideIgnore OverridePolicy = iota
	// OverrideCancelPrevious supersedes the in-flight attempt: its eventual
	// result is suppressed and a fresh attempt takes over.
	OverrideCancelPrevious
)

func (p OverridePolicy) String() string {
	switch p {
	case OverrideIgnore:
		return "ignore"
	case OverrideCancelPrevious:
		return "cancel_previous"
	default:
		return "unknown"
	}
}

// RunOption configures a single driver invocation.
type RunOption[T any] func(*runConfig[T])

type runConfig[T any] struct {
	policy       OverridePolicy
	optimistic   *T
	expireAt     *time.Time
	expireAfter  *time.Duration
	expireWhen   string
	ruleArgs     map[string]any
	ruleMetadata map[string]any

	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry

	clock            Clock
	ids              IDSource
	transitionLogger TransitionLogger
	ruleLogger       RuleLogger
	hooks            transition.Hooks
}

func applyRunOptions[T any](opts []RunOption[T]) runConfig[T] {
	cfg := runConfig[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg *runConfig[T]) now() time.Time {
	if cfg.clock != nil {
		return cfg.clock()
	}
	return time.Now()
}

func (cfg *runConfig[T]) idSource() IDSource {
	if cfg.ids != nil {
		return cfg.ids
	}
	return defaultIDs
}

func (cfg *runConfig[T]) logger() TransitionLogger {
	if cfg.transitionLogger != nil {
		return cfg.transitionLogger
	}
	return noopTransitionLogger{}
}

func (cfg *runConfig[T]) rules() RuleLogger {
	if cfg.ruleLogger != nil {
		return cfg.ruleLogger
	}
	return noopRuleLogger{}
}

// WithOptimisticValue shows v through the transient state until the attempt
// settles.
func WithOptimisticValue[T any](v T) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.optimistic = &v
	}
}

// WithOverridePolicy sets how Run treats an in-flight attempt.
func WithOverridePolicy[T any](policy OverridePolicy) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.policy = policy
	}
}

// WithExpireAt marks an Updated state stale once t is strictly in the past.
func WithExpireAt[T any](t time.Time) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.expireAt = &t
	}
}

// WithExpireAfter marks an Updated state stale d after its UpdatedAt. Ignored
// when WithExpireAt is also given.
func WithExpireAfter[T any](d time.Duration) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.expireAfter = &d
	}
}

// WithExpireWhen decides staleness by evaluating expr against the current
// Updated state. The rule sees value, updated_at, age (seconds), attempt_id
// and now. A rule takes precedence over timestamp policies; a rule that fails
// to evaluate counts as expired.
func WithExpireWhen[T any](expr string) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.expireWhen = expr
	}
}

// WithRuleArgs passes args through to expiration-rule evaluation.
func WithRuleArgs[T any](args map[string]any) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.ruleArgs = args
	}
}

// WithRuleMetadata passes metadata through to expiration-rule evaluation.
func WithRuleMetadata[T any](metadata map[string]any) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.ruleMetadata = metadata
	}
}

// WithRuleEvaluator selects the evaluator backend for expiration rules. When
// unset, an expr-lang evaluator is constructed on demand.
func WithRuleEvaluator[T any](evaluator Evaluator) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.evaluator = evaluator
	}
}

// WithProgramCache registers a compiled-rule cache used when the default
// evaluator is constructed.
func WithProgramCache[T any](cache ProgramCache) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry functions to expiration rules.
func WithFunctionRegistry[T any](registry *FunctionRegistry) RunOption[T] {
	return func(cfg *runConfig[T]) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for expiration rules.
func WithCustomFunction[T any](name string, fn Function) RunOption[T] {
	return func(cfg *runConfig[T]) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithClock injects the time source used for expiration checks and state
// timestamps.
func WithClock[T any](clock Clock) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.clock = clock
	}
}

// WithIDSource injects the attempt-id generator, replacing the process-wide
// counter.
func WithIDSource[T any](ids IDSource) RunOption[T] {
	return func(cfg *runConfig[T]) {
		cfg.ids = ids
	}
}

// WithTransitionLogger attaches a logger for driver decisions.
func WithTransitionLogger[T any](logger TransitionLogger) RunOption[T] {
	return func(cfg *runConfig[T]) {
		if logger == nil {
			cfg.transitionLogger = noopTransitionLogger{}
			return
		}
		cfg.transitionLogger = logger
	}
}

// WithRuleLogger attaches a logger for expiration-rule evaluations.
func WithRuleLogger[T any](logger RuleLogger) RunOption[T] {
	return func(cfg *runConfig[T]) {
		if logger == nil {
			cfg.ruleLogger = noopRuleLogger{}
			return
		}
		cfg.ruleLogger = logger
	}
}

// WithTransitionHooks fans every driver decision out to hooks. Hooks are
// cloned and nil entries dropped.
func WithTransitionHooks[T any](hooks transition.Hooks) RunOption[T] {
	normalized := cloneTransitionHooks(hooks)
	return func(cfg *runConfig[T]) {
		cfg.hooks = normalized
	}
}

func cloneTransitionHooks(hooks transition.Hooks) transition.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]transition.Hook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return transition.Hooks(normalized)
}
