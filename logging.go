package updates

import "time"

// TransitionLogEvent describes one driver decision for logging: a produced
// state, a skipped invocation, or a suppressed stale result.
type TransitionLogEvent struct {
	// Op is one of "produce", "skip" or "suppress".
	Op        string
	State     string
	AttemptID uint64
	// Current names the variant the driver dispatched on.
	Current string
	// Elapsed is the producer latency; set only on terminal productions and
	// suppressions.
	Elapsed time.Duration
	Err     error
}

// TransitionLogger records driver transitions.
type TransitionLogger interface {
	LogTransition(TransitionLogEvent)
}

// TransitionLoggerFunc adapts a function to TransitionLogger.
type TransitionLoggerFunc func(TransitionLogEvent)

// LogTransition implements TransitionLogger.
func (f TransitionLoggerFunc) LogTransition(event TransitionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopTransitionLogger struct{}

func (noopTransitionLogger) LogTransition(TransitionLogEvent) {}

// RuleLogEvent describes one expiration-rule evaluation for logging.
type RuleLogEvent struct {
	Engine   string
	Expr     string
	State    string
	Duration time.Duration
	Expired  bool
	Err      error
}

// RuleLogger records expiration-rule evaluations.
type RuleLogger interface {
	LogRule(RuleLogEvent)
}

// RuleLoggerFunc adapts a function to RuleLogger.
type RuleLoggerFunc func(RuleLogEvent)

// LogRule implements RuleLogger.
func (f RuleLoggerFunc) LogRule(event RuleLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopRuleLogger struct{}

func (noopRuleLogger) LogRule(RuleLogEvent) {}
