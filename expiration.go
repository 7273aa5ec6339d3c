package updates

import (
	"fmt"
	"time"
)

// ErrNoEvaluator reports that a rule-driven expiration was requested but no
// evaluator backend could be constructed.
var ErrNoEvaluator = fmt.Errorf("updates: rule evaluator not configured")

// expired decides whether current is stale enough to refresh. A configured
// rule expression wins over timestamp policies. With no policy at all, an
// Updated state is always considered expired.
func (cfg *runConfig[T]) expired(current Updated[T], now time.Time) bool {
	if cfg.expireWhen != "" {
		return cfg.ruleExpired(current, now)
	}

	expireAt := cfg.expireAt
	if expireAt == nil && cfg.expireAfter != nil {
		at := current.UpdatedAt.Add(*cfg.expireAfter)
		expireAt = &at
	}
	if expireAt == nil {
		return true
	}
	return expireAt.Before(now)
}

func (cfg *runConfig[T]) ruleExpired(current Updated[T], now time.Time) bool {
	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		cfg.rules().LogRule(RuleLogEvent{
			Expr:    cfg.expireWhen,
			State:   StateName[T](current),
			Expired: true,
			Err:     err,
		})
		return true
	}

	ctx := RuleContext{
		Snapshot: map[string]any{
			"value":      current.Value,
			"updated_at": current.UpdatedAt,
			"age":        now.Sub(current.UpdatedAt).Seconds(),
			"attempt_id": current.ID,
		},
		Now:      &now,
		Args:     cfg.ruleArgs,
		Metadata: cfg.ruleMetadata,
		State:    StateName[T](current),
	}

	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	result, evalErr := evaluator.Evaluate(ctx, cfg.expireWhen)
	duration := time.Since(start)

	expired, coerceErr := coerceRuleResult(result)
	if evalErr == nil {
		evalErr = coerceErr
	}
	if evalErr != nil {
		evalErr = wrapRuleError(engine, cfg.expireWhen, ctx.stateLabel(), evalErr)
		// A broken rule refreshes rather than pinning a stale value forever.
		expired = true
	}
	cfg.rules().LogRule(RuleLogEvent{
		Engine:   engine,
		Expr:     cfg.expireWhen,
		State:    ctx.stateLabel(),
		Duration: duration,
		Expired:  expired,
		Err:      evalErr,
	})
	return expired
}

func (cfg *runConfig[T]) resolveEvaluator() (Evaluator, error) {
	if cfg.evaluator != nil {
		return cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	cfg.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

func coerceRuleResult(result any) (bool, error) {
	switch v := result.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("rule returned %T, want bool", result)
	}
}

// evaluatorEngineName identifies the backend for rule logs. Built-in
// evaluators name themselves; anything injected from outside is "custom".
func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(interface{ engineName() string }); ok {
		return named.engineName()
	}
	return "custom"
}
