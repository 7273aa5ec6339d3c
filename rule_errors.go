package updates

import (
	"errors"
	"fmt"
	"strings"
)

// RuleError captures evaluator metadata alongside the originating error for a
// failed expiration-rule evaluation.
type RuleError struct {
	Engine string
	Expr   string
	State  string
	Err    error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("updates: %s rule %s state=%s: %v", e.Engine, describeExpression(e.Expr), e.State, e.Err)
}

func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "updates:") {
		return err
	}
	return fmt.Errorf("updates: %s rule evaluator: %w", engine, err)
}

func wrapRuleError(engine, expr, state string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		if ruleErr.Engine == "" {
			ruleErr.Engine = engine
		}
		if ruleErr.Expr == "" {
			ruleErr.Expr = expr
		}
		if ruleErr.State == "" {
			ruleErr.State = state
		}
		return ruleErr
	}

	return &RuleError{
		Engine: engine,
		Expr:   expr,
		State:  state,
		Err:    err,
	}
}
