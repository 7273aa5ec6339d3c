package updates

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator executes expiration rules with expr-lang. It is the backend
// the driver constructs when no evaluator is injected.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache caches compiled programs keyed by rule text.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registry functions to rules.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) engineName() string { return "expr" }

// Evaluate runs rule against the snapshot and ambient bindings in ctx.
func (e *exprEvaluator) Evaluate(ctx RuleContext, rule string) (any, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("rule must not be empty"))
	}
	ctx = ctx.withDefaults()
	scope := e.ruleScope(ctx)

	// Without a cache there is nothing to reuse, so skip the compile step.
	if e.cache == nil {
		result, err := exprlang.Eval(rule, scope)
		if err != nil {
			return nil, wrapRuleError("expr", rule, ctx.stateLabel(), err)
		}
		return result, nil
	}

	program, err := e.program(rule)
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, scope)
	if err != nil {
		return nil, wrapRuleError("expr", rule, ctx.stateLabel(), err)
	}
	return result, nil
}

// Compile prepares rule once for repeated evaluation.
func (e *exprEvaluator) Compile(rule string, _ ...CompileOption) (CompiledRule, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("rule must not be empty"))
	}
	program, err := e.program(rule)
	if err != nil {
		return nil, err
	}
	return &exprCompiledRule{evaluator: e, rule: rule, program: program}, nil
}

// program returns the compiled form of rule, consulting the cache when one is
// configured.
func (e *exprEvaluator) program(rule string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(rule); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}

	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			fn := name
			options = append(options, exprlang.Function(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}))
		}
	}

	program, err := exprlang.Compile(rule, options...)
	if err != nil {
		return nil, wrapRuleError("expr", rule, "", err)
	}
	if e.cache != nil {
		e.cache.Set(rule, program)
	}
	return program, nil
}

// ruleScope flattens the rule context into the variable map expr evaluates
// against: snapshot keys at the top level next to now, args, metadata, state
// and any registry functions.
func (e *exprEvaluator) ruleScope(ctx RuleContext) map[string]any {
	scope := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	if ctx.State != "" {
		scope["state"] = ctx.State
	}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for key, value := range snapshot {
			scope[key] = value
		}
	}
	if e.registry != nil {
		scope["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
		for _, name := range e.registry.Names() {
			fn := name
			scope[fn] = func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}
		}
	}
	return scope
}

type exprCompiledRule struct {
	evaluator *exprEvaluator
	rule      string
	program   *exprvm.Program
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("compiled rule missing evaluator"))
	}
	ctx = ctx.withDefaults()
	if r.program == nil {
		return r.evaluator.Evaluate(ctx, r.rule)
	}
	result, err := exprlang.Run(r.program, r.evaluator.ruleScope(ctx))
	if err != nil {
		return nil, wrapRuleError("expr", r.rule, ctx.stateLabel(), err)
	}
	return result, nil
}
