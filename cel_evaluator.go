package updates

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celEvaluator executes expiration rules with cel-go. Unlike expr, CEL needs
// the variable set declared up front, so each compiled program is bundled with
// the environment it was checked against.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

type celBundle struct {
	env     *celgo.Env
	program celgo.Program
}

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache caches checked programs keyed by rule text.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry functions to rules via call().
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) engineName() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, rule string) (any, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("rule must not be empty"))
	}
	ctx = ctx.withDefaults()
	snapshot := snapshotAsMap(ctx.Snapshot)

	bundle, err := e.program(rule, snapshot)
	if err != nil {
		return nil, wrapRuleError("cel", rule, ctx.stateLabel(), err)
	}
	out, _, err := bundle.program.Eval(e.bindings(ctx, snapshot))
	if err != nil {
		return nil, wrapRuleError("cel", rule, ctx.stateLabel(), err)
	}
	return out.Value(), nil
}

// Compile defers environment construction to evaluation time because the
// declared variables depend on the snapshot keys each call supplies.
func (e *celEvaluator) Compile(rule string, _ ...CompileOption) (CompiledRule, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("rule must not be empty"))
	}
	return &celCompiledRule{evaluator: e, rule: rule}, nil
}

func (e *celEvaluator) program(rule string, snapshot map[string]any) (*celBundle, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(rule); ok {
			if bundle, ok := cached.(*celBundle); ok {
				return bundle, nil
			}
		}
	}

	env, err := e.declarations(snapshot)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(rule)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celBundle{env: env, program: program}
	if e.cache != nil {
		e.cache.Set(rule, bundle)
	}
	return bundle, nil
}

// declarations builds the CEL environment: the fixed ambient variables, one
// dyn variable per snapshot key, and the call() dispatcher when a registry is
// configured.
func (e *celEvaluator) declarations(snapshot map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("state", celgo.StringType),
	}
	for key := range snapshot {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType},
			celgo.DynType,
			celgo.FunctionBinding(e.dispatch),
		)))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) bindings(ctx RuleContext, snapshot map[string]any) map[string]any {
	bindings := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"state":    ctx.stateLabel(),
	}
	for key, value := range snapshot {
		bindings[key] = value
	}
	return bindings
}

// dispatch routes call("name", args...) to the function registry.
func (e *celEvaluator) dispatch(values ...ref.Val) ref.Val {
	if e.registry == nil {
		return types.NewErr("updates: function registry not configured")
	}
	if len(values) == 0 {
		return types.NewErr("updates: call requires a function name")
	}
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("updates: call name must be a string")
	}
	args := make([]any, 0, len(values)-1)
	for _, val := range values[1:] {
		args = append(args, val.Value())
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr(err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celCompiledRule struct {
	evaluator *celEvaluator
	rule      string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.Evaluate(ctx, r.rule)
}

func snapshotAsMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
