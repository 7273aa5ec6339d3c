//go:build js_eval

package updates

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsEvaluator executes expiration rules as JavaScript expressions on a fresh
// goja runtime per evaluation. Each rule is wrapped in an IIFE so bare
// expressions and multi-statement bodies both work.
type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{cache: cfg.cache, registry: cfg.registry}
}

func (e *jsEvaluator) engineName() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, rule string) (any, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("rule must not be empty"))
	}
	ctx = ctx.withDefaults()
	if e.cache == nil {
		return e.execute(ctx, rule, nil)
	}
	program, err := e.program(rule)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, rule, program)
}

func (e *jsEvaluator) Compile(rule string, _ ...CompileOption) (CompiledRule, error) {
	if rule == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("rule must not be empty"))
	}
	program, err := e.program(rule)
	if err != nil {
		return nil, err
	}
	return &jsCompiledRule{evaluator: e, rule: rule, program: program}, nil
}

func (e *jsEvaluator) program(rule string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(rule); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", iife(rule), false)
	if err != nil {
		return nil, wrapRuleError("js", rule, "", err)
	}
	if e.cache != nil {
		e.cache.Set(rule, program)
	}
	return program, nil
}

func (e *jsEvaluator) execute(ctx RuleContext, rule string, program *goja.Program) (any, error) {
	vm := goja.New()
	e.bind(vm, ctx)

	var (
		value goja.Value
		err   error
	)
	if program != nil {
		value, err = vm.RunProgram(program)
	} else {
		value, err = vm.RunString(iife(rule))
	}
	if err != nil {
		return nil, wrapRuleError("js", rule, ctx.stateLabel(), err)
	}
	return value.Export(), nil
}

// bind installs the ambient variables, snapshot keys and registry functions
// as runtime globals.
func (e *jsEvaluator) bind(vm *goja.Runtime, ctx RuleContext) {
	vm.Set("now", ctx.timestamp())
	vm.Set("args", ctx.Args)
	vm.Set("metadata", ctx.Metadata)
	vm.Set("state", ctx.stateLabel())
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for key, value := range snapshot {
			vm.Set(key, value)
		}
	}
	if e.registry != nil {
		vm.Set("call", func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		})
		for _, name := range e.registry.Names() {
			fn := name
			vm.Set(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			})
		}
	}
}

func iife(rule string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", rule)
}

type jsCompiledRule struct {
	evaluator *jsEvaluator
	rule      string
	program   *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("js", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.execute(ctx.withDefaults(), r.rule, r.program)
}

func jsEvaluatorAvailable() bool {
	return true
}
