package contextual

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprTransformOption configures an expr-backed transform.
type ExprTransformOption func(*exprTransform)

// ExprWithProgramCache wires a ProgramCache into the transform builder.
func ExprWithProgramCache(cache ProgramCache) ExprTransformOption {
	return func(e *exprTransform) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registered helpers to the expression.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprTransformOption {
	return func(e *exprTransform) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type exprTransform struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// ExprTransform compiles an expr-lang expression into a setting transform.
// The expression sees the effective input as `input` plus every registered
// helper. Configuration loaders declare transforms this way when the
// computation is described in data rather than code.
func ExprTransform(expression string, opts ...ExprTransformOption) (Transform, error) {
	if expression == "" {
		return nil, fmt.Errorf("contextual: expr transform expression must not be empty")
	}
	e := &exprTransform{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return func(input any) (any, error) {
		return exprlang.Run(program, e.environment(input))
	}, nil
}

func (e *exprTransform) loadOrCompile(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registryNames() {
		fn := e.registryFunction(name)
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, fmt.Errorf("contextual: compile expr transform %q: %w", expression, err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *exprTransform) environment(input any) map[string]any {
	env := map[string]any{
		"input": input,
	}
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
		for _, name := range e.registry.Names() {
			fn := name
			env[fn] = func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}
		}
	}
	return env
}

func (e *exprTransform) registryNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *exprTransform) registryFunction(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}
