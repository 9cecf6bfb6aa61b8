package contextual

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// maxCallArgs bounds the number of trailing arguments the CEL call(...)
// helper accepts, since CEL overloads must be declared with fixed arity.
const maxCallArgs = 5

// CELTransformOption configures a CEL-backed transform.
type CELTransformOption func(*celTransform)

// CELWithProgramCache wires a ProgramCache into the transform builder.
func CELWithProgramCache(cache ProgramCache) CELTransformOption {
	return func(e *celTransform) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registered helpers via the call(...)
// function.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELTransformOption {
	return func(e *celTransform) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celTransform struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

type celBundle struct {
	env     *celgo.Env
	program celgo.Program
}

// CELTransform compiles a CEL expression into a setting transform. The
// effective input is bound as `input`; registered helpers are reachable via
// call("name", args...).
func CELTransform(expression string, opts ...CELTransformOption) (Transform, error) {
	if expression == "" {
		return nil, fmt.Errorf("contextual: cel transform expression must not be empty")
	}
	e := &celTransform{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	bundle, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return func(input any) (any, error) {
		out, _, err := bundle.program.Eval(e.activation(input))
		if err != nil {
			return nil, err
		}
		return out.Value(), nil
	}, nil
}

func (e *celTransform) loadOrCompile(expression string) (*celBundle, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if bundle, ok := cached.(*celBundle); ok {
				return bundle, nil
			}
		}
	}

	env, err := e.buildEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("contextual: parse cel transform %q: %w", expression, issues.Err())
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("contextual: check cel transform %q: %w", expression, issues.Err())
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("contextual: program cel transform %q: %w", expression, err)
	}

	bundle := &celBundle{env: env, program: prg}
	if e.cache != nil {
		e.cache.Set(expression, bundle)
	}
	return bundle, nil
}

func (e *celTransform) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("input", celgo.DynType),
	}
	if e.registry != nil {
		binding := e.callBinding()
		funcOpts := make([]celgo.FunctionOpt, 0, maxCallArgs+1)
		for extra := 0; extra <= maxCallArgs; extra++ {
			args := make([]*celgo.Type, 0, extra+1)
			args = append(args, celgo.StringType)
			for i := 0; i < extra; i++ {
				args = append(args, celgo.DynType)
			}
			funcOpts = append(funcOpts, celgo.Overload(
				fmt.Sprintf("call_dyn_%d", extra),
				args,
				celgo.DynType,
				celgo.FunctionBinding(func(values ...ref.Val) ref.Val {
					return binding(values)
				}),
			))
		}
		opts = append(opts, celgo.Function("call", funcOpts...))
	}
	return celgo.NewEnv(opts...)
}

func (e *celTransform) activation(input any) map[string]any {
	activation := map[string]any{
		"input": input,
	}
	if e.registry != nil {
		activation["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
	}
	return activation
}

func (e *celTransform) callBinding() func([]ref.Val) ref.Val {
	return func(values []ref.Val) ref.Val {
		if e.registry == nil {
			return types.NewErr("contextual: helper registry not configured")
		}
		if len(values) == 0 {
			return types.NewErr("contextual: call requires a helper name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("contextual: call name must be a string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErrFromString(err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
