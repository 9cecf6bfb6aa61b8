//go:build js_eval

package contextual

import (
	"fmt"

	"github.com/dop251/goja"
)

// JSTransform compiles a JavaScript expression into a setting transform. The
// effective input is bound as `input`; registered helpers are installed as
// global functions. Each invocation runs in a fresh VM so transforms stay
// pure from the core's perspective.
func JSTransform(expression string, opts ...JSTransformOption) (Transform, error) {
	if expression == "" {
		return nil, fmt.Errorf("contextual: js transform expression must not be empty")
	}
	cfg := applyJSTransformOptions(opts)
	program, err := loadOrCompileJS(cfg.cache, expression)
	if err != nil {
		return nil, err
	}
	return func(input any) (any, error) {
		vm := goja.New()
		if err := vm.Set("input", input); err != nil {
			return nil, err
		}
		if cfg.registry != nil {
			for _, name := range cfg.registry.Names() {
				helper := name
				err := vm.Set(helper, func(arguments ...any) (any, error) {
					return cfg.registry.Call(helper, arguments...)
				})
				if err != nil {
					return nil, err
				}
			}
		}
		value, err := vm.RunProgram(program)
		if err != nil {
			return nil, fmt.Errorf("contextual: run js transform %q: %w", expression, err)
		}
		return value.Export(), nil
	}, nil
}

func loadOrCompileJS(cache ProgramCache, expression string) (*goja.Program, error) {
	if cache != nil {
		if cached, ok := cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("transform", expression, true)
	if err != nil {
		return nil, fmt.Errorf("contextual: compile js transform %q: %w", expression, err)
	}
	if cache != nil {
		cache.Set(expression, program)
	}
	return program, nil
}

func jsTransformAvailable() bool {
	return true
}
