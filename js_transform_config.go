package contextual

type jsTransformConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSTransformOption configures the JS transform builder.
type JSTransformOption func(*jsTransformConfig)

// JSWithProgramCache applies a ProgramCache to the JS transform builder.
func JSWithProgramCache(cache ProgramCache) JSTransformOption {
	return func(cfg *jsTransformConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry exposes registered helpers to the script.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSTransformOption {
	return func(cfg *jsTransformConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyJSTransformOptions(opts []JSTransformOption) jsTransformConfig {
	cfg := jsTransformConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
