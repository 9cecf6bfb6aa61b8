package contextual

import (
	"strings"
	"sync"
	"testing"
)

type countingCache struct {
	mu   sync.Mutex
	data map[string]any
	hits int
	sets int
}

func newCountingCache() *countingCache {
	return &countingCache{data: map[string]any{}}
}

func (c *countingCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	if ok {
		c.hits++
	}
	return value, ok
}

func (c *countingCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
}

func TestTransformBuildersRejectEmptyExpression(t *testing.T) {
	builders := []struct {
		name  string
		build func(string) (Transform, error)
	}{
		{"expr", func(src string) (Transform, error) { return ExprTransform(src) }},
		{"cel", func(src string) (Transform, error) { return CELTransform(src) }},
		{"js", func(src string) (Transform, error) { return JSTransform(src) }},
	}
	for _, builder := range builders {
		t.Run(builder.name, func(t *testing.T) {
			if _, err := builder.build(""); err == nil {
				t.Fatal("expected an error for the empty expression")
			}
		})
	}
}

func TestExprTransform(t *testing.T) {
	transform, err := ExprTransform("input + 10")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := transform(6)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != 16 {
		t.Fatalf("expected 16, got %v", out)
	}
}

func TestExprTransformHelpers(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("double", func(args ...any) (any, error) {
		return args[0].(int) * 2, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	transform, err := ExprTransform("double(input)", ExprWithFunctionRegistry(registry))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := transform(6)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != 12 {
		t.Fatalf("expected 12, got %v", out)
	}
}

func TestExprTransformProgramCache(t *testing.T) {
	cache := newCountingCache()

	if _, err := ExprTransform("input + 1", ExprWithProgramCache(cache)); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one compile, got %d", cache.sets)
	}
	if _, err := ExprTransform("input + 1", ExprWithProgramCache(cache)); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if cache.hits == 0 {
		t.Fatal("second build must reuse the cached program")
	}
	if cache.sets != 1 {
		t.Fatalf("second build must not recompile, got %d sets", cache.sets)
	}
}

func TestCELTransform(t *testing.T) {
	transform, err := CELTransform("input")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := transform(6)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != int64(6) {
		t.Fatalf("expected int64 6, got %v (%T)", out, out)
	}
}

func TestCELTransformHelpers(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("suffix", func(args ...any) (any, error) {
		return args[0].(string) + "!", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	transform, err := CELTransform(`call("suffix", input)`, CELWithFunctionRegistry(registry))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := transform("fast")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "fast!" {
		t.Fatalf("expected fast!, got %v", out)
	}
}

func TestJSTransformAvailability(t *testing.T) {
	transform, err := JSTransform("input * 2")
	if !jsTransformAvailable() {
		if err == nil {
			t.Fatal("expected an error without the js_eval build tag")
		}
		if !strings.Contains(err.Error(), "js_eval") {
			t.Fatalf("error should point at the build tag, got %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := transform(6)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != int64(12) {
		t.Fatalf("expected 12, got %v (%T)", out, out)
	}
}

func TestExpressionBackedSetting(t *testing.T) {
	iso := EnterEmpty()
	defer iso.Exit()

	transform, err := ExprTransform("input + 10")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	scaled := NewRawSetting("transform.scaled", transform, WithDefault[any](21))

	got, err := scaled.Get()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 31 {
		t.Fatalf("expected 31, got %v", got)
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatal("empty name must be rejected")
	}
	if err := registry.Register("nilfn", nil); err == nil {
		t.Fatal("nil helper must be rejected")
	}
	if err := registry.Register("one", func(...any) (any, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("one", func(...any) (any, error) { return 2, nil }); err == nil {
		t.Fatal("duplicate registration must be rejected")
	}

	clone := registry.Clone()
	if err := clone.Register("two", func(...any) (any, error) { return 2, nil }); err != nil {
		t.Fatalf("clone register: %v", err)
	}
	if _, err := registry.Call("two"); err == nil {
		t.Fatal("clone additions must not leak into the original")
	}

	names := clone.Names()
	if len(names) != 2 || names[0] != "one" || names[1] != "two" {
		t.Fatalf("unexpected names: %v", names)
	}
}
