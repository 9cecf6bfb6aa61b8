// Package seed is the boundary configuration loaders consume: a Source
// yields named raw inputs, and a Seeder installs them into a fresh child
// frame through a scope guard. The core's write-once rules apply unchanged;
// the loader's file format stays outside this module.
package seed

import (
	"context"
	"fmt"

	contextual "github.com/tomjoy/contextual"
	"github.com/tomjoy/contextual/internal/hydrate"
)

// Input pairs a declared key name with the raw input value to install.
type Input struct {
	Name  string
	Value any
}

// Source yields the inputs a loader produced, ordered as they appeared.
type Source interface {
	Load(ctx context.Context) ([]Input, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Input, error)

// Load implements Source.
func (fn SourceFunc) Load(ctx context.Context) ([]Input, error) {
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

// Seeder resolves input names against declared keys and writes them into a
// new child frame of the calling task's current state.
type Seeder struct {
	Source Source

	// AllowUnknown skips inputs whose name matches no declared key instead
	// of failing the whole seed.
	AllowUnknown bool
}

// Apply loads the source and installs every input into a fresh child frame,
// returning the guard that scopes it. On any failure the frame is exited
// before the error is returned, leaving the state as it was.
func (s Seeder) Apply(ctx context.Context, opts ...contextual.GuardOption) (*contextual.Guard, error) {
	if s.Source == nil {
		return nil, fmt.Errorf("seed: source is required")
	}
	inputs, err := s.Source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: load inputs: %w", err)
	}

	guard := contextual.Enter(opts...)
	for _, input := range inputs {
		key, ok := contextual.LookupKey(input.Name)
		if !ok {
			if s.AllowUnknown {
				continue
			}
			_ = guard.Exit()
			return nil, fmt.Errorf("seed: no declaration for %q", input.Name)
		}
		if err := contextual.Write(key, input.Value); err != nil {
			_ = guard.Exit()
			return nil, fmt.Errorf("seed: install %q: %w", input.Name, err)
		}
	}
	return guard, nil
}

// MemorySource is a minimal in-memory Source for tests and examples.
type MemorySource struct {
	inputs []Input
}

// NewMemorySource constructs a source from the given inputs.
func NewMemorySource(inputs ...Input) *MemorySource {
	return &MemorySource{inputs: append([]Input(nil), inputs...)}
}

// Add appends an input.
func (s *MemorySource) Add(name string, value any) *MemorySource {
	s.inputs = append(s.inputs, Input{Name: name, Value: value})
	return s
}

// Load implements Source.
func (s *MemorySource) Load(context.Context) ([]Input, error) {
	out := make([]Input, len(s.inputs))
	copy(out, s.inputs)
	return out, nil
}

// DecodePayload converts a structured payload into the typed input a
// declaration expects, using the shared hydrate pipeline.
func DecodePayload[T any](key string, payload map[string]any, opts ...hydrate.DecoderOption[T]) (T, error) {
	decoder := hydrate.NewDecoder(opts...)
	return decoder.Decode(hydrate.Context{Key: key, Origin: "seed"}, payload)
}
