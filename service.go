package contextual

import (
	"fmt"
	"reflect"
)

// Keyed is satisfied by every user-facing handle; replacement declarations
// accept any of them.
type Keyed interface {
	Key() *Key
}

// ServiceOption configures a service or resource declaration.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	doc      string
	replaces *Key
}

// WithServiceDoc attaches documentation surfaced by the key catalog.
func WithServiceDoc(doc string) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.doc = doc
	}
}

// WithReplaces installs a redirection from original to the declared service
// in the frame current at the declaration site. Reads of original in states
// descending from that frame resolve to the new service's factory.
func WithReplaces(original Keyed) ServiceOption {
	return func(cfg *serviceConfig) {
		if original != nil {
			cfg.replaces = original.Key()
		}
	}
}

// Service is the user-facing handle for a singleton-per-state instance.
// Factory inputs are compared by identity when the write-once discipline
// checks idempotence. Replacement targets must produce instances assignable
// to T.
type Service[T any] struct {
	key *Key
}

// NewService declares a service with its default factory. Declaration is
// idempotent per name; kind clashes and empty names panic.
func NewService[T any](name string, factory func() (T, error), opts ...ServiceOption) *Service[T] {
	return declareInstanceKey[T](name, KindService, factory, opts)
}

// NewResource declares a resource: a service whose key has KindResource, so
// an external lifecycle subsystem can tell its instances apart. The core
// itself does not register or notify resource instances on frame entry or
// exit.
func NewResource[T any](name string, factory func() (T, error), opts ...ServiceOption) *Service[T] {
	return declareInstanceKey[T](name, KindResource, factory, opts)
}

func declareInstanceKey[T any](name string, kind Kind, factory func() (T, error), opts []ServiceOption) *Service[T] {
	cfg := serviceConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	key, err := registry.declare(name, kind, func() *Key {
		k := &Key{
			name: name,
			kind: kind,
			doc:  cfg.doc,
		}
		if factory != nil {
			k.defaultInput = adaptFactory(factory)
			k.hasDefault = true
		}
		k.transform = invokeFactory(name)
		return k
	})
	if err != nil {
		panic(err)
	}
	if cfg.replaces != nil {
		if err := Current().Top().installReplacement(cfg.replaces, key); err != nil {
			panic(err)
		}
	}
	return &Service[T]{key: key}
}

// factoryInput is the input value bound for service and resource keys. The
// untyped wrapper erases T, so identity is carried separately: ident is taken
// from the caller's factory value, and re-writing the same factory after a
// read compares equal instead of tripping the write-once check on a fresh
// wrapper allocation.
type factoryInput struct {
	invoke Factory
	ident  uintptr
}

func adaptFactory[T any](factory func() (T, error)) factoryInput {
	return factoryInput{
		invoke: func() (any, error) {
			return factory()
		},
		ident: reflect.ValueOf(factory).Pointer(),
	}
}

func invokeFactory(name string) Transform {
	return func(input any) (any, error) {
		switch factory := input.(type) {
		case factoryInput:
			return factory.invoke()
		case Factory:
			return factory()
		default:
			return nil, fmt.Errorf("input %T bound for %q is not a factory", input, name)
		}
	}
}

// Key returns the service's identity.
func (s *Service[T]) Key() *Key { return s.key }

// Current returns the instance in the calling task's current state,
// instantiating it once per frame-fixing. Replacements are re-resolved on
// every read; only the factory input is frozen.
func (s *Service[T]) Current() (T, error) {
	return s.CurrentIn(Current())
}

// CurrentIn returns the instance in st.
func (s *Service[T]) CurrentIn(st *State) (T, error) {
	var zero T
	value, err := st.Read(s.key)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, &DynamicRuleError{Key: s.key, Reason: fmt.Sprintf("instance %T is not assignable to declared type", value)}
	}
	return typed, nil
}

// CurrentWithTrace resolves the instance while recording lookup provenance.
func (s *Service[T]) CurrentWithTrace() (T, Trace, error) {
	var zero T
	value, trace, err := Current().ReadWithTrace(s.key)
	if err != nil {
		return zero, trace, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, trace, &DynamicRuleError{Key: s.key, Reason: fmt.Sprintf("instance %T is not assignable to declared type", value)}
	}
	return typed, trace, nil
}

// SetFactory chooses the factory for this service in the top frame of the
// calling task's current state. Reading afterwards instantiates once per
// frame-fixing.
func (s *Service[T]) SetFactory(factory func() (T, error)) error {
	if factory == nil {
		return fmt.Errorf("contextual: nil factory for %s", s.key)
	}
	return Current().Write(s.key, adaptFactory(factory))
}

// SetFactoryIn chooses the factory in st's top frame.
func (s *Service[T]) SetFactoryIn(st *State, factory func() (T, error)) error {
	if factory == nil {
		return fmt.Errorf("contextual: nil factory for %s", s.key)
	}
	return st.Write(s.key, adaptFactory(factory))
}

// ReplaceWith installs a redirection from this service to other in the top
// frame of the calling task's current state. The redirection is itself
// write-once per frame: once this key has been read there, it can no longer
// change.
func (s *Service[T]) ReplaceWith(other Keyed) error {
	if other == nil {
		return fmt.Errorf("contextual: nil replacement for %s", s.key)
	}
	return Current().Top().installReplacement(s.key, other.Key())
}
