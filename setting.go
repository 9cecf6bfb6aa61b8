package contextual

import "fmt"

// SettingOption configures a setting declaration.
type SettingOption[I any] func(*settingConfig[I])

type settingConfig[I any] struct {
	defaultInput I
	hasDefault   bool
	doc          string
}

// WithDefault declares the input used when no frame provides one. The
// resulting computation is memoized into the root frame of the reading
// state.
func WithDefault[I any](value I) SettingOption[I] {
	return func(cfg *settingConfig[I]) {
		cfg.defaultInput = value
		cfg.hasDefault = true
	}
}

// WithSettingDoc attaches documentation surfaced by the key catalog.
func WithSettingDoc[I any](doc string) SettingOption[I] {
	return func(cfg *settingConfig[I]) {
		cfg.doc = doc
	}
}

// Setting is the user-facing handle for a transformed, frame-scoped value.
// Input equality for write idempotence is deep value equality.
type Setting[I, O any] struct {
	key *Key
}

// NewSetting declares a setting. Declaration is idempotent: re-declaring the
// same name returns the original handle and the first declaration's transform
// and default win. Declaring a name already used by a different kind panics,
// as does an empty name; both are declaration-site bugs.
func NewSetting[I, O any](name string, transform func(I) (O, error), opts ...SettingOption[I]) *Setting[I, O] {
	cfg := settingConfig[I]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	key, err := registry.declare(name, KindSetting, func() *Key {
		return &Key{
			name:         name,
			kind:         KindSetting,
			doc:          cfg.doc,
			defaultInput: cfg.defaultInput,
			hasDefault:   cfg.hasDefault,
			transform:    wrapTransform[I, O](name, transform),
		}
	})
	if err != nil {
		panic(err)
	}
	return &Setting[I, O]{key: key}
}

// NewRawSetting declares a setting over untyped inputs, the form
// configuration loaders use when the input domain is not known at compile
// time.
func NewRawSetting(name string, transform Transform, opts ...SettingOption[any]) *Setting[any, any] {
	if transform == nil {
		return NewSetting[any, any](name, nil, opts...)
	}
	return NewSetting(name, func(input any) (any, error) { return transform(input) }, opts...)
}

func wrapTransform[I, O any](name string, transform func(I) (O, error)) Transform {
	return func(input any) (any, error) {
		typed, ok := input.(I)
		if !ok && input != nil {
			return nil, fmt.Errorf("input %T is not usable as %q input", input, name)
		}
		if transform == nil {
			out, ok := any(typed).(O)
			if !ok {
				return nil, fmt.Errorf("input %T needs a transform to produce %q", input, name)
			}
			return out, nil
		}
		return transform(typed)
	}
}

// Key returns the setting's identity.
func (s *Setting[I, O]) Key() *Key { return s.key }

// Get returns the effective value in the calling task's current state.
func (s *Setting[I, O]) Get() (O, error) {
	return s.GetIn(Current())
}

// GetIn returns the effective value in st.
func (s *Setting[I, O]) GetIn(st *State) (O, error) {
	var zero O
	value, err := st.Read(s.key)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(O)
	if !ok {
		return zero, &TransformError{Key: s.key, Err: fmt.Errorf("computed %T is not assignable to declared output", value)}
	}
	return typed, nil
}

// GetWithTrace resolves the value while recording lookup provenance.
func (s *Setting[I, O]) GetWithTrace() (O, Trace, error) {
	var zero O
	value, trace, err := Current().ReadWithTrace(s.key)
	if err != nil {
		return zero, trace, err
	}
	typed, ok := value.(O)
	if !ok {
		return zero, trace, &TransformError{Key: s.key, Err: fmt.Errorf("computed %T is not assignable to declared output", value)}
	}
	return typed, trace, nil
}

// Set writes value as the input in the top frame of the calling task's
// current state.
func (s *Setting[I, O]) Set(value I) error {
	return s.SetIn(Current(), value)
}

// SetIn writes value as the input in st's top frame.
func (s *Setting[I, O]) SetIn(st *State, value I) error {
	return st.Write(s.key, value)
}
