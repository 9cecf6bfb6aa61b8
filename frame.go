package contextual

import (
	"sync"

	"github.com/google/uuid"
)

// Frame is one append-only layer of bindings plus a link to its parent. A
// frame never removes an entry: inputs may be rewritten until the key is
// frozen by a read, computed values are final once recorded, and replacement
// redirections are fixed once the redirected key has been observed.
type Frame struct {
	id     string
	parent *Frame

	mu           sync.Mutex
	inputs       map[*Key]any
	computed     map[*Key]any
	replacements map[*Key]*Key
	observed     map[*Key]struct{}
}

func newFrame(parent *Frame) *Frame {
	return &Frame{
		id:     uuid.NewString(),
		parent: parent,
	}
}

// ID returns the frame's stable identifier, used for tracing and lifecycle
// events.
func (f *Frame) ID() string { return f.id }

// Parent returns the enclosing frame, or nil for a root frame.
func (f *Frame) Parent() *Frame { return f.parent }

// lookupInput returns the input bound in this frame, if any.
func (f *Frame) lookupInput(key *Key) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.inputs[key]
	return value, ok
}

// lookupComputed returns the memoized output recorded in this frame, if any.
func (f *Frame) lookupComputed(key *Key) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.computed[key]
	return value, ok
}

// writeInput installs value as the key's input in this frame. Until the key
// is frozen here the write overwrites any earlier input. Once the key is frozen
// an equal value is accepted as a no-op and an unequal one fails with
// InputConflictError.
func (f *Frame) writeInput(key *Key, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, frozen := f.computed[key]; frozen {
		existing := f.inputs[key]
		if inputsEqual(existing, value) {
			return nil
		}
		return &InputConflictError{Key: key, Existing: existing, Attempted: value}
	}
	if f.inputs == nil {
		f.inputs = map[*Key]any{}
	}
	f.inputs[key] = value
	return nil
}

// freeze records the computed output for key, installing input alongside it
// when the value came from the key's declared default. After freeze the
// binding is final in this frame.
func (f *Frame) freeze(key *Key, input, output any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.computed[key]; ok {
		return
	}
	if f.inputs == nil {
		f.inputs = map[*Key]any{}
	}
	if _, ok := f.inputs[key]; !ok {
		f.inputs[key] = input
	}
	if f.computed == nil {
		f.computed = map[*Key]any{}
	}
	f.computed[key] = output
}

// replacement returns the redirection recorded for key in this frame.
func (f *Frame) replacement(key *Key) (*Key, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	to, ok := f.replacements[key]
	return to, ok
}

// installReplacement records a redirection from one key to another. It fails
// once from has been observed by a read through this frame, or when a
// different redirection is already present.
func (f *Frame) installReplacement(from, to *Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.observed[from]; ok {
		return &InputConflictError{Key: from, Existing: f.replacements[from], Attempted: to}
	}
	if _, ok := f.computed[from]; ok {
		return &InputConflictError{Key: from, Existing: f.inputs[from], Attempted: to}
	}
	if existing, ok := f.replacements[from]; ok {
		if existing == to {
			return nil
		}
		return &InputConflictError{Key: from, Existing: existing, Attempted: to}
	}
	if f.replacements == nil {
		f.replacements = map[*Key]*Key{}
	}
	f.replacements[from] = to
	return nil
}

// markObserved records that key resolution passed through this frame while it
// was the top of a state, fixing its replacement entry for that key.
func (f *Frame) markObserved(key *Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.observed == nil {
		f.observed = map[*Key]struct{}{}
	}
	f.observed[key] = struct{}{}
}

// depth returns the number of frames from f down to the root, inclusive.
func (f *Frame) depth() int {
	n := 0
	for cur := f; cur != nil; cur = cur.parent {
		n++
	}
	return n
}

// rootOf walks to the bottom of the chain.
func (f *Frame) rootOf() *Frame {
	cur := f
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}
