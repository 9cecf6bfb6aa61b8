package contextual

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomjoy/contextual/pkg/lifecycle"
)

// State is one logical task's view of the world: a stack of frames walked
// top to root when resolving bindings. A state is owned by exactly one task
// at a time; ownership transfers at Swap points.
type State struct {
	id     string
	parent *State

	logger  LookupLogger
	emitter *lifecycle.Emitter

	mu        sync.Mutex
	top       *Frame
	lockGoid  int64
	lockCount int
}

// StateOption configures a state at construction.
type StateOption func(*State)

// WithLookupLogger attaches a lookup logger to the state.
func WithLookupLogger(logger LookupLogger) StateOption {
	return func(st *State) {
		if logger == nil {
			st.logger = noopLookupLogger{}
			return
		}
		st.logger = logger
	}
}

// WithLifecycleEmitter attaches a lifecycle emitter; frame entry/exit, swaps,
// and binding freezes are reported through it.
func WithLifecycleEmitter(emitter *lifecycle.Emitter) StateOption {
	return func(st *State) {
		st.emitter = emitter
	}
}

// NewState constructs an isolated state with a single empty root frame. Its
// parent is the distinguished root state.
func NewState(opts ...StateOption) *State {
	st := &State{
		id:     uuid.NewString(),
		parent: RootState(),
		logger: noopLookupLogger{},
		top:    newFrame(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(st)
		}
	}
	return st
}

var (
	rootOnce  sync.Once
	rootState *State
)

// RootState returns the distinguished root of the state hierarchy. Lazily
// created task states report it as their parent.
func RootState() *State {
	rootOnce.Do(func() {
		rootState = &State{
			id:     uuid.NewString(),
			logger: noopLookupLogger{},
			top:    newFrame(nil),
		}
		rootState.parent = rootState
	})
	return rootState
}

// ID returns the state's stable identifier.
func (st *State) ID() string { return st.id }

// Parent returns the state this one descends from. The root state is its own
// parent.
func (st *State) Parent() *State { return st.parent }

// Top returns the state's current top frame.
func (st *State) Top() *Frame {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.top
}

// Read resolves key in this state: the nearest frame providing an input wins,
// the computation is memoized where the input lives, and service keys are
// first redirected through the replacement table.
func (st *State) Read(key *Key) (any, error) {
	value, _, err := st.resolve(key, nil)
	return value, err
}

// ReadWithTrace resolves key while recording which frames participated.
func (st *State) ReadWithTrace(key *Key) (any, Trace, error) {
	trace := &Trace{Key: key.String(), StateID: st.id}
	value, _, err := st.resolve(key, trace)
	return value, *trace, err
}

// Write installs value as key's input in the top frame. Writes never descend
// into parent frames. Until the key is frozen in that frame (a read whose
// input lives there) the last write wins; afterwards only an equal value is
// accepted. A read served from a parent frame or from the declared default
// does not freeze the top frame, so a later unequal write there is accepted.
func (st *State) Write(key *Key, value any) error {
	start := time.Now()
	top := st.Top()
	err := top.writeInput(key, value)
	st.logger.LogLookup(LookupEvent{
		Op:       "write",
		Key:      key,
		StateID:  st.id,
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

// resolve implements the read path of the core. trace is optional.
func (st *State) resolve(key *Key, trace *Trace) (any, *Frame, error) {
	start := time.Now()
	top := st.Top()

	canonical := key
	if key.kind != KindSetting {
		resolved, err := st.canonicalKey(top, key)
		if err != nil {
			st.logger.LogLookup(LookupEvent{Op: "read", Key: key, StateID: st.id, Duration: time.Since(start), Err: err})
			return nil, nil, err
		}
		canonical = resolved
		if trace != nil && canonical != key {
			trace.Canonical = canonical.String()
		}
	}

	var target *Frame
	depth := 0
	for f := top; f != nil; f = f.parent {
		input, ok := f.lookupInput(canonical)
		if trace != nil {
			_, fromComputed := f.lookupComputed(canonical)
			entry := Provenance{FrameID: f.id, Depth: depth, HasInput: ok, FromComputed: fromComputed}
			if ok {
				entry.Value = input
			}
			trace.Frames = append(trace.Frames, entry)
		}
		if ok {
			target = f
			break
		}
		depth++
	}

	var input any
	if target == nil {
		if !canonical.hasDefault {
			err := &MissingBindingError{Key: canonical}
			st.logger.LogLookup(LookupEvent{Op: "read", Key: key, Canonical: canonical, StateID: st.id, Duration: time.Since(start), Err: err})
			return nil, nil, err
		}
		target = top.rootOf()
		input = canonical.defaultInput
		if trace != nil {
			trace.Default = true
		}
	} else {
		if out, ok := target.lookupComputed(canonical); ok {
			st.logger.LogLookup(LookupEvent{
				Op:           "read",
				Key:          key,
				Canonical:    canonical,
				StateID:      st.id,
				FrameDepth:   depth,
				FromComputed: true,
				Duration:     time.Since(start),
			})
			return out, target, nil
		}
		input, _ = target.lookupInput(canonical)
	}

	out, err := canonical.produce(input)
	if err != nil {
		// The frame keeps no computed entry, so the next read retries.
		werr := &TransformError{Key: canonical, Err: err}
		st.logger.LogLookup(LookupEvent{Op: "read", Key: key, Canonical: canonical, StateID: st.id, FrameDepth: depth, Duration: time.Since(start), Err: werr})
		return nil, nil, werr
	}

	target.freeze(canonical, input, out)
	st.emit(lifecycle.BuildBindingFrozenEvent(lifecycle.EventInput{
		StateID: st.id,
		FrameID: target.id,
		Key:     canonical.name,
		KeyKind: canonical.kind.String(),
	}))
	st.logger.LogLookup(LookupEvent{
		Op:         "read",
		Key:        key,
		Canonical:  canonical,
		StateID:    st.id,
		FrameDepth: depth,
		Duration:   time.Since(start),
	})
	return out, target, nil
}

// canonicalKey follows replacement redirections from the top frame downward,
// restarting the walk after every hit, until the current key maps nowhere.
// Each requested key is recorded against the top frame so its redirection can
// no longer change there. Cycles surface as DynamicRuleError.
func (st *State) canonicalKey(top *Frame, key *Key) (*Key, error) {
	seen := map[*Key]struct{}{key: {}}
	current := key
	top.markObserved(current)

	for {
		redirected := false
		for f := top; f != nil; f = f.parent {
			to, ok := f.replacement(current)
			if !ok {
				continue
			}
			if _, dup := seen[to]; dup {
				return nil, &DynamicRuleError{Key: key, Reason: "replacement cycle detected"}
			}
			seen[to] = struct{}{}
			current = to
			top.markObserved(current)
			redirected = true
			break
		}
		if !redirected {
			return current, nil
		}
	}
}

// pushNew creates an empty child of the current top and installs it.
func (st *State) pushNew() *Frame {
	st.mu.Lock()
	defer st.mu.Unlock()
	frame := newFrame(st.top)
	st.top = frame
	return frame
}

// pop restores the parent of frame as the top. Guards must exit in LIFO
// order; popping anything but the current top is a protocol violation.
func (st *State) pop(frame *Frame) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.top != frame {
		return &DynamicRuleError{Reason: "scope guard exited out of LIFO order"}
	}
	st.top = frame.parent
	return nil
}

// lockToTask pins the state to the given goroutine so a Swap from another
// task fails until the matching unlock. Reentrant for the owning task.
func (st *State) lockToTask(goid int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lockCount > 0 && st.lockGoid != goid {
		return &DynamicRuleError{Reason: "state already locked to another task"}
	}
	st.lockGoid = goid
	st.lockCount++
	return nil
}

func (st *State) unlockTask(goid int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lockCount == 0 || st.lockGoid != goid {
		return
	}
	st.lockCount--
	if st.lockCount == 0 {
		st.lockGoid = 0
	}
}

func (st *State) lockedByOther(goid int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lockCount > 0 && st.lockGoid != goid
}

func (st *State) emit(event lifecycle.Event) {
	if st.emitter == nil {
		return
	}
	_ = st.emitter.Emit(context.Background(), event)
}

// Snapshot pins the state's current frame chain. Frames are append-only and
// reference their parents, so the handle is a single top-frame reference.
type Snapshot struct {
	id     string
	top    *Frame
	origin *State
}

// ID returns the snapshot's identifier, usable for audit trails.
func (s Snapshot) ID() string { return s.id }

// Snapshot captures the state's current frame chain.
func (st *State) Snapshot() Snapshot {
	return Snapshot{id: uuid.NewString(), top: st.Top(), origin: st}
}
