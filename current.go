package contextual

import (
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tomjoy/contextual/pkg/lifecycle"
)

// goid returns the current goroutine ID. The current-state registry keys its
// entries by it so each goroutine owns exactly one active state.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(idField, 10, 64)
	return id
}

// currentStates maps logical-task identity (goroutine ID) to its active
// state. It is the only globally mutable structure in the core.
var currentStates sync.Map

var defaultStateOptions struct {
	mu   sync.RWMutex
	opts []StateOption
}

// ConfigureStates sets the options applied to states the registry creates
// lazily, such as a lookup logger or a lifecycle emitter.
func ConfigureStates(opts ...StateOption) {
	defaultStateOptions.mu.Lock()
	defer defaultStateOptions.mu.Unlock()
	defaultStateOptions.opts = append([]StateOption(nil), opts...)
}

func lazyStateOptions() []StateOption {
	defaultStateOptions.mu.RLock()
	defer defaultStateOptions.mu.RUnlock()
	return defaultStateOptions.opts
}

// Current returns the calling task's active state, creating a fresh
// single-frame state on first use.
func Current() *State {
	id := goid()
	if loaded, ok := currentStates.Load(id); ok {
		return loaded.(*State)
	}
	st := NewState(lazyStateOptions()...)
	actual, _ := currentStates.LoadOrStore(id, st)
	return actual.(*State)
}

// SetCurrent installs st as the calling task's active state and returns the
// previous one (nil when the task had none).
func SetCurrent(st *State) *State {
	id := goid()
	var prev *State
	if loaded, ok := currentStates.Load(id); ok {
		prev = loaded.(*State)
	}
	if st == nil {
		currentStates.Delete(id)
		return prev
	}
	currentStates.Store(id, st)
	return prev
}

// Release drops the calling task's registry entry. Long-lived worker pools
// call it when a task finishes so states do not accumulate across reused
// goroutines.
func Release() {
	currentStates.Delete(goid())
}

// Capture snapshots the calling task's current state.
func Capture() Snapshot {
	return Current().Snapshot()
}

// Swap atomically replaces the calling task's state with one whose top frame
// is the snapshot, returning a snapshot of the previous state for later
// restoration. Swapping in a state locked by another task fails with
// DynamicRuleError.
func Swap(snap Snapshot) (Snapshot, error) {
	id := goid()
	if snap.top == nil {
		return Snapshot{}, &DynamicRuleError{Reason: "swap of a zero snapshot"}
	}
	if snap.origin != nil && snap.origin.lockedByOther(id) {
		return Snapshot{}, &DynamicRuleError{Reason: "restore from wrong task: state is locked"}
	}

	prev := Current()
	prevSnap := prev.Snapshot()

	next := &State{
		id:      uuid.NewString(),
		parent:  prev,
		logger:  prev.logger,
		emitter: prev.emitter,
		top:     snap.top,
	}
	if snap.origin != nil {
		next.parent = snap.origin
	}
	currentStates.Store(id, next)

	next.emit(lifecycle.BuildStateSwappedEvent(lifecycle.EventInput{
		StateID: next.id,
		FrameID: snap.top.id,
		Metadata: map[string]any{
			"snapshot_id": snap.id,
			"previous":    prev.id,
		},
	}))
	return prevSnap, nil
}

// Read resolves key in the calling task's current state.
func Read(key *Key) (any, error) {
	return Current().Read(key)
}

// Write installs value for key in the top frame of the calling task's
// current state.
func Write(key *Key, value any) error {
	return Current().Write(key, value)
}
