package contextual

import (
	"context"
	"sync"

	"github.com/tomjoy/contextual/pkg/lifecycle"
)

// GuardOption configures scope guard behaviour.
type GuardOption func(*guardConfig)

type guardConfig struct {
	taskLock bool
	emitter  *lifecycle.Emitter
}

// WithTaskLock pins the guarded state to the entering task for the guard's
// lifetime: Swap from any other task fails until exit. Recommended for debug
// builds; off by default.
func WithTaskLock() GuardOption {
	return func(cfg *guardConfig) {
		cfg.taskLock = true
	}
}

// WithGuardEmitter overrides the lifecycle emitter used for this guard's
// entry and exit events.
func WithGuardEmitter(emitter *lifecycle.Emitter) GuardOption {
	return func(cfg *guardConfig) {
		cfg.emitter = emitter
	}
}

type guardKind int

const (
	guardChild guardKind = iota
	guardEmpty
	guardSwap
)

// Guard scopes the acquisition of a frame or state. Exit runs the paired
// operation exactly once on every path; callers defer it immediately after
// entering.
type Guard struct {
	kind    guardKind
	state   *State
	frame   *Frame
	prev    *State
	back    Snapshot
	goid    int64
	locked  bool
	emitter *lifecycle.Emitter

	mu     sync.Mutex
	exited bool
}

func applyGuardOptions(opts []GuardOption) guardConfig {
	cfg := guardConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Enter pushes a fresh empty child frame onto the calling task's current
// state. Bindings written inside it shadow the parent until exit.
func Enter(opts ...GuardOption) *Guard {
	cfg := applyGuardOptions(opts)
	st := Current()
	g := &Guard{
		kind:    guardChild,
		state:   st,
		goid:    goid(),
		emitter: cfg.emitter,
	}
	if g.emitter == nil {
		g.emitter = st.emitter
	}
	if cfg.taskLock {
		if err := st.lockToTask(g.goid); err == nil {
			g.locked = true
		}
	}
	g.frame = st.pushNew()
	g.notify(lifecycle.BuildFrameEnteredEvent(lifecycle.EventInput{
		StateID: st.id,
		FrameID: g.frame.id,
	}))
	return g
}

// EnterEmpty swaps the calling task onto a brand-new state whose root frame
// has no parent. Nothing is inherited; used for test isolation.
func EnterEmpty(opts ...GuardOption) *Guard {
	cfg := applyGuardOptions(opts)
	st := NewState(lazyStateOptions()...)
	if cfg.emitter != nil {
		st.emitter = cfg.emitter
	}
	prev := SetCurrent(st)
	g := &Guard{
		kind:    guardEmpty,
		state:   st,
		frame:   st.Top(),
		prev:    prev,
		goid:    goid(),
		emitter: st.emitter,
	}
	if cfg.taskLock {
		if err := st.lockToTask(g.goid); err == nil {
			g.locked = true
		}
	}
	g.notify(lifecycle.BuildFrameEnteredEvent(lifecycle.EventInput{
		StateID: st.id,
		FrameID: g.frame.id,
	}))
	return g
}

// EnterSwap restores the snapshot for the guard's lifetime and swaps back on
// exit. It is the scoped form of Capture/Swap for cooperative runtimes.
func EnterSwap(snap Snapshot, opts ...GuardOption) (*Guard, error) {
	cfg := applyGuardOptions(opts)
	back, err := Swap(snap)
	if err != nil {
		return nil, err
	}
	st := Current()
	g := &Guard{
		kind:    guardSwap,
		state:   st,
		back:    back,
		goid:    goid(),
		emitter: cfg.emitter,
	}
	if g.emitter == nil {
		g.emitter = st.emitter
	}
	if cfg.taskLock {
		if err := st.lockToTask(g.goid); err == nil {
			g.locked = true
		}
	}
	return g, nil
}

// Exit runs the guard's paired operation: pop for Enter, restore for
// EnterEmpty and EnterSwap. A second Exit is a no-op returning nil. Only
// Enter guards check LIFO order: exiting one whose frame is not the current
// top fails with DynamicRuleError and leaves the state untouched. EnterEmpty
// and EnterSwap guards restore without an order check.
func (g *Guard) Exit() error {
	g.mu.Lock()
	if g.exited {
		g.mu.Unlock()
		return nil
	}

	switch g.kind {
	case guardChild:
		if err := g.state.pop(g.frame); err != nil {
			g.mu.Unlock()
			return err
		}
	case guardEmpty:
		SetCurrent(g.prev)
	case guardSwap:
		if _, err := Swap(g.back); err != nil {
			g.mu.Unlock()
			return err
		}
	}
	g.exited = true
	g.mu.Unlock()

	if g.locked {
		g.state.unlockTask(g.goid)
	}
	if g.kind != guardSwap {
		g.notify(lifecycle.BuildFrameExitedEvent(lifecycle.EventInput{
			StateID: g.state.id,
			FrameID: g.frame.id,
		}))
	}
	return nil
}

// State returns the state the guard operates on.
func (g *Guard) State() *State { return g.state }

// Frame returns the frame the guard pushed, nil for swap guards.
func (g *Guard) Frame() *Frame { return g.frame }

func (g *Guard) notify(event lifecycle.Event) {
	if g.emitter == nil {
		return
	}
	_ = g.emitter.Emit(context.Background(), event)
}
