package lifecycle

import (
	"context"
	"strings"
)

// Emitter delivers context lifecycle events to hooks. Frame and state
// transitions are delivered by default; binding.frozen is opt-in because it
// fires once per binding per frame and would dominate the feed of any
// resource subsystem that only cares about entry and exit.
type Emitter struct {
	hooks   Hooks
	channel string
	verbs   map[string]struct{}
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithChannel sets the channel stamped on events that carry none.
func WithChannel(channel string) EmitterOption {
	return func(e *Emitter) {
		if trimmed := strings.TrimSpace(channel); trimmed != "" {
			e.channel = trimmed
		}
	}
}

// WithVerbs replaces the delivered verb set. An empty call is ignored.
func WithVerbs(verbs ...string) EmitterOption {
	return func(e *Emitter) {
		if len(verbs) == 0 {
			return
		}
		selected := make(map[string]struct{}, len(verbs))
		for _, verb := range verbs {
			if trimmed := strings.TrimSpace(verb); trimmed != "" {
				selected[trimmed] = struct{}{}
			}
		}
		if len(selected) > 0 {
			e.verbs = selected
		}
	}
}

// WithBindingEvents adds binding.frozen to the delivered verbs.
func WithBindingEvents() EmitterOption {
	return func(e *Emitter) {
		e.verbs[VerbBindingFrozen] = struct{}{}
	}
}

// NewEmitter constructs an emitter over hooks. Nil hooks are dropped; an
// emitter without hooks delivers nothing.
func NewEmitter(hooks Hooks, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		channel: "context",
		verbs: map[string]struct{}{
			VerbFrameEntered: {},
			VerbFrameExited:  {},
			VerbStateSwapped: {},
		},
	}
	for _, hook := range hooks {
		if hook != nil {
			e.hooks = append(e.hooks, hook)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Enabled reports whether the emitter has anyone to deliver to.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit delivers the event when its verb is selected, stamping the default
// channel on events that carry none. Unselected verbs are dropped silently.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if _, selected := e.verbs[strings.TrimSpace(event.Verb)]; !selected {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
