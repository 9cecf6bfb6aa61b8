package lifecycle

import "time"

// Verbs emitted by the context core.
const (
	VerbFrameEntered  = "frame.entered"
	VerbFrameExited   = "frame.exited"
	VerbStateSwapped  = "state.swapped"
	VerbBindingFrozen = "binding.frozen"
)

// EventInput carries the fields shared by the lifecycle event builders.
type EventInput struct {
	StateID    string
	FrameID    string
	Key        string
	KeyKind    string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildFrameEnteredEvent describes a child frame being pushed onto a state.
func BuildFrameEnteredEvent(input EventInput) Event {
	return buildEvent(VerbFrameEntered, input)
}

// BuildFrameExitedEvent describes a frame being popped; resource subsystems
// treat this as their commit/rollback notification point.
func BuildFrameExitedEvent(input EventInput) Event {
	return buildEvent(VerbFrameExited, input)
}

// BuildStateSwappedEvent describes a task switching to a different state.
func BuildStateSwappedEvent(input EventInput) Event {
	return buildEvent(VerbStateSwapped, input)
}

// BuildBindingFrozenEvent describes a binding being memoized into a frame.
func BuildBindingFrozenEvent(input EventInput) Event {
	return buildEvent(VerbBindingFrozen, input)
}

func buildEvent(verb string, input EventInput) Event {
	return NormalizeEvent(Event{
		Verb:       verb,
		StateID:    input.StateID,
		FrameID:    input.FrameID,
		Key:        input.Key,
		KeyKind:    input.KeyKind,
		Channel:    input.Channel,
		Metadata:   input.Metadata,
		OccurredAt: input.OccurredAt,
	})
}
