package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:     " frame.entered ",
		StateID:  " state-1 ",
		FrameID:  " frame-1 ",
		Key:      " speed ",
		KeyKind:  " setting ",
		Channel:  " context ",
		Metadata: meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "frame.entered" || got.StateID != "state-1" || got.FrameID != "frame-1" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.Key != "speed" || got.KeyKind != "setting" || got.Channel != "context" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifySkipsEventsWithoutSubject(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	if err := hooks.Notify(context.Background(), Event{Verb: "frame.entered"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(capture.Recorded()) != 0 {
		t.Fatalf("expected no delivery without a subject, got %d", len(capture.Recorded()))
	}

	if err := hooks.Notify(context.Background(), Event{Verb: "frame.entered", FrameID: "frame-1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(capture.Recorded()) != 1 {
		t.Fatalf("expected one delivery, got %d", len(capture.Recorded()))
	}
}

func TestHooksNotifyJoinsFailures(t *testing.T) {
	boom := errors.New("sink unavailable")
	failing := &CaptureHook{Err: boom}
	capture := &CaptureHook{}
	hooks := Hooks{failing, capture}

	err := hooks.Notify(context.Background(), Event{Verb: "frame.exited", FrameID: "frame-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined failure, got %v", err)
	}
	if len(capture.Recorded()) != 1 {
		t.Fatal("later hooks must still be notified")
	}
}

func TestHookFuncNil(t *testing.T) {
	var fn HookFunc
	if err := fn.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("nil HookFunc must be a no-op, got %v", err)
	}
}

func TestEmitterAppliesDefaultChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture})

	if !emitter.Enabled() {
		t.Fatal("emitter with hooks must be enabled")
	}
	if err := emitter.Emit(context.Background(), Event{Verb: VerbStateSwapped, StateID: "state-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Recorded()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Channel != "context" {
		t.Fatalf("expected default channel, got %q", events[0].Channel)
	}

	custom := NewEmitter(Hooks{capture}, WithChannel("audit"))
	if err := custom.Emit(context.Background(), Event{Verb: VerbStateSwapped, StateID: "state-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events = capture.Recorded()
	if events[len(events)-1].Channel != "audit" {
		t.Fatalf("expected custom channel, got %q", events[len(events)-1].Channel)
	}
}

func TestEmitterVerbSelection(t *testing.T) {
	capture := &CaptureHook{}

	// Binding freezes are dropped unless opted in.
	emitter := NewEmitter(Hooks{capture})
	if err := emitter.Emit(context.Background(), Event{Verb: VerbBindingFrozen, FrameID: "frame-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Recorded()) != 0 {
		t.Fatal("binding.frozen must be dropped by default")
	}

	verbose := NewEmitter(Hooks{capture}, WithBindingEvents())
	if err := verbose.Emit(context.Background(), Event{Verb: VerbBindingFrozen, FrameID: "frame-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got := capture.CountByVerb()[VerbBindingFrozen]; got != 1 {
		t.Fatalf("expected one binding.frozen delivery, got %d", got)
	}

	exitsOnly := NewEmitter(Hooks{capture}, WithVerbs(VerbFrameExited))
	if err := exitsOnly.Emit(context.Background(), Event{Verb: VerbFrameEntered, FrameID: "frame-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got := capture.CountByVerb()[VerbFrameEntered]; got != 0 {
		t.Fatalf("frame.entered must be dropped by an exits-only emitter, got %d", got)
	}
}

func TestEmitterWithoutHooks(t *testing.T) {
	empty := NewEmitter(nil)
	if empty.Enabled() {
		t.Fatal("emitter without hooks must report disabled")
	}
	if err := empty.Emit(context.Background(), Event{Verb: VerbStateSwapped, StateID: "s"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	sparse := NewEmitter(Hooks{nil, nil})
	if sparse.Enabled() {
		t.Fatal("nil hooks must be dropped at construction")
	}
}

func TestEventBuilders(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	input := EventInput{
		StateID:    "state-1",
		FrameID:    "frame-1",
		Key:        "speed",
		KeyKind:    "setting",
		OccurredAt: now,
	}

	cases := []struct {
		verb  string
		event Event
	}{
		{VerbFrameEntered, BuildFrameEnteredEvent(input)},
		{VerbFrameExited, BuildFrameExitedEvent(input)},
		{VerbStateSwapped, BuildStateSwappedEvent(input)},
		{VerbBindingFrozen, BuildBindingFrozenEvent(input)},
	}
	for _, tc := range cases {
		if tc.event.Verb != tc.verb {
			t.Fatalf("expected verb %q, got %q", tc.verb, tc.event.Verb)
		}
		if tc.event.FrameID != "frame-1" || tc.event.StateID != "state-1" {
			t.Fatalf("subject lost for %q: %+v", tc.verb, tc.event)
		}
		if !tc.event.OccurredAt.Equal(now) {
			t.Fatalf("timestamp lost for %q: %v", tc.verb, tc.event.OccurredAt)
		}
	}
}
