package contextual

import (
	"testing"
)

func TestReadWithTraceProvenance(t *testing.T) {
	iso := EnterEmpty()
	defer iso.Exit()

	speed := NewSetting[int, float64]("trace.speed", toFloat, WithDefault(16))

	child := Enter()
	defer child.Exit()
	if err := speed.Set(48); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, trace, err := speed.GetWithTrace()
	if err != nil {
		t.Fatalf("traced read: %v", err)
	}
	if got != 48.0 {
		t.Fatalf("expected 48.0, got %v", got)
	}
	if len(trace.Frames) == 0 {
		t.Fatal("trace must record visited frames")
	}
	topEntry := trace.Frames[0]
	if !topEntry.HasInput || topEntry.Depth != 0 {
		t.Fatalf("expected the input in the top frame, got %+v", topEntry)
	}
	if trace.Default {
		t.Fatal("value did not come from the default")
	}
}

func TestReadWithTraceDefault(t *testing.T) {
	iso := EnterEmpty()
	defer iso.Exit()

	speed := NewSetting[int, float64]("trace.default.speed", toFloat, WithDefault(16))

	child := Enter()
	defer child.Exit()

	_, trace, err := speed.GetWithTrace()
	if err != nil {
		t.Fatalf("traced read: %v", err)
	}
	if !trace.Default {
		t.Fatal("expected the default to be reported")
	}
	for _, frame := range trace.Frames {
		if frame.HasInput {
			t.Fatalf("no frame should provide an input, got %+v", frame)
		}
	}
}

func TestTraceJSONRoundTrip(t *testing.T) {
	trace := Trace{
		Key:     "setting(trace.json)",
		StateID: "state-1",
		Frames: []Provenance{
			{FrameID: "frame-1", Depth: 0, HasInput: true, Value: 48},
			{FrameID: "frame-0", Depth: 1},
		},
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if decoded.Key != trace.Key || len(decoded.Frames) != 2 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if !decoded.Frames[0].HasInput || decoded.Frames[1].Depth != 1 {
		t.Fatalf("frame payload mismatch: %+v", decoded.Frames)
	}
}
