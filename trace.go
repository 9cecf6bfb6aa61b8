package contextual

import "encoding/json"

// Trace captures provenance for a single key lookup: every frame visited on
// the walk from top to root and where the effective value came from.
type Trace struct {
	Key       string       `json:"key"`
	Canonical string       `json:"canonical,omitempty"`
	StateID   string       `json:"state_id"`
	Default   bool         `json:"default,omitempty"`
	Frames    []Provenance `json:"frames"`
}

// Provenance details how one frame participated in a traced lookup.
type Provenance struct {
	FrameID      string `json:"frame_id"`
	Depth        int    `json:"depth"`
	HasInput     bool   `json:"has_input"`
	FromComputed bool   `json:"from_computed"`
	Value        any    `json:"value,omitempty"`
}

// ToJSON serialises the trace for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload previously produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
