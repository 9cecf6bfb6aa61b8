package contextual

import "time"

// LookupEvent describes a single read or write dispatched through a state.
type LookupEvent struct {
	Op           string
	Key          *Key
	Canonical    *Key
	StateID      string
	FrameDepth   int
	FromComputed bool
	Duration     time.Duration
	Err          error
}

// LookupLogger records lookup events.
type LookupLogger interface {
	LogLookup(LookupEvent)
}

// LookupLoggerFunc adapts a function to LookupLogger.
type LookupLoggerFunc func(LookupEvent)

// LogLookup implements LookupLogger.
func (f LookupLoggerFunc) LogLookup(event LookupEvent) {
	if f != nil {
		f(event)
	}
}

type noopLookupLogger struct{}

func (noopLookupLogger) LogLookup(LookupEvent) {}
