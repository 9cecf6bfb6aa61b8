package usersink

import (
	"context"
	"strings"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/tomjoy/contextual/pkg/lifecycle"
)

// Hook adapts context lifecycle events to a go-users ActivitySink, so frame
// entries, exits, and swaps show up in an application's activity feed. Actor
// and tenant identities come from the embedding application, not the core.
type Hook struct {
	Sink     usertypes.ActivitySink
	ActorID  string
	UserID   string
	TenantID string
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event lifecycle.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := lifecycle.NormalizeEvent(event)
	if normalized.Verb == "" {
		return nil
	}
	objectType, objectID := subject(normalized)
	if objectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(h.ActorID),
		UserID:     parseUUID(h.UserID),
		TenantID:   parseUUID(h.TenantID),
		Verb:       normalized.Verb,
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    normalized.Channel,
		Data:       cloneMap(normalized.Metadata),
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	if normalized.Key != "" {
		if record.Data == nil {
			record.Data = map[string]any{}
		}
		record.Data["key"] = normalized.Key
		record.Data["key_kind"] = normalized.KeyKind
	}
	if normalized.StateID != "" && objectID != normalized.StateID {
		if record.Data == nil {
			record.Data = map[string]any{}
		}
		record.Data["state_id"] = normalized.StateID
	}

	return h.Sink.Log(ctx, record)
}

// subject picks the record's object: the frame when the event names one, the
// state otherwise.
func subject(event lifecycle.Event) (string, string) {
	if event.FrameID != "" {
		return "context.frame", event.FrameID
	}
	if event.StateID != "" {
		return "context.state", event.StateID
	}
	return "", ""
}

func parseUUID(input string) uuid.UUID {
	value := strings.TrimSpace(input)
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
