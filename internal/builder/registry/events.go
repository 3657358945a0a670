package registry

import (
	"encoding/json"
	"strings"
)

// EventKind identifies what a push progress message carries
type EventKind int

const (
	// StatusEvent is a progress update; identical consecutive statuses are coalesced
	StatusEvent EventKind = iota
	// ErrorEvent marks the push as failed
	ErrorEvent
	// UnknownEvent is anything else the engine sent
	UnknownEvent
)

func (k EventKind) String() string {
	switch k {
	case StatusEvent:
		return "status"
	case ErrorEvent:
		return "error"
	default:
		return "unknown"
	}
}

// PushEvent is one decoded push progress message
type PushEvent struct {
	Kind   EventKind
	Status string
	Error  string
	Raw    string
}

// DecodePushEvent classifies a raw engine message. An "error" key wins over
// "status" so a failure is never reported as progress.
func DecodePushEvent(raw json.RawMessage) PushEvent {
	event := PushEvent{
		Kind: UnknownEvent,
		Raw:  strings.TrimSpace(string(raw)),
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return event
	}

	if rawErr, ok := fields["error"]; ok {
		var text string
		if err := json.Unmarshal(rawErr, &text); err == nil {
			event.Kind = ErrorEvent
			event.Error = text
			return event
		}
	}

	if rawStatus, ok := fields["status"]; ok {
		var text string
		if err := json.Unmarshal(rawStatus, &text); err == nil {
			event.Kind = StatusEvent
			event.Status = text
			return event
		}
	}

	return event
}
