// File: internal/model/event.go
// Brief: Live events pushed by the event collaborator.

package model

// LiveEvent is a single pushed activity event. Details is free text and is
// the only field the event classifier looks at.
type LiveEvent struct {
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
}

// UnmarshalJSON decodes an event leniently: camelCase keys are accepted and
// numeric timestamps are kept in their textual form. It never fails.
func (e *LiveEvent) UnmarshalJSON(data []byte) error {
	*e = LiveEvent{}
	fields, ok := decodeObject(data)
	if !ok {
		return nil
	}
	e.ID = stringField(fields, "id")
	e.EventType = stringField(fields, "event_type", "eventType", "type")
	e.Details = stringField(fields, "details", "detail", "message")
	e.Timestamp = timestampFromValue(fields["timestamp"]).Raw()
	return nil
}

// When parses the event timestamp with the same rules as scan records.
func (e LiveEvent) When() Timestamp {
	return TextTimestamp(e.Timestamp)
}
