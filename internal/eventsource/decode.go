// File: internal/eventsource/decode.go
// Brief: Live event decoding shared by the NATS subscriber and the HTTP ingest route.

package eventsource

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/leakwatch/internal/model"
)

// ErrInvalidEvent is returned for payloads that are not a JSON object.
var ErrInvalidEvent = errors.New("invalid live event")

// Decode parses one live event. Missing fields are tolerated; an event
// without an id is assigned a random one.
func Decode(data []byte) (model.LiveEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return model.LiveEvent{}, ErrInvalidEvent
	}
	var ev model.LiveEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return model.LiveEvent{}, errors.Wrap(ErrInvalidEvent, err.Error())
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	return ev, nil
}
