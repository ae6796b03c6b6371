package ws

import "encoding/json"

// Event is the wire envelope for both directions. Inbound data stays raw
// until the matching handler decodes it.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// ErrorPayload is the uniform client-facing error event emitted when a
// handler fails. Happy-path event names are unaffected.
type ErrorPayload struct {
	Event   string `json:"event"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	ErrKindNotFound   = "not_found"
	ErrKindBadRequest = "bad_request"
	ErrKindInternal   = "internal"
)

type outboundEvent struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

func encodeEvent(name string, data any) ([]byte, error) {
	return json.Marshal(outboundEvent{Name: name, Data: data})
}
