// Package ws serves the client event protocol over WebSocket.
//
// Every frame is a JSON text message {"event", "id"?, "data"?}. A client
// frame carrying an id is answered with {"event": "ack", "id", "data"}.
package ws

import "encoding/json"

// Frame event names produced by the gateway itself.
const (
	EventAck      = "ack"
	eventErrorMsg = "errorMsg"
)

// inFrame is a client-to-server frame.
type inFrame struct {
	Event string          `json:"event"`
	ID    *uint64         `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outFrame is a server-to-client frame.
type outFrame struct {
	Event string  `json:"event"`
	ID    *uint64 `json:"id,omitempty"`
	Data  any     `json:"data"`
}

// ackData is queued on a connection's outbox for an acknowledgement.
type ackData struct {
	id      uint64
	payload any
}
