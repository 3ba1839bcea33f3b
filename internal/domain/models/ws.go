package models

import "encoding/json"

// Websocket message types. Client to server.
const (
	WSSubscribe    = "subscribe"
	WSUnsubscribe  = "unsubscribe"
	WSSubscribeAll = "subscribe_all"
	WSGetPrice     = "get_price"
	WSPing         = "ping"
)

// Server to client.
const (
	WSSnapshot       = "snapshot"
	WSPrice          = "price"
	WSSubscribed     = "subscribed"
	WSPong           = "pong"
	WSAlertTriggered = "alert_triggered"
	WSError          = "error"
)

// ClientMessage is the envelope for inbound websocket messages.
type ClientMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
	Symbol  string   `json:"symbol,omitempty"`
}

// ServerMessage is the envelope for outbound websocket messages. Payloads
// are pre-marshaled so the hub serializes each broadcast exactly once.
type ServerMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`

	// Set for "subscribed" acknowledgements.
	Symbols interface{} `json:"symbols,omitempty"`
	// Set for "error" replies.
	Message string `json:"message,omitempty"`
}

// NewServerMessage marshals data into a ServerMessage of the given type.
func NewServerMessage(msgType string, data interface{}) (ServerMessage, error) {
	if data == nil {
		return ServerMessage{Type: msgType}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Type: msgType, Data: raw}, nil
}
