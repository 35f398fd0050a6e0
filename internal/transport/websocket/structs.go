package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/ticsync-backend/internal/entity"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CreatePayload struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

type JoinPayload struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Mode string `json:"mode,omitempty"`
}

type MovePayload struct {
	Key      string `json:"key"`
	Position int    `json:"position"`
	Symbol   string `json:"symbol"`
}

type SeatPayload struct {
	Key    string `json:"key"`
	Symbol string `json:"symbol"`
}

type ConnectPayload struct {
	ClientID string `json:"clientId,omitempty"`
}

// SessionPayload is pushed after every accepted transition and on every
// snapshot delivered by the sync stream.
type SessionPayload struct {
	ClientID string          `json:"clientId,omitempty"`
	Seat     string          `json:"seat,omitempty"`
	Session  *entity.Session `json:"session,omitempty"`
}

type RoomsPayload struct {
	Rooms []*entity.Session `json:"rooms"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
