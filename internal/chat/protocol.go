package chat

import (
	"encoding/json"
	"time"
)

// Envelope is the wire frame for every hub message, inbound and outbound.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client-to-server events.
const (
	EventIdentify    = "identify"
	EventRoomJoin    = "room:join"
	EventRoomLeave   = "room:leave"
	EventMessageSend = "message:send"
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"
	EventMessageRead = "message:read"
)

// Server-to-client events.
const (
	EventMessageReceive = "message:receive"
	EventUsersOnline    = "users:online"
	EventUserJoined     = "user:joined"
	EventUserLeft       = "user:left"
	EventTypingUser     = "typing:user"
	EventMessagesRead   = "messages:read"
	EventMessageError   = "message:error"
)

// IdentifyPayload announces the connection is ready. The fields are
// informational only; identity comes from the token presented at upgrade.
type IdentifyPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// RoomPayload addresses a single room. The userId the client sends is ignored;
// the connection's authenticated identity is used instead.
type RoomPayload struct {
	Room string `json:"roomId"`
}

// SendMessagePayload carries an outbound chat message.
type SendMessagePayload struct {
	Room    string `json:"roomId"`
	Message string `json:"message"`
}

// PresencePayload reports a user entering or leaving a room.
type PresencePayload struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Room      string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingPayload reports typing state inside a room.
type TypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorPayload reports a per-message failure back to the sender only.
type ErrorPayload struct {
	Message string `json:"error"`
}

func mustEnvelope(event string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	frame, _ := json.Marshal(Envelope{Event: event, Data: data})
	return frame
}
