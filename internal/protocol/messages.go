package protocol //handles communication protocol between client and server
// WebSocket message types and payloads
import (
	"encoding/json"

	"github.com/yourusername/roomlog/internal/actionlog"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Client -> Server
	MsgJoinRoom   MessageType = "join_room"
	MsgLeaveRoom  MessageType = "leave_room"
	MsgRoomChat   MessageType = "room_chat"
	MsgRequestLog MessageType = "request_log" // ask for the room's log, raw or grouped

	// Server -> Client
	MsgRoomJoined       MessageType = "room_joined" //server confirming
	MsgActionLog        MessageType = "action_log"  // full room history
	MsgGroupedActionLog MessageType = "grouped_action_log"
	MsgActionLogged     MessageType = "action_logged" // one new entry, broadcast to the room
	MsgError            MessageType = "error"
)

// Message is the wrapper for all WebSocket messages
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinRoomPayload is sent when a user wants to join a room
type JoinRoomPayload struct {
	Username string `json:"username"` // Always required
	RoomID   string `json:"room_id"`
}

// RoomJoinedPayload is sent when a user successfully joins a room
type RoomJoinedPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// RoomChatPayload carries a chat message for the sender's current room
type RoomChatPayload struct {
	Message string `json:"message"`
}

// RequestLogPayload asks for the current room's log
type RequestLogPayload struct {
	Grouped bool `json:"grouped"`
	Limit   int  `json:"limit,omitempty"`
}

// ActionLogPayload is a room's history, oldest first
type ActionLogPayload struct {
	RoomID  string               `json:"room_id"`
	Entries []actionlog.LogEntry `json:"entries"`
}

// GroupedActionLogPayload is a room's history after grouping
type GroupedActionLogPayload struct {
	RoomID string                      `json:"room_id"`
	Groups []actionlog.GroupedLogEntry `json:"groups"`
}

// ActionLoggedPayload is one entry just appended to the room's log
type ActionLoggedPayload struct {
	Entry actionlog.LogEntry `json:"entry"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// EncodeMessage encodes a message with its payload
func EncodeMessage(msgType MessageType, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	msg := Message{
		Type:    msgType,
		Payload: payloadBytes,
	}

	return json.Marshal(msg)
}

// DecodeMessage decodes a message
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// DecodePayload unmarshals msg's payload into v
func DecodePayload(msg *Message, v interface{}) error {
	if len(msg.Payload) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(msg.Payload, v)
}
