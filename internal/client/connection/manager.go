package connection

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/logging"
	"github.com/yourusername/roomlog/internal/protocol"
)

const writeWait = 10 * time.Second

// Manager manages the WebSocket connection to the server
type Manager struct {
	serverURL     string
	conn          *websocket.Conn
	state         *State
	eventCallback func(Event)
	connected     bool
	mu            sync.RWMutex
	writeMu       sync.Mutex
	done          chan struct{}
	logger        *logrus.Entry
}

// NewManager creates a new connection manager. grouper may be nil.
func NewManager(serverURL string, grouper *actionlog.Grouper) *Manager {
	return &Manager{
		serverURL: serverURL,
		state:     NewState(grouper),
		connected: false,
		done:      make(chan struct{}),
		logger:    logging.For("connection"),
	}
}

// OnEvent sets the callback for events. The callback runs on the read
// goroutine and must not block.
func (m *Manager) OnEvent(callback func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCallback = callback
}

// Connect establishes a WebSocket connection to the server
func (m *Manager) Connect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(m.serverURL, nil)
	if err != nil {
		m.sendEvent(DisconnectedEvent{Error: err})
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.connected = true
	// fresh done channel per connection so reconnecting works
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.readPump(conn, m.done)

	m.sendEvent(ConnectedEvent{})
	return nil
}

// Disconnect closes the WebSocket connection
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return
	}
	m.connected = false

	select {
	case <-m.done:
	default:
		close(m.done)
	}

	if m.conn != nil {
		m.writeMu.Lock()
		m.conn.SetWriteDeadline(time.Now().Add(writeWait))
		m.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		m.conn.Close()
	}
}

// IsConnected returns whether the manager is connected
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

//// FROM CLIENT -> SERVER MESSAGES ////

// JoinRoom sends a join room request
func (m *Manager) JoinRoom(roomID, userName string) error {
	return m.sendMessage(protocol.MsgJoinRoom, protocol.JoinRoomPayload{
		RoomID:   roomID,
		Username: userName,
	})
}

// LeaveRoom leaves the current room without disconnecting
func (m *Manager) LeaveRoom() error {
	return m.sendMessage(protocol.MsgLeaveRoom, struct{}{})
}

// SendChat sends a chat message to the current room
func (m *Manager) SendChat(message string) error {
	return m.sendMessage(protocol.MsgRoomChat, protocol.RoomChatPayload{
		Message: message,
	})
}

// RequestLog asks for the current room's log; limit 0 means the server's
// history limit
func (m *Manager) RequestLog(grouped bool, limit int) error {
	return m.sendMessage(protocol.MsgRequestLog, protocol.RequestLogPayload{
		Grouped: grouped,
		Limit:   limit,
	})
}

////////////////////////////////////////////

// State returns the client-side room state
func (m *Manager) State() *State {
	return m.state
}

// sendMessage sends a message to the server
func (m *Manager) sendMessage(msgType protocol.MessageType, payload interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected || m.conn == nil {
		return websocket.ErrCloseSent
	}

	msg, err := protocol.EncodeMessage(msgType, payload)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return m.conn.WriteMessage(websocket.TextMessage, msg)
}

// readPump reads messages from conn until it fails or done is closed
func (m *Manager) readPump(conn *websocket.Conn, done chan struct{}) {
	var readErr error
	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.connected = false
		}
		m.mu.Unlock()
		conn.Close()
		m.sendEvent(DisconnectedEvent{Error: readErr})
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// closed by Disconnect
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					m.logger.WithError(err).Warn("WebSocket error")
					readErr = err
				}
			}
			return
		}

		m.handleMessage(message)
	}
}

// handleMessage processes incoming messages
func (m *Manager) handleMessage(data []byte) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		m.logger.WithError(err).Warn("Error decoding message")
		return
	}

	switch msg.Type {
	case protocol.MsgRoomJoined:
		var payload protocol.RoomJoinedPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			m.logger.WithError(err).Warn("Error unmarshaling room joined")
			return
		}
		m.state.SetRoom(payload.RoomID, payload.UserID)
		m.sendEvent(RoomJoinedEvent{RoomID: payload.RoomID, UserID: payload.UserID})
		m.logger.WithFields(logrus.Fields{
			"room_id": payload.RoomID,
			"user_id": payload.UserID,
		}).Debug("Joined room")

	case protocol.MsgActionLog:
		var payload protocol.ActionLogPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			m.logger.WithError(err).Warn("Error unmarshaling action log")
			return
		}
		if payload.RoomID == m.state.RoomID() {
			m.state.ReplaceLog(payload.Entries)
		}
		m.sendEvent(ActionLogEvent{RoomID: payload.RoomID, Entries: payload.Entries})

	case protocol.MsgActionLogged:
		var payload protocol.ActionLoggedPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			m.logger.WithError(err).Warn("Error unmarshaling logged action")
			return
		}
		if m.state.Append(payload.Entry) {
			m.sendEvent(EntryLoggedEvent{Entry: payload.Entry})
		}

	case protocol.MsgGroupedActionLog:
		var payload protocol.GroupedActionLogPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			m.logger.WithError(err).Warn("Error unmarshaling grouped action log")
			return
		}
		m.sendEvent(GroupedLogEvent{RoomID: payload.RoomID, Groups: payload.Groups})

	case protocol.MsgError:
		var payload protocol.ErrorPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			m.logger.WithError(err).Warn("Error unmarshaling error payload")
			return
		}
		m.sendEvent(ErrorEvent{Code: payload.Code, Message: payload.Message})
		m.logger.WithField("code", payload.Code).Debugf("Server error: %s", payload.Message)

	default:
		m.logger.WithField("type", msg.Type).Debug("Unhandled message type")
	}
}

// sendEvent sends an event to the callback if set
func (m *Manager) sendEvent(event Event) {
	m.mu.RLock()
	callback := m.eventCallback
	m.mu.RUnlock()

	if callback != nil {
		callback(event)
	}
}
