package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/apperror"
	"github.com/yourusername/roomlog/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second    //time allowed to read the next pong message from client
	pingPeriod     = (pongWait * 9) / 10 //send pings to client with this period. must be less than pongWait
	maxMessageSize = 8192
	storeTimeout   = 5 * time.Second

	// DefaultRoomID is joined when a join request names no room
	DefaultRoomID = "lobby"
)

var upgrader = websocket.Upgrader{ //upgrade HTTP connections to WebSocket connections
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Client represents a WebSocket client
type Client struct {
	ID       string
	UserID   string
	Username string
	Room     *Room // owned by the read pump
	conn     *websocket.Conn
	send     chan []byte
	sendMu   sync.Mutex
	closed   bool
	logger   *logrus.Entry
}

// enqueue queues message without blocking. It reports false when the
// queue is full or closed.
func (c *Client) enqueue(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue once, which ends the write pump
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// HandleWebSocket handles WebSocket connections
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Upgrade error")
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 256),
	}
	client.logger = s.logger.WithField("client_id", client.ID)
	if !s.track(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	s.metrics.ConnectedClients.Inc()

	go client.writePump()
	go client.readPump(s)
}

// readPump pumps messages from the WebSocket connection to the room
func (c *Client) readPump(s *Server) {
	defer func() {
		s.leaveRoom(c)
		s.metrics.ConnectedClients.Dec()
		c.closeSend()
		c.conn.Close()
		s.untrack(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("WebSocket error")
			}
			break
		}

		c.handleMessage(s, message)
	}
}

// writePump pumps messages from the room to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one frame per message; the client decodes frames individually
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply encodes and queues a message for this client only
func (c *Client) reply(msgType protocol.MessageType, payload interface{}) {
	msg, err := protocol.EncodeMessage(msgType, payload)
	if err != nil {
		c.logger.WithError(err).Errorf("Error encoding %s", msgType)
		return
	}
	if !c.enqueue(msg) {
		c.logger.Warnf("Dropped %s for client with full send queue", msgType)
	}
}

// replyError sends err to the client as an error message
func (c *Client) replyError(err error) {
	message := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.reply(protocol.MsgError, protocol.ErrorPayload{
		Code:    apperror.CodeOf(err),
		Message: message,
	})
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(s *Server, data []byte) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		c.logger.WithError(err).Warn("Error decoding message")
		c.replyError(apperror.New(apperror.CodeValidation, "malformed message"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch msg.Type {
	case protocol.MsgJoinRoom:
		var payload protocol.JoinRoomPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			c.logger.WithError(err).Warn("Error unmarshaling join room payload")
			c.replyError(apperror.New(apperror.CodeValidation, "malformed join_room payload"))
			return
		}
		if err := s.joinRoom(ctx, c, payload); err != nil {
			c.replyError(err)
		}

	case protocol.MsgLeaveRoom:
		s.leaveRoom(c)

	case protocol.MsgRoomChat:
		var payload protocol.RoomChatPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			c.logger.WithError(err).Warn("Error unmarshaling room chat payload")
			c.replyError(apperror.New(apperror.CodeValidation, "malformed room_chat payload"))
			return
		}
		if err := s.roomChat(ctx, c, payload.Message); err != nil {
			c.replyError(err)
		}

	case protocol.MsgRequestLog:
		var payload protocol.RequestLogPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			c.replyError(apperror.New(apperror.CodeValidation, "malformed request_log payload"))
			return
		}
		if err := s.sendLog(ctx, c, payload); err != nil {
			c.replyError(err)
		}

	default:
		c.logger.WithField("type", msg.Type).Debug("Unhandled message type")
		c.replyError(apperror.New(apperror.CodeValidation, "unknown message type", string(msg.Type)))
	}
}

// joinRoom moves c into the requested room, sends it the room's history
// and records the arrival
func (s *Server) joinRoom(ctx context.Context, c *Client, payload protocol.JoinRoomPayload) error {
	user, existed, err := s.userManager.GetOrCreateUserByUsername(payload.Username)
	if err != nil {
		return err
	}
	roomID := payload.RoomID
	if roomID == "" {
		roomID = DefaultRoomID
	}

	if c.Room != nil {
		s.leaveRoom(c)
	}

	c.UserID = user.ID
	c.Username = user.Username

	room := s.roomManager.GetOrCreateRoom(roomID)
	if err := s.logManager.Subscribe(ctx, room, c); err != nil {
		return err
	}
	c.Room = room

	if _, err := s.logManager.Record(ctx, roomID, room, actionlog.TypeUserJoined, actionlog.UserPayload{
		UserID:   user.ID,
		Username: user.Username,
	}); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"username":  user.Username,
		"room_id":   roomID,
		"returning": existed,
	}).Info("User joined")
	return nil
}

// leaveRoom records the departure and unregisters c from its room
func (s *Server) leaveRoom(c *Client) {
	room := c.Room
	if room == nil {
		return
	}
	c.Room = nil

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	room.Leave(c)
	if _, err := s.logManager.Record(ctx, room.ID, room, actionlog.TypeUserLeft, actionlog.UserPayload{
		UserID:   c.UserID,
		Username: c.Username,
	}); err != nil {
		c.logger.WithError(err).Error("Failed to record departure")
	}
}

// roomChat records a chat message in c's room
func (s *Server) roomChat(ctx context.Context, c *Client, message string) error {
	if c.Room == nil {
		return apperror.New(apperror.CodeValidation, "join a room before chatting")
	}
	message, err := s.logManager.ValidateMessage(message)
	if err != nil {
		return err
	}
	_, err = s.logManager.Record(ctx, c.Room.ID, c.Room, actionlog.TypeRoomChat, actionlog.UserPayload{
		UserID:   c.UserID,
		Username: c.Username,
		Message:  message,
	})
	return err
}

// sendLog replies with c's room log, raw or grouped
func (s *Server) sendLog(ctx context.Context, c *Client, req protocol.RequestLogPayload) error {
	if c.Room == nil {
		return apperror.New(apperror.CodeValidation, "join a room before requesting its log")
	}
	roomID := c.Room.ID

	if req.Grouped {
		groups, err := s.logManager.GroupedHistory(ctx, roomID, req.Limit)
		if err != nil {
			return err
		}
		c.reply(protocol.MsgGroupedActionLog, protocol.GroupedActionLogPayload{RoomID: roomID, Groups: groups})
		return nil
	}

	entries, err := s.logManager.History(ctx, roomID, req.Limit)
	if err != nil {
		return err
	}
	c.reply(protocol.MsgActionLog, protocol.ActionLogPayload{RoomID: roomID, Entries: entries})
	return nil
}
