package server

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/roomlog/internal/logging"
)

// Room is a chat room and the clients currently in it
type Room struct {
	ID      string
	Clients map[string]*Client

	mu         sync.RWMutex
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	metrics    *Metrics
	logger     *logrus.Entry
}

// NewRoom creates a new room; call Run to start it
func NewRoom(id string, metrics *Metrics) *Room {
	return &Room{
		ID:      id,
		Clients: make(map[string]*Client),

		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    metrics,
		logger:     logging.For("room").WithField("room_id", id),
	}
}

// Run starts the room's main loop; it returns after Stop
func (r *Room) Run() {
	for {
		select {
		case client := <-r.register:
			r.handleRegister(client)

		case client := <-r.unregister:
			r.handleUnregister(client)

		case message := <-r.broadcast:
			r.handleBroadcast(message)

		case <-r.done:
			r.handleStop()
			return
		}
	}
}

// Join registers client. It reports false once the room has stopped.
func (r *Room) Join(client *Client) bool {
	select {
	case r.register <- client:
		return true
	case <-r.done:
		return false
	}
}

// Leave unregisters client without closing its connection
func (r *Room) Leave(client *Client) {
	select {
	case r.unregister <- client:
	case <-r.done:
	}
}

// Broadcast queues message for every client in the room
func (r *Room) Broadcast(message []byte) {
	select {
	case r.broadcast <- message:
	case <-r.done:
	}
}

// Stop ends Run and closes every client's send queue
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// ClientCount returns the number of connected clients
func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Clients)
}

func (r *Room) handleRegister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Clients[client.ID] = client
	r.metrics.RoomClients.WithLabelValues(r.ID).Set(float64(len(r.Clients)))

	r.logger.WithField("client_id", client.ID).Info("User joined room")
}

func (r *Room) handleUnregister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.Clients[client.ID]; ok {
		delete(r.Clients, client.ID)
		r.metrics.RoomClients.WithLabelValues(r.ID).Set(float64(len(r.Clients)))

		r.logger.WithField("client_id", client.ID).Info("User left room")
	}
}

func (r *Room) handleBroadcast(message []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, client := range r.Clients {
		if !client.enqueue(message) {
			// slow or gone; the read pump records the departure
			client.closeSend()
			delete(r.Clients, id)
			r.logger.WithField("client_id", client.ID).Warn("Dropped client with full send queue")
		}
	}
	r.metrics.RoomClients.WithLabelValues(r.ID).Set(float64(len(r.Clients)))
}

func (r *Room) handleStop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, client := range r.Clients {
		client.closeSend()
		delete(r.Clients, id)
	}
	r.metrics.RoomClients.DeleteLabelValues(r.ID)
	r.logger.Info("Room stopped")
}

// RoomManager manages all live rooms
type RoomManager struct {
	rooms   map[string]*Room
	metrics *Metrics
	mu      sync.RWMutex
	logger  *logrus.Entry
}

// NewRoomManager creates a new room manager
func NewRoomManager(metrics *Metrics) *RoomManager {
	return &RoomManager{
		rooms:   make(map[string]*Room),
		metrics: metrics,
		logger:  logging.For("rooms"),
	}
}

// GetOrCreateRoom gets an existing room or creates and starts a new one
func (rm *RoomManager) GetOrCreateRoom(roomID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[roomID]; ok {
		return room
	}

	room := NewRoom(roomID, rm.metrics)
	rm.rooms[roomID] = room

	go room.Run()

	rm.logger.WithField("room_id", roomID).Info("Created new room")
	return room
}

// GetRoom gets an existing room, or nil
func (rm *RoomManager) GetRoom(roomID string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[roomID]
}

// Occupancy returns the connected client count per live room
func (rm *RoomManager) Occupancy() map[string]int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make(map[string]int, len(rm.rooms))
	for id, room := range rm.rooms {
		out[id] = room.ClientCount()
	}
	return out
}

// Shutdown stops every room
func (rm *RoomManager) Shutdown() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	ids := make([]string, 0, len(rm.rooms))
	for id := range rm.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rm.rooms[id].Stop()
		delete(rm.rooms, id)
	}
}
