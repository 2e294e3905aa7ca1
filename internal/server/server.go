package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/apperror"
	"github.com/yourusername/roomlog/internal/config"
	"github.com/yourusername/roomlog/internal/logging"
	"github.com/yourusername/roomlog/internal/store"
)

// Server is the chat hub: it owns rooms, users and the action log, and
// serves them over websocket and HTTP
type Server struct {
	cfg         *config.Config
	roomManager *RoomManager
	userManager *UserManager
	logManager  *LogManager
	metrics     *Metrics
	store       store.Store
	router      *mux.Router
	httpServer  *http.Server
	logger      *logrus.Entry

	clientsMu sync.Mutex
	clients   map[string]*Client
	closing   bool
	pumps     sync.WaitGroup
}

// NewServer creates a server over st. The caller keeps ownership of st.
func NewServer(cfg *config.Config, st store.Store) (*Server, error) {
	grouper, err := actionlog.NewGrouper(cfg.Grouping.Window, cfg.Grouping.UserKey)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeConfiguration, "invalid grouping configuration", err)
	}

	metrics := NewMetrics()
	s := &Server{
		cfg:         cfg,
		roomManager: NewRoomManager(metrics),
		userManager: NewUserManager(),
		logManager:  NewLogManager(st, grouper, cfg.Room.HistoryLimit, cfg.Room.MaxMessageLength, metrics),
		metrics:     metrics,
		store:       st,
		logger:      logging.For("server"),
		clients:     make(map[string]*Client),
	}
	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s, nil
}

// Handler returns the root handler (websocket, API and metrics)
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown; it returns nil after a clean
// shutdown
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.httpServer.Addr,
		"storage":         s.cfg.Storage.Type,
		"metrics_enabled": s.cfg.Server.EnableMetrics,
	}).Info("Starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// track registers a live websocket client. It reports false once
// Shutdown has started.
func (s *Server) track(c *Client) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closing {
		return false
	}
	s.clients[c.ID] = c
	s.pumps.Add(1)
	return true
}

func (s *Server) untrack(c *Client) {
	s.clientsMu.Lock()
	delete(s.clients, c.ID)
	s.clientsMu.Unlock()
	s.pumps.Done()
}

// closeClients sends a going-away close frame to every live client and
// drops its connection, which ends its read pump
func (s *Server) closeClients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	s.closing = true
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range s.clients {
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.conn.Close()
	}
	return len(s.clients)
}

// Shutdown stops accepting connections, closes live websocket clients and
// waits for their read pumps to leave their rooms, then closes every room
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	err := s.httpServer.Shutdown(ctx)

	n := s.closeClients()
	done := make(chan struct{})
	go func() {
		s.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.WithField("clients", n).Warn("Shutdown timed out waiting for clients")
		if err == nil {
			err = ctx.Err()
		}
	}

	s.roomManager.Shutdown()
	return err
}
