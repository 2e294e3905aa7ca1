package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/roomlog/internal/actionlog"
	"github.com/yourusername/roomlog/internal/apperror"
)

// ErrorResponse is the body of every failed API request
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ChatRequest is the body of POST /api/v1/rooms/{roomID}/chat
type ChatRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// RoomSummary describes a room in GET /api/v1/rooms
type RoomSummary struct {
	ID      string `json:"id"`
	Clients int    `json:"clients"`
}

// LogResponse is the body of GET /api/v1/rooms/{roomID}/log
type LogResponse struct {
	RoomID  string                      `json:"room_id"`
	Entries []actionlog.LogEntry        `json:"entries,omitempty"`
	Groups  []actionlog.GroupedLogEntry `json:"groups,omitempty"`
}

// setupRouter sets up the HTTP routes
func (s *Server) setupRouter() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.loggingMiddleware)
	if s.cfg.Server.EnableMetrics {
		s.router.Use(s.metricsMiddleware)
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/ws", s.HandleWebSocket)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/rooms", s.listRoomsHandler).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomID}/log", s.roomLogHandler).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomID}/chat", s.roomChatHandler).Methods(http.MethodPost)
}

// healthHandler reports whether the store is reachable
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.writeError(w, apperror.Wrap(apperror.CodeStorage, "store unavailable", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": actionlog.FormatTimestamp(time.Now()),
		"storage":   s.cfg.Storage.Type,
		"rooms":     len(s.roomManager.Occupancy()),
		"users":     s.userManager.Count(),
	})
}

// listRoomsHandler lists rooms with a log or with connected clients
func (s *Server) listRoomsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	logged, err := s.logManager.Rooms(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	occupancy := s.roomManager.Occupancy()
	rooms := make([]RoomSummary, 0, len(logged))
	seen := make(map[string]bool, len(logged))
	for _, id := range logged {
		rooms = append(rooms, RoomSummary{ID: id, Clients: occupancy[id]})
		seen[id] = true
	}
	for id, clients := range occupancy {
		if !seen[id] {
			rooms = append(rooms, RoomSummary{ID: id, Clients: clients})
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}

// roomLogHandler returns a room's log, raw or grouped
func (s *Server) roomLogHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, apperror.New(apperror.CodeValidation, "limit must be a non-negative integer", raw))
			return
		}
		limit = n
	}

	grouped := false
	if raw := query.Get("grouped"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, apperror.New(apperror.CodeValidation, "grouped must be true or false", raw))
			return
		}
		grouped = b
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	resp := LogResponse{RoomID: roomID}
	if grouped {
		groups, err := s.logManager.GroupedHistory(ctx, roomID, limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Groups = groups
	} else {
		entries, err := s.logManager.History(ctx, roomID, limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Entries = entries
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// roomChatHandler records a chat message posted over HTTP and broadcasts it
// to the room's websocket clients
func (s *Server) roomChatHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperror.Wrap(apperror.CodeValidation, "invalid request body", err))
		return
	}

	user, _, err := s.userManager.GetOrCreateUserByUsername(req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	message, err := s.logManager.ValidateMessage(req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	entry, err := s.logManager.Record(ctx, roomID, s.roomManager.GetRoom(roomID), actionlog.TypeRoomChat, actionlog.UserPayload{
		UserID:   user.ID,
		Username: user.Username,
		Message:  message,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

// loggingMiddleware logs each request once it completes
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    recorder.statusCode,
			"duration":  time.Since(start),
			"remote_ip": r.RemoteAddr,
		}).Debug("HTTP request")
	})
}

// metricsMiddleware records HTTP request metrics
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := routePath(r)
		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code. It
// passes Hijack through so websocket upgrades work behind it.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// routePath extracts the route template from the request
func routePath(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}

	template, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}
	return template
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes err as an ErrorResponse with the status its code maps to
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperror.HTTPStatus(err)
	resp := ErrorResponse{Code: apperror.CodeOf(err), Message: err.Error()}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}

	entry := s.logger.WithFields(logrus.Fields{"status": status, "code": resp.Code})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("HTTP error")
	} else {
		entry.WithError(err).Debug("HTTP error")
	}
	s.writeJSON(w, status, resp)
}
