package server

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ppiankov/veristream/internal/model"
)

// Hub fans events out to every WebSocket attached to a session. It
// implements the orchestrator's Broadcaster.
type Hub struct {
	mu      sync.Mutex
	conns   map[string][]*websocket.Conn
	logger  *slog.Logger
	metrics *Metrics
}

// NewHub creates an empty connection hub
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:   make(map[string][]*websocket.Conn),
		logger:  logger,
		metrics: metrics,
	}
}

// Add registers a connection under a session
func (h *Hub) Add(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[sessionID] = append(h.conns[sessionID], conn)
	total := len(h.conns[sessionID])
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
	h.logger.Info("websocket connected", "session_id", sessionID, "total", total)
}

// Remove detaches a connection
func (h *Hub) Remove(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	removed := h.removeLocked(sessionID, conn)
	h.mu.Unlock()

	if removed {
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
		h.logger.Info("websocket disconnected", "session_id", sessionID)
	}
}

func (h *Hub) removeLocked(sessionID string, conn *websocket.Conn) bool {
	conns := h.conns[sessionID]
	for i, c := range conns {
		if c == conn {
			h.conns[sessionID] = append(conns[:i], conns[i+1:]...)
			if len(h.conns[sessionID]) == 0 {
				delete(h.conns, sessionID)
			}
			return true
		}
	}
	return false
}

// send pushes one envelope to every connection of a session, pruning
// connections whose writes fail
func (h *Hub) send(sessionID string, eventType string, payload any) {
	env, err := model.NewEnvelope(eventType, payload)
	if err != nil {
		h.logger.Error("marshal broadcast payload", "type", eventType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conns[sessionID]
	if len(conns) == 0 {
		return
	}

	var dead []*websocket.Conn
	for _, conn := range conns {
		if err := conn.WriteJSON(env); err != nil {
			h.logger.Warn("websocket write failed", "session_id", sessionID, "error", err)
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		h.removeLocked(sessionID, conn)
		_ = conn.Close()
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
	}
}

// BroadcastUpdate streams one thinking/progress update
func (h *Hub) BroadcastUpdate(sessionID string, ev model.UpdateEvent) {
	h.send(sessionID, model.EventThinkingUpdate, ev)
}

// BroadcastClaims pushes the extracted claim set
func (h *Hub) BroadcastClaims(sessionID string, claims []model.Claim) {
	h.send(sessionID, model.EventClaimsExtracted, model.ClaimsData{Claims: claims})
}

// BroadcastResult pushes one finished verification
func (h *Hub) BroadcastResult(sessionID string, r model.VerificationResult) {
	if h.metrics != nil {
		h.metrics.Verifications.WithLabelValues(string(r.Status)).Inc()
	}
	h.send(sessionID, model.EventVerificationResult, r)
}

// BroadcastStatus pushes a workflow status change
func (h *Hub) BroadcastStatus(sessionID string, status model.SessionStatus, message string, details map[string]any) {
	h.send(sessionID, model.EventStatus, model.StatusData{Status: status, Message: message, Details: details})
}

// BroadcastError pushes a terminal error
func (h *Hub) BroadcastError(sessionID string, message string) {
	h.send(sessionID, model.EventError, model.ErrorData{Error: message})
}
