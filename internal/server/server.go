// Package server exposes the fact-checking workflow over REST and
// WebSocket, with Prometheus metrics on /metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/orchestrator"
	"github.com/ppiankov/veristream/internal/store"
)

// ArticleFetcher pulls readable text from a URL for the analyze-url flow.
// A nil fetcher disables the endpoint.
type ArticleFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Server hosts the HTTP API
type Server struct {
	cfg      model.ServerConfig
	sessions *store.Manager
	svc      *orchestrator.Service
	hub      *Hub
	fetcher  ArticleFetcher
	logger   *slog.Logger
	metrics  *Metrics
	registry *prometheus.Registry
	upgrader websocket.Upgrader
}

// New creates a server around an orchestrator and session store
func New(cfg model.ServerConfig, sessions *store.Manager, svc *orchestrator.Service, hub *Hub, metrics *Metrics, registry *prometheus.Registry, fetcher ArticleFetcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		allowed[o] = true
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		svc:      svc,
		hub:      hub,
		fetcher:  fetcher,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin] || allowed["*"]
			},
		},
	}
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/create-session", s.handleCreateSession)
	mux.HandleFunc("POST /api/analyze-text", s.handleAnalyzeText)
	mux.HandleFunc("POST /api/analyze-url", s.handleAnalyzeURL)
	mux.HandleFunc("POST /api/confirm-claims", s.handleConfirmClaims)
	mux.HandleFunc("POST /api/verify-single", s.handleVerifySingle)
	mux.HandleFunc("GET /api/session/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/session/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /ws/{id}", s.handleWebSocket)

	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return s.cors(mux)
}

// ListenAndServe runs the server until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range s.cfg.CORSOrigins {
			if allowed == origin || allowed == "*" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				break
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Request bodies

type analyzeTextRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

type analyzeURLRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

type confirmClaimsRequest struct {
	SessionID       string        `json:"session_id"`
	ConfirmedClaims []model.Claim `json:"confirmed_claims"`
}

type verifySingleRequest struct {
	Claim     string `json:"claim"`
	SessionID string `json:"session_id,omitempty"`
}

// Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.Create("")
	if s.metrics != nil {
		s.metrics.SessionsCreated.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"status":     session.Status,
		"message":    "Session created successfully",
	})
}

func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req analyzeTextRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		httpError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.analyze(w, r, req.SessionID, req.Text)
}

func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		httpError(w, http.StatusNotImplemented, "URL analysis is not configured")
		return
	}

	var req analyzeURLRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		httpError(w, http.StatusBadRequest, "url is required")
		return
	}

	text, err := s.fetcher.FetchText(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("article fetch failed", "url", req.URL, "error", err)
		httpError(w, http.StatusBadGateway, fmt.Sprintf("fetch article: %v", err))
		return
	}
	s.analyze(w, r, req.SessionID, text)
}

// analyze runs the extraction sprint and answers with the claim set
func (s *Server) analyze(w http.ResponseWriter, r *http.Request, sessionID, text string) {
	session := s.sessions.Create(sessionID)

	start := time.Now()
	claims, err := s.svc.ExtractText(r.Context(), session.ID, text)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.ClaimsExtracted.Add(float64(len(claims)))
		s.metrics.ExtractSeconds.Observe(time.Since(start).Seconds())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     model.SessionAwaitingConfirmation,
		"session_id": session.ID,
		"claims":     claims,
		"message":    "Please review and confirm the claims to verify",
	})
}

func (s *Server) handleConfirmClaims(w http.ResponseWriter, r *http.Request) {
	var req confirmClaimsRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := s.sessions.Get(req.SessionID); !ok {
		httpError(w, http.StatusNotFound, "Session not found")
		return
	}

	// Verification continues past this request's lifetime.
	if err := s.svc.Verify(context.WithoutCancel(r.Context()), req.SessionID, req.ConfirmedClaims); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     model.SessionVerifying,
		"session_id": req.SessionID,
		"message":    fmt.Sprintf("Verification of %d claims started in background", len(req.ConfirmedClaims)),
	})
}

func (s *Server) handleVerifySingle(w http.ResponseWriter, r *http.Request) {
	var req verifySingleRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Claim == "" {
		httpError(w, http.StatusBadRequest, "claim is required")
		return
	}

	session := s.sessions.Create(req.SessionID)
	result, err := s.svc.VerifySingle(r.Context(), session.ID, req.Claim)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.Verifications.WithLabelValues(string(result.Status)).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     model.SessionCompleted,
		"session_id": session.ID,
		"result":     result,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		httpError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.sessions.Get(id); !ok {
		httpError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.sessions.Delete(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Session deleted successfully",
		"session_id": id,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	views := s.sessions.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": views,
		"total":    len(views),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "veristream",
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.hub.Add(sessionID, conn)
	defer func() {
		s.hub.Remove(sessionID, conn)
		_ = conn.Close()
	}()

	// The push channel is one-way; reads only detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Helpers

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
