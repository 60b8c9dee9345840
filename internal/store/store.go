// Package store keeps server-side verification sessions in an expiring
// in-memory cache.
package store

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/veristream/internal/model"
)

// Session is the server-side state of one verification workflow
type Session struct {
	mu sync.Mutex

	ID           string
	CreatedAt    time.Time
	LastActivity time.Time

	Text          string
	RemainingText string // tail of a large document queued for the next sprint

	ExtractedClaims []model.Claim
	ConfirmedClaims []model.Claim
	Results         []model.VerificationResult
	Status          model.SessionStatus
}

// View is the JSON projection of a session for the REST API
type View struct {
	SessionID            string              `json:"session_id"`
	CreatedAt            time.Time           `json:"created_at"`
	LastActivity         time.Time           `json:"last_activity"`
	Status               model.SessionStatus `json:"status"`
	ExtractedClaimsCount int                 `json:"extracted_claims_count"`
	ConfirmedClaimsCount int                 `json:"confirmed_claims_count"`
	ResultsCount         int                 `json:"verification_results_count"`
	RemainingWords       int                 `json:"remaining_words,omitempty"`
}

// Update mutates the session under its lock
func (s *Session) Update(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	s.LastActivity = time.Now().UTC()
}

// SetStatus records a status transition
func (s *Session) SetStatus(status model.SessionStatus) {
	s.Update(func(s *Session) { s.Status = status })
}

// AppendResult records one finished verification
func (s *Session) AppendResult(r model.VerificationResult) {
	s.Update(func(s *Session) { s.Results = append(s.Results, r) })
}

// Snapshot copies the session state for readers
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := 0
	if s.RemainingText != "" {
		remaining = len(splitWords(s.RemainingText))
	}
	return View{
		SessionID:            s.ID,
		CreatedAt:            s.CreatedAt,
		LastActivity:         s.LastActivity,
		Status:               s.Status,
		ExtractedClaimsCount: len(s.ExtractedClaims),
		ConfirmedClaimsCount: len(s.ConfirmedClaims),
		ResultsCount:         len(s.Results),
		RemainingWords:       remaining,
	}
}

// Claims returns a copy of the extracted claims
func (s *Session) Claims() []model.Claim {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Claim(nil), s.ExtractedClaims...)
}

// VerificationResults returns a copy of the accumulated results
func (s *Session) VerificationResults() []model.VerificationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.VerificationResult(nil), s.Results...)
}

// Manager tracks live sessions with idle expiry
type Manager struct {
	cache  *gocache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager creates a session manager. Sessions idle past ttl are evicted.
func NewManager(ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cache:  gocache.New(ttl, ttl/2),
		ttl:    ttl,
		logger: logger,
	}
}

// Create registers a new session. An empty id generates one; an existing id
// returns the live session unchanged.
func (m *Manager) Create(id string) *Session {
	if id != "" {
		if existing, ok := m.Get(id); ok {
			m.logger.Info("returning existing session", "session_id", id)
			return existing
		}
	} else {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Status:       model.SessionIdle,
	}
	m.cache.Set(id, s, gocache.DefaultExpiration)
	m.logger.Info("created session", "session_id", id)
	return s
}

// Get returns a session and refreshes its expiry
func (m *Manager) Get(id string) (*Session, bool) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	s.Update(func(*Session) {})
	m.cache.Set(id, s, gocache.DefaultExpiration)
	return s, true
}

// MustGet returns a session or an error suitable for API responses
func (m *Manager) MustGet(id string) (*Session, error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("invalid session ID: %s", id)
	}
	return s, nil
}

// Delete removes a session
func (m *Manager) Delete(id string) {
	m.cache.Delete(id)
	m.logger.Info("deleted session", "session_id", id)
}

// List returns views of all live sessions
func (m *Manager) List() []View {
	items := m.cache.Items()
	views := make([]View, 0, len(items))
	for _, item := range items {
		views = append(views, item.Object.(*Session).Snapshot())
	}
	return views
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

func splitWords(s string) []string {
	return strings.Fields(s)
}
