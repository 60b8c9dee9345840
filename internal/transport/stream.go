package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// MessageHandler consumes raw event frames off the stream
type MessageHandler interface {
	HandleMessage(raw []byte)
}

// Stream is a live WebSocket subscription to one session's events
type Stream struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// DialStream opens the event stream for a session. baseURL is the HTTP
// base of the server; the scheme is rewritten to ws/wss.
func DialStream(ctx context.Context, baseURL, sessionID string, logger *slog.Logger) (*Stream, error) {
	if logger == nil {
		logger = slog.Default()
	}

	url := wsURL(baseURL) + "/ws/" + sessionID
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Stream{conn: conn, logger: logger}, nil
}

// Listen reads frames and feeds them to the handler until the connection
// closes or ctx is cancelled. A clean closure returns nil.
func (s *Stream) Listen(ctx context.Context, h MessageHandler) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event stream: %w", err)
		}
		h.HandleMessage(raw)
	}
}

// Close shuts down the stream
func (s *Stream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

func wsURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
