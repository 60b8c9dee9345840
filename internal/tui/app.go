package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/veristream/internal/clock"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/session"
	"github.com/ppiankov/veristream/internal/transport"
)

// Options configures a TUI session
type Options struct {
	ServerURL string
	Reveal    model.RevealConfig
	Logger    *slog.Logger
}

// Run connects to the server, opens the event stream and runs the terminal
// UI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := transport.NewClient(opts.ServerURL, 0, logger)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	sessionID, err := client.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.DeleteSession(cleanupCtx, sessionID)
	}()

	core := session.NewCore(opts.Reveal, clock.System(), logger)
	snaps := make(chan session.Snapshot, 64)
	core.Subscribe(func(s session.Snapshot) {
		// Keep the latest snapshot; each one carries complete state,
		// so dropping a stale one under backpressure loses nothing.
		select {
		case snaps <- s:
		default:
			select {
			case <-snaps:
			default:
			}
			select {
			case snaps <- s:
			default:
			}
		}
	})

	stream, err := transport.DialStream(ctx, opts.ServerURL, sessionID, logger)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	go func() {
		if err := stream.Listen(streamCtx, core); err != nil {
			logger.Warn("event stream closed", "error", err)
		}
	}()

	p := tea.NewProgram(
		NewModel(client, core, sessionID, snaps),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
