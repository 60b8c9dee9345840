// Package tui renders a live fact-checking session in the terminal. It
// drives the session core with events from the server's WebSocket stream
// and issues REST calls for user actions.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/veristream/internal/focus"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/session"
	"github.com/ppiankov/veristream/internal/transport"
)

// Messages

type snapshotMsg session.Snapshot

type analyzeDoneMsg struct {
	resp transport.AnalyzeResponse
	err  error
}

type confirmDoneMsg struct{ err error }

// panes cycled by tab, in order
var paneOrder = []focus.Pane{
	focus.PaneInput,
	focus.PaneProgress,
	focus.PaneConfirmation,
	focus.PaneResults,
}

// Model is the bubbletea model for one session
type Model struct {
	client    *transport.Client
	core      *session.Core
	sessionID string
	snaps     <-chan session.Snapshot

	snap     session.Snapshot
	input    textinput.Model
	spin     spinner.Model
	timeline viewport.Model

	selected map[string]bool // claim id -> confirmed
	cursor   int

	width   int
	height  int
	errText string
	busy    bool
	styles  Styles
}

// NewModel builds the initial model. snaps carries session core snapshots;
// the model pulls one per update cycle.
func NewModel(client *transport.Client, core *session.Core, sessionID string, snaps <-chan session.Snapshot) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Paste text or a URL to fact-check"
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		client:    client,
		core:      core,
		sessionID: sessionID,
		snaps:     snaps,
		snap:      core.Snapshot(),
		input:     input,
		spin:      sp,
		timeline:  viewport.New(0, 0),
		selected:  make(map[string]bool),
		styles:    DefaultStyles(),
	}
	return m
}

// Init starts the spinner and the snapshot pump
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForSnapshot(m.snaps))
}

// waitForSnapshot delivers the next core snapshot as a message
func waitForSnapshot(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

// Update is the event loop
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.timeline.Width = msg.Width - 4
		m.timeline.Height = msg.Height - 8
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		return m.applySnapshot(session.Snapshot(msg))

	case analyzeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		return m, nil

	case confirmDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.snap.Pane == focus.PaneInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) applySnapshot(snap session.Snapshot) (tea.Model, tea.Cmd) {
	prevPane := m.snap.Pane
	m.snap = snap

	// Newly surfaced claims start confirmed; the user deselects.
	for _, c := range snap.Claims {
		if _, seen := m.selected[c.ID]; !seen {
			m.selected[c.ID] = true
		}
	}
	if snap.Error != "" {
		m.errText = snap.Error
	}
	if snap.Pane != prevPane {
		m.syncFocus(snap.Pane)
	}
	m.timeline.SetContent(m.renderTimeline())
	m.timeline.GotoBottom()
	return m, waitForSnapshot(m.snaps)
}

func (m *Model) syncFocus(pane focus.Pane) {
	if pane == focus.PaneInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	if m.cursor >= len(m.snap.Claims) {
		m.cursor = 0
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.cyclePane()
		return m, nil

	case "ctrl+r":
		m.core.Reset()
		m.selected = make(map[string]bool)
		m.cursor = 0
		m.errText = ""
		m.input.SetValue("")
		return m, nil
	}

	switch m.snap.Pane {
	case focus.PaneInput:
		return m.handleInputKey(msg)
	case focus.PaneConfirmation:
		return m.handleConfirmationKey(msg)
	default:
		return m.handleBrowseKey(msg)
	}
}

// cyclePane requests the next pane; the projection may refuse
func (m *Model) cyclePane() {
	current := 0
	for i, p := range paneOrder {
		if p == m.snap.Pane {
			current = i
			break
		}
	}
	next := paneOrder[(current+1)%len(paneOrder)]
	if m.core.SelectPane(next) {
		m.snap = m.core.Snapshot()
		m.syncFocus(m.snap.Pane)
	}
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.busy {
			return m, nil
		}
		m.busy = true
		m.errText = ""
		return m, m.analyzeCmd(text)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Claims)-1 {
			m.cursor++
		}
	case " ":
		if m.cursor < len(m.snap.Claims) {
			id := m.snap.Claims[m.cursor].ID
			m.selected[id] = !m.selected[id]
		}
	case "enter":
		confirmed := m.confirmedClaims()
		if len(confirmed) == 0 || m.busy {
			return m, nil
		}
		m.busy = true
		m.errText = ""
		return m, m.confirmCmd(confirmed)
	}
	return m, nil
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.timeline.LineUp(1)
	case "down", "j":
		m.timeline.LineDown(1)
	case "pgup":
		m.timeline.HalfViewUp()
	case "pgdown":
		m.timeline.HalfViewDown()
	}
	return m, nil
}

func (m Model) confirmedClaims() []model.Claim {
	var out []model.Claim
	for _, c := range m.snap.Claims {
		if m.selected[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func (m Model) analyzeCmd(text string) tea.Cmd {
	client := m.client
	sessionID := m.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		var resp transport.AnalyzeResponse
		var err error
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			resp, err = client.AnalyzeURL(ctx, sessionID, text)
		} else {
			resp, err = client.AnalyzeText(ctx, sessionID, text)
		}
		return analyzeDoneMsg{resp: resp, err: err}
	}
}

func (m Model) confirmCmd(claims []model.Claim) tea.Cmd {
	client := m.client
	sessionID := m.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return confirmDoneMsg{err: client.ConfirmClaims(ctx, sessionID, claims)}
	}
}

// statusLine summarizes the session for the header
func (m Model) statusLine() string {
	var b strings.Builder
	b.WriteString(string(m.snap.Status))
	if m.snap.StatusMessage != "" {
		b.WriteString(" | ")
		b.WriteString(m.snap.StatusMessage)
	}
	if m.snap.PendingResults > 0 {
		fmt.Fprintf(&b, " | %d results pending", m.snap.PendingResults)
	}
	return b.String()
}
