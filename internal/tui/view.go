package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/veristream/internal/focus"
	"github.com/ppiankov/veristream/internal/model"
)

// Styles holds the lipgloss styles for every surface
type Styles struct {
	Header    lipgloss.Style
	Title     lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Pane      lipgloss.Style
	PaneTitle lipgloss.Style
	Claim     lipgloss.Style
	ClaimSel  lipgloss.Style
	Thought   lipgloss.Style
	Native    lipgloss.Style
	Verdict   map[model.VerificationStatus]lipgloss.Style
	Help      lipgloss.Style
}

// DefaultStyles is the built-in theme
func DefaultStyles() Styles {
	green := lipgloss.Color("42")
	yellow := lipgloss.Color("220")
	red := lipgloss.Color("196")
	orange := lipgloss.Color("208")
	blue := lipgloss.Color("39")
	muted := lipgloss.Color("243")

	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(blue),
		Title:     lipgloss.NewStyle().Bold(true),
		Status:    lipgloss.NewStyle().Foreground(blue),
		Error:     lipgloss.NewStyle().Foreground(red).Bold(true),
		Pane:      lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
		PaneTitle: lipgloss.NewStyle().Bold(true).Foreground(green),
		Claim:     lipgloss.NewStyle(),
		ClaimSel:  lipgloss.NewStyle().Bold(true).Foreground(blue),
		Thought:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		Native:    lipgloss.NewStyle().Foreground(muted),
		Verdict: map[model.VerificationStatus]lipgloss.Style{
			model.StatusVerified:          lipgloss.NewStyle().Foreground(green).Bold(true),
			model.StatusPartiallyVerified: lipgloss.NewStyle().Foreground(yellow).Bold(true),
			model.StatusUnverified:        lipgloss.NewStyle().Foreground(muted).Bold(true),
			model.StatusDisputed:          lipgloss.NewStyle().Foreground(orange).Bold(true),
			model.StatusFalse:             lipgloss.NewStyle().Foreground(red).Bold(true),
		},
		Help: lipgloss.NewStyle().Foreground(muted),
	}
}

// View renders the whole screen
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Header.Render("veristream"))
	b.WriteString("  ")
	if m.busy || m.snap.Status == model.SessionExtracting || m.snap.Status == model.SessionVerifying {
		b.WriteString(m.spin.View())
		b.WriteString(" ")
	}
	b.WriteString(m.styles.Status.Render(m.statusLine()))
	b.WriteString("\n")

	if m.errText != "" {
		b.WriteString(m.styles.Error.Render("error: " + m.errText))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch m.snap.Pane {
	case focus.PaneInput:
		b.WriteString(m.renderInput())
	case focus.PaneProgress:
		b.WriteString(m.renderProgress())
	case focus.PaneConfirmation:
		b.WriteString(m.renderConfirmation())
	case focus.PaneResults:
		b.WriteString(m.renderResults())
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.helpLine()))
	return b.String()
}

func (m Model) helpLine() string {
	switch m.snap.Pane {
	case focus.PaneInput:
		return "enter: analyze • tab: switch pane • ctrl+r: reset • ctrl+c: quit"
	case focus.PaneConfirmation:
		return "space: toggle claim • enter: verify selected • up/down: move • ctrl+c: quit"
	default:
		return "up/down: scroll • tab: switch pane • ctrl+r: reset • q: quit"
	}
}

func (m Model) renderInput() string {
	return m.styles.PaneTitle.Render("Input") + "\n\n" + m.input.View()
}

func (m Model) renderProgress() string {
	return m.styles.PaneTitle.Render("Progress") + "\n" + m.timeline.View()
}

// renderTimeline builds the narrative feed from the merge log's current
// revealed state
func (m Model) renderTimeline() string {
	if len(m.snap.Timeline) == 0 {
		return m.styles.Help.Render("(waiting for activity)")
	}

	var b strings.Builder
	for _, e := range m.snap.Timeline {
		label := e.ClaimID
		if e.Phase != "" {
			label += " [" + e.Phase + "]"
		}
		b.WriteString(m.styles.Title.Render(label))
		b.WriteString("\n")

		style := m.styles.Thought
		if e.IsNativeThought {
			style = m.styles.Native
		}
		text := e.Text
		if !e.DisplayComplete {
			text += "▌"
		}
		b.WriteString(style.Render(text))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m Model) renderConfirmation() string {
	var b strings.Builder
	b.WriteString(m.styles.PaneTitle.Render("Confirm claims to verify"))
	b.WriteString("\n\n")

	if len(m.snap.Claims) == 0 {
		b.WriteString(m.styles.Help.Render("(no claims extracted)"))
		return b.String()
	}

	for i, c := range m.snap.Claims {
		mark := "[ ]"
		if m.selected[c.ID] {
			mark = "[x]"
		}
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%s %s", cursor, mark, c.Claim)
		if c.Type != "" {
			line += m.styles.Help.Render(" (" + string(c.Type) + ")")
		}
		if i == m.cursor {
			b.WriteString(m.styles.ClaimSel.Render(line))
		} else {
			b.WriteString(m.styles.Claim.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderResults() string {
	var b strings.Builder
	b.WriteString(m.styles.PaneTitle.Render("Results"))
	if m.snap.Finalized {
		b.WriteString(m.styles.Help.Render("  (complete)"))
	}
	b.WriteString("\n\n")

	if len(m.snap.Results) == 0 {
		b.WriteString(m.styles.Help.Render("(no results yet)"))
		return b.String()
	}

	for _, r := range m.snap.Results {
		verdict, ok := m.styles.Verdict[r.Status]
		if !ok {
			verdict = m.styles.Title
		}
		b.WriteString(verdict.Render(string(r.Status)))
		fmt.Fprintf(&b, " (%.0f%%) ", r.Confidence*100)
		b.WriteString(m.styles.Title.Render(r.ClaimText))
		b.WriteString("\n")
		if r.EvidenceSummary != "" {
			b.WriteString("  " + r.EvidenceSummary)
			b.WriteString("\n")
		}
		for _, f := range r.KeyFindings {
			b.WriteString("  - " + f)
			b.WriteString("\n")
		}
		for _, s := range r.Sources {
			line := "  " + s.URL
			if s.Authority != model.TierUnknown {
				line += m.styles.Help.Render(" [" + s.Authority.String() + "]")
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
