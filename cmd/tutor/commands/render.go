package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ai-voice-tutor/internal/service/session"
	"ai-voice-tutor/internal/service/transcript"
)

// Theme colours for the terminal transcript.
var (
	styleUser   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff"))
	styleAI     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	styleSystem = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6e7681"))
	styleStatus = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	styleError  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5f87"))
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Padding(0, 1)
	styleBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#00ff9f")).Padding(0, 1)
)

// transcriptPrinter writes each transcript entry once it is final, plus
// status changes. Entries are immutable once final, so a count is enough.
type transcriptPrinter struct {
	out        io.Writer
	printed    int
	lastStatus session.Status
	lastErr    string
	started    bool
}

func newTranscriptPrinter(out io.Writer) *transcriptPrinter {
	return &transcriptPrinter{out: out}
}

// Update prints what changed since the previous snapshot. A snapshot with
// fewer entries than already printed starts a new session.
func (p *transcriptPrinter) Update(snap session.Snapshot) {
	if len(snap.Transcript) < p.printed {
		p.printed = 0
	}
	for p.printed < len(snap.Transcript) && snap.Transcript[p.printed].IsFinal {
		fmt.Fprintln(p.out, renderEntry(snap.Transcript[p.printed]))
		p.printed++
	}

	if !p.started || snap.Status != p.lastStatus {
		p.started = true
		p.lastStatus = snap.Status
		fmt.Fprintln(p.out, styleStatus.Render("· "+statusLine(snap.Status)))
	}
	if snap.Error != "" && snap.Error != p.lastErr {
		p.lastErr = snap.Error
		fmt.Fprintln(p.out, styleError.Render(snap.Error))
	}
}

func statusLine(s session.Status) string {
	switch s {
	case session.StatusConnecting:
		return "connecting..."
	case session.StatusListening:
		return "listening"
	case session.StatusWaiting:
		return "thinking..."
	case session.StatusSpeaking:
		return "Kai is speaking"
	default:
		return strings.ToLower(s.String())
	}
}

func renderEntry(e transcript.Entry) string {
	switch e.Speaker {
	case transcript.SpeakerUser:
		return styleUser.Render("You: ") + e.Text
	case transcript.SpeakerAI:
		return styleAI.Render("Kai: ") + e.Text
	default:
		return styleSystem.Render(e.Text)
	}
}

func renderBanner(snap session.Snapshot) string {
	title := styleTitle.Render("AI Voice Tutor")
	langs := fmt.Sprintf("%s → %s", snap.Native.Name, snap.Target.Name)
	return styleBox.Render(title + "\n" + langs + "\n" + styleStatus.Render("Ctrl+C to end the session"))
}
