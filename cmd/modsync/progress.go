package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/modsync/pkg/modsync/events"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
)

// newProgressSink picks a renderer for install progress: a live view on
// terminals and one line per entry elsewhere. Quiet mode renders nothing.
// The returned func stops the renderer and must be called before printing
// the result.
func newProgressSink(w *os.File) (events.Sink, func()) {
	if quiet {
		return events.Nop, func() {}
	}
	if isTerminal(w) {
		s := startLiveSink(w)
		return s, s.Close
	}
	return lineSink(w), func() {}
}

// lineSink reports item boundaries only, which keeps logs and pipes readable.
func lineSink(w io.Writer) events.Sink {
	return events.Funcs{
		OnItemStarted: func(ev events.Event) {
			fmt.Fprintf(w, "[%d/%d] %s\n", ev.Index, ev.Total, ev.EntryID)
		},
		OnItemCompleted: func(ev events.Event) {
			if !ev.Success && ev.Err != nil {
				fmt.Fprintf(w, "[%d/%d] %s failed: %v\n", ev.Index, ev.Total, ev.EntryID, ev.Err)
			}
		},
	}
}

// liveSink forwards install events to a Bubble Tea program.
type liveSink struct {
	p    *tea.Program
	done chan struct{}
}

func startLiveSink(w io.Writer) *liveSink {
	s := &liveSink{
		// Input and signals stay with the command; Ctrl-C cancels the
		// install context, not the view.
		p: tea.NewProgram(newInstallModel(),
			tea.WithOutput(w),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if _, err := s.p.Run(); err != nil {
			logging.Get("cli").Debug("progress view stopped", "error", err)
		}
	}()
	return s
}

func (s *liveSink) Publish(ev events.Event) {
	s.p.Send(eventMsg(ev))
}

// Close stops the program and waits for it to restore the terminal.
func (s *liveSink) Close() {
	s.p.Quit()
	<-s.done
}

type eventMsg events.Event

var (
	progressAccent = lipgloss.Color("#7D56F4")
	progressMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	progressOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#28A745"))
	progressFail   = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC3545"))
)

// installModel shows the overall run and the entry being downloaded.
// Finished entries are printed above the view so they stay in scrollback.
type installModel struct {
	spinner spinner.Model
	overall progress.Model
	current progress.Model

	status   string
	entry    string
	index    int
	total    int
	percent  float64
	received int64
	size     int64
	done     bool
}

func newInstallModel() installModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(progressAccent)

	return installModel{
		spinner: s,
		overall: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		current: progress.New(progress.WithSolidFill(string(progressAccent)), progress.WithWidth(40)),
		status:  "Starting",
		size:    -1,
	}
}

func (m installModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m installModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m.apply(events.Event(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m installModel) apply(ev events.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case events.Snapshot:
		m.status = ev.Status
		m.total = ev.Total
		m.percent = ev.OverallPercent / 100
		if ev.Phase.Terminal() {
			m.done = true
			return m, tea.Quit
		}

	case events.ItemStarted:
		m.entry = ev.EntryID
		m.index, m.total = ev.Index, ev.Total
		m.received, m.size = 0, -1

	case events.DownloadProgress:
		m.received, m.size = ev.BytesReceived, ev.BytesTotal

	case events.ItemCompleted:
		m.entry = ""
		line := fmt.Sprintf("[%d/%d] %s ", ev.Index, ev.Total, ev.EntryID)
		if ev.Success {
			line += progressOK.Render("done")
		} else if ev.Err != nil {
			line += progressFail.Render("failed: " + ev.Err.Error())
		} else {
			line += progressFail.Render("failed")
		}
		return m, tea.Println(line)
	}
	return m, nil
}

func (m installModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.status)
	fmt.Fprintf(&b, "  %s %s\n", m.overall.ViewAs(m.percent),
		progressMuted.Render(fmt.Sprintf("%d/%d", m.index, m.total)))
	if m.entry != "" {
		frac := 0.0
		if m.size > 0 {
			frac = min(float64(m.received)/float64(m.size), 1)
		}
		fmt.Fprintf(&b, "  %s %s\n", m.current.ViewAs(frac),
			progressMuted.Render(fmt.Sprintf("%s  %s / %s", m.entry, humanBytes(m.received), humanBytes(m.size))))
	}
	return b.String()
}

// humanBytes formats n for progress and summary lines.
func humanBytes(n int64) string {
	if n < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(n))
}
