// Package monitor is a terminal view of a running system's recorded signals.
package monitor

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/trace"
)

const (
	frameRate   = 30
	graphWidth  = 60
	graphHeight = 10
	sparkWidth  = 24
)

type tickMsg time.Time

// DoneMsg reports that the run ended.
type DoneMsg struct{ Err error }

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model polls a recorder and runner stats while the run proceeds on its
// own goroutine. The monitor never steps the system.
type Model struct {
	title string
	rec   *trace.Recorder
	stats func() dynsys.RunStats
	stop  func()

	latest   *trace.Trace
	run      dynsys.RunStats
	selected int
	frozen   bool
	done     bool
	err      error
}

// New returns a monitor. stop is called when the user quits before the run
// ends.
func New(title string, rec *trace.Recorder, stats func() dynsys.RunStats, stop func()) Model {
	return Model{title: title, rec: rec, stats: stats, stop: stop, latest: &trace.Trace{}}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.stop != nil {
				m.stop()
			}
			return m, tea.Quit
		case " ":
			m.frozen = !m.frozen
		case "tab", "right", "l":
			if n := len(m.latest.Columns); n > 0 {
				m.selected = (m.selected + 1) % n
			}
		case "shift+tab", "left", "h":
			if n := len(m.latest.Columns); n > 0 {
				m.selected = (m.selected + n - 1) % n
			}
		}
	case tickMsg:
		if !m.frozen {
			m.refresh()
		}
		if m.done {
			return m, nil
		}
		return m, tick()
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.refresh()
	}
	return m, nil
}

func (m *Model) refresh() {
	m.latest = m.rec.Snapshot()
	if m.stats != nil {
		m.run = m.stats()
	}
	if m.selected >= len(m.latest.Columns) {
		m.selected = 0
	}
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return statusFailed.Render("FAILED")
	case m.done:
		return statusFrozen.Render("DONE")
	case m.frozen:
		return statusFrozen.Render("FROZEN")
	default:
		return statusRunning.Render("RUNNING")
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.title) + "  " + m.status() + "\n\n")

	t := time.Duration(0)
	if n := len(m.latest.Times); n > 0 {
		t = time.Duration(m.latest.Times[n-1] * float64(time.Second))
	}
	stats := []struct{ label, value string }{
		{"time", t.String()},
		{"steps", fmt.Sprint(m.run.Steps)},
		{"overruns", fmt.Sprint(m.run.Overruns)},
		{"skipped", fmt.Sprint(m.run.Skipped)},
		{"max step", m.run.MaxStepDuration.String()},
	}
	var sb strings.Builder
	for _, s := range stats {
		sb.WriteString(labelStyle.Render(s.label) + valueStyle.Render(s.value) + "\n")
	}
	if m.err != nil {
		sb.WriteString(statusFailed.Render(m.err.Error()) + "\n")
	}

	var cb strings.Builder
	for i, name := range m.latest.Columns {
		col := m.latest.Column(name)
		label := labelStyle.Render(name)
		if i == m.selected {
			label = selectedStyle.Width(12).Render(name)
		}
		last := 0.0
		if len(col) > 0 {
			last = col[len(col)-1]
		}
		fmt.Fprintf(&cb, "%s %10.4f %s\n", label, last, Sparkline(col, sparkWidth))
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(strings.TrimRight(sb.String(), "\n")),
		panelStyle.Render(strings.TrimRight(cb.String(), "\n")),
	))
	b.WriteString("\n")

	if len(m.latest.Columns) > 0 {
		name := m.latest.Columns[m.selected]
		col := m.latest.Column(name)
		if len(col) > graphWidth {
			col = col[len(col)-graphWidth:]
		}
		if len(col) > 1 {
			chart := asciigraph.Plot(col, asciigraph.Height(graphHeight), asciigraph.Width(graphWidth), asciigraph.Caption(name))
			b.WriteString(graphStyle.Render(chart) + "\n")
		}
	}
	b.WriteString(hintStyle.Render("tab: next signal  space: freeze  q: quit") + "\n")
	return b.String()
}
