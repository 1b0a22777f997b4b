package tui

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/ravik-dev/kinetiq/internal/dispatch"
	"github.com/ravik-dev/kinetiq/internal/mirror"
	"github.com/ravik-dev/kinetiq/internal/scene"
)

const (
	graphWidth  = 64
	graphHeight = 8
	eventLines  = 6
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// eventRing keeps the most recent flush notifications for display.
type eventRing struct {
	mu    sync.Mutex
	lines []string
}

func (r *eventRing) add(ev mirror.Event) {
	r.mu.Lock()
	var line string
	switch ev.Kind {
	case mirror.EventContact, mirror.EventTrigger, mirror.EventTouchLost, mirror.EventForceLost:
		line = fmt.Sprintf("%s %s/%s", ev.Kind, short(ev.A.String()), short(ev.B.String()))
		if ev.RemovedA || ev.RemovedB {
			line += " [removed]"
		}
	default:
		line = fmt.Sprintf("%s %s", ev.Kind, short(ev.A.String()))
	}
	r.lines = append(r.lines, line)
	if len(r.lines) > eventLines {
		r.lines = r.lines[len(r.lines)-eventLines:]
	}
	r.mu.Unlock()
}

func (r *eventRing) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Model drives a scene step-by-step and renders scheduler statistics.
type Model struct {
	scene   *scene.Scene
	pool    *dispatch.Pool
	dt      float64
	running bool
	stepErr error
	ring    *eventRing
}

func NewModel(s *scene.Scene, pool *dispatch.Pool, dt float64) Model {
	ring := &eventRing{}
	s.RegisterListener(scene.ListenerFunc(ring.add))
	return Model{scene: s, pool: pool, dt: dt, running: true, ring: ring}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		}
	case TickMsg:
		if m.running {
			if err := m.scene.Step(m.dt); err != nil {
				m.stepErr = err
				m.running = false
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	stats := m.scene.Stats()

	status := "running"
	if !m.running {
		status = pausedStyle.Render("paused")
	}

	var rows string
	row := func(label, value string) {
		rows += labelStyle.Render(label) + valueStyle.Render(value) + "\n"
	}
	row("status", status)
	row("steps", fmt.Sprintf("%d", stats.Steps()))
	row("last step", fmt.Sprintf("%.3f ms", float64(stats.Last().Microseconds())/1000.0))
	row("actors", fmt.Sprintf("%d", m.scene.ActorCount()))
	if m.pool != nil {
		row("workers", fmt.Sprintf("%d", m.pool.Workers()))
		row("units run", fmt.Sprintf("%d", m.pool.Executed()))
		row("queued", fmt.Sprintf("%d", m.pool.QueueDepth()))
	}
	if m.stepErr != nil {
		row("error", m.stepErr.Error())
	}

	view := headerStyle.Render("kinetiq live") + "\n" + rows

	history := stats.History()
	if len(history) > 1 {
		if len(history) > graphWidth {
			history = history[len(history)-graphWidth:]
		}
		plot := asciigraph.Plot(history,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("step latency (ms)"))
		view += graphStyle.Render(plot) + "\n"
	}

	for _, line := range m.ring.snapshot() {
		view += eventStyle.Render("· "+line) + "\n"
	}

	view += helpStyle.Render("space pause · q quit")
	return view
}
