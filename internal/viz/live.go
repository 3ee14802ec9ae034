package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/sim"
)

const (
	historyCapacity = 600
	frameInterval   = time.Second / 30
	graphWidth      = 60
	graphHeight     = 12
)

var (
	headerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	graphStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	activeParamStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// tunable is implemented by the controller and the plant.
type tunable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// LiveModel steps a loop a batch of ticks per frame and redraws the
// response. Controller gains and plant coefficients can be tuned while it
// runs. Resetting rewinds the controller and plant to their initial state
// and parameters, so the replay is identical to the first pass.
type LiveModel struct {
	loop          *sim.Loop
	name          string
	y0            float64
	next          int
	batch         int
	running       bool
	history       []dynamo.Sample
	owners        map[string]tunable
	paramKeys     []string
	initialParams map[string]float64
	selected      int
	lastErr       error
}

// NewLiveModel expects a freshly built loop; its current plant output is
// taken as the initial output for resets.
func NewLiveModel(name string, loop *sim.Loop, batch int) LiveModel {
	if batch < 1 {
		batch = 1
	}
	m := LiveModel{
		loop:          loop,
		name:          name,
		y0:            loop.Plant().Output(),
		batch:         batch,
		running:       true,
		history:       make([]dynamo.Sample, 0, historyCapacity),
		owners:        make(map[string]tunable),
		initialParams: make(map[string]float64),
	}

	// controller gains first, then plant coefficients, each sorted
	for _, t := range []tunable{loop.Controller(), loop.Plant()} {
		params := t.GetParams()
		keys := make([]string, 0, len(params))
		for k, v := range params {
			keys = append(keys, k)
			m.owners[k] = t
			m.initialParams[k] = v
		}
		sort.Strings(keys)
		m.paramKeys = append(m.paramKeys, keys...)
	}
	return m
}

func (m LiveModel) Init() tea.Cmd { return tick() }

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "+", "=":
			m.batch *= 2
		case "-", "_":
			if m.batch > 1 {
				m.batch /= 2
			}
		case "tab":
			m.cycleParam()
		case "up", "k":
			m.adjustParam(1.05)
		case "down", "j":
			m.adjustParam(0.95)
		}
	case TickMsg:
		if m.running {
			m.Advance(m.batch)
		}
		return m, tick()
	}
	return m, nil
}

// Advance runs up to n ticks and returns how many were run.
func (m *LiveModel) Advance(n int) int {
	steps := m.loop.Steps()
	done := 0
	for ; done < n && m.next <= steps; done++ {
		s := m.loop.Tick(m.next)
		m.next++

		m.history = append(m.history, s)
		if len(m.history) > historyCapacity {
			m.history = m.history[1:]
		}
	}
	return done
}

func (m *LiveModel) cycleParam() {
	if len(m.paramKeys) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.paramKeys)
}

// adjustParam scales the selected parameter. A zero value is nudged to
// 0.01 so it can be raised from there.
func (m *LiveModel) adjustParam(factor float64) {
	if len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	owner := m.owners[key]

	val := owner.GetParams()[key] * factor
	if val == 0 && factor > 1 {
		val = 0.01
	}
	m.lastErr = owner.SetParam(key, val)
}

func (m *LiveModel) reset() {
	m.loop.Controller().Reset(0, 0)
	m.loop.Plant().Reset(m.y0)
	for k, v := range m.initialParams {
		m.owners[k].SetParam(k, v)
	}
	m.lastErr = nil
	m.next = 0
	m.history = m.history[:0]
}

func (m LiveModel) Done() bool { return m.next > m.loop.Steps() }

func (m LiveModel) Running() bool { return m.running }

func (m LiveModel) Batch() int { return m.batch }

// Selected returns the name of the parameter the arrow keys adjust.
func (m LiveModel) Selected() string {
	if len(m.paramKeys) == 0 {
		return ""
	}
	return m.paramKeys[m.selected]
}

// Param returns the current value of a tunable parameter.
func (m LiveModel) Param(name string) (float64, bool) {
	owner, ok := m.owners[name]
	if !ok {
		return 0, false
	}
	v, ok := owner.GetParams()[name]
	return v, ok
}

// History returns the most recent samples, oldest first.
func (m LiveModel) History() []dynamo.Sample { return m.history }

func (m LiveModel) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n")

	switch {
	case m.Done():
		s.WriteString(StatusRunning.Render("DONE"))
	case m.running:
		s.WriteString(StatusRunning.Render("RUNNING"))
	default:
		s.WriteString(StatusPaused.Render("PAUSED"))
	}
	s.WriteString("  " + ProgressBar(float64(m.next)/float64(m.loop.Steps()+1), 30) + "\n")

	if len(m.history) > 1 {
		s.WriteString(graphStyle.Render(ResponseGraph(m.history, graphWidth, graphHeight, "setpoint / measurement")) + "\n")
	}

	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		s.WriteString(MetricRow("time", fmt.Sprintf("%.2fs", last.Time)) + "\n")
		s.WriteString(MetricRow("setpoint", fmt.Sprintf("%.4f", last.Setpoint)) + "\n")
		s.WriteString(MetricRow("measurement", fmt.Sprintf("%.4f", last.Measurement)) + "\n")
		s.WriteString(MetricRow("control", fmt.Sprintf("%.4f", last.Control)) + "\n")
		s.WriteString(MetricRow("integral", fmt.Sprintf("%.4f", m.loop.Controller().Integral())) + "\n")
	}
	s.WriteString(MetricRow("ticks/frame", fmt.Sprintf("%d", m.batch)) + "\n\n")

	for i, key := range m.paramKeys {
		v, _ := m.Param(key)
		row := MetricRow(key, fmt.Sprintf("%.4f", v))
		if i == m.selected {
			row = MetricLabel.Render(key) + activeParamStyle.Render(fmt.Sprintf("%.4f", v))
		}
		s.WriteString(row + "\n")
	}
	if m.lastErr != nil {
		s.WriteString(StatusFailed.Render(m.lastErr.Error()) + "\n")
	}

	s.WriteString(helpStyle.Render("space pause  r reset  +/- speed  tab select  up/down tune  q quit"))
	return s.String()
}
