// Package ui renders an optional live terminal view of the pipeline: the
// current color, per-channel levels, and dispatch statistics.
package ui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/crazy3lf/colorconv"

	"github.com/cybre/tapo-light-sync/internal/dispatch"
	"github.com/cybre/tapo-light-sync/internal/utils"
)

// Frame is one snapshot of pipeline state for rendering.
type Frame struct {
	Hue        float64
	Saturation float64
	Brightness float64
	Channels   []float64
	Source     string
	State      string
	Stats      dispatch.Stats
}

// Visualizer throttles frames into a bubbletea program running on the
// alternate screen.
type Visualizer struct {
	program   *tea.Program
	mu        sync.Mutex
	lastSend  time.Time
	throttle  time.Duration
	closeOnce sync.Once
}

type frameMsg struct {
	frame      Frame
	receivedAt time.Time
}

type model struct {
	frame       Frame
	lastUpdated time.Time
	ready       bool
	onExit      func()
	exitOnce    sync.Once
}

var (
	containerStyle = lipgloss.NewStyle().Padding(0, 2)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	barFillStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	barEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	waitingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

const (
	barWidth      = 32
	swatchBlocks  = 18
	renderLatency = 45 * time.Millisecond
)

// NewVisualizer starts the terminal program. onExit is invoked once when the
// user quits the view.
func NewVisualizer(onExit func()) *Visualizer {
	m := &model{onExit: onExit}
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithoutSignalHandler())

	v := &Visualizer{
		program:  program,
		throttle: renderLatency,
	}

	go program.Run()

	return v
}

// Update offers a frame to the view, dropping it when a render happened too
// recently.
func (v *Visualizer) Update(frame Frame) {
	v.mu.Lock()
	if time.Since(v.lastSend) < v.throttle {
		v.mu.Unlock()
		return
	}
	v.lastSend = time.Now()
	v.mu.Unlock()

	v.program.Send(frameMsg{
		frame:      frame,
		receivedAt: time.Now(),
	})
}

// Close shuts the terminal program down.
func (v *Visualizer) Close() {
	v.closeOnce.Do(func() {
		v.program.Quit()
	})
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = msg.frame
		m.lastUpdated = msg.receivedAt
		m.ready = true
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC, msg.String() == "q", msg.String() == "esc":
			m.invokeExit()
			return m, tea.Quit
		}
	case tea.QuitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) View() string {
	if !m.ready {
		header := titleStyle.Render("Light Sync")
		waiting := waitingStyle.Render("Waiting for capture frames…")
		return containerStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", waiting))
	}
	return containerStyle.Render(renderFrame(m.frame, m.lastUpdated))
}

func renderFrame(frame Frame, updatedAt time.Time) string {
	header := renderHeader(frame, updatedAt)
	swatch := renderSwatch(frame)
	bars := renderChannels(frame.Channels)
	stats := renderStats(frame)
	controls := hintStyle.Render("Press q / esc / ctrl+c to stop visualization")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		"",
		swatch,
		"",
		bars,
		"",
		stats,
		"",
		controls,
	)
}

func renderHeader(frame Frame, updatedAt time.Time) string {
	tint := lipgloss.Color(hexColorFromHSV(frame.Hue, frame.Saturation, math.Max(frame.Brightness, 0.3)))
	title := titleStyle.Foreground(tint).Render("Light Sync · " + frame.Source)
	timestamp := timestampStyle.Render(updatedAt.Format("15:04:05.000"))

	return lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", timestamp)
}

func renderSwatch(frame Frame) string {
	blocks := make([]string, swatchBlocks)
	for i := 0; i < swatchBlocks; i++ {
		progress := float64(i) / float64(swatchBlocks-1)
		value := utils.Clamp(0.15+0.85*progress*frame.Brightness, 0.0, 1.0)
		tint := lipgloss.Color(hexColorFromHSV(frame.Hue, frame.Saturation, value))
		blocks[i] = lipgloss.NewStyle().Background(tint).Render("  ")
	}

	info := valueStyle.Render(fmt.Sprintf("Hue:%3.0f° Sat:%3.0f%% Bri:%3.0f%%",
		utils.Clamp(frame.Hue, 0.0, 359.0),
		utils.Clamp(frame.Saturation*100, 0.0, 100.0),
		utils.Clamp(frame.Brightness*100, 0.0, 100.0),
	))

	return lipgloss.JoinHorizontal(lipgloss.Left, strings.Join(blocks, ""), "  ", info)
}

func renderChannels(channels []float64) string {
	lines := make([]string, len(channels))
	for i, level := range channels {
		lines[i] = renderBar(fmt.Sprintf("ch %02d", i), level)
	}
	return strings.Join(lines, "\n")
}

func renderBar(label string, value float64) string {
	clamped := utils.Clamp(value, 0.0, 1.0)
	filled := int(math.Round(clamped * barWidth))
	if clamped > 0 && filled == 0 {
		filled = 1
	}

	builder := strings.Builder{}
	builder.Grow(96)
	builder.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", label)))
	builder.WriteString(" [")
	builder.WriteString(barFillStyle.Render(strings.Repeat("█", filled)))
	builder.WriteString(barEmptyStyle.Render(strings.Repeat("░", barWidth-filled)))
	builder.WriteString("] ")
	builder.WriteString(valueStyle.Render(fmt.Sprintf("%3.0f%%", clamped*100)))

	return builder.String()
}

func renderStats(frame Frame) string {
	session := lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Session:"), " ", valueStyle.Render(frame.State))
	counters := lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Sent:"), " ", valueStyle.Render(fmt.Sprintf("%d", frame.Stats.Sent)),
		"   ",
		labelStyle.Render("Skipped:"), " ", valueStyle.Render(fmt.Sprintf("%d", frame.Stats.Skipped)),
		"   ",
		labelStyle.Render("Dropped:"), " ", valueStyle.Render(fmt.Sprintf("%d", frame.Stats.Dropped)),
	)

	return lipgloss.JoinVertical(lipgloss.Left, session, counters)
}

func hexColorFromHSV(h, s, v float64) string {
	s = utils.Clamp(s, 0.0, 1.0)
	v = utils.Clamp(v, 0.0, 1.0)
	r, g, b, err := colorconv.HSVToRGB(utils.Clamp(h, 0.0, 359.0), s, v)
	if err != nil {
		return "#FFFFFF"
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func (m *model) invokeExit() {
	m.exitOnce.Do(func() {
		if m.onExit != nil {
			m.onExit()
		}
	})
}
