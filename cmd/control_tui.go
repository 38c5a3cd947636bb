// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/dipwatch/pkg/dipmsg"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// controlKeys are the key bindings shown in the help line
type controlKeys struct {
	Left   key.Binding
	Right  key.Binding
	Toggle key.Binding
	Direct key.Binding
	AllOn  key.Binding
	AllOff key.Binding
	Quit   key.Binding
}

func (k controlKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Toggle, k.Direct, k.AllOn, k.AllOff, k.Quit}
}

func (k controlKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultControlKeys = controlKeys{
	Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev")),
	Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle")),
	Direct: key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7"), key.WithHelp("0-7", "toggle LED")),
	AllOn:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all on")),
	AllOff: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "all off")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Switch state from the latest report
	switches    dipmsg.Switches
	changedAt   [dipmsg.NumSwitches]time.Time
	hasSwitches bool

	// LED state as last commanded from this UI
	leds   [dipmsg.NumLEDs]bool
	cursor int

	// Monitoring
	stats         *dipmsg.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	keys           controlKeys
	help           help.Model
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlDataMsg struct {
	switches  dipmsg.Switches
	decodeErr error
}

type controlBatchMsg struct {
	messages []controlDataMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

type reconnectFailedMsg struct {
	err     error
	retryIn time.Duration
}

type ledResultMsg struct {
	index int
	on    bool
	err   error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	return controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		stats:         dipmsg.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		keys:          defaultControlKeys,
		help:          help.New(),
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case controlTickMsg:
		m.stats.CalculateRates()
		return m, controlTickCmd()

	case controlBatchMsg:
		for _, data := range msg.messages {
			m.processControlData(data)
		}

	case ledResultMsg:
		m.stats.RecordCommand(msg.err)
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("LED %d %s failed: %v", msg.index, onOff(msg.on), msg.err), true)
		} else {
			m.leds[msg.index] = msg.on
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost, reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
		// The device keeps its LED outputs; resend ours so both sides agree
		return m, m.resendLEDs()

	case reconnectFailedMsg:
		m.addLogEntry(fmt.Sprintf("Reconnect failed: %v (retry in %s)", msg.err, msg.retryIn), true)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Left):
		m.cursor = (m.cursor + dipmsg.NumLEDs - 1) % dipmsg.NumLEDs

	case key.Matches(msg, m.keys.Right):
		m.cursor = (m.cursor + 1) % dipmsg.NumLEDs

	case key.Matches(msg, m.keys.Toggle):
		return m, m.sendLED(m.cursor, !m.leds[m.cursor])

	case key.Matches(msg, m.keys.Direct):
		idx := int(msg.String()[0] - '0')
		m.cursor = idx
		return m, m.sendLED(idx, !m.leds[idx])

	case key.Matches(msg, m.keys.AllOn):
		return m, m.sendAll(true)

	case key.Matches(msg, m.keys.AllOff):
		return m, m.sendAll(false)
	}

	return m, nil
}

// handleMouseMsg toggles an LED when its cell is clicked
func (m controlModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	// The LED row is rendered on ledRowLine with fixed-width cells
	if msg.Y != ledRowLine {
		return m, nil
	}
	idx := (msg.X - 1) / cellWidth
	if idx < 0 || idx >= dipmsg.NumLEDs {
		return m, nil
	}
	m.cursor = idx
	return m, m.sendLED(idx, !m.leds[idx])
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m controlModel) sendLED(index int, on bool) tea.Cmd {
	cm := m.connMgr
	return func() tea.Msg {
		return ledResultMsg{index: index, on: on, err: cm.setLED(index, on)}
	}
}

func (m controlModel) sendAll(on bool) tea.Cmd {
	cmds := make([]tea.Cmd, 0, dipmsg.NumLEDs)
	for i := 0; i < dipmsg.NumLEDs; i++ {
		cmds = append(cmds, m.sendLED(i, on))
	}
	return tea.Sequence(cmds...)
}

func (m controlModel) resendLEDs() tea.Cmd {
	cmds := make([]tea.Cmd, 0, dipmsg.NumLEDs)
	for i, on := range m.leds {
		cmds = append(cmds, m.sendLED(i, on))
	}
	return tea.Sequence(cmds...)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

const (
	cellWidth  = 8
	ledRowLine = 6
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	onCellStyle = lipgloss.NewStyle().
			Width(cellWidth).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("10"))

	offCellStyle = lipgloss.NewStyle().
			Width(cellWidth).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("237"))

	changedCellStyle = onCellStyle.
				Background(lipgloss.Color("11"))

	cursorCellStyle = lipgloss.NewStyle().
			Width(cellWidth).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("12")).
			Bold(true)
)

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("DIPWATCH CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render("| " + connStatus))
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("SWITCHES"))
	s.WriteString("\n")
	s.WriteString(m.renderSwitchRow())
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("LEDS"))
	s.WriteString("\n")
	s.WriteString(m.renderLEDRow())
	s.WriteString("\n")
	s.WriteString(m.renderCursorRow())
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")
	s.WriteString(m.renderEventLog())
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

// renderSwitchRow draws one cell per switch. A switch that changed in the
// last second is highlighted.
func (m controlModel) renderSwitchRow() string {
	if !m.hasSwitches {
		return " " + headerStyle.Render("(waiting for first report)")
	}

	cells := make([]string, 0, dipmsg.NumSwitches)
	for i, on := range m.switches {
		label := fmt.Sprintf("%d %s", i+1, dipmsg.Label(on))
		style := offCellStyle
		switch {
		case time.Since(m.changedAt[i]) < time.Second:
			style = changedCellStyle
		case on:
			style = onCellStyle
		}
		cells = append(cells, style.Render(label))
	}
	return " " + lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m controlModel) renderLEDRow() string {
	cells := make([]string, 0, dipmsg.NumLEDs)
	for i, on := range m.leds {
		label := fmt.Sprintf("%d %s", i, onOff(on))
		style := offCellStyle
		if on {
			style = onCellStyle
		}
		cells = append(cells, style.Render(label))
	}
	return " " + lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m controlModel) renderCursorRow() string {
	cells := make([]string, dipmsg.NumLEDs)
	for i := range cells {
		mark := ""
		if i == m.cursor {
			mark = "^"
		}
		cells[i] = cursorCellStyle.Render(mark)
	}
	return " " + lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m controlModel) renderStatisticsBar() string {
	var s strings.Builder

	elapsed := time.Since(m.stats.StartTime)
	decodeErrors := m.stats.DecodeErrors + m.stats.UnknownShape

	s.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(elapsed.Round(time.Second).String()),
		statsLabelStyle.Render("Reports:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.StatusReports)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", m.stats.MessageRate)),
		statsLabelStyle.Render("Changes:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.SwitchChanges)),
		statsLabelStyle.Render("Commands:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.CommandsSent))))

	if decodeErrors > 0 || m.stats.CommandsFailed > 0 {
		s.WriteString("  ")
		s.WriteString(errorStyle.Render(fmt.Sprintf("Errors: %d", decodeErrors+m.stats.CommandsFailed)))
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

func (m controlModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processControlData(msg controlDataMsg) {
	m.stats.Update(msg.switches, msg.decodeErr)

	if msg.decodeErr != nil {
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}

	if m.hasSwitches {
		now := time.Now()
		for i := range msg.switches {
			if msg.switches[i] != m.switches[i] {
				m.changedAt[i] = now
				m.addLogEntry(fmt.Sprintf("Switch %d -> %s", i+1, dipmsg.Label(msg.switches[i])), false)
			}
		}
	}

	m.switches = msg.switches
	m.hasSwitches = true
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}
