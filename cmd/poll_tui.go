// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/imulink/pkg/imu"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// TUI model
type pollModel struct {
	connInfo      string
	command       uint8
	stats         imu.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	lastValues    []float32
	lastVersion   *uint8
	crcBar        progress.Model
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type pollEventMsg pollEvent
type pollDoneMsg struct{ err error }

func newPollModel(connInfo string, command uint8) pollModel {
	return pollModel{
		connInfo:      connInfo,
		command:       command,
		stats:         *imu.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		crcBar:        progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:         80,
		height:        24,
	}
}

func (m pollModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m pollModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.crcBar.Width = msg.Width - 30
		if m.crcBar.Width < 10 {
			m.crcBar.Width = 10
		}

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case pollEventMsg:
		m.stats = msg.stats
		m.applyEvent(pollEvent(msg))

	case pollDoneMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Stopped: %v", msg.err), true)
		} else {
			m.addLogEntry("Polling finished", false)
		}
	}

	return m, nil
}

func (m *pollModel) applyEvent(ev pollEvent) {
	switch {
	case ev.timeout:
		m.addLogEntry(fmt.Sprintf("TIMEOUT on request #%d", ev.seq), true)

	case ev.decodeErr != nil:
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.decodeErr), true)

	case ev.frame != nil:
		for _, verr := range ev.validationErrors {
			m.addLogEntry(fmt.Sprintf("%s: %s", imu.FormatCommand(ev.frame.Command()), verr.Message), true)
		}
		switch ev.frame.Command() {
		case imu.CmdReadData:
			if values, err := ev.frame.Floats(); err == nil {
				m.lastValues = values
			}
		case imu.CmdFirmwareCheck:
			if version, err := ev.frame.FirmwareVersion(); err == nil {
				if m.lastVersion == nil || *m.lastVersion != version {
					m.addLogEntry(fmt.Sprintf("Firmware version 0x%02X", version), false)
				}
				m.lastVersion = &version
			}
		}
	}
}

func (m *pollModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m pollModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("IMULINK - POLL"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Command: %s (0x%02X) | Press 'q' to quit",
		m.connInfo, imu.FormatCommand(m.command), m.command)))
	s.WriteString("\n\n")

	// Statistics
	st := &m.stats
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("TX:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Transmitted)),
		statsLabelStyle.Render("RX:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Received)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d", st.ValidFrames)),
	))

	crcStyle := statsValueStyle
	if st.CRCErrors > 0 {
		crcStyle = errorStyle
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("CRC Errors:"), crcStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.CRCErrors, st.CRCErrorPercent())),
		statsLabelStyle.Render("Timeouts:"), warningStyle.Render(fmt.Sprintf("%d", st.Timeouts)),
		statsLabelStyle.Render("Length Errors:"), warningStyle.Render(fmt.Sprintf("%d", st.LengthErrors)),
	))

	okRatio := 1.0
	if st.Received > 0 {
		okRatio = float64(st.ValidFrames) / float64(st.Received)
	}
	statsContent.WriteString(fmt.Sprintf("%s %s %s\n",
		statsLabelStyle.Render("CRC OK:"), m.crcBar.ViewAs(okRatio), statsValueStyle.Render(fmt.Sprintf("%.1f%%", okRatio*100)),
	))

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest sensor data
	if len(m.lastValues) > 0 || m.lastVersion != nil {
		s.WriteString(statsLabelStyle.Render("Latest Data:"))
		s.WriteString("\n")

		dataContent := strings.Builder{}
		if m.lastVersion != nil {
			dataContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render("Firmware:"), statsValueStyle.Render(fmt.Sprintf("0x%02X", *m.lastVersion))))
		}
		for i, v := range m.lastValues {
			dataContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render(fmt.Sprintf("Value %d:", i)),
				statsValueStyle.Render(fmt.Sprintf("%.4f", v)),
			))
		}

		s.WriteString(boxStyle.Render(strings.TrimRight(dataContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 15 - len(m.lastValues)
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// runPollTUI runs the poller behind the terminal UI
func runPollTUI(ctx context.Context, p *poller, connInfo string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newPollModel(connInfo, p.command))

	go func() {
		err := p.run(ctx, pollCount, func(ev pollEvent) {
			prog.Send(pollEventMsg(ev))
		})
		prog.Send(pollDoneMsg{err: err})
	}()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
