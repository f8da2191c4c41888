// Package monitor is a terminal dashboard for a running bridge. It consumes
// the diagnostics websocket stream and renders the live session table.
package monitor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/bluekiller/homemate-bridge/internal/server"
)

const dialTimeout = 5 * time.Second

// Message types for async operations
type connectedMsg struct {
	conn *websocket.Conn
}

type snapshotMsg struct {
	sessions []server.SessionInfo
}

type errMsg struct {
	err error
}

// Model is the bubbletea model for the monitor screen.
type Model struct {
	url  string
	conn *websocket.Conn

	table     table.Model
	spinner   spinner.Model
	connected bool
	err       error

	count      int
	lastUpdate time.Time

	width  int
	height int
}

// NewModel creates a monitor for the diagnostics endpoint at url
// (ws://host:port/ws).
func NewModel(url string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	columns := []table.Column{
		{Title: "NAME", Width: 24},
		{Title: "UID", Width: 22},
		{Title: "IP", Width: 15},
		{Title: "POWER", Width: 8},
		{Title: "MOVING", Width: 7},
		{Title: "POS", Width: 5},
		{Title: "SERIAL", Width: 7},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Bold(true).
		Foreground(PrimaryColor)
	styles.Selected = styles.Selected.
		Foreground(TextColor).
		Background(PrimaryColor)
	t.SetStyles(styles)

	return Model{
		url:     url,
		spinner: s,
		table:   t,
		width:   GetTerminalWidth(),
	}
}

// Init starts the spinner and dials the bridge.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, connectCmd(m.url))
}

// connectCmd dials the diagnostics websocket.
func connectCmd(url string) tea.Cmd {
	return func() tea.Msg {
		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		conn, _, err := dialer.Dial(url, nil)
		if err != nil {
			return errMsg{err: fmt.Errorf("failed to connect to %s: %w", url, err)}
		}
		return connectedMsg{conn: conn}
	}
}

// readCmd blocks for the next snapshot from the stream.
func readCmd(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var sessions []server.SessionInfo
		if err := conn.ReadJSON(&sessions); err != nil {
			return errMsg{err: fmt.Errorf("stream ended: %w", err)}
		}
		return snapshotMsg{sessions: sessions}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.conn != nil {
				_ = m.conn.Close()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.conn = msg.conn
		m.connected = true
		m.err = nil
		return m, readCmd(m.conn)

	case snapshotMsg:
		m.count = len(msg.sessions)
		m.lastUpdate = time.Now()
		m.table.SetRows(sessionRows(msg.sessions))
		return m, readCmd(m.conn)

	case errMsg:
		m.err = msg.err
		m.connected = false
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func sessionRows(sessions []server.SessionInfo) []table.Row {
	rows := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		moving := "-"
		switch s.Moving {
		case 1:
			moving = "up"
		case -1:
			moving = "down"
		}

		rows = append(rows, table.Row{
			s.DeviceName,
			s.UID,
			s.RemoteIP,
			s.Power,
			moving,
			strconv.Itoa(s.Position),
			strconv.FormatInt(s.Serial, 10),
		})
	}
	return rows
}

// View renders the monitor screen.
func (m Model) View() string {
	title := TitleStyle.Render("HOMEMATE BRIDGE MONITOR")

	var status string
	switch {
	case m.err != nil:
		status = ErrorStyle.Render("✗ " + m.err.Error())
	case !m.connected:
		status = StatusStyle.Render(m.spinner.View() + " connecting to " + m.url)
	default:
		status = StatusStyle.Render(fmt.Sprintf("connected • %d device(s) • updated %s",
			m.count, m.lastUpdate.Format("15:04:05")))
	}

	help := HelpStyle.Render("q: quit • ↑/↓: select")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		status,
		"",
		TableBorderStyle.Render(m.table.View()),
		"",
		help,
	)
}

// Run blocks in the monitor UI until the user quits.
func Run(url string) error {
	p := tea.NewProgram(NewModel(url), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
