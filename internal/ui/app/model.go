package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	historydto "stepcounter/internal/modules/history/dto"
	trackingdto "stepcounter/internal/modules/tracking/dto"
	"stepcounter/internal/ui/theme"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type trackingPort interface {
	PermissionGranted(ctx context.Context) (trackingdto.StateOutput, error)
	Reset(ctx context.Context) (trackingdto.StateOutput, error)
	Watch(ctx context.Context) (<-chan trackingdto.StateOutput, error)
}

type historyPort interface {
	WatchLatest(ctx context.Context) (<-chan historydto.LatestOutput, error)
}

// ─── async messages ───────────────────────────────────────────────────────────

type stateWatchMsg struct {
	updates <-chan trackingdto.StateOutput
	err     error
}

type stateMsg struct {
	state trackingdto.StateOutput
	ok    bool
}

type latestWatchMsg struct {
	updates <-chan historydto.LatestOutput
	err     error
}

type latestMsg struct {
	latest historydto.LatestOutput
	ok     bool
}

type commandDoneMsg struct {
	action string
	state  trackingdto.StateOutput
	err    error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Grant key.Binding
	Reset key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Grant: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "grant sensor permission")),
		Reset: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset count")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:  key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Grant, k.Reset, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Grant, k.Reset},
		{k.Help, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model renders the tracking read model. Commands go through the tracking
// port; the count and the last saved value arrive over watch channels.
type Model struct {
	ctx      context.Context
	tracking trackingPort
	history  historyPort

	states  <-chan trackingdto.StateOutput
	latests <-chan historydto.LatestOutput

	state    trackingdto.StateOutput
	latest   historydto.LatestOutput
	keys     keyMap
	help     help.Model
	showHelp bool
	status   string
	width    int
	height   int
}

func NewModel(ctx context.Context, tracking trackingPort, history historyPort) Model {
	return Model{
		ctx:      ctx,
		tracking: tracking,
		history:  history,
		state:    trackingdto.StateOutput{Phase: "not_started", SensorAvailable: true},
		keys:     defaultKeys(),
		help:     help.New(),
		status:   "press enter to grant sensor permission",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.watchStateCmd(), m.watchLatestCmd())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = m.width

	case stateWatchMsg:
		if msg.err != nil {
			m.status = "watch tracking: " + msg.err.Error()
			return m, nil
		}
		m.states = msg.updates
		return m, waitState(m.states)

	case stateMsg:
		if !msg.ok {
			m.states = nil
			return m, nil
		}
		m.state = msg.state
		return m, waitState(m.states)

	case latestWatchMsg:
		if msg.err != nil {
			m.status = "watch saved count: " + msg.err.Error()
			return m, nil
		}
		m.latests = msg.updates
		return m, waitLatest(m.latests)

	case latestMsg:
		if !msg.ok {
			m.latests = nil
			return m, nil
		}
		m.latest = msg.latest
		return m, waitLatest(m.latests)

	// The watch stream owns m.state; a command reply can be older than
	// the last streamed reading.
	case commandDoneMsg:
		if msg.err != nil {
			m.status = msg.action + " failed: " + msg.err.Error()
			return m, nil
		}
		m.status = msg.action + " ok"

	case tea.KeyMsg:
		if m.showHelp {
			if key.Matches(msg, m.keys.Help) || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
		case key.Matches(msg, m.keys.Grant):
			return m, m.grantCmd()
		case key.Matches(msg, m.keys.Reset):
			return m, m.resetCmd()
		}
	}
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := theme.Title.Render("stepcounter")
	statusBar := m.renderStatusBar()

	var content string
	if m.showHelp {
		content = m.help.View(m.keys)
	} else {
		content = m.renderCounter()
	}
	body := lipgloss.JoinVertical(lipgloss.Left, header, "", content)
	if m.width > 0 {
		body = lipgloss.Place(m.width, max(m.height-lipgloss.Height(statusBar), 1),
			lipgloss.Center, lipgloss.Center, body)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, statusBar)
}

func (m Model) renderCounter() string {
	var lines []string
	switch {
	case !m.state.SensorAvailable:
		lines = append(lines, theme.Warn.Render("Step counter sensor unavailable"))
	case !m.state.Started:
		lines = append(lines, theme.Muted.Render("Waiting for permission"))
	default:
		lines = append(lines, theme.Count.Render(fmt.Sprintf("%d", m.state.DisplayedCount)))
		lines = append(lines, theme.Muted.Render("steps since reset"))
	}
	lines = append(lines, "", m.renderLatest())
	return theme.Pane.Render(strings.Join(lines, "\n"))
}

func (m Model) renderLatest() string {
	if !m.latest.Found {
		return theme.Muted.Render("no saved count yet")
	}
	saved := m.latest.Record
	return theme.Muted.Render(fmt.Sprintf("last saved %d at %s",
		saved.Count, saved.SavedAt.Local().Format("2006-01-02 15:04:05")))
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.state.SessionID != "" {
		phase := m.state.Phase
		if m.state.Saving {
			phase += " · saving"
		}
		left = theme.Hot.Render("● "+phase) + "  " + left
	}
	right := theme.Muted.Render("enter:grant  r:reset  ?:help  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) watchStateCmd() tea.Cmd {
	return func() tea.Msg {
		updates, err := m.tracking.Watch(m.ctx)
		return stateWatchMsg{updates: updates, err: err}
	}
}

func (m Model) watchLatestCmd() tea.Cmd {
	return func() tea.Msg {
		updates, err := m.history.WatchLatest(m.ctx)
		return latestWatchMsg{updates: updates, err: err}
	}
}

func waitState(updates <-chan trackingdto.StateOutput) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-updates
		return stateMsg{state: state, ok: ok}
	}
}

func waitLatest(updates <-chan historydto.LatestOutput) tea.Cmd {
	return func() tea.Msg {
		latest, ok := <-updates
		return latestMsg{latest: latest, ok: ok}
	}
}

func (m Model) grantCmd() tea.Cmd {
	return func() tea.Msg {
		state, err := m.tracking.PermissionGranted(m.ctx)
		return commandDoneMsg{action: "grant", state: state, err: err}
	}
}

func (m Model) resetCmd() tea.Cmd {
	return func() tea.Msg {
		state, err := m.tracking.Reset(m.ctx)
		return commandDoneMsg{action: "reset", state: state, err: err}
	}
}
