// Package tui renders the dashboard page in the terminal with bubbletea.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trolltrack/trolltrack/internal/viewmodel"
)

// DashboardPage is the page state the model renders.
// *viewmodel.Dashboard implements it.
type DashboardPage interface {
	Initialize(ctx context.Context) bool
	Refresh(ctx context.Context) bool
	State() viewmodel.DashboardState
}

// dashboardLoadedMsg carries the page state after a load finished
type dashboardLoadedMsg struct {
	state viewmodel.DashboardState
}

// autoRefreshMsg fires on the auto refresh interval
type autoRefreshMsg struct{}

// Model is the bubbletea model of the terminal dashboard.
type Model struct {
	ctx      context.Context
	page     DashboardPage
	interval time.Duration

	width   int
	height  int
	loading bool
	state   viewmodel.DashboardState
	spinner spinner.Model
}

// Option configures a Model.
type Option func(*Model)

// WithAutoRefresh reloads the dashboard every interval.
func WithAutoRefresh(interval time.Duration) Option {
	return func(m *Model) { m.interval = interval }
}

// NewModel creates the dashboard model. Page loads run with ctx.
func NewModel(ctx context.Context, page DashboardPage, opts ...Option) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	m := Model{
		ctx:     ctx,
		page:    page,
		loading: true,
		state:   page.State(),
		spinner: s,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the first load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(false), m.scheduleRefresh())
}

func (m Model) load(refresh bool) tea.Cmd {
	ctx, page := m.ctx, m.page
	return func() tea.Msg {
		if refresh {
			page.Refresh(ctx)
		} else {
			page.Initialize(ctx)
		}
		return dashboardLoadedMsg{state: page.State()}
	}
}

func (m Model) scheduleRefresh() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return autoRefreshMsg{} })
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
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.load(true))
		}
		return m, nil

	case dashboardLoadedMsg:
		m.loading = false
		m.state = msg.state
		return m, nil

	case autoRefreshMsg:
		next := m.scheduleRefresh()
		if m.loading {
			return m, next
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.load(true), next)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	return m.render()
}
