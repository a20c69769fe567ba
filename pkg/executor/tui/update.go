package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/frametree/pkg/presenter"
	"github.com/entrhq/frametree/pkg/registry"
)

// Init starts the spinner and the first poll.
func (m *model) Init() tea.Cmd {
	m.polling = true
	return tea.Batch(m.spinner.Tick, m.poll(false))
}

// Update handles all state updates for the TUI model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalculateLayout()
		m.refreshContent()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.polling = true
		return m, m.poll(false)

	case pollResultMsg:
		m.applyPoll(msg)
		if msg.manual {
			return m, nil
		}
		return m, m.scheduleTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "tab", "right", "l":
		m.selectSession(1)
	case "shift+tab", "left", "h":
		m.selectSession(-1)
	case "j":
		m.showJSON = !m.showJSON
		m.refreshContent()
	case "c", "y":
		m.copyTree()
	case "r":
		if !m.polling {
			m.polling = true
			return m, m.poll(true)
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) selectSession(delta int) {
	if len(m.sessions) == 0 {
		return
	}
	m.selected = (m.selected + delta + len(m.sessions)) % len(m.sessions)
	m.status = ""
	m.refreshContent()
	m.viewport.GotoTop()
}

func (m *model) copyTree() {
	id := m.current()
	nodes := m.trees[id]
	if nodes == nil {
		m.status = errorStyle.Render("Nothing to copy")
		return
	}

	data, err := json.MarshalIndent(nodes, "", "  ")
	if err == nil {
		err = clipboardWriteAll(string(data))
	}
	if err != nil {
		m.logger.Warnf("Copy of session %s failed: %v", id, err)
		m.status = errorStyle.Render("Failed to copy tree")
		return
	}
	m.status = successStyle.Render(fmt.Sprintf("Copied tree of %s to clipboard", id))
}

// poll fetches the session list and every session's tree off the UI loop.
// Manual polls do not schedule the next tick.
func (m *model) poll(manual bool) tea.Cmd {
	ctx, source, logger, opts := m.ctx, m.source, m.logger, m.opts
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, pollTimeout)
		defer cancel()

		result := pollResultMsg{
			trees:  make(map[registry.SessionID][]*presenter.VisualNode),
			errs:   make(map[registry.SessionID]error),
			at:     time.Now(),
			manual: manual,
		}

		sessions, err := source.Sessions(ctx)
		if err != nil {
			result.err = err
			return result
		}
		result.sessions = sessions

		for _, id := range sessions {
			p := presenter.New(source.PresenterChannel(id), logger, presenter.Options{Interval: opts.Interval})
			nodes, err := p.Poll(ctx)
			if err != nil {
				logger.Errorf("Error while displaying the tree: %v", err)
				result.errs[id] = err
				continue
			}
			result.trees[id] = nodes
		}
		return result
	}
}

func (m *model) scheduleTick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) applyPoll(msg pollResultMsg) {
	m.polling = false
	m.rounds++
	m.lastPoll = msg.at
	m.listErr = msg.err
	if msg.err != nil {
		m.refreshContent()
		return
	}

	previous := m.current()
	m.sessions = msg.sessions
	m.trees = msg.trees
	m.errs = msg.errs

	m.selected = 0
	for i, id := range m.sessions {
		if id == previous {
			m.selected = i
			break
		}
	}
	m.refreshContent()
}

// recalculateLayout sizes the viewport to the space between the bars
func (m *model) recalculateLayout() {
	height := m.height - headerHeight - footerHeight
	if height < 1 {
		height = 1
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, height)
		m.ready = true
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = height
}
