package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/frametree/pkg/presenter"
)

// View renders the entire TUI interface.
func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.buildHeader(),
		m.buildTabs(),
		"",
		m.viewport.View(),
		m.buildStatusBar(),
		m.buildTips(),
	)
}

func (m *model) buildHeader() string {
	return headerStyle.Render("🌳 frametree")
}

// buildTabs renders one tab per known session
func (m *model) buildTabs() string {
	if len(m.sessions) == 0 {
		return tipsStyle.Render("waiting for frames...")
	}

	tabs := make([]string, len(m.sessions))
	for i, id := range m.sessions {
		label := fmt.Sprintf(" %s (%d) ", shortID(string(id)), presenter.CountNodes(m.trees[id]))
		if i == m.selected {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return strings.Join(tabs, tipsStyle.Render("│"))
}

func (m *model) buildStatusBar() string {
	left := m.opts.Title
	if left == "" {
		left = "listening for extension reports"
	}

	right := ""
	switch {
	case m.polling:
		right = m.spinner.View() + " polling"
	case !m.lastPoll.IsZero():
		right = "updated " + m.lastPoll.Format("15:04:05")
	}
	if m.status != "" {
		right = m.status + "  " + right
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return statusBarStyle.Render(left + strings.Repeat(" ", padding) + right)
}

func (m *model) buildTips() string {
	return tipsStyle.Render("  Tab/←→ switch session • ↑↓ scroll • j toggle JSON • c copy JSON • r refresh • q quit")
}

// refreshContent re-renders the selected session into the viewport
func (m *model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderSession())
}

func (m *model) renderSession() string {
	if m.listErr != nil {
		return errorStyle.Render(fmt.Sprintf("Error while displaying the tree: %v", m.listErr))
	}

	id := m.current()
	if id == "" {
		return presenter.NoFramesMessage
	}
	if err := m.errs[id]; err != nil {
		return errorStyle.Render(fmt.Sprintf("Error while displaying the tree: %v", err))
	}

	var b strings.Builder
	p := presenter.New(nil, nil, presenter.Options{
		JSON:      m.showJSON,
		Highlight: m.opts.Highlight,
		Output:    &b,
	})
	if err := p.Render(m.trees[id]); err != nil {
		return errorStyle.Render(err.Error())
	}
	return b.String()
}

// shortID trims uuids to their first group for the tab bar
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 && len(id) == 36 {
		return id[:i]
	}
	return id
}
