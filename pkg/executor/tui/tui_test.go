package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/frametree/pkg/registry"
	"github.com/entrhq/frametree/pkg/transport"
)

type dispatchChannel struct {
	d      *transport.Dispatcher
	sender transport.Sender
}

func (c dispatchChannel) Send(_ context.Context, msg transport.Message) (transport.Response, error) {
	return c.d.Handle(c.sender, msg), nil
}

type fakeSource struct {
	dispatcher  *transport.Dispatcher
	sessionsErr error
}

func (s *fakeSource) Sessions(context.Context) ([]registry.SessionID, error) {
	if s.sessionsErr != nil {
		return nil, s.sessionsErr
	}
	return s.dispatcher.Registry().Sessions(), nil
}

func (s *fakeSource) PresenterChannel(id registry.SessionID) transport.Channel {
	return dispatchChannel{d: s.dispatcher, sender: transport.Sender{SessionID: id, URL: "frametree://test"}}
}

func newTestModel(t *testing.T) (*model, *registry.Registry, *fakeSource) {
	t.Helper()
	reg := registry.New()
	src := &fakeSource{dispatcher: transport.NewDispatcher(reg, nil)}
	m := newModel(context.Background(), src, Options{Title: "https://top.example/"}, nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, reg, src
}

// pollNow runs a poll command synchronously and feeds the result back
func pollNow(m *model) tea.Cmd {
	msg := m.poll(false)()
	_, cmd := m.Update(msg)
	return cmd
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_NoSessions(t *testing.T) {
	m, _, _ := newTestModel(t)

	cmd := pollNow(m)
	assert.NotNil(t, cmd, "tick-driven poll schedules the next tick")
	assert.Contains(t, m.View(), "No iframes detected")
	assert.Contains(t, m.View(), "waiting for frames")
}

func TestModel_RendersSelectedSession(t *testing.T) {
	m, reg, _ := newTestModel(t)
	require.NoError(t, reg.Register("tab-a", "https://top.example/", 0))
	require.NoError(t, reg.Register("tab-a", "https://ads.example/slot", 1))
	require.NoError(t, reg.Register("tab-b", "https://other.example/", 0))

	pollNow(m)
	view := m.View()
	assert.Contains(t, view, "tab-a (2)")
	assert.Contains(t, view, "tab-b (1)")
	assert.Contains(t, view, "  📄 ads.example/slot")

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, registry.SessionID("tab-b"), m.current())
	assert.Contains(t, m.View(), "📄 other.example/")
	assert.NotContains(t, m.View(), "ads.example/slot")

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, registry.SessionID("tab-a"), m.current())
}

func TestModel_SelectionSurvivesPoll(t *testing.T) {
	m, reg, _ := newTestModel(t)
	require.NoError(t, reg.Register("tab-b", "https://b.example/", 0))
	pollNow(m)

	require.NoError(t, reg.Register("tab-a", "https://a.example/", 0))
	pollNow(m)

	assert.Equal(t, registry.SessionID("tab-b"), m.current())
}

func TestModel_ClosedSessionDisappears(t *testing.T) {
	m, reg, _ := newTestModel(t)
	require.NoError(t, reg.Register("tab-a", "https://a.example/", 0))
	pollNow(m)

	reg.CloseSession("tab-a")
	pollNow(m)

	assert.Empty(t, m.sessions)
	assert.Contains(t, m.View(), "No iframes detected")
}

func TestModel_ToggleJSON(t *testing.T) {
	m, reg, _ := newTestModel(t)
	require.NoError(t, reg.Register("tab-a", "https://a.example/x", 0))
	pollNow(m)

	assert.NotContains(t, m.View(), `"domain"`)
	m.Update(key("j"))
	assert.Contains(t, m.View(), `"domain": "a.example"`)
}

func TestModel_CopyTree(t *testing.T) {
	var copied string
	orig := clipboardWriteAll
	clipboardWriteAll = func(s string) error {
		copied = s
		return nil
	}
	defer func() { clipboardWriteAll = orig }()

	m, reg, _ := newTestModel(t)
	m.Update(key("c"))
	assert.Empty(t, copied)
	assert.Contains(t, m.status, "Nothing to copy")

	require.NoError(t, reg.Register("tab-a", "https://a.example/x", 0))
	pollNow(m)
	m.Update(key("c"))
	assert.JSONEq(t, `[{"domain":"a.example","path":"/x"}]`, copied)
	assert.Contains(t, m.status, "Copied tree of tab-a")

	clipboardWriteAll = func(string) error { return errors.New("no clipboard") }
	m.Update(key("y"))
	assert.Contains(t, m.status, "Failed to copy tree")
}

func TestModel_ListError(t *testing.T) {
	m, _, src := newTestModel(t)
	src.sessionsErr = errors.New("bus closed")

	pollNow(m)
	assert.Contains(t, m.View(), "Error while displaying the tree: bus closed")
}

func TestModel_ManualRefreshDoesNotScheduleTick(t *testing.T) {
	m, _, _ := newTestModel(t)

	_, cmd := m.Update(key("r"))
	require.NotNil(t, cmd)
	msg := cmd()
	_, next := m.Update(msg)
	assert.Nil(t, next)
	assert.False(t, m.polling)
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0f8fad5b", shortID("0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Equal(t, "tab-a", shortID("tab-a"))
}
