package browser

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/registry"
)

// SessionManager owns the playwright browser and every tracked page. It
// notifies subscribers when a page goes away so its frames can be purged.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[registry.SessionID]*Session
	playwright  *playwright.Playwright
	browsers    map[bool]playwright.Browser // keyed by headless
	maxSessions int
	initialized bool
	logger      logging.Sink

	onClosed []func(registry.SessionID)
}

// NewSessionManager creates a new session manager. A nil logger discards output.
func NewSessionManager(logger logging.Sink) *SessionManager {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SessionManager{
		sessions:    make(map[registry.SessionID]*Session),
		browsers:    make(map[bool]playwright.Browser),
		maxSessions: DefaultMaxSessions,
		logger:      logger,
	}
}

// Initialize installs the browser driver if needed and starts Playwright.
// This must be called before creating any sessions.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Keep driver output off the terminal, the presenter owns stdout
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// OnSessionClosed registers fn to be called with the id of every session
// whose page closes, whether closed by the user or by CloseSession.
func (m *SessionManager) OnSessionClosed(fn func(registry.SessionID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClosed = append(m.onClosed, fn)
}

// StartSession opens a new page and returns it as a session with a fresh id.
func (m *SessionManager) StartSession(opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", m.maxSessions)
	}

	if !m.initialized {
		return nil, fmt.Errorf("session manager not initialized")
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	browser, err := m.browserLocked(opts.Headless)
	if err != nil {
		return nil, err
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	now := time.Now()
	session := &Session{
		ID:         registry.SessionID(uuid.New().String()),
		Context:    context,
		Page:       page,
		Headless:   opts.Headless,
		CreatedAt:  now,
		LastUsedAt: now,
		CurrentURL: "about:blank",
	}

	id := session.ID
	page.OnClose(func(playwright.Page) {
		m.sessionGone(id)
	})

	m.sessions[id] = session
	m.logger.Infof("Started session %s", id)
	return session, nil
}

// browserLocked returns the shared browser for the headless mode, launching
// it on first use. Callers hold m.mu.
func (m *SessionManager) browserLocked(headless bool) (playwright.Browser, error) {
	if b, ok := m.browsers[headless]; ok && b.IsConnected() {
		return b, nil
	}

	b, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	m.browsers[headless] = b
	return b, nil
}

// sessionGone removes a session whose page closed and notifies subscribers.
func (m *SessionManager) sessionGone(id registry.SessionID) {
	m.mu.Lock()
	_, existed := m.sessions[id]
	delete(m.sessions, id)
	subscribers := append([]func(registry.SessionID){}, m.onClosed...)
	m.mu.Unlock()

	if !existed {
		return
	}
	m.logger.Infof("Session %s closed", id)
	for _, fn := range subscribers {
		fn(id)
	}
}

// CloseSession closes the session's page and context. Subscribers are
// notified through the page's close event.
func (m *SessionManager) CloseSession(id registry.SessionID) error {
	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("session %q not found", id)
	}

	_ = session.Page.Close()    // Ignore errors, continue cleanup
	_ = session.Context.Close() // Ignore errors, continue cleanup

	// The close event may not arrive if the driver is gone
	m.sessionGone(id)
	return nil
}

// GetSession retrieves an active session by id.
func (m *SessionManager) GetSession(id registry.SessionID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %q not found", id)
	}
	return session, nil
}

// ListSessions returns information about all active sessions, oldest first.
func (m *SessionManager) ListSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		infos = append(infos, SessionInfo{
			ID:         session.ID,
			CurrentURL: session.CurrentURL,
			Frames:     len(session.Page.Frames()),
			Headless:   session.Headless,
			CreatedAt:  session.CreatedAt,
			LastUsedAt: session.LastUsedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// HasSessions returns true if there are any active sessions.
func (m *SessionManager) HasSessions() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) > 0
}

// Shutdown closes all sessions and browsers and stops Playwright.
func (m *SessionManager) Shutdown() error {
	m.mu.RLock()
	ids := make([]registry.SessionID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.CloseSession(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for headless, b := range m.browsers {
		_ = b.Close()
		delete(m.browsers, headless)
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}
