package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/frametree/pkg/transport"
)

// UpdateLastUsed updates the LastUsedAt timestamp to the current time.
func (s *Session) UpdateLastUsed() {
	s.LastUsedAt = time.Now()
}

// Navigate navigates the session's page to the specified URL.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	s.UpdateLastUsed()

	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = &opts.Timeout
	}

	if _, err := s.Page.Goto(url, playwrightOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}

	s.CurrentURL = s.Page.URL()
	return nil
}

// TopSender is the identity of the session's top-level frame. The
// presenter queries the registry through it.
func (s *Session) TopSender() transport.Sender {
	url := s.Page.URL()
	if url == "" {
		url = s.CurrentURL
	}
	return transport.Sender{SessionID: s.ID, URL: url}
}

// Sender is the identity of frame f within this session.
func (s *Session) Sender(f playwright.Frame) transport.Sender {
	return transport.Sender{SessionID: s.ID, URL: f.URL()}
}
