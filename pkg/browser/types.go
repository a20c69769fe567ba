package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/frametree/pkg/registry"
)

// Session is one tracked browser tab: a playwright page whose frames are
// reported under the session's id.
type Session struct {
	// ID is the registry session id, a random UUID
	ID registry.SessionID

	// Context is the browser context (isolated session)
	Context playwright.BrowserContext

	// Page is the tracked page
	Page playwright.Page

	// Headless indicates if the browser is running in headless mode
	Headless bool

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	// LastUsedAt is the timestamp of the last operation on this session
	LastUsedAt time.Time

	// CurrentURL is the URL of the top-level document
	CurrentURL string
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for operations (in milliseconds)
	Timeout float64
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Timeout in milliseconds (0 means default)
	Timeout float64
}

// SessionInfo contains metadata about a browser session.
type SessionInfo struct {
	ID         registry.SessionID
	CurrentURL string
	Frames     int
	Headless   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Default values for various operations
const (
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxSessions    = 5
)
