package browser

import (
	"github.com/playwright-community/playwright-go"
)

// State describes the lifecycle of the shared browser session.
type State int

const (
	// StateDisconnected means no session exists yet.
	StateDisconnected State = iota

	// StateConnecting means an attach or launch attempt is in progress.
	StateConnecting

	// StateConnected means the session is live and usable.
	StateConnected

	// StateShuttingDown means Release has been called.
	StateShuttingDown
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// Session is the single shared browser-automation handle. Exactly one
// Session exists per process lifetime; it is created lazily by
// Manager.Acquire and torn down only by Manager.Release. Components borrow
// it to open isolated pages but must never close the browser themselves.
type Session struct {
	// Runtime is the Playwright driver instance backing the connection.
	Runtime *playwright.Playwright

	// Browser is the attached Chromium instance.
	Browser playwright.Browser

	// Context is the default browsing context: the analogue of the user's
	// window, carrying persisted cookies and login state.
	Context playwright.BrowserContext

	// Endpoint is the CDP URL the session is attached to.
	Endpoint string

	userAgent string
}

// close tears down the underlying connection and driver. Only the Manager
// calls this.
func (s *Session) close() {
	if s.Browser != nil {
		_ = s.Browser.Close() // Ignore errors, continue cleanup
	}
	if s.Runtime != nil {
		_ = s.Runtime.Stop() // Ignore errors, continue cleanup
	}
}
