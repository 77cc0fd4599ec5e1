package browser

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
)

// Manager owns the process-wide browser session. Acquire is connect-or-launch:
// it first tries to attach to an already-running Chromium via its
// remote-debugging endpoint, and only if that fails spawns a local browser
// with a persistent profile and retries the attach exactly once.
//
// All extractor and automation tasks borrow the session; only the Manager may
// terminate it.
type Manager struct {
	mu       sync.Mutex
	cfg      *config.Config
	log      *logging.Logger
	session  *Session
	watchdog *watchdog
	state    State
	released bool

	// attachFn, launchFn and healthFn are the seams tests use to avoid a
	// real browser.
	attachFn func() (*Session, error)
	launchFn func() error
	settleFn func(ctx context.Context) error
	healthFn func() error

	// exitFn is invoked by the watchdog when the browser is gone.
	exitFn func()
}

// NewManager creates a session manager. The session itself is created lazily
// on the first Acquire.
func NewManager(cfg *config.Config, log *logging.Logger) *Manager {
	m := &Manager{
		cfg:   cfg,
		log:   log,
		state: StateDisconnected,
	}
	m.attachFn = m.attach
	m.launchFn = m.launch
	m.settleFn = m.settle
	m.healthFn = probeEndpoint(cfg.Browser.HealthEndpoint(), cfg.Watchdog.PollInterval)
	m.exitFn = func() { os.Exit(1) }
	return m
}

// Acquire returns the shared session, creating it if absent. Calling it twice
// without an intervening Release returns the same handle. A second failed
// attach is fatal and surfaces to the caller; there is no further retry.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return m.session, nil
	}
	if m.released {
		return nil, fmt.Errorf("session manager already released")
	}

	m.state = StateConnecting

	session, err := m.attachFn()
	if err != nil {
		m.log.Warnf("CDP attach failed, launching local browser: %v", err)

		if launchErr := m.launchFn(); launchErr != nil {
			m.state = StateDisconnected
			return nil, fmt.Errorf("failed to launch browser: %w", launchErr)
		}

		if settleErr := m.settleFn(ctx); settleErr != nil {
			m.state = StateDisconnected
			return nil, settleErr
		}

		session, err = m.attachFn()
		if err != nil {
			m.state = StateDisconnected
			return nil, fmt.Errorf("browser attach failed after launch: %w", err)
		}
	}

	m.session = session
	m.state = StateConnected
	m.log.Infof("attached to browser at %s", session.Endpoint)

	if m.watchdog == nil {
		m.watchdog = newWatchdog(m.cfg.Watchdog, m.log, m.healthFn, m.exitFn)
		m.watchdog.start()
	}

	return m.session, nil
}

// Release tears down the watchdog, the browser connection and the driver.
// Idempotent, and safe to call even if Acquire was never called.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return
	}
	m.released = true
	m.state = StateShuttingDown

	if m.watchdog != nil {
		m.watchdog.stop()
		m.watchdog = nil
	}

	if m.session != nil {
		m.session.close()
		m.session = nil
	}

	m.state = StateDisconnected
	m.log.Infof("browser session released")
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// attach starts the Playwright driver and connects to the running browser
// over CDP, adopting its default context so persisted login state is reused.
func (m *Manager) attach() (*Session, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright driver: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	endpoint := m.cfg.Browser.CDPEndpoint()
	browser, err := pw.Chromium.ConnectOverCDP(endpoint)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to connect over CDP at %s: %w", endpoint, err)
	}

	var browserCtx playwright.BrowserContext
	if contexts := browser.Contexts(); len(contexts) > 0 {
		browserCtx = contexts[0]
	} else {
		browserCtx, err = browser.NewContext()
		if err != nil {
			_ = browser.Close()
			_ = pw.Stop()
			return nil, fmt.Errorf("failed to create browser context: %w", err)
		}
	}

	return &Session{
		Runtime:   pw,
		Browser:   browser,
		Context:   browserCtx,
		Endpoint:  endpoint,
		userAgent: m.cfg.Browser.UserAgent,
	}, nil
}

// launch spawns a local browser with the fixed remote-debugging port and the
// persistent user-data directory. The spawned process is left running; the
// watchdog owns liveness from here on.
func (m *Manager) launch() error {
	userDataDir, err := m.cfg.Browser.ResolveUserDataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(userDataDir, 0750); err != nil {
		return fmt.Errorf("failed to create user data dir: %w", err)
	}

	executable, err := m.findExecutable()
	if err != nil {
		return err
	}

	cmd := exec.Command(executable,
		fmt.Sprintf("--remote-debugging-port=%d", m.cfg.Browser.DebugPort),
		fmt.Sprintf("--user-data-dir=%s", userDataDir),
		"--no-first-run",
		"--no-default-browser-check",
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", executable, err)
	}

	// Detach: the browser outlives any single request and may outlive us.
	go func() { _ = cmd.Wait() }()

	m.log.Infof("launched %s with remote debugging on port %d", executable, m.cfg.Browser.DebugPort)
	return nil
}

// findExecutable returns the first configured browser binary present on PATH.
func (m *Manager) findExecutable() (string, error) {
	for _, candidate := range m.cfg.Browser.Executables {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no browser executable found, tried %v", m.cfg.Browser.Executables)
}

// settle waits the configured delay for a freshly launched browser to open
// its debugging port.
func (m *Manager) settle(ctx context.Context) error {
	select {
	case <-time.After(m.cfg.Browser.LaunchSettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
