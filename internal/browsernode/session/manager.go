// Package session holds the browser node's long-lived interactive login
// runtimes, keyed by login session id.
package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/syncsocial/syncsocial/internal/browsernode/platforms"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

// ErrNotFound is returned when no runtime exists for a login session id,
// typically after a node restart.
var ErrNotFound = errors.New("login session not found")

// runtime is one live browser stack behind an interactive login session.
type runtime struct {
	platformKey string
	createdAt   time.Time
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
}

// Manager registers login runtimes under a mutex. The lock is never held
// across page operations; stop pops the runtime first and closes after.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*runtime

	headless  bool
	remoteURL string
	logger    *logger.Logger
}

// NewManager creates a session manager. remoteURL is the public VNC URL
// returned to login starters; empty means the deployment has no remote view.
func NewManager(headless bool, remoteURL string, log *logger.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*runtime),
		headless:  headless,
		remoteURL: remoteURL,
		logger:    log.WithFields(zap.String("component", "session-manager")),
	}
}

// StartLogin opens a browser on the platform's login page and registers the
// runtime. Starting an already-registered session returns the public URL
// without touching the existing runtime.
func (m *Manager) StartLogin(loginSessionID, platformKey string, fingerprintProfile map[string]any) (*string, error) {
	m.mu.Lock()
	_, exists := m.sessions[loginSessionID]
	m.mu.Unlock()
	if exists {
		return m.publicURL(), nil
	}

	loginURL, err := platforms.LoginURL(platformKey)
	if err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}
	context, err := browser.NewContext(contextOptionsFromFingerprint(fingerprintProfile))
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, err
	}
	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, err
	}
	if _, err := page.Goto(loginURL); err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, err
	}

	rt := &runtime{
		platformKey: platformKey,
		createdAt:   time.Now().UTC(),
		pw:          pw,
		browser:     browser,
		context:     context,
		page:        page,
	}

	m.mu.Lock()
	m.sessions[loginSessionID] = rt
	m.mu.Unlock()

	m.logger.Info("login runtime started",
		zap.String("login_session_id", loginSessionID),
		zap.String("platform_key", platformKey))

	return m.publicURL(), nil
}

// IsLoggedIn probes the runtime's cookie jar against the platform predicate.
func (m *Manager) IsLoggedIn(loginSessionID string) (bool, error) {
	rt, err := m.get(loginSessionID)
	if err != nil {
		return false, err
	}
	origin, err := platforms.CookieOrigin(rt.platformKey)
	if err != nil {
		return false, err
	}
	cookies, err := rt.context.Cookies(origin)
	if err != nil {
		return false, err
	}
	return platforms.IsLoggedIn(rt.platformKey, cookies)
}

// StorageState exports the runtime's full browser storage state without
// closing it.
func (m *Manager) StorageState(loginSessionID string) (map[string]any, error) {
	rt, err := m.get(loginSessionID)
	if err != nil {
		return nil, err
	}
	state, err := rt.context.StorageState()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stop pops the runtime and closes it context-first. Stopping an unknown
// session is a no-op; close failures are logged, never surfaced.
func (m *Manager) Stop(loginSessionID string) {
	m.mu.Lock()
	rt, ok := m.sessions[loginSessionID]
	delete(m.sessions, loginSessionID)
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := rt.context.Close(); err != nil {
		m.logger.Warn("failed to close context", zap.String("login_session_id", loginSessionID), zap.Error(err))
	}
	if err := rt.browser.Close(); err != nil {
		m.logger.Warn("failed to close browser", zap.String("login_session_id", loginSessionID), zap.Error(err))
	}
	if err := rt.pw.Stop(); err != nil {
		m.logger.Warn("failed to stop playwright", zap.String("login_session_id", loginSessionID), zap.Error(err))
	}

	m.logger.Info("login runtime stopped", zap.String("login_session_id", loginSessionID))
}

// Close stops every registered runtime. Runtimes close in parallel so a
// hung browser does not hold the whole node's shutdown hostage.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			m.Stop(id)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) get(loginSessionID string) (*runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.sessions[loginSessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return rt, nil
}

func (m *Manager) publicURL() *string {
	if m.remoteURL == "" {
		return nil
	}
	url := m.remoteURL
	return &url
}
