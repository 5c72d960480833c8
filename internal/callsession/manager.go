package callsession

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager tracks live sessions by call ID so webhooks and the HTTP surface
// can cancel or inspect them.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*running
}

// Deps holds the collaborators shared by every session the manager starts.
type Deps struct {
	Base   Config // CallID is filled per call
	Logger *slog.Logger
}

type running struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates an empty Manager.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{deps: deps, sessions: make(map[string]*running)}
}

// Start creates a session for callID and runs it with the given stream until
// the call ends. It blocks for the lifetime of the call; the HTTP handler
// that accepted the websocket is the natural caller. Starting a call ID that
// is already live is an error.
func (m *Manager) Start(ctx context.Context, callID string, stream Stream) error {
	cfg := m.deps.Base
	cfg.CallID = callID
	sess, err := New(cfg)
	if err != nil {
		return err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	r := &running{session: sess, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if _, exists := m.sessions[callID]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("callsession: call %q is already live", callID)
	}
	m.sessions[callID] = r
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.sessions, callID)
		m.mu.Unlock()
		close(r.done)
	}()

	return sess.Run(sessCtx, stream)
}

// Cancel stops the named session if it is live and waits for its teardown to
// finish. Cancelling an unknown call is a no-op.
func (m *Manager) Cancel(callID string) {
	m.mu.Lock()
	r, ok := m.sessions[callID]
	m.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	<-r.done
}

// Lookup returns the live session for callID, or nil.
func (m *Manager) Lookup(callID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.sessions[callID]; ok {
		return r.session
	}
	return nil
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown cancels every live session and waits for them to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*running, 0, len(m.sessions))
	for _, r := range m.sessions {
		all = append(all, r)
	}
	m.mu.Unlock()

	for _, r := range all {
		r.cancel()
	}
	for _, r := range all {
		<-r.done
	}
}
