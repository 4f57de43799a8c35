package sandbox

import (
	"context"
	"sync"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// Provisioner abstracts sandbox acquisition. Implementations exist for
// static URL mode (development) and SandboxClaim mode (Kubernetes CRDs).
type Provisioner interface {
	// Provision creates a fresh sandbox from a template and returns its
	// identifier and runner URL. The release function must be called when
	// the sandbox is no longer needed.
	Provision(ctx context.Context, template api.TemplateID) (id, runnerURL string, release func(), err error)

	// Lookup resolves the runner URL of an existing sandbox. Returns a
	// not_found error when the sandbox no longer exists.
	Lookup(ctx context.Context, id string) (runnerURL string, err error)
}

// Manager tracks live sessions and implements the connect-or-create
// contract: a request naming a known sandbox reuses its session, a request
// naming a vanished sandbox or none at all gets a fresh one.
type Manager struct {
	provisioner Provisioner
	client      *RunnerClient

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager backed by the given provisioner.
func NewManager(p Provisioner) *Manager {
	return &Manager{
		provisioner: p,
		client:      NewRunnerClient(),
		sessions:    make(map[string]*Session),
	}
}

// Connect returns the live session for a sandbox ID, re-resolving the
// runner URL when the session is not yet tracked.
func (m *Manager) Connect(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	url, err := m.provisioner.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	sess := NewSession(id, "", url, m.client, nil)
	m.track(sess)
	return sess, nil
}

// Create provisions a fresh sandbox from a template and returns its session.
func (m *Manager) Create(ctx context.Context, template api.TemplateID) (*Session, error) {
	if !api.IsKnownTemplate(template) {
		return nil, api.NewInvalidRequestError("template", "unknown template "+string(template))
	}

	id, url, release, err := m.provisioner.Provision(ctx, template)
	if err != nil {
		return nil, err
	}

	sess := NewSession(id, template, url, m.client, release)
	m.track(sess)
	return sess, nil
}

// ConnectOrCreate connects to an existing sandbox when id is set and still
// resolvable, and falls back to provisioning otherwise.
func (m *Manager) ConnectOrCreate(ctx context.Context, id string, template api.TemplateID) (*Session, error) {
	if id != "" {
		sess, err := m.Connect(ctx, id)
		if err == nil {
			return sess, nil
		}
		if apiErr, ok := err.(*api.APIError); !ok || apiErr.Type != api.ErrorTypeNotFound {
			return nil, err
		}
		// The sandbox is gone. Provision a replacement.
	}
	return m.Create(ctx, template)
}

// Release closes and forgets the session for a sandbox ID.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		sess.Close()
	}
}

// Close releases every tracked session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

func (m *Manager) track(sess *Session) {
	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()
}
