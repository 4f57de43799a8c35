package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fragmentd/fragmentd/pkg/api"
)

// Ensure StaticProvisioner implements Provisioner.
var _ Provisioner = (*StaticProvisioner)(nil)

// StaticProvisioner hands out a fixed runner URL (development mode). Every
// sandbox shares the same backing runner; IDs only distinguish sessions.
type StaticProvisioner struct {
	url string

	mu    sync.Mutex
	known map[string]bool
}

// NewStaticProvisioner creates a provisioner that always returns url.
func NewStaticProvisioner(url string) *StaticProvisioner {
	return &StaticProvisioner{url: url, known: make(map[string]bool)}
}

func (p *StaticProvisioner) Provision(_ context.Context, _ api.TemplateID) (string, string, func(), error) {
	id := fmt.Sprintf("sbx-%d", time.Now().UnixNano())

	p.mu.Lock()
	p.known[id] = true
	p.mu.Unlock()

	release := func() {
		p.mu.Lock()
		delete(p.known, id)
		p.mu.Unlock()
	}
	return id, p.url, release, nil
}

func (p *StaticProvisioner) Lookup(_ context.Context, id string) (string, error) {
	p.mu.Lock()
	ok := p.known[id]
	p.mu.Unlock()

	if !ok {
		return "", api.NewNotFoundError("sandbox " + id + " not found")
	}
	return p.url, nil
}
