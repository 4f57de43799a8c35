// Package memory provides an in-memory WorkspaceStore for development and
// tests. All data is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fragmentd/fragmentd/pkg/storage"
)

// Store is an in-memory WorkspaceStore. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[string]map[string]*storage.FileRecord // userID -> path -> record
}

// Ensure Store implements WorkspaceStore at compile time.
var _ storage.WorkspaceStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users: make(map[string]map[string]*storage.FileRecord),
	}
}

func (s *Store) files(ctx context.Context) map[string]*storage.FileRecord {
	user := storage.GetUser(ctx)
	m, ok := s.users[user]
	if !ok {
		m = make(map[string]*storage.FileRecord)
		s.users[user] = m
	}
	return m
}

// CreateFile inserts a new record.
func (s *Store) CreateFile(ctx context.Context, rec *storage.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := s.files(ctx)
	path := storage.NormalizePath(rec.Path)
	if _, exists := files[path]; exists {
		return storage.ErrConflict
	}

	stored := *rec
	stored.Path = path
	stored.ParentPath, stored.Name = storage.SplitPath(path)
	stored.SizeBytes = int64(len(stored.Content))
	stored.UserID = storage.GetUser(ctx)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	files[path] = &stored
	return nil
}

// GetFile retrieves a record by path.
func (s *Store) GetFile(ctx context.Context, path string) (*storage.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user := storage.GetUser(ctx)
	files, ok := s.users[user]
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec, ok := files[storage.NormalizePath(path)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListFiles returns every record for the user.
func (s *Store) ListFiles(ctx context.Context) ([]storage.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user := storage.GetUser(ctx)
	files := s.users[user]

	out := make([]storage.FileRecord, 0, len(files))
	for _, rec := range files {
		out = append(out, *rec)
	}
	return out, nil
}

// WriteContent replaces the content of an existing file.
func (s *Store) WriteContent(ctx context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := s.files(ctx)
	rec, ok := files[storage.NormalizePath(path)]
	if !ok || rec.IsDirectory {
		return storage.ErrNotFound
	}
	rec.Content = content
	rec.SizeBytes = int64(len(content))
	rec.UpdatedAt = time.Now()
	return nil
}

// DeleteFile removes a record with single-level or deep cascade.
func (s *Store) DeleteFile(ctx context.Context, path string, opts storage.DeleteOptions) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := s.files(ctx)
	target := storage.NormalizePath(path)
	if _, ok := files[target]; !ok {
		return nil, storage.ErrNotFound
	}

	var removed []string
	for p, rec := range files {
		match := p == target
		if opts.DeepCascade {
			match = match || strings.HasPrefix(p, target+"/")
		} else {
			match = match || rec.ParentPath == target
		}
		if match {
			removed = append(removed, p)
		}
	}
	for _, p := range removed {
		delete(files, p)
	}
	sort.Strings(removed)
	return removed, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
