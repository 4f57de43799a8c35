package storage

import (
	"context"
	"strings"
	"time"
)

// FileRecord is one persisted workspace file or directory. Paths are
// normalized to the leading-slash form; ParentPath is empty for records at
// the workspace root.
type FileRecord struct {
	ID          string
	UserID      string
	Path        string
	Name        string
	IsDirectory bool
	ParentPath  string
	Content     string
	SizeBytes   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeleteOptions controls cascade behavior for DeleteFile.
type DeleteOptions struct {
	// DeepCascade removes the entire subtree under the deleted path.
	// The default is a single-level cascade: the record itself plus its
	// direct children, leaving deeper descendants orphaned (they surface
	// at the tree root on the next rebuild).
	DeepCascade bool
}

// WorkspaceStore persists the flat file records a workspace tree is rebuilt
// from. All operations are scoped to the user in the context (see SetUser).
type WorkspaceStore interface {
	// CreateFile inserts a new record. Returns ErrConflict when a record
	// already exists at the path.
	CreateFile(ctx context.Context, rec *FileRecord) error

	// GetFile retrieves a record by path. Returns ErrNotFound when absent.
	GetFile(ctx context.Context, path string) (*FileRecord, error)

	// ListFiles returns every record for the user, in no particular order.
	ListFiles(ctx context.Context) ([]FileRecord, error)

	// WriteContent replaces the content of an existing file. Returns
	// ErrNotFound for absent paths and directories.
	WriteContent(ctx context.Context, path, content string) error

	// DeleteFile removes a record and cascades per opts. It returns the
	// paths actually removed. Returns ErrNotFound when the path itself
	// does not exist.
	DeleteFile(ctx context.Context, path string, opts DeleteOptions) ([]string, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// NormalizePath canonicalizes a workspace path to the leading-slash form
// with no trailing slash. Both "/a/b" and "a/b" normalize to "/a/b".
func NormalizePath(p string) string {
	p = strings.TrimSuffix(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// SplitPath returns the parent path and base name of a normalized path.
// The parent of a root-level entry is the empty string.
func SplitPath(p string) (parent, name string) {
	p = NormalizePath(p)
	i := strings.LastIndexByte(p, '/')
	parent = p[:i]
	name = p[i+1:]
	return parent, name
}
