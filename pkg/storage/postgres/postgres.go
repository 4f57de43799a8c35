// Package postgres provides a PostgreSQL implementation of
// storage.WorkspaceStore. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fragmentd/fragmentd/pkg/storage"
)

// Store is a PostgreSQL-backed WorkspaceStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.WorkspaceStore at compile time.
var _ storage.WorkspaceStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// CreateFile inserts a new record.
func (s *Store) CreateFile(ctx context.Context, rec *storage.FileRecord) error {
	userID := storage.GetUser(ctx)
	path := storage.NormalizePath(rec.Path)
	parent, name := storage.SplitPath(path)

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO workspace_files (
			id, user_id, path, name, is_directory, parent_path, content,
			size_bytes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`,
		id, userID, path, name, rec.IsDirectory, parent, rec.Content,
		len(rec.Content),
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting file: %w", err)
	}

	return nil
}

// GetFile retrieves a record by path.
func (s *Store) GetFile(ctx context.Context, path string) (*storage.FileRecord, error) {
	userID := storage.GetUser(ctx)

	var rec storage.FileRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, path, name, is_directory, parent_path, content,
		       size_bytes, created_at, updated_at
		FROM workspace_files
		WHERE user_id = $1 AND path = $2
	`, userID, storage.NormalizePath(path)).Scan(
		&rec.ID, &rec.UserID, &rec.Path, &rec.Name, &rec.IsDirectory,
		&rec.ParentPath, &rec.Content, &rec.SizeBytes, &rec.CreatedAt, &rec.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying file: %w", err)
	}

	return &rec, nil
}

// ListFiles returns every record for the user.
func (s *Store) ListFiles(ctx context.Context) ([]storage.FileRecord, error) {
	userID := storage.GetUser(ctx)

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, path, name, is_directory, parent_path, content,
		       size_bytes, created_at, updated_at
		FROM workspace_files
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var out []storage.FileRecord
	for rows.Next() {
		var rec storage.FileRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Path, &rec.Name, &rec.IsDirectory,
			&rec.ParentPath, &rec.Content, &rec.SizeBytes, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// WriteContent replaces the content of an existing file.
func (s *Store) WriteContent(ctx context.Context, path, content string) error {
	userID := storage.GetUser(ctx)

	result, err := s.pool.Exec(ctx, `
		UPDATE workspace_files
		SET content = $1, size_bytes = $2, updated_at = $3
		WHERE user_id = $4 AND path = $5 AND is_directory = FALSE
	`, content, len(content), time.Now(), userID, storage.NormalizePath(path))
	if err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteFile removes a record with single-level or deep cascade.
func (s *Store) DeleteFile(ctx context.Context, path string, opts storage.DeleteOptions) ([]string, error) {
	userID := storage.GetUser(ctx)
	target := storage.NormalizePath(path)

	// The target row must exist before any cascade happens.
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM workspace_files WHERE user_id = $1 AND path = $2)",
		userID, target,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking file: %w", err)
	}
	if !exists {
		return nil, storage.ErrNotFound
	}

	query := `
		DELETE FROM workspace_files
		WHERE user_id = $1 AND (path = $2 OR parent_path = $2)
		RETURNING path
	`
	if opts.DeepCascade {
		query = `
			DELETE FROM workspace_files
			WHERE user_id = $1 AND (path = $2 OR path LIKE $2 || '/%')
			RETURNING path
		`
	}

	rows, err := s.pool.Query(ctx, query, userID, target)
	if err != nil {
		return nil, fmt.Errorf("deleting file: %w", err)
	}
	defer rows.Close()

	var removed []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning deleted path: %w", err)
		}
		removed = append(removed, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(removed)
	return removed, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
