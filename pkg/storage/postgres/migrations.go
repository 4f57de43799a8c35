package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrate applies pending schema migrations in filename order. Applied
// versions are recorded in schema_migrations; the first migration creates
// that table, so a missing table reads as nothing applied.
func (s *Store) migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied := 0
	for _, entry := range entries {
		name := entry.Name()
		version, ok := migrationVersion(name)
		if !ok {
			continue
		}

		var done bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&done)
		if err != nil {
			done = false
		}
		if done {
			continue
		}

		sql, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING",
			version,
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}

		slog.LogAttrs(ctx, slog.LevelInfo, "schema migration applied",
			slog.String("file", name),
			slog.Int("version", version),
		)
		applied++
	}

	if applied > 0 {
		slog.LogAttrs(ctx, slog.LevelInfo, "database schema up to date",
			slog.Int("applied", applied),
			slog.Int("available", len(entries)),
		)
	}
	return nil
}

// migrationVersion parses the numeric prefix of a migration filename, e.g.
// "001_create_workspace_files.sql" yields 1.
func migrationVersion(name string) (int, bool) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, false
	}
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return v, true
}
