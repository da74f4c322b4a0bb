package sqlite

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is a single embedded schema migration.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Migrate applies every pending embedded migration in version order and
// returns the ones it ran. A checksum mismatch on an applied migration is
// an error: migrations are append-only.
func (s *Store) Migrate(ctx context.Context, appliedBy string) ([]Migration, error) {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			checksum   TEXT,
			applied_by TEXT
		)`); err != nil {
		return nil, fmt.Errorf("Migrate: ensuring schema_migrations: %w", err)
	}

	migrations, err := readMigrations(migrationFiles)
	if err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}

	applied, err := s.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("Migrate: %w", err)
	}
	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		appliedByVersion[am.Version] = am
	}

	var ran []Migration
	for _, m := range migrations {
		if am, ok := appliedByVersion[m.Version]; ok {
			if am.Checksum != "" && am.Checksum != m.Checksum {
				return ran, fmt.Errorf("Migrate: checksum mismatch for %s", m.Filename)
			}
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return ran, fmt.Errorf("Migrate: begin %s: %w", m.Filename, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return ran, fmt.Errorf("Migrate: executing %s: %w", m.Filename, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schema_migrations (version, name, applied_at, checksum, applied_by)
			VALUES (?, ?, ?, ?, ?)`,
			m.Version, m.Name, formatTime(time.Now()), m.Checksum, appliedBy); err != nil {
			_ = tx.Rollback()
			return ran, fmt.Errorf("Migrate: recording %s: %w", m.Filename, err)
		}
		if err := tx.Commit(); err != nil {
			return ran, fmt.Errorf("Migrate: commit %s: %w", m.Filename, err)
		}
		ran = append(ran, m)
	}

	return ran, nil
}

// AppliedMigrations lists rows of schema_migrations in version order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, name, applied_at, COALESCE(checksum, ''), COALESCE(applied_by, '')
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("AppliedMigrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			am        AppliedMigration
			appliedAt string
		)
		if err := rows.Scan(&am.Version, &am.Name, &appliedAt, &am.Checksum, &am.AppliedBy); err != nil {
			return nil, fmt.Errorf("AppliedMigrations: scan: %w", err)
		}
		if am.AppliedAt, err = parseTime(appliedAt); err != nil {
			return nil, fmt.Errorf("AppliedMigrations: decoding applied_at: %w", err)
		}
		applied = append(applied, am)
	}
	return applied, rows.Err()
}

func readMigrations(fsys fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, "migrations/"+file.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      string(content),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
