package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one SQL file named NNN_description.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator applies SQL migrations read from a filesystem, in version order,
// and records them in the _migrations table.
type Migrator struct {
	pool  *pgxpool.Pool
	files fs.FS
}

func NewMigrator(pool *pgxpool.Pool, files fs.FS) *Migrator {
	return &Migrator{pool: pool, files: files}
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS _migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    applied_at TIMESTAMPTZ DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}
	return nil
}

// LoadMigrations reads every top-level .sql file with a numeric prefix
// ("001_intake_form.sql" is version 1). Other files are skipped. Two files
// with the same version are an error.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		content, err := fs.ReadFile(m.files, name)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *Migrator) appliedAt(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.pool.Query(ctx, `SELECT version, applied_at FROM _migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			v  int
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		applied[v] = at
	}
	return applied, rows.Err()
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	return m.UpTo(ctx, 0)
}

// UpTo applies pending migrations up to and including targetVersion; zero
// means all. Each migration runs in its own transaction.
func (m *Migrator) UpTo(ctx context.Context, targetVersion int) (int, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return 0, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}
	applied, err := m.appliedAt(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range pending(migrations, applied, targetVersion) {
		if err := m.apply(ctx, mig); err != nil {
			return count, fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

func pending(migrations []Migration, applied map[int]time.Time, targetVersion int) []Migration {
	var out []Migration
	for _, mig := range migrations {
		if targetVersion > 0 && mig.Version > targetVersion {
			break
		}
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		out = append(out, mig)
	}
	return out
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.SQL); err != nil {
			return fmt.Errorf("execute SQL: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO _migrations (version, name) VALUES ($1, $2)",
			mig.Version, mig.Name,
		); err != nil {
			return fmt.Errorf("record migration: %w", err)
		}
		return nil
	})
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	applied, err := m.appliedAt(ctx)
	if err != nil {
		return nil, err
	}
	return statuses(migrations, applied), nil
}

func statuses(migrations []Migration, applied map[int]time.Time) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		s := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := applied[mig.Version]; ok {
			s.Applied = true
			s.AppliedAt = &at
		}
		out = append(out, s)
	}
	return out
}
