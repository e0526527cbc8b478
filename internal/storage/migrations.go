package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus represents the status of migrations.
type MigrationStatus struct {
	UpToDate bool
	Applied  []string
	Pending  []string
	Total    int
}

// Migrator applies the embedded schema migrations for one driver.
type Migrator struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	files  fs.FS
}

// NewMigrator creates a migrator over the embedded migration set.
func NewMigrator(db *sql.DB, driver string) *Migrator {
	sub, _ := fs.Sub(migrationFiles, "migrations")
	return &Migrator{db: db, driver: driver, files: sub}
}

// Check reports which migrations have been applied and which are pending.
func (m *Migrator) Check(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	migrations, err := m.listMigrations()
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}

	status := &MigrationStatus{Total: len(migrations), Pending: []string{}}
	for _, name := range migrations {
		if applied[name] {
			status.Applied = append(status.Applied, name)
		} else {
			status.Pending = append(status.Pending, name)
		}
	}
	status.UpToDate = len(status.Pending) == 0
	return status, nil
}

// Run applies every pending migration in order, each in its own transaction.
func (m *Migrator) Run(ctx context.Context) (*MigrationStatus, error) {
	status, err := m.Check(ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range status.Pending {
		if err := m.apply(ctx, name); err != nil {
			return nil, fmt.Errorf("run migration %s: %w", name, err)
		}
		status.Applied = append(status.Applied, name)
	}
	status.Pending = []string{}
	status.UpToDate = true
	return status, nil
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	var query string
	switch m.driver {
	case "sqlite", "":
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				version TEXT UNIQUE NOT NULL,
				applied_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`
	default:
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				id SERIAL PRIMARY KEY,
				version TEXT UNIQUE NOT NULL,
				applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`
	}
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// listMigrations returns the migration files for the driver, keyed and sorted by base name.
// SQLite prefers a "<base>_sqlite.sql" variant; Postgres ignores those.
func (m *Migrator) listMigrations() ([]string, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, err
	}

	sqliteFiles := make(map[string]string)
	regularFiles := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if base, ok := strings.CutSuffix(name, "_sqlite.sql"); ok {
			sqliteFiles[base] = name
		} else {
			regularFiles[strings.TrimSuffix(name, ".sql")] = name
		}
	}

	var bases []string
	for base := range regularFiles {
		bases = append(bases, base)
	}
	if m.driver == "sqlite" {
		for base := range sqliteFiles {
			if _, ok := regularFiles[base]; !ok {
				bases = append(bases, base)
			}
		}
	}
	sort.Strings(bases)

	migrations := make([]string, 0, len(bases))
	for _, base := range bases {
		if name, ok := sqliteFiles[base]; ok && m.driver == "sqlite" {
			migrations = append(migrations, name)
			continue
		}
		migrations = append(migrations, regularFiles[base])
	}
	return migrations, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, name string) error {
	data, err := fs.ReadFile(m.files, name)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
