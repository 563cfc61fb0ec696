package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies every embedded migration that has not been recorded yet
func (db *DB) RunMigrations(ctx context.Context) error {
	err := db.createMigrationsTable(ctx)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrationFiles, err := MigrationFiles()
	if err != nil {
		return fmt.Errorf("failed to get migration files: %w", err)
	}

	appliedMigrations, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, file := range migrationFiles {
		if appliedMigrations[file] {
			continue
		}

		if err := db.runMigration(ctx, file); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", file, err)
		}

		db.logger.Info("migration_applied", fmt.Sprintf("Applied migration: %s", file), "startup", nil)
	}

	return nil
}

// MigrationFiles returns the embedded migration names in apply order
func MigrationFiles() ([]string, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(paths))
	for _, p := range paths {
		files = append(files, path.Base(p))
	}
	sort.Strings(files)

	return files, nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	sql := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			migration_name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	return db.Exec(ctx, sql)
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := db.Query(ctx, "SELECT migration_name FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var migrationName string
		if err := rows.Scan(&migrationName); err != nil {
			return nil, err
		}
		applied[migrationName] = true
	}

	return applied, rows.Err()
}

// runMigration executes one migration and records it in the same transaction
func (db *DB) runMigration(ctx context.Context, filename string) error {
	content, err := migrationsFS.ReadFile("migrations/" + filename)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	if _, err = tx.Exec(ctx, "INSERT INTO schema_migrations (migration_name) VALUES ($1)", filename); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit(ctx)
}
