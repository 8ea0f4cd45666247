package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"

	"github.com/kozaktomas/picscreenr/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockKey keeps concurrently starting processes from applying the same file twice.
const migrationLockKey int64 = 0x70696d67

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migrationFiles lists embedded migrations in apply order.
func migrationFiles() ([]string, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	for i, n := range names {
		names[i] = path.Base(n)
	}
	slices.Sort(names)
	return names, nil
}

// Migrate applies every embedded migration not yet recorded in schema_migrations and
// returns the files it applied. All files run in one transaction under an advisory lock.
func (p *Pool) Migrate(ctx context.Context) ([]string, error) {
	log := logging.Component("migrations")

	files, err := migrationFiles()
	if err != nil {
		return nil, err
	}

	tx, err := p.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	done, err := appliedVersions(ctx, tx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, file := range files {
		if slices.Contains(done, file) {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return nil, fmt.Errorf("execute migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", file); err != nil {
			return nil, fmt.Errorf("record migration %s: %w", file, err)
		}
		applied = append(applied, file)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit migrations: %w", err)
	}
	for _, file := range applied {
		log.WithField("migration", file).Info("applied migration")
	}
	return applied, nil
}

// MigrationsApplied lists recorded migration versions in order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return appliedVersions(ctx, p.db)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func appliedVersions(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}
