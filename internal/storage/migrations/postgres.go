package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/storage/postgres"
)

const postgresLedger = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// lockID serializes concurrent migrators on one database.
const lockID = 0x736d6b74

// RunPostgresMigrations applies every embedded migration not yet recorded in
// schema_migrations. Each file runs in its own transaction with its ledger row.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := Postgres()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, postgresLedger); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", lockID) //nolint:errcheck

	for _, m := range files {
		if err := applyPostgres(ctx, conn.Conn(), m); err != nil {
			return err
		}
	}
	return nil
}

func applyPostgres(ctx context.Context, conn *pgx.Conn, m Migration) error {
	var done bool
	if err := conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version).Scan(&done); err != nil {
		return fmt.Errorf("check migration %s: %w", m.Version, err)
	}
	if done {
		return nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.Version, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.Version, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Version, err)
	}
	return nil
}
