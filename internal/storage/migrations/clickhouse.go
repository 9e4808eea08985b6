package migrations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	chstore "solana-marketplace/internal/storage/clickhouse"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RunClickhouseMigrations creates the DSN's database if needed, applies the
// embedded migrations statement by statement and returns a connection to it.
// ClickHouse DDL is not transactional; the files use IF NOT EXISTS throughout.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	db, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	files, err := Clickhouse()
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewServerConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+db)
	admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", db, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, db)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", db, err)
	}
	for _, m := range files {
		for _, stmt := range Statements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
	}
	return conn, nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", errors.New("clickhouse dsn has no database")
	}
	if !identRe.MatchString(db) {
		return "", fmt.Errorf("clickhouse database name %q is not a plain identifier", db)
	}
	return db, nil
}
