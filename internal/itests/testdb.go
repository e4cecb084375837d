// Package itests runs the HTTP surface against a real local Postgres.
// The suite derives a throwaway "test" database from POSTGRES_DSN,
// migrates and seeds it, and drops it on teardown. Without a reachable
// local Postgres every test skips.
package itests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/damiencorpataux/relrest/internal"
)

// DeriveTestDSN swaps the database name for "test" and prepares an
// admin DSN against the "postgres" database.
func DeriveTestDSN(baseDSN string) (testDSN, adminDSN, testDBName string, err error) {
	u, e := url.Parse(baseDSN)
	if e != nil {
		return "", "", "", fmt.Errorf("parse DSN: %w", e)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", "", errors.New("only URL DSN supported: postgres://...")
	}

	// Refuse remote hosts: the suite creates and drops databases.
	if host := u.Hostname(); host != "localhost" && host != "127.0.0.1" {
		return "", "", "", fmt.Errorf("refuse non-local host for tests: %s", host)
	}

	u.Path = "/test"
	testDBName = "test"
	testDSN = u.String()

	u.Path = "/postgres"
	adminDSN = u.String()

	return testDSN, adminDSN, testDBName, nil
}

func CreateTestDatabase(adminDSN, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname=$1)`, dbName,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		// Stale from an aborted run: recreate for a clean seed.
		if err := DropTestDatabase(adminDSN, dbName); err != nil {
			return err
		}
	}
	_, err = db.ExecContext(ctx, `CREATE DATABASE `+pqIdent(dbName))
	return err
}

func DropTestDatabase(adminDSN, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	_, _ = db.ExecContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, dbName)

	_, err = db.ExecContext(ctx, `DROP DATABASE IF EXISTS `+pqIdent(dbName))
	return err
}

func pqIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func applyMigrationsFromDir(testDSN string) error {
	root, err := internal.FindRepoRoot()
	if err != nil {
		return fmt.Errorf("repo root not found: %w", err)
	}
	abs, err := filepath.Abs(filepath.Join(root, "migrations"))
	if err != nil {
		return fmt.Errorf("abs migrations: %w", err)
	}
	src := "file://" + filepath.ToSlash(abs)

	m, err := migrate.New(src, testDSN)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SetupAndTeardownTestDB creates the test database, migrates it and
// hands back the teardown. initFunc is typically db.InitPostgres bound
// to the derived DSN.
func SetupAndTeardownTestDB(baseDSN string, initFunc func(string) error) (teardown func() error, err error) {
	testDSN, adminDSN, testDB, err := DeriveTestDSN(baseDSN)
	if err != nil {
		return nil, err
	}

	if os.Getenv("APP_ENV") == "production" {
		return nil, errors.New("APP_ENV=production: aborting tests")
	}

	if err := CreateTestDatabase(adminDSN, testDB); err != nil {
		return nil, fmt.Errorf("create DB %q: %w (dsn %s)", testDB, err, redactDSN(baseDSN))
	}
	if err := applyMigrationsFromDir(testDSN); err != nil {
		_ = DropTestDatabase(adminDSN, testDB)
		return nil, err
	}
	if initFunc != nil {
		if err := initFunc(testDSN); err != nil {
			_ = DropTestDatabase(adminDSN, testDB)
			return nil, fmt.Errorf("init postgres: %w (dsn %s)", err, redactDSN(baseDSN))
		}
	}

	return func() error {
		return DropTestDatabase(adminDSN, testDB)
	}, nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	username := u.User.Username()
	if username == "" {
		return dsn
	}
	u.User = url.UserPassword(username, "******")
	return u.String()
}
