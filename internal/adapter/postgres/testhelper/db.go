// Package testhelper provides shared fixtures for integration tests: a
// PostgreSQL container with the migrations applied, a Redis container and
// seed helpers for the catalog tables.
package testhelper

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/heartmarshall/shop-catalog-backend/internal/adapter/postgres"
)

var (
	once     sync.Once
	adminDSN string
	initErr  error
)

// SetupTestDB starts a shared PostgreSQL container (once for the entire test
// run), creates a fresh database for the calling test, applies the goose
// migrations and returns a pool connected to it. The catalog is global, so
// tests never share a database. The pool is closed via t.Cleanup; the
// container lives until the process exits.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	once.Do(func() {
		adminDSN, initErr = startContainer()
	})
	if initErr != nil {
		t.Fatalf("testhelper: failed to setup test DB: %v", initErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dsn, err := createDatabase(ctx)
	if err != nil {
		t.Fatalf("testhelper: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("testhelper: failed to create pgxpool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func startContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("get mapped port: %w", err)
	}

	return fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port()), nil
}

// createDatabase creates an empty database, migrates it and returns its DSN.
func createDatabase(ctx context.Context) (string, error) {
	name := "catalog_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return "", fmt.Errorf("connect admin: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return "", fmt.Errorf("create database %s: %w", name, err)
	}

	dsn := strings.Replace(adminDSN, "/testdb?", "/"+name+"?", 1)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return "", fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	if err := postgres.MigrateDB(ctx, db); err != nil {
		return "", err
	}

	return dsn, nil
}
