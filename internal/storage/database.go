// internal/storage/database.go
package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// driver registration
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Annany2002/cadastro-backend/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect creates the PostgreSQL pool and verifies it with a ping. When
// schema is not "public" it becomes the connection search_path, so dynamic
// tables and the catalog live side by side.
func Connect(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if schema != "" && schema != "public" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection is working
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		customLog.Warnf("Storage: Failed to ping database %s: %v", poolCfg.ConnConfig.Host, err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	customLog.Printf("Storage: Connected to PostgreSQL at %s:%d/%s", poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Port, poolCfg.ConnConfig.Database)
	return pool, nil
}

// Migrate applies the embedded catalog migrations (accounts, tables_metadata,
// table_permissions, general_permissions).
func Migrate(dsn, schema string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	migrateURL, err := migrationURL(dsn, schema)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL)
	if err != nil {
		return fmt.Errorf("failed to initialise migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	customLog.Printf("Storage: Catalog migrations applied (version %d, dirty %v)", version, dirty)
	return nil
}

// migrationURL rewrites a postgres:// DSN into the pgx5:// form golang-migrate expects.
func migrationURL(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse database url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	if schema != "" && schema != "public" {
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
