// Package app wires configuration, storage, the grants mirror and the engine
// for the server and the operator CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Annany2002/cadastro-backend/config"
	"github.com/Annany2002/cadastro-backend/internal/grants"
	"github.com/Annany2002/cadastro-backend/internal/logger"
	"github.com/Annany2002/cadastro-backend/internal/service"
	"github.com/Annany2002/cadastro-backend/internal/storage"
)

var customLog = logger.NewLogger()

// App holds the open resources of a running process.
type App struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Mirror *grants.Mirror
	Engine *service.Engine

	grantsPool *pgxpool.Pool
}

// Open migrates the catalog, connects the pools and builds the engine. The
// grants mirror gets its own pool when GRANTS_DATABASE_URL differs from the
// application DSN; a failure to open it disables the mirror instead of
// failing startup.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := storage.Migrate(cfg.DatabaseURL, cfg.Schema); err != nil {
		return nil, err
	}
	pool, err := storage.Connect(ctx, cfg.DatabaseURL, cfg.Schema)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Pool: pool}
	a.Mirror = a.openMirror(ctx)

	a.Engine = service.New(service.Deps{
		Schema:      storage.NewSchemaManager(pool, cfg.Schema),
		Catalog:     storage.NewMetadataRepo(pool, cfg.Schema),
		Records:     storage.NewRecordRepo(pool, cfg.Schema),
		Accounts:    storage.NewAccountRepo(pool),
		Permissions: storage.NewPermissionRepo(pool),
		Mirror:      a.Mirror,
	})

	if cfg.AdminUsername != "" {
		created, err := a.Engine.BootstrapAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to bootstrap admin %s: %w", cfg.AdminUsername, err)
		}
		if created {
			customLog.Printf("App: Bootstrap administrator %s created", cfg.AdminUsername)
		}
	}
	return a, nil
}

func (a *App) openMirror(ctx context.Context) *grants.Mirror {
	cfg := a.Config
	if !cfg.GrantsEnabled {
		customLog.Warnf("App: Grants mirror disabled; database-level ACLs will not follow permission changes")
		return grants.New(nil, cfg.Schema, cfg.GrantsRolePrefix)
	}
	if cfg.GrantsDatabaseURL == "" || cfg.GrantsDatabaseURL == cfg.DatabaseURL {
		return grants.New(a.Pool, cfg.Schema, cfg.GrantsRolePrefix)
	}

	gp, err := storage.Connect(ctx, cfg.GrantsDatabaseURL, cfg.Schema)
	if err != nil {
		customLog.Warnf("App: Grants mirror unavailable, running degraded: %v", err)
		return grants.New(nil, cfg.Schema, cfg.GrantsRolePrefix)
	}
	a.grantsPool = gp
	return grants.New(gp, cfg.Schema, cfg.GrantsRolePrefix)
}

// Close releases the pools.
func (a *App) Close() {
	if a.grantsPool != nil {
		a.grantsPool.Close()
	}
	if a.Pool != nil {
		customLog.Println("App: Closing database connections...")
		a.Pool.Close()
	}
}
