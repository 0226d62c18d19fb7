// Package service is the entry point of the cadastros engine. Every
// operation takes the requesting account explicitly; there is no ambient
// session. Authorization is checked here before any mutating call reaches
// storage.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/logger"
	"github.com/Annany2002/cadastro-backend/internal/permission"
)

var customLog = logger.NewLogger()

// SchemaManager issues DDL for dynamic tables.
type SchemaManager interface {
	CreateTable(ctx context.Context, table string, fields []domain.Field) error
	AddColumn(ctx context.Context, table string, field domain.Field) error
	DropTable(ctx context.Context, table string) error
	TableExists(ctx context.Context, table string) (bool, error)
}

// MetadataStore is the tables_metadata catalog.
type MetadataStore interface {
	Insert(ctx context.Context, t *domain.DynamicTable) error
	Upsert(ctx context.Context, t *domain.DynamicTable) error
	Get(ctx context.Context, name string) (domain.DynamicTable, error)
	List(ctx context.Context, includeInactive bool) ([]domain.DynamicTable, error)
	SetStatus(ctx context.Context, name string, status domain.Status) error
	AppendField(ctx context.Context, name string, field domain.Field) error
	Reconcile(ctx context.Context, name string) ([]domain.Field, error)
}

// RecordStore runs DML against dynamic tables.
type RecordStore interface {
	Insert(ctx context.Context, table domain.DynamicTable, rec domain.Record) (int64, error)
	Get(ctx context.Context, table domain.DynamicTable, id int64) (map[string]any, error)
	Update(ctx context.Context, table domain.DynamicTable, id int64, rec domain.Record) error
	Delete(ctx context.Context, table domain.DynamicTable, id int64) error
	List(ctx context.Context, table domain.DynamicTable, opts core.ListQueryOptions) (domain.RecordPage, error)
	Count(ctx context.Context, table string) (int64, error)
	InsertBatch(ctx context.Context, table domain.DynamicTable, records []domain.Record) (domain.BatchOutcome, error)
}

// AccountStore persists application logins.
type AccountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, id int64) (domain.Account, error)
	GetByUsername(ctx context.Context, username string) (domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	SetStatus(ctx context.Context, id int64, status domain.Status) error
}

// GrantsMirror projects accounts and permissions onto database roles.
type GrantsMirror interface {
	permission.Mirror
	RoleName(username string) string
	ProvisionAccount(ctx context.Context, username, password string, role domain.Role) error
	RevokeAll(ctx context.Context, username string) error
	DropAccount(ctx context.Context, username string) error
}

// Deps groups the collaborators of an Engine.
type Deps struct {
	Schema      SchemaManager
	Catalog     MetadataStore
	Records     RecordStore
	Accounts    AccountStore
	Permissions permission.Store
	Mirror      GrantsMirror
}

// Engine implements the cadastros operations.
type Engine struct {
	schema      SchemaManager
	catalog     MetadataStore
	records     RecordStore
	accounts    AccountStore
	permissions permission.Store
	mirror      GrantsMirror
	perms       *permission.Engine
}

// New wires an Engine.
func New(d Deps) *Engine {
	return &Engine{
		schema:      d.Schema,
		catalog:     d.Catalog,
		records:     d.Records,
		accounts:    d.Accounts,
		permissions: d.Permissions,
		mirror:      d.Mirror,
		perms:       permission.NewEngine(d.Permissions, d.Catalog, d.Mirror),
	}
}

// Permissions exposes the permission engine for read-only checks.
func (e *Engine) Permissions() *permission.Engine {
	return e.perms
}

func requireActive(actor domain.Account) error {
	if !actor.IsActive() {
		return domain.Forbidden(actor.Username, "account is inactive")
	}
	return nil
}

func requireAdmin(actor domain.Account, op string) error {
	if err := requireActive(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domain.Forbidden(actor.Username, "%s requires an administrator", op)
	}
	return nil
}

// requireCreator passes admins and accounts holding can_create_tables.
func (e *Engine) requireCreator(ctx context.Context, actor domain.Account, op string) error {
	if err := requireActive(actor); err != nil {
		return err
	}
	ok, err := e.perms.CheckGeneralPermission(ctx, actor, domain.GeneralVerbCreateTables)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Forbidden(actor.Username, "%s requires the create_tables permission", op)
	}
	return nil
}

// loadTable resolves a table for the actor. Missing tables, and inactive
// tables for non-admins, are NotFound. With reconcile set, live columns added
// out-of-band are adopted into the catalog first.
func (e *Engine) loadTable(ctx context.Context, actor domain.Account, name string, reconcile bool) (domain.DynamicTable, error) {
	if err := requireActive(actor); err != nil {
		return domain.DynamicTable{}, err
	}
	if !core.IsValidIdentifier(name) {
		return domain.DynamicTable{}, domain.NotFound(name, "table not found")
	}
	if reconcile {
		if _, err := e.catalog.Reconcile(ctx, name); err != nil {
			return domain.DynamicTable{}, err
		}
	}
	table, err := e.catalog.Get(ctx, name)
	if err != nil {
		return domain.DynamicTable{}, err
	}
	if !table.IsActive() && !actor.IsAdmin() {
		return domain.DynamicTable{}, domain.NotFound(name, "table not found")
	}
	return table, nil
}

// authorizeTable loads the table and checks verb on it.
func (e *Engine) authorizeTable(ctx context.Context, actor domain.Account, name string, verb domain.Verb, reconcile bool) (domain.DynamicTable, error) {
	table, err := e.loadTable(ctx, actor, name, reconcile)
	if err != nil {
		return domain.DynamicTable{}, err
	}
	ok, err := e.perms.CheckTablePermission(ctx, actor, table.InternalName, verb)
	if err != nil {
		return domain.DynamicTable{}, err
	}
	if !ok {
		return domain.DynamicTable{}, domain.Forbidden(table.InternalName, "%s is not allowed on this table", verb)
	}
	return table, nil
}

// targetAccount loads the account a grant or status change applies to.
func (e *Engine) targetAccount(ctx context.Context, username string) (domain.Account, error) {
	acc, err := e.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, domain.NotFound(username, "account not found")
		}
		return domain.Account{}, fmt.Errorf("failed to load account %s: %w", username, err)
	}
	return acc, nil
}

func mergeReports(dst *domain.MirrorReport, src domain.MirrorReport) {
	dst.Applied = dst.Applied && src.Applied
	dst.Warnings = append(dst.Warnings, src.Warnings...)
}
