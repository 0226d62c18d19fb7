// Package permission holds the two-tier authorization model: four flags per
// (account, table) and one account-level create-tables flag. Authority to
// change grants is checked by the caller; the engine trusts the role it is
// given.
package permission

import (
	"context"
	"fmt"

	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/logger"
)

var customLog = logger.NewLogger()

// Store persists permission rows.
type Store interface {
	GetTablePermission(ctx context.Context, accountID int64, table string) (domain.TablePermission, bool, error)
	UpsertTablePermission(ctx context.Context, p domain.TablePermission) error
	MergeTablePermission(ctx context.Context, accountID int64, table string, flags domain.Flags) (domain.Flags, error)
	ListTablePermissions(ctx context.Context, accountID int64) ([]domain.TablePermission, error)
	GetGeneralPermission(ctx context.Context, accountID int64) (domain.GeneralPermission, bool, error)
	UpsertGeneralPermission(ctx context.Context, p domain.GeneralPermission) (bool, error)
}

// Catalog lists dynamic tables.
type Catalog interface {
	List(ctx context.Context, includeInactive bool) ([]domain.DynamicTable, error)
}

// Mirror receives every permission change for the database ACL layer.
type Mirror interface {
	GrantTablePermissions(ctx context.Context, username, table string, flags domain.Flags) error
	GrantGeneralPermissions(ctx context.Context, username string, canCreateTables bool) error
}

// Engine evaluates and changes permissions.
type Engine struct {
	store   Store
	catalog Catalog
	mirror  Mirror
}

// NewEngine wires the engine.
func NewEngine(store Store, catalog Catalog, mirror Mirror) *Engine {
	return &Engine{store: store, catalog: catalog, mirror: mirror}
}

// EffectiveFlags returns the four flags the account holds on a table. Admins
// hold all of them; inactive accounts none; a missing row means all false.
func (e *Engine) EffectiveFlags(ctx context.Context, account domain.Account, table string) (domain.Flags, error) {
	if !account.IsActive() {
		return domain.Flags{}, nil
	}
	if account.IsAdmin() {
		return domain.AllFlags, nil
	}
	p, _, err := e.store.GetTablePermission(ctx, account.ID, table)
	if err != nil {
		return domain.Flags{}, fmt.Errorf("failed to load permission of %s on %s: %w", account.Username, table, err)
	}
	return p.Flags, nil
}

// CheckTablePermission reports whether the account may perform verb on table.
func (e *Engine) CheckTablePermission(ctx context.Context, account domain.Account, table string, verb domain.Verb) (bool, error) {
	flags, err := e.EffectiveFlags(ctx, account, table)
	if err != nil {
		return false, err
	}
	return flags.Allows(verb), nil
}

// CheckGeneralPermission reports whether the account holds the account-level
// verb. create_tables is the only one.
func (e *Engine) CheckGeneralPermission(ctx context.Context, account domain.Account, verb string) (bool, error) {
	if verb != domain.GeneralVerbCreateTables || !account.IsActive() {
		return false, nil
	}
	if account.IsAdmin() {
		return true, nil
	}
	p, _, err := e.store.GetGeneralPermission(ctx, account.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load general permission of %s: %w", account.Username, err)
	}
	return p.CanCreateTables, nil
}

// ListAccessibleTables returns the catalog as the account may see it: admins
// see every table including inactive ones, others the active tables they
// hold can_view on.
func (e *Engine) ListAccessibleTables(ctx context.Context, account domain.Account) ([]domain.DynamicTable, error) {
	if !account.IsActive() {
		return []domain.DynamicTable{}, nil
	}
	tables, err := e.catalog.List(ctx, account.IsAdmin())
	if err != nil {
		return nil, err
	}
	if account.IsAdmin() {
		return tables, nil
	}

	perms, err := e.store.ListTablePermissions(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions of %s: %w", account.Username, err)
	}
	viewable := make(map[string]bool, len(perms))
	for _, p := range perms {
		if p.Flags.CanView {
			viewable[p.TableName] = true
		}
	}

	visible := make([]domain.DynamicTable, 0, len(viewable))
	for _, t := range tables {
		if viewable[t.InternalName] {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// SetTablePermissions stores exactly the given flags and mirrors them.
func (e *Engine) SetTablePermissions(ctx context.Context, target domain.Account, table string, flags domain.Flags) (domain.MirrorReport, error) {
	report := domain.NewMirrorReport()
	if err := e.store.UpsertTablePermission(ctx, domain.TablePermission{AccountID: target.ID, TableName: table, Flags: flags}); err != nil {
		return report, err
	}
	customLog.Printf("Engine: Permissions of %s on %s set to %+v", target.Username, table, flags)
	report.Add(e.mirror.GrantTablePermissions(ctx, target.Username, table, flags))
	return report, nil
}

// SetGeneralPermission stores can_create_tables and mirrors it. When the flag
// goes from false (or absent) to true, the account is auto-provisioned with
// view/insert/update on every active table.
func (e *Engine) SetGeneralPermission(ctx context.Context, target domain.Account, canCreateTables bool) (domain.MirrorReport, error) {
	report := domain.NewMirrorReport()
	previous, err := e.store.UpsertGeneralPermission(ctx, domain.GeneralPermission{AccountID: target.ID, CanCreateTables: canCreateTables})
	if err != nil {
		return report, err
	}
	customLog.Printf("Engine: can_create_tables of %s set to %v", target.Username, canCreateTables)
	report.Add(e.mirror.GrantGeneralPermissions(ctx, target.Username, canCreateTables))

	if canCreateTables && !previous {
		tables, err := e.catalog.List(ctx, false)
		if err != nil {
			return report, fmt.Errorf("failed to list tables for auto-provisioning: %w", err)
		}
		for _, t := range tables {
			r, err := e.provision(ctx, target, t.InternalName)
			if err != nil {
				return report, err
			}
			report.Warnings = append(report.Warnings, r.Warnings...)
			report.Applied = report.Applied && r.Applied
		}
		customLog.Printf("Engine: Auto-provisioned %s on %d table(s)", target.Username, len(tables))
	}
	return report, nil
}

// ProvisionCreator grants view/insert/update on a brand-new table to its
// creator when the creator holds can_create_tables through a stored row.
// Admins need no rows.
func (e *Engine) ProvisionCreator(ctx context.Context, creator domain.Account, table string) (domain.MirrorReport, error) {
	if creator.IsAdmin() {
		return domain.NewMirrorReport(), nil
	}
	ok, err := e.CheckGeneralPermission(ctx, creator, domain.GeneralVerbCreateTables)
	if err != nil || !ok {
		return domain.NewMirrorReport(), err
	}
	return e.provision(ctx, creator, table)
}

// provision ORs the creator flags into the stored row, leaving delete as is,
// and mirrors the resulting set.
func (e *Engine) provision(ctx context.Context, target domain.Account, table string) (domain.MirrorReport, error) {
	report := domain.NewMirrorReport()
	flags, err := e.store.MergeTablePermission(ctx, target.ID, table, domain.CreatorFlags)
	if err != nil {
		return report, err
	}
	report.Add(e.mirror.GrantTablePermissions(ctx, target.Username, table, flags))
	return report, nil
}

// Resync re-projects one account's stored permissions onto the database ACL.
func (e *Engine) Resync(ctx context.Context, account domain.Account) (domain.MirrorReport, error) {
	report := domain.NewMirrorReport()
	general, _, err := e.store.GetGeneralPermission(ctx, account.ID)
	if err != nil {
		return report, err
	}
	report.Add(e.mirror.GrantGeneralPermissions(ctx, account.Username, general.CanCreateTables))

	perms, err := e.store.ListTablePermissions(ctx, account.ID)
	if err != nil {
		return report, err
	}
	for _, p := range perms {
		report.Add(e.mirror.GrantTablePermissions(ctx, account.Username, p.TableName, p.Flags))
	}
	return report, nil
}
