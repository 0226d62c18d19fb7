package service

import (
	"context"
	"fmt"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// Operator tasks. They run with process authority and take no actor; only
// the CLI calls them.

// Reconcile adopts live columns of one table into the catalog and returns the
// fields that were added.
func (e *Engine) Reconcile(ctx context.Context, tableName string) ([]domain.Field, error) {
	added, err := e.catalog.Reconcile(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		customLog.Printf("Engine: Reconcile adopted %d column(s) into %s", len(added), tableName)
	}
	return added, nil
}

// ReconcileAll reconciles every catalog table, inactive ones included.
func (e *Engine) ReconcileAll(ctx context.Context) (map[string][]domain.Field, error) {
	tables, err := e.catalog.List(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.Field, len(tables))
	for _, t := range tables {
		added, err := e.Reconcile(ctx, t.InternalName)
		if err != nil {
			return out, fmt.Errorf("reconcile %s: %w", t.InternalName, err)
		}
		if len(added) > 0 {
			out[t.InternalName] = added
		}
	}
	return out, nil
}

// SyncGrants re-projects every account's stored permissions onto the
// database ACL, repairing divergence left by degraded mirror calls. Inactive
// accounts are stripped instead.
func (e *Engine) SyncGrants(ctx context.Context) (domain.MirrorReport, error) {
	report := domain.NewMirrorReport()
	accounts, err := e.accounts.List(ctx)
	if err != nil {
		return report, err
	}
	for _, acc := range accounts {
		if !acc.IsActive() {
			report.Add(e.mirror.RevokeAll(ctx, acc.Username))
			continue
		}
		if acc.IsAdmin() {
			continue
		}
		r, err := e.perms.Resync(ctx, acc)
		if err != nil {
			return report, fmt.Errorf("resync %s: %w", acc.Username, err)
		}
		mergeReports(&report, r)
	}
	customLog.Printf("Engine: Grants sync over %d account(s), applied=%v", len(accounts), report.Applied)
	return report, nil
}

// DropAccountRole removes the database role of a deactivated account. The
// application login and its stored permissions stay, so reactivating the
// account later needs a new role provisioned by hand.
func (e *Engine) DropAccountRole(ctx context.Context, username string) (domain.MirrorReport, error) {
	report := domain.NewMirrorReport()
	acc, err := e.accounts.GetByUsername(ctx, username)
	if err != nil {
		return report, err
	}
	if acc.IsActive() {
		return report, domain.InvalidInput(acc.Username, "deactivate the account before dropping its database role")
	}
	report.Add(e.mirror.DropAccount(ctx, acc.Username))
	customLog.Printf("Engine: Database role of %s dropped, applied=%v", acc.Username, report.Applied)
	return report, nil
}
