package service

import (
	"context"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// AccountPermissions is every stored grant of one account.
type AccountPermissions struct {
	Username        string                   `json:"username"`
	Role            domain.Role              `json:"role"`
	CanCreateTables bool                     `json:"can_create_tables"`
	Tables          []domain.TablePermission `json:"tables"`
}

// SetTablePermissions replaces the four flags of an account on a table.
// Admin only. A mirror failure is reported, the stored change stands.
func (e *Engine) SetTablePermissions(ctx context.Context, actor domain.Account, username, tableName string, flags domain.Flags) (domain.MirrorReport, error) {
	if err := requireAdmin(actor, "changing permissions"); err != nil {
		return domain.NewMirrorReport(), err
	}
	target, err := e.targetAccount(ctx, username)
	if err != nil {
		return domain.NewMirrorReport(), err
	}
	table, err := e.loadTable(ctx, actor, tableName, false)
	if err != nil {
		return domain.NewMirrorReport(), err
	}
	return e.perms.SetTablePermissions(ctx, target, table.InternalName, flags)
}

// SetGeneralPermission sets can_create_tables for an account. Admin only.
func (e *Engine) SetGeneralPermission(ctx context.Context, actor domain.Account, username string, canCreateTables bool) (domain.MirrorReport, error) {
	if err := requireAdmin(actor, "changing permissions"); err != nil {
		return domain.NewMirrorReport(), err
	}
	target, err := e.targetAccount(ctx, username)
	if err != nil {
		return domain.NewMirrorReport(), err
	}
	return e.perms.SetGeneralPermission(ctx, target, canCreateTables)
}

// GetPermissions lists the stored grants of an account. Admins may read any
// account, others only their own.
func (e *Engine) GetPermissions(ctx context.Context, actor domain.Account, username string) (AccountPermissions, error) {
	if err := requireActive(actor); err != nil {
		return AccountPermissions{}, err
	}
	target, err := e.targetAccount(ctx, username)
	if err != nil {
		return AccountPermissions{}, err
	}
	if !actor.IsAdmin() && target.ID != actor.ID {
		return AccountPermissions{}, domain.Forbidden(username, "reading another account's permissions requires an administrator")
	}

	general, _, err := e.permissions.GetGeneralPermission(ctx, target.ID)
	if err != nil {
		return AccountPermissions{}, err
	}
	tables, err := e.permissions.ListTablePermissions(ctx, target.ID)
	if err != nil {
		return AccountPermissions{}, err
	}
	return AccountPermissions{
		Username:        target.Username,
		Role:            target.Role,
		CanCreateTables: general.CanCreateTables,
		Tables:          tables,
	}, nil
}
