package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// PermissionRepo stores table_permissions and general_permissions rows.
type PermissionRepo struct {
	db DBTX
}

// NewPermissionRepo creates the permissions repository.
func NewPermissionRepo(db DBTX) *PermissionRepo {
	return &PermissionRepo{db: db}
}

const tablePermissionColumns = `account_id, table_name, can_view, can_insert, can_update, can_delete, updated_at`

func scanTablePermission(row pgx.Row) (domain.TablePermission, error) {
	var p domain.TablePermission
	err := row.Scan(&p.AccountID, &p.TableName,
		&p.Flags.CanView, &p.Flags.CanInsert, &p.Flags.CanUpdate, &p.Flags.CanDelete, &p.UpdatedAt)
	return p, err
}

// GetTablePermission returns the row for (account, table); found is false
// when no row exists, which means every flag is false.
func (r *PermissionRepo) GetTablePermission(ctx context.Context, accountID int64, table string) (domain.TablePermission, bool, error) {
	p, err := scanTablePermission(r.db.QueryRow(ctx,
		`SELECT `+tablePermissionColumns+` FROM table_permissions WHERE account_id = $1 AND table_name = $2`,
		accountID, table))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TablePermission{AccountID: accountID, TableName: table}, false, nil
		}
		return domain.TablePermission{}, false, mapPgError(err, table, "get table permission")
	}
	return p, true, nil
}

// UpsertTablePermission replaces all four flags for (account, table).
func (r *PermissionRepo) UpsertTablePermission(ctx context.Context, p domain.TablePermission) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO table_permissions (account_id, table_name, can_view, can_insert, can_update, can_delete)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, table_name) DO UPDATE SET
			can_view   = EXCLUDED.can_view,
			can_insert = EXCLUDED.can_insert,
			can_update = EXCLUDED.can_update,
			can_delete = EXCLUDED.can_delete,
			updated_at = NOW()`,
		p.AccountID, p.TableName, p.Flags.CanView, p.Flags.CanInsert, p.Flags.CanUpdate, p.Flags.CanDelete)
	if err != nil {
		customLog.Warnf("Storage: Failed to store permission of account %d on '%s': %v", p.AccountID, p.TableName, err)
		return mapPgError(err, p.TableName, "set table permission")
	}
	return nil
}

// MergeTablePermission ORs flags into the existing row, creating it when
// absent. Returns the resulting flags.
func (r *PermissionRepo) MergeTablePermission(ctx context.Context, accountID int64, table string, flags domain.Flags) (domain.Flags, error) {
	var out domain.Flags
	err := r.db.QueryRow(ctx, `
		INSERT INTO table_permissions AS tp (account_id, table_name, can_view, can_insert, can_update, can_delete)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, table_name) DO UPDATE SET
			can_view   = tp.can_view   OR EXCLUDED.can_view,
			can_insert = tp.can_insert OR EXCLUDED.can_insert,
			can_update = tp.can_update OR EXCLUDED.can_update,
			can_delete = tp.can_delete OR EXCLUDED.can_delete,
			updated_at = NOW()
		RETURNING can_view, can_insert, can_update, can_delete`,
		accountID, table, flags.CanView, flags.CanInsert, flags.CanUpdate, flags.CanDelete,
	).Scan(&out.CanView, &out.CanInsert, &out.CanUpdate, &out.CanDelete)
	if err != nil {
		return domain.Flags{}, mapPgError(err, table, "merge table permission")
	}
	return out, nil
}

// ListTablePermissions returns every stored row of one account.
func (r *PermissionRepo) ListTablePermissions(ctx context.Context, accountID int64) ([]domain.TablePermission, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+tablePermissionColumns+` FROM table_permissions WHERE account_id = $1 ORDER BY table_name`,
		accountID)
	if err != nil {
		return nil, mapPgError(err, fmt.Sprint(accountID), "list table permissions")
	}
	defer rows.Close()

	perms := make([]domain.TablePermission, 0)
	for rows.Next() {
		p, err := scanTablePermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetGeneralPermission returns the account-level row; found is false when absent.
func (r *PermissionRepo) GetGeneralPermission(ctx context.Context, accountID int64) (domain.GeneralPermission, bool, error) {
	p := domain.GeneralPermission{AccountID: accountID}
	err := r.db.QueryRow(ctx,
		`SELECT can_create_tables, updated_at FROM general_permissions WHERE account_id = $1`, accountID,
	).Scan(&p.CanCreateTables, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, false, nil
		}
		return domain.GeneralPermission{}, false, mapPgError(err, fmt.Sprint(accountID), "get general permission")
	}
	return p, true, nil
}

// UpsertGeneralPermission sets can_create_tables and returns the previous
// value (false when no row existed).
func (r *PermissionRepo) UpsertGeneralPermission(ctx context.Context, p domain.GeneralPermission) (bool, error) {
	var previous bool
	err := runInTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT can_create_tables FROM general_permissions WHERE account_id = $1 FOR UPDATE`, p.AccountID,
		).Scan(&previous)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO general_permissions (account_id, can_create_tables)
			VALUES ($1, $2)
			ON CONFLICT (account_id) DO UPDATE SET
				can_create_tables = EXCLUDED.can_create_tables,
				updated_at = NOW()`,
			p.AccountID, p.CanCreateTables)
		return err
	})
	if err != nil {
		customLog.Warnf("Storage: Failed to store general permission of account %d: %v", p.AccountID, err)
		return false, mapPgError(err, fmt.Sprint(p.AccountID), "set general permission")
	}
	return previous, nil
}
