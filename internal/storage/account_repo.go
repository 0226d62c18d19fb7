package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// AccountRepo stores application logins.
type AccountRepo struct {
	db DBTX
}

// NewAccountRepo creates the accounts repository.
func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, username, db_role, password_hash, role, status, created_at, updated_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a            domain.Account
		role, status string
	)
	if err := row.Scan(&a.ID, &a.Username, &a.DBRole, &a.PasswordHash, &role, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Account{}, err
	}
	a.Role = domain.Role(role)
	a.Status = domain.Status(status)
	return a, nil
}

// Create inserts an account and fills in its id and timestamps. A username
// taken in any letter case, or a database role already owned by another
// account, is a DuplicateIdentifier.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	if a.DBRole == "" {
		return domain.InvalidInput(a.Username, "account has no database role")
	}
	if a.Status == "" {
		a.Status = domain.StatusActive
	}
	if a.Role == "" {
		a.Role = domain.RoleUser
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (username, db_role, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		a.Username, a.DBRole, a.PasswordHash, string(a.Role), string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return domain.DuplicateIdentifier(a.Username)
		}
		customLog.Warnf("Storage: Failed to insert account %s: %v", a.Username, err)
		return mapPgError(err, a.Username, "create account")
	}
	return nil
}

// GetByID loads an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.NotFound(fmt.Sprint(id), "account not found")
		}
		return domain.Account{}, mapPgError(err, fmt.Sprint(id), "get account")
	}
	return a, nil
}

// GetByUsername loads an account by its (case-insensitive) username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(username) = lower($1) LIMIT 1`,
		strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.NotFound(username, "account not found")
		}
		customLog.Warnf("Storage: Failed to find account %s: %v", username, err)
		return domain.Account{}, mapPgError(err, username, "get account")
	}
	return a, nil
}

// List returns every account ordered by username.
func (r *AccountRepo) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY username`)
	if err != nil {
		return nil, mapPgError(err, "accounts", "list accounts")
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetStatus activates or deactivates an account. Owned data is untouched.
func (r *AccountRepo) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	if !status.Valid() {
		return domain.InvalidInput(fmt.Sprint(id), "invalid status %q", status)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return mapPgError(err, fmt.Sprint(id), "set account status")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(fmt.Sprint(id), "account not found")
	}
	return nil
}
