package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/Annany2002/cadastro-backend/internal/auth"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

const minPasswordLength = 8

// AccountResult is a created or changed account plus the mirror outcome.
type AccountResult struct {
	Account domain.Account      `json:"account"`
	Mirror  domain.MirrorReport `json:"mirror"`
}

// CreateAccount registers a login and provisions its database role. Admin only.
func (e *Engine) CreateAccount(ctx context.Context, actor domain.Account, username, password string, role domain.Role) (AccountResult, error) {
	if err := requireAdmin(actor, "creating accounts"); err != nil {
		return AccountResult{Mirror: domain.NewMirrorReport()}, err
	}
	return e.createAccount(ctx, username, password, role)
}

func (e *Engine) createAccount(ctx context.Context, username, password string, role domain.Role) (AccountResult, error) {
	result := AccountResult{Mirror: domain.NewMirrorReport()}

	username = strings.TrimSpace(username)
	if username == "" {
		return result, domain.InvalidInput("username", "username is required")
	}
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return result, domain.InvalidInput(string(role), "role must be user or admin")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return result, domain.InvalidInput("password", "password must have at least %d characters", minPasswordLength)
	}

	// Distinct usernames can sanitize to one role name ("joao.silva" and
	// "joao_silva"); the role is what the database sees, so it must be unique.
	dbRole := e.mirror.RoleName(username)
	existing, err := e.accounts.List(ctx)
	if err != nil {
		return result, err
	}
	for _, other := range existing {
		if other.DBRole == dbRole || strings.EqualFold(other.Username, username) {
			return result, domain.DuplicateIdentifier(username)
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return result, err
	}
	account := domain.Account{Username: username, DBRole: dbRole, PasswordHash: hash, Role: role, Status: domain.StatusActive}
	if err := e.accounts.Create(ctx, &account); err != nil {
		return result, err
	}
	customLog.Printf("Engine: Account %s created with role %s", account.Username, account.Role)

	result.Account = account
	result.Mirror.Add(e.mirror.ProvisionAccount(ctx, account.Username, password, account.Role))
	return result, nil
}

// BootstrapAdmin creates the first administrator when it does not exist yet.
// It reports whether an account was created.
func (e *Engine) BootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := e.accounts.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	res, err := e.createAccount(ctx, username, password, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	for _, w := range res.Mirror.Warnings {
		customLog.Warnf("Engine: Bootstrap admin %s: %s", username, w)
	}
	return true, nil
}

// SetAccountStatus deactivates or reactivates an account. Deactivation strips
// every mirrored grant; reactivation re-projects the stored permissions.
// Owned data and permission rows are kept either way. Admin only.
func (e *Engine) SetAccountStatus(ctx context.Context, actor domain.Account, username string, status domain.Status) (AccountResult, error) {
	result := AccountResult{Mirror: domain.NewMirrorReport()}
	if err := requireAdmin(actor, "changing account status"); err != nil {
		return result, err
	}
	if !status.Valid() {
		return result, domain.InvalidInput(string(status), "status must be active or inactive")
	}
	target, err := e.targetAccount(ctx, username)
	if err != nil {
		return result, err
	}
	if target.ID == actor.ID && status == domain.StatusInactive {
		return result, domain.InvalidInput(username, "an administrator cannot deactivate their own account")
	}

	if err := e.accounts.SetStatus(ctx, target.ID, status); err != nil {
		return result, err
	}
	target.Status = status
	result.Account = target
	customLog.Printf("Engine: Account %s set to %s by %s", target.Username, status, actor.Username)

	if status == domain.StatusInactive {
		result.Mirror.Add(e.mirror.RevokeAll(ctx, target.Username))
		return result, nil
	}
	report, err := e.perms.Resync(ctx, target)
	if err != nil {
		return result, err
	}
	result.Mirror = report
	return result, nil
}

// Authenticate checks a username and password. Unknown users, wrong
// passwords and inactive accounts all fail with the same error.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (domain.Account, error) {
	account, err := e.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			customLog.Warnf("Engine: Login failed for unknown account %s", username)
			return domain.Account{}, auth.ErrInvalidCredentials
		}
		return domain.Account{}, err
	}
	if !auth.CheckPasswordHash(password, account.PasswordHash) {
		customLog.Warnf("Engine: Login failed for %s: invalid password", account.Username)
		return domain.Account{}, auth.ErrInvalidCredentials
	}
	if !account.IsActive() {
		customLog.Warnf("Engine: Login refused for inactive account %s", account.Username)
		return domain.Account{}, auth.ErrInvalidCredentials
	}
	return account, nil
}

// Account loads an account by id; used to resolve the token subject on every
// request so role and status changes apply immediately.
func (e *Engine) Account(ctx context.Context, id int64) (domain.Account, error) {
	return e.accounts.GetByID(ctx, id)
}

// ListAccounts returns every account. Admin only.
func (e *Engine) ListAccounts(ctx context.Context, actor domain.Account) ([]domain.Account, error) {
	if err := requireAdmin(actor, "listing accounts"); err != nil {
		return nil, err
	}
	return e.accounts.List(ctx)
}
