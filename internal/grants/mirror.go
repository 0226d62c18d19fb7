// Package grants mirrors application permissions onto native PostgreSQL
// roles, so a client connecting straight to the database is held to the same
// policy. The mirror is best effort: failures are logged and reported as
// MirrorDegraded, never propagated as a reason to undo the in-app change.
package grants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/logger"
)

var (
	customLog = logger.NewLogger()

	errDisabled = errors.New("grants mirror is disabled")
)

// Executor runs statements with the privileges needed to manage roles.
// *pgxpool.Pool satisfies it.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Privilege is one table-level privilege held by a role.
type Privilege struct {
	Table     string `json:"table"`
	Privilege string `json:"privilege"`
}

// Mirror projects permission state onto database roles.
type Mirror struct {
	db     Executor
	schema string
	prefix string
}

// New creates a Mirror. A nil executor yields a disabled mirror whose every
// call reports MirrorDegraded.
func New(db Executor, schema, rolePrefix string) *Mirror {
	if schema == "" {
		schema = "public"
	}
	return &Mirror{db: db, schema: schema, prefix: rolePrefix}
}

// Enabled reports whether the mirror has a database to talk to.
func (m *Mirror) Enabled() bool {
	return m != nil && m.db != nil
}

// RoleName derives the database role for an application username.
func (m *Mirror) RoleName(username string) string {
	name := core.Sanitize(m.prefix + username)
	if len(name) > core.MaxIdentifierLength {
		name = name[:core.MaxIdentifierLength]
	}
	return name
}

func ident(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

// exec runs statements as one simple-protocol call. Without arguments pgx
// sends them in a single implicit transaction, so a revoke never lands
// without its grants.
func (m *Mirror) exec(ctx context.Context, role, op string, stmts []string) error {
	if !m.Enabled() {
		return m.degraded(role, op, errDisabled)
	}
	if len(stmts) == 0 {
		return nil
	}
	if _, err := m.db.Exec(ctx, strings.Join(stmts, ";\n")); err != nil {
		return m.degraded(role, op, err)
	}
	customLog.Debugf("Grants: %s applied for role %s (%d statement(s))", op, role, len(stmts))
	return nil
}

func (m *Mirror) degraded(role, op string, cause error) error {
	if errors.Is(cause, errDisabled) {
		customLog.Debugf("Grants: %s skipped for role %s: mirror disabled", op, role)
	} else {
		customLog.Warnf("Grants: %s failed for role %s: %v", op, role, cause)
	}
	return domain.MirrorDegraded(role, op, cause)
}

func (m *Mirror) roleExists(ctx context.Context, role string) (bool, error) {
	var exists bool
	err := m.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)`, role).Scan(&exists)
	return exists, err
}

// ProvisionAccount creates the login role when absent; an existing role is
// left untouched. Admins get every privilege on the schema, others USAGE
// plus SELECT as a floor that table grants narrow further.
func (m *Mirror) ProvisionAccount(ctx context.Context, username, password string, role domain.Role) error {
	roleName := m.RoleName(username)
	const op = "provision account"
	if !m.Enabled() {
		return m.degraded(roleName, op, errDisabled)
	}

	exists, err := m.roleExists(ctx, roleName)
	if err != nil {
		return m.degraded(roleName, op, err)
	}
	if exists {
		customLog.Printf("Grants: Role %s already exists", roleName)
		return nil
	}

	// format() quotes the identifier and the password literal server side.
	var create string
	if err := m.db.QueryRow(ctx,
		`SELECT format('CREATE ROLE %I WITH LOGIN PASSWORD %L', $1::text, $2::text)`,
		roleName, password).Scan(&create); err != nil {
		return m.degraded(roleName, op, err)
	}

	stmts := append([]string{create}, provisionStatements(roleName, m.schema, role)...)
	if err := m.exec(ctx, roleName, op, stmts); err != nil {
		return err
	}
	customLog.Printf("Grants: Role %s provisioned (%s)", roleName, role)
	return nil
}

func provisionStatements(role, schema string, appRole domain.Role) []string {
	r, s := ident(role), ident(schema)
	if appRole == domain.RoleAdmin {
		return []string{
			fmt.Sprintf("GRANT ALL PRIVILEGES ON SCHEMA %s TO %s", s, r),
			fmt.Sprintf("GRANT ALL PRIVILEGES ON ALL TABLES IN SCHEMA %s TO %s", s, r),
			fmt.Sprintf("GRANT ALL PRIVILEGES ON ALL SEQUENCES IN SCHEMA %s TO %s", s, r),
			fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON TABLES TO %s", s, r),
			fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON SEQUENCES TO %s", s, r),
		}
	}
	return []string{
		fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", s, r),
		fmt.Sprintf("GRANT SELECT ON ALL TABLES IN SCHEMA %s TO %s", s, r),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT SELECT ON TABLES TO %s", s, r),
		// Password hashes stay out of reach of the SELECT floor.
		fmt.Sprintf("REVOKE ALL ON TABLE %s FROM %s", ident(schema, "accounts"), r),
	}
}

// GrantTablePermissions revokes everything the role holds on the table, then
// grants exactly what the flags imply.
func (m *Mirror) GrantTablePermissions(ctx context.Context, username, table string, flags domain.Flags) error {
	roleName := m.RoleName(username)
	return m.exec(ctx, roleName, "grant table permissions on "+table, tableStatements(roleName, m.schema, table, flags))
}

func tableStatements(role, schema, table string, flags domain.Flags) []string {
	r, t := ident(role), ident(schema, table)
	stmts := []string{fmt.Sprintf("REVOKE ALL ON TABLE %s FROM %s", t, r)}

	var privs []string
	if flags.CanView {
		privs = append(privs, "SELECT")
	}
	if flags.CanInsert {
		privs = append(privs, "INSERT")
	}
	if flags.CanUpdate {
		privs = append(privs, "UPDATE")
	}
	if flags.CanDelete {
		privs = append(privs, "DELETE")
	}
	if len(privs) > 0 {
		stmts = append(stmts, fmt.Sprintf("GRANT %s ON TABLE %s TO %s", strings.Join(privs, ", "), t, r))
	}
	return stmts
}

// GrantGeneralPermissions grants or revokes CREATE on the schema.
func (m *Mirror) GrantGeneralPermissions(ctx context.Context, username string, canCreateTables bool) error {
	roleName := m.RoleName(username)
	return m.exec(ctx, roleName, "grant general permissions", generalStatements(roleName, m.schema, canCreateTables))
}

func generalStatements(role, schema string, canCreateTables bool) []string {
	r, s := ident(role), ident(schema)
	if canCreateTables {
		return []string{fmt.Sprintf("GRANT USAGE, CREATE ON SCHEMA %s TO %s", s, r)}
	}
	return []string{fmt.Sprintf("REVOKE CREATE ON SCHEMA %s FROM %s", s, r)}
}

// RevokeAll strips every privilege the role holds in the schema. The login
// itself remains; a role that was already dropped is a no-op.
func (m *Mirror) RevokeAll(ctx context.Context, username string) error {
	roleName := m.RoleName(username)
	const op = "revoke all"
	if !m.Enabled() {
		return m.degraded(roleName, op, errDisabled)
	}
	exists, err := m.roleExists(ctx, roleName)
	if err != nil {
		return m.degraded(roleName, op, err)
	}
	if !exists {
		return nil
	}
	return m.exec(ctx, roleName, op, revokeAllStatements(roleName, m.schema))
}

func revokeAllStatements(role, schema string) []string {
	r, s := ident(role), ident(schema)
	return []string{
		fmt.Sprintf("REVOKE ALL ON ALL TABLES IN SCHEMA %s FROM %s", s, r),
		fmt.Sprintf("REVOKE ALL ON ALL SEQUENCES IN SCHEMA %s FROM %s", s, r),
		fmt.Sprintf("REVOKE ALL ON SCHEMA %s FROM %s", s, r),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s REVOKE ALL ON TABLES FROM %s", s, r),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s REVOKE ALL ON SEQUENCES FROM %s", s, r),
	}
}

// DropAccount revokes everything and drops the role; a missing role is a no-op.
func (m *Mirror) DropAccount(ctx context.Context, username string) error {
	roleName := m.RoleName(username)
	const op = "drop account"
	if !m.Enabled() {
		return m.degraded(roleName, op, errDisabled)
	}
	exists, err := m.roleExists(ctx, roleName)
	if err != nil {
		return m.degraded(roleName, op, err)
	}
	if !exists {
		return nil
	}
	stmts := append(revokeAllStatements(roleName, m.schema), "DROP ROLE "+ident(roleName))
	if err := m.exec(ctx, roleName, op, stmts); err != nil {
		return err
	}
	customLog.Printf("Grants: Role %s dropped", roleName)
	return nil
}
