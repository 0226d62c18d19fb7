package grants

import (
	"context"
	"fmt"
)

// Privileges lists the table privileges the role actually holds in the
// schema, for auditing divergence between the two enforcement layers.
func (m *Mirror) Privileges(ctx context.Context, username string) ([]Privilege, error) {
	roleName := m.RoleName(username)
	if !m.Enabled() {
		return nil, m.degraded(roleName, "list privileges", errDisabled)
	}
	rows, err := m.db.Query(ctx, `
		SELECT table_name, privilege_type
		FROM information_schema.table_privileges
		WHERE grantee = $1 AND table_schema = $2
		ORDER BY table_name, privilege_type`, roleName, m.schema)
	if err != nil {
		return nil, m.degraded(roleName, "list privileges", err)
	}
	defer rows.Close()

	privs := make([]Privilege, 0)
	for rows.Next() {
		var p Privilege
		if err := rows.Scan(&p.Table, &p.Privilege); err != nil {
			return nil, fmt.Errorf("failed to scan privilege: %w", err)
		}
		privs = append(privs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, m.degraded(roleName, "list privileges", err)
	}
	return privs, nil
}
