package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// RolePrefix is the prefix RoleName puts in front of sanitized usernames.
const RolePrefix = "cad_"

// Mirror records every grants call. When Fail is set each call returns a
// MirrorDegraded error, as a mirror without database privileges would.
type Mirror struct {
	mu    sync.Mutex
	Fail  bool
	Calls []string
	Roles map[string]domain.Role
	Table map[string]domain.Flags
}

// NewMirror returns an empty recorder.
func NewMirror() *Mirror {
	return &Mirror{Roles: map[string]domain.Role{}, Table: map[string]domain.Flags{}}
}

func (m *Mirror) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
	if m.Fail {
		return domain.MirrorDegraded("role", call, fmt.Errorf("permission denied"))
	}
	return nil
}

// Flags returns the last flags mirrored for username on table.
func (m *Mirror) Flags(username, table string) domain.Flags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Table[username+"/"+table]
}

// RoleName derives role names the way the grants mirror does.
func (m *Mirror) RoleName(username string) string {
	name := core.Sanitize(RolePrefix + username)
	if len(name) > core.MaxIdentifierLength {
		name = name[:core.MaxIdentifierLength]
	}
	return name
}

func (m *Mirror) ProvisionAccount(_ context.Context, username, _ string, role domain.Role) error {
	if err := m.record("provision " + username); err != nil {
		return err
	}
	m.mu.Lock()
	m.Roles[username] = role
	m.mu.Unlock()
	return nil
}

func (m *Mirror) GrantTablePermissions(_ context.Context, username, table string, flags domain.Flags) error {
	if err := m.record(fmt.Sprintf("grant %s %s", username, table)); err != nil {
		return err
	}
	m.mu.Lock()
	m.Table[username+"/"+table] = flags
	m.mu.Unlock()
	return nil
}

func (m *Mirror) GrantGeneralPermissions(_ context.Context, username string, canCreateTables bool) error {
	return m.record(fmt.Sprintf("general %s %v", username, canCreateTables))
}

func (m *Mirror) RevokeAll(_ context.Context, username string) error {
	if err := m.record("revoke " + username); err != nil {
		return err
	}
	m.forget(username, false)
	return nil
}

func (m *Mirror) DropAccount(_ context.Context, username string) error {
	if err := m.record("drop " + username); err != nil {
		return err
	}
	m.forget(username, true)
	return nil
}

func (m *Mirror) forget(username string, role bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.Table {
		if strings.HasPrefix(k, username+"/") {
			delete(m.Table, k)
		}
	}
	if role {
		delete(m.Roles, username)
	}
}
