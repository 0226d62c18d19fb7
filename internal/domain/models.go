// internal/domain/models.go
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LogicalType is the five-valued column type exposed to end users,
// independent of the storage engine's native types.
type LogicalType string

const (
	TypeText  LogicalType = "text"
	TypeInt   LogicalType = "int"
	TypeFloat LogicalType = "float"
	TypeDate  LogicalType = "date"
	TypeBool  LogicalType = "bool"
)

// LogicalTypes lists every supported logical type in display order.
var LogicalTypes = []LogicalType{TypeText, TypeInt, TypeFloat, TypeDate, TypeBool}

// ParseLogicalType accepts the canonical names plus a few common aliases.
func ParseLogicalType(s string) (LogicalType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string":
		return TypeText, true
	case "int", "integer":
		return TypeInt, true
	case "float", "real", "decimal", "number":
		return TypeFloat, true
	case "date":
		return TypeDate, true
	case "bool", "boolean":
		return TypeBool, true
	}
	return "", false
}

// Valid reports whether t is one of the five logical types.
func (t LogicalType) Valid() bool {
	switch t {
	case TypeText, TypeInt, TypeFloat, TypeDate, TypeBool:
		return true
	}
	return false
}

// UnmarshalJSON normalizes aliases and rejects unknown types.
func (t *LogicalType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	lt, ok := ParseLogicalType(s)
	if !ok {
		return fmt.Errorf("unknown logical type %q", s)
	}
	*t = lt
	return nil
}

// Field is one user-defined column. Name is the sanitized column identifier;
// Label keeps the human text the user typed.
type Field struct {
	Name  string      `json:"name"`
	Type  LogicalType `json:"type"`
	Label string      `json:"label,omitempty"`
}

// DisplayLabel returns the label, falling back to the column name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Status is the lifecycle state shared by tables and accounts.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is active or inactive.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// DynamicTable is a catalog entry describing a user-defined relation.
type DynamicTable struct {
	InternalName string    `json:"name"`
	DisplayName  string    `json:"display_name"`
	Description  string    `json:"description,omitempty"`
	Fields       []Field   `json:"fields"`
	Status       Status    `json:"status"`
	CreatedBy    *int64    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FieldByName returns the field with the given column name.
func (t DynamicTable) FieldByName(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsActive reports whether the table is visible to non-admins.
func (t DynamicTable) IsActive() bool {
	return t.Status == StatusActive
}

// Role is an account's application role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is an application login. DBRole is the database role the grants
// mirror manages for it; no two accounts share one.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DBRole       string    `json:"db_role"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the account holds the admin role.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsActive reports whether the account may act at all.
func (a Account) IsActive() bool {
	return a.Status == StatusActive
}

// Verb names one of the four table-level permissions.
type Verb string

const (
	VerbView   Verb = "view"
	VerbInsert Verb = "insert"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// GeneralVerbCreateTables is the single account-level permission.
const GeneralVerbCreateTables = "create_tables"

// Flags are the four independent table-level permissions.
type Flags struct {
	CanView   bool `json:"can_view"`
	CanInsert bool `json:"can_insert"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

// AllFlags grants every table verb; used for admin summaries.
var AllFlags = Flags{CanView: true, CanInsert: true, CanUpdate: true, CanDelete: true}

// CreatorFlags is what table creators and newly empowered accounts receive.
var CreatorFlags = Flags{CanView: true, CanInsert: true, CanUpdate: true}

// Allows returns the flag named by v.
func (f Flags) Allows(v Verb) bool {
	switch v {
	case VerbView:
		return f.CanView
	case VerbInsert:
		return f.CanInsert
	case VerbUpdate:
		return f.CanUpdate
	case VerbDelete:
		return f.CanDelete
	}
	return false
}

// Merge ORs other into f.
func (f Flags) Merge(other Flags) Flags {
	return Flags{
		CanView:   f.CanView || other.CanView,
		CanInsert: f.CanInsert || other.CanInsert,
		CanUpdate: f.CanUpdate || other.CanUpdate,
		CanDelete: f.CanDelete || other.CanDelete,
	}
}

// TablePermission is the stored grant of one account on one table.
type TablePermission struct {
	AccountID int64     `json:"account_id"`
	TableName string    `json:"table"`
	Flags     Flags     `json:"flags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GeneralPermission is the stored account-level grant.
type GeneralPermission struct {
	AccountID       int64     `json:"account_id"`
	CanCreateTables bool      `json:"can_create_tables"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableSummary is what listTables returns per visible table.
type TableSummary struct {
	InternalName string  `json:"name"`
	DisplayName  string  `json:"display_name"`
	Fields       []Field `json:"fields"`
	Status       Status  `json:"status"`
	RowCount     int64   `json:"row_count"`
	Permissions  Flags   `json:"permissions"`
}

// Record maps column names to typed values for one row.
type Record map[string]Value

// RecordPage is one page of a table listing.
type RecordPage struct {
	Records []map[string]any `json:"data"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
	Total   int64            `json:"total"`
	Pages   int64            `json:"pages"`
}

// BatchOutcome is what inserting a validated batch produced.
type BatchOutcome struct {
	Inserted   int
	Duplicates int
	Errors     []string
}

// ImportResult is the normal (partial-success) outcome of a batch import.
type ImportResult struct {
	BatchID    string   `json:"batch_id"`
	Validated  bool     `json:"validated"`
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings,omitempty"`
}

// MirrorReport tells the caller whether the database-level ACL mirror was
// applied. Warnings are non-empty when the two enforcement layers diverged.
type MirrorReport struct {
	Applied  bool     `json:"applied"`
	Warnings []string `json:"warnings,omitempty"`
}

// Add records the outcome of one mirror call.
func (r *MirrorReport) Add(err error) {
	if err == nil {
		return
	}
	r.Applied = false
	r.Warnings = append(r.Warnings, err.Error())
}

// NewMirrorReport starts a report that is applied until a failure is added.
func NewMirrorReport() MirrorReport {
	return MirrorReport{Applied: true}
}
