// api/models/cadastro_models.go
package models

import "github.com/Annany2002/cadastro-backend/internal/core"

// --- Table Requests ---

// CreateTableRequest defines the body for creating a dynamic table
type CreateTableRequest struct {
	DisplayName string           `json:"display_name" binding:"required"`
	Description string           `json:"description"`
	Fields      []core.FieldSpec `json:"fields" binding:"required,min=1,dive"`
}

// UpdateTableRequest renames a table or changes its description
type UpdateTableRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=1000"`
}

// AddFieldRequest defines the body for adding one column
type AddFieldRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// SetStatusRequest toggles a table or account between active and inactive
type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

// --- Permission Requests ---

// TablePermissionRequest sets exactly the four flags of one account on one table
type TablePermissionRequest struct {
	CanView   bool `json:"can_view"`
	CanInsert bool `json:"can_insert"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

// GeneralPermissionRequest sets the account-level create-tables flag
type GeneralPermissionRequest struct {
	CanCreateTables *bool `json:"can_create_tables" binding:"required"`
}

// --- Account Requests ---

// CreateAccountRequest defines the body for creating an application login
type CreateAccountRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

// --- Responses ---

// MutationResponse is returned by calls that also touch the grants mirror
type MutationResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Mirror  interface{} `json:"mirror"`
}

// ErrorResponse is the body written by the error handler middleware
type ErrorResponse struct {
	Error      string   `json:"error"`
	Kind       string   `json:"kind"`
	Identifier string   `json:"identifier,omitempty"`
	Row        int      `json:"row,omitempty"`
	Details    []string `json:"details,omitempty"`
}
