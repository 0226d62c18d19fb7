package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/cadastro-backend/api/middleware"
	"github.com/Annany2002/cadastro-backend/api/models"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/service"
)

// PermissionHandler exposes grant management.
type PermissionHandler struct {
	Engine *service.Engine
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(engine *service.Engine) *PermissionHandler {
	return &PermissionHandler{Engine: engine}
}

// GetPermissions handles GET /accounts/:username/permissions.
func (h *PermissionHandler) GetPermissions(c *gin.Context) {
	perms, err := h.Engine.GetPermissions(c.Request.Context(), middleware.CurrentAccount(c), c.Param("username"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

// SetTablePermissions handles PUT /accounts/:username/permissions/tables/:table_name.
func (h *PermissionHandler) SetTablePermissions(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.TablePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	flags := domain.Flags{CanView: req.CanView, CanInsert: req.CanInsert, CanUpdate: req.CanUpdate, CanDelete: req.CanDelete}
	report, err := h.Engine.SetTablePermissions(c.Request.Context(), middleware.CurrentAccount(c), c.Param("username"), name, flags)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.MutationResponse{Message: "Table permissions updated", Data: flags, Mirror: report})
}

// SetGeneralPermission handles PUT /accounts/:username/permissions/general.
func (h *PermissionHandler) SetGeneralPermission(c *gin.Context) {
	var req models.GeneralPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	report, err := h.Engine.SetGeneralPermission(c.Request.Context(), middleware.CurrentAccount(c), c.Param("username"), *req.CanCreateTables)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.MutationResponse{
		Message: "General permission updated",
		Data:    gin.H{"can_create_tables": *req.CanCreateTables},
		Mirror:  report,
	})
}
