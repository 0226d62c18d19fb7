// api/handlers/table_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/cadastro-backend/api/middleware"
	"github.com/Annany2002/cadastro-backend/api/models"
	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/service"
)

// TableHandler holds dependencies for table management handlers.
type TableHandler struct {
	Engine *service.Engine
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(engine *service.Engine) *TableHandler {
	return &TableHandler{Engine: engine}
}

// ListTables handles GET /tables.
func (h *TableHandler) ListTables(c *gin.Context) {
	tables, err := h.Engine.ListTables(c.Request.Context(), middleware.CurrentAccount(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// CreateTable handles POST /tables.
func (h *TableHandler) CreateTable(c *gin.Context) {
	var req models.CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.Engine.CreateTable(c.Request.Context(), middleware.CurrentAccount(c), req.DisplayName, req.Description, req.Fields)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, models.MutationResponse{Message: "Table created successfully", Data: res.Table, Mirror: res.Mirror})
}

// DescribeTable handles GET /tables/:table_name.
func (h *TableHandler) DescribeTable(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	table, err := h.Engine.DescribeTable(c.Request.Context(), middleware.CurrentAccount(c), name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// UpdateTable handles PATCH /tables/:table_name.
func (h *TableHandler) UpdateTable(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.UpdateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	table, err := h.Engine.UpdateTable(c.Request.Context(), middleware.CurrentAccount(c), name, req.DisplayName, req.Description)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// AddField handles POST /tables/:table_name/fields.
func (h *TableHandler) AddField(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.AddFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	table, err := h.Engine.AddField(c.Request.Context(), middleware.CurrentAccount(c), name, core.FieldSpec{Name: req.Name, Type: req.Type})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// SetStatus handles PUT /tables/:table_name/status. Deactivating is the
// product-level delete.
func (h *TableHandler) SetStatus(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.Engine.SetTableStatus(c.Request.Context(), middleware.CurrentAccount(c), name, domain.Status(req.Status)); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Table status updated", "table": name, "status": req.Status})
}
