package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/cadastro-backend/api/middleware"
	"github.com/Annany2002/cadastro-backend/api/models"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/service"
)

// AccountHandler exposes account administration.
type AccountHandler struct {
	Engine *service.Engine
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(engine *service.Engine) *AccountHandler {
	return &AccountHandler{Engine: engine}
}

// ListAccounts handles GET /accounts.
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.Engine.ListAccounts(c.Request.Context(), middleware.CurrentAccount(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// CreateAccount handles POST /accounts.
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.Engine.CreateAccount(c.Request.Context(), middleware.CurrentAccount(c), req.Username, req.Password, domain.Role(req.Role))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, models.MutationResponse{Message: "Account created successfully", Data: res.Account, Mirror: res.Mirror})
}

// SetStatus handles PUT /accounts/:username/status.
func (h *AccountHandler) SetStatus(c *gin.Context) {
	var req models.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.Engine.SetAccountStatus(c.Request.Context(), middleware.CurrentAccount(c), c.Param("username"), domain.Status(req.Status))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.MutationResponse{Message: "Account status updated", Data: res.Account, Mirror: res.Mirror})
}
