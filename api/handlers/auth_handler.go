// api/handlers/auth_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/cadastro-backend/api/middleware"
	"github.com/Annany2002/cadastro-backend/api/models"
	"github.com/Annany2002/cadastro-backend/config"
	"github.com/Annany2002/cadastro-backend/internal/auth"
	"github.com/Annany2002/cadastro-backend/internal/service"
)

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	Engine *service.Engine
	Cfg    *config.Config
}

// NewAuthHandler creates a new AuthHandler with dependencies.
func NewAuthHandler(engine *service.Engine, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Engine: engine, Cfg: cfg}
}

// Login handles login requests and issues a JWT on success. Accounts are
// created by administrators; there is no self-service signup.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Login binding error: %v", err)
		_ = c.Error(err)
		return
	}

	account, err := h.Engine.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	tokenString, err := auth.GenerateJWT(account, h.Cfg.JWTSecret, h.Cfg.JWTExpiration)
	if err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Handler: Account %s logged in", account.Username)
	c.JSON(http.StatusOK, models.LoginResponse{Message: "Logged in successfully", Account: account, Token: tokenString})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentAccount(c))
}
