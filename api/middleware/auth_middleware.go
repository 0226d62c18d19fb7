// api/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/cadastro-backend/config"
	"github.com/Annany2002/cadastro-backend/internal/auth"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/logger"
)

// AccountKey is the gin context key holding the authenticated domain.Account.
const AccountKey = "account"

var customLog = logger.NewLogger()

// AccountLoader resolves the token subject to the current account state.
type AccountLoader interface {
	Account(ctx context.Context, id int64) (domain.Account, error)
}

// AuthMiddleware validates the Bearer JWT and loads the account it names.
// Role and status are read from storage on every request, so a deactivation
// takes effect without waiting for the token to expire.
func AuthMiddleware(cfg *config.Config, accounts AccountLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			_ = c.Error(fmt.Errorf("%w: authorization header required", auth.ErrUnauthorized))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			_ = c.Error(fmt.Errorf("%w: authorization header format must be Bearer {token}", auth.ErrTokenMalformed))
			c.Abort()
			return
		}

		claims, err := auth.ValidateJWT(parts[1], cfg.JWTSecret)
		if err != nil {
			customLog.Printf("AuthMiddleware: Token validation failed: %v", err)
			_ = c.Error(err)
			c.Abort()
			return
		}

		account, err := accounts.Account(c.Request.Context(), claims.AccountID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				err = fmt.Errorf("%w: account no longer exists", auth.ErrUnauthorized)
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if !account.IsActive() {
			_ = c.Error(fmt.Errorf("%w: account is inactive", auth.ErrUnauthorized))
			c.Abort()
			return
		}

		customLog.Debugf("AuthMiddleware: Token validated for account %s (%d)", account.Username, account.ID)
		c.Set(AccountKey, account)
		c.Next()
	}
}

// CurrentAccount returns the account set by AuthMiddleware.
func CurrentAccount(c *gin.Context) domain.Account {
	if v, ok := c.Get(AccountKey); ok {
		if acc, ok := v.(domain.Account); ok {
			return acc
		}
	}
	return domain.Account{}
}
