// api/middleware/error_handler.go
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Annany2002/cadastro-backend/api/models"
	"github.com/Annany2002/cadastro-backend/internal/auth"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind error) int {
	switch kind {
	case domain.ErrInvalidInput, domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrDuplicateIdentifier, domain.ErrColumnConflict:
		return http.StatusConflict
	case domain.ErrMirrorDegraded:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ErrorHandler creates a Gin middleware for centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// We only handle the last error for the response.
		err := c.Errors.Last().Err
		statusCode, body := Render(err)

		if statusCode >= http.StatusInternalServerError {
			customLog.Errorf("ErrorHandler: %s %s failed: %v (%T)", c.Request.Method, c.FullPath(), err, err)
		} else {
			customLog.Debugf("ErrorHandler: %s %s -> %d: %v", c.Request.Method, c.FullPath(), statusCode, err)
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(statusCode, body)
		} else {
			customLog.Warnf("ErrorHandler: Response already written before handling error: %v", err)
		}
	}
}

// Render turns any error into a status code and a structured body. Raw
// driver errors never reach the client.
func Render(err error) (int, models.ErrorResponse) {
	if de, ok := domain.AsError(err); ok {
		return statusFor(de.Kind), models.ErrorResponse{
			Error:      de.Error(),
			Kind:       de.KindName(),
			Identifier: de.Identifier,
			Row:        de.Row,
			Details:    de.Details,
		}
	}

	var validationErrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication token has expired.", Kind: "unauthorized"}
	case errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenClaimsInvalid),
		errors.Is(err, auth.ErrUnexpectedSigningMethod):
		return http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or malformed authentication token.", Kind: "unauthorized"}
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, models.ErrorResponse{Error: err.Error(), Kind: "unauthorized"}
	case errors.As(err, &validationErrs):
		details := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			details = append(details, fe.Field()+" failed on '"+fe.Tag()+"'")
		}
		return http.StatusBadRequest, models.ErrorResponse{Error: "Validation failed. Please check your input.", Kind: domain.KindName(domain.ErrInvalidInput), Details: details}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return http.StatusBadRequest, models.ErrorResponse{Error: "Invalid JSON request body.", Kind: domain.KindName(domain.ErrInvalidInput)}
	}
	return http.StatusInternalServerError, models.ErrorResponse{Error: "An unexpected internal server error occurred.", Kind: "internal"}
}
