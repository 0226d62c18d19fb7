package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// tableParam reads :table_name; invalid identifiers cannot name any table.
func tableParam(c *gin.Context) (string, error) {
	name := c.Param("table_name")
	if !core.IsValidIdentifier(name) {
		return "", domain.NotFound(name, "table not found")
	}
	return name, nil
}

// recordIDParam reads :record_id as a positive integer.
func recordIDParam(c *gin.Context) (int64, error) {
	raw := c.Param("record_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput(raw, "invalid record id")
	}
	return id, nil
}
