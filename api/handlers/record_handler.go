// api/handlers/record_handler.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/cadastro-backend/api/middleware"
	"github.com/Annany2002/cadastro-backend/internal/core"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/ingest"
	"github.com/Annany2002/cadastro-backend/internal/service"
)

// maxUploadBytes bounds a CSV upload.
const maxUploadBytes = 32 << 20

// RecordHandler holds dependencies for record CRUD handlers.
type RecordHandler struct {
	Engine *service.Engine
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(engine *service.Engine) *RecordHandler {
	return &RecordHandler{Engine: engine}
}

// CreateRecord handles inserting a new record.
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var recordData map[string]any
	if err := c.ShouldBindJSON(&recordData); err != nil {
		_ = c.Error(err)
		return
	}
	if len(recordData) == 0 {
		_ = c.Error(domain.InvalidInput(name, "request body cannot be empty"))
		return
	}

	id, err := h.Engine.InsertRecord(c.Request.Context(), middleware.CurrentAccount(c), name, recordData)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Record created successfully", "record_id": id})
}

// ImportRecords handles bulk ingestion. A multipart "file" field or a
// text/csv body is decoded as CSV; a JSON body must be an array of objects.
func (h *RecordHandler) ImportRecords(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	actor := middleware.CurrentAccount(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	var result domain.ImportResult
	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			_ = c.Error(domain.InvalidInput("file", "multipart upload must carry a 'file' field"))
			return
		}
		f, ferr := fileHeader.Open()
		if ferr != nil {
			_ = c.Error(domain.InvalidInput("file", "cannot read upload: %v", ferr))
			return
		}
		defer f.Close()
		result, err = h.Engine.ImportCSV(ctx, actor, name, f)
	case contentType == "text/csv":
		result, err = h.Engine.ImportCSV(ctx, actor, name, c.Request.Body)
	default:
		var rows []map[string]any
		if berr := c.ShouldBindJSON(&rows); berr != nil {
			_ = c.Error(berr)
			return
		}
		result, err = h.Engine.ImportBatch(ctx, actor, name, ingest.FromMaps(rows))
	}

	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListRecords handles GET with page, limit, search, sort_by and sort_order.
func (h *RecordHandler) ListRecords(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	opts, err := core.ParseListQueryOptions(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}

	page, err := h.Engine.ListRecords(c.Request.Context(), middleware.CurrentAccount(c), name, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetRecord handles fetching a single record by id.
func (h *RecordHandler) GetRecord(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	id, err := recordIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	record, err := h.Engine.GetRecord(c.Request.Context(), middleware.CurrentAccount(c), name, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpdateRecord handles a partial update of one record.
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	id, err := recordIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var updateData map[string]any
	if err := c.ShouldBindJSON(&updateData); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.Engine.UpdateRecord(c.Request.Context(), middleware.CurrentAccount(c), name, id, updateData); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record updated successfully", "record_id": id})
}

// DeleteRecord handles deleting one record.
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	name, err := tableParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	id, err := recordIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.Engine.DeleteRecord(c.Request.Context(), middleware.CurrentAccount(c), name, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
