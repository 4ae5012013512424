package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
)

// handleCatalogImport accepts a multipart price-list workbook under the
// "file" field. Query params: trade (optional, defaults general
// contractor), customer_id (optional, targets the customer tier).
func (s *Server) handleCatalogImport(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		s.respondError(c, common.NewAppError("MISSING_FILE", "multipart field 'file' required", common.ErrInvalidInput))
		return
	}
	defer func() { _ = file.Close() }()

	trade, _ := constants.CanonicalizeTrade(c.Query("trade"))

	var customerID *uuid.UUID
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(c, common.NewAppError("INVALID_CUSTOMER", "invalid customer_id", common.ErrInvalidInput))
			return
		}
		customerID = &id
	}

	res, err := s.deps.Importer.ImportXLSX(c.Request.Context(), workspaceID(c), customerID, trade, file)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": res.Imported, "skipped": res.Skipped, "trade": trade})
}
