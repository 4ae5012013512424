package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.deps.Settings.Get(c.Request.Context(), workspaceID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, common.NewAppError("INVALID_SETTINGS", "invalid settings payload", common.ErrInvalidInput))
		return
	}
	if err := req.validate(); err != nil {
		s.respondError(c, err)
		return
	}
	trade, _ := constants.CanonicalizeTrade(req.Trade)

	settings := &entity.WorkspaceSettings{
		WorkspaceID:     workspaceID(c),
		HourlyRate:      req.HourlyRate,
		MarkupPercent:   req.MarkupPercent,
		TaxRatePercent:  req.TaxRatePercent,
		Trade:           trade,
		DefaultPromptID: req.DefaultPromptID,
	}
	if err := s.deps.Settings.Upsert(c.Request.Context(), settings); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
