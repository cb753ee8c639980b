package api

import (
	"net/http"

	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// StreamExport handles GET /v1/export?format=...
// Streams the caller's posts directly to the response
func (h *ExportHandler) StreamExport(c *gin.Context) {
	format := c.DefaultQuery("format", service.FormatNDJSON)
	contentType, ok := service.ExportContentType(format)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: ndjson, json, csv"})
		return
	}

	actor := mustActor(c)
	h.log.Info().Str("format", format).Str("user_id", actor.UserID).Msg("Starting streaming export")

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "attachment; filename=posts."+format)
	c.Status(http.StatusOK)

	count, err := h.services.Post.Export(c.Request.Context(), actor, c.Writer, format)
	if err != nil {
		// Can't return error JSON after streaming has started
		h.log.Error().Err(err).Int("written", count).Msg("Export failed")
		return
	}
}
