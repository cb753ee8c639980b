package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxImportSize bounds an idea import file
const maxImportSize = 5 * 1024 * 1024

// ImportHandler handles import endpoints
type ImportHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "import").Logger(),
	}
}

// ImportIdeas handles POST /v1/import
// Accepts an NDJSON file upload (field "file") or a raw NDJSON body
func (h *ImportHandler) ImportIdeas(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large, max size is 5 MB"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".ndjson" && ext != ".jsonl" && ext != ".json" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "idea import requires an NDJSON file"})
			return
		}
		body = file
	}

	result, err := h.services.Post.ImportIdeas(c.Request.Context(), mustActor(c), body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info().
		Int("total", result.Total).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("Ideas imported")

	c.JSON(http.StatusOK, result)
}
