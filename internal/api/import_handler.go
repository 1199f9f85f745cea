package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ImportHandler handles catalogue restores
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

// ImportCatalogue handles POST /admin/import
// Accepts a multipart "file" upload or a raw NDJSON body
func (h *ImportHandler) ImportCatalogue(c *gin.Context) {
	ctx := c.Request.Context()
	maxSize := h.cfg.Import.MaxFileSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

	var (
		body     io.Reader
		filename string
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				h.tooLarge(c, maxSize)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".ndjson" && ext != ".jsonl" && ext != ".json" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "catalogue import requires an NDJSON file"})
			return
		}
		body = file
		filename = header.Filename
	} else {
		body = c.Request.Body
		filename = "request body"
	}

	result, err := h.services.Import.ImportNDJSON(ctx, body)
	if err != nil {
		if isTooLarge(err) {
			h.tooLarge(c, maxSize)
			return
		}
		h.log.Error().Err(err).Str("file", filename).Msg("Catalogue import failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to import catalogue"})
		return
	}

	h.log.Info().
		Str("file", filename).
		Str("staff", c.GetString("staff_subject")).
		Int("total", result.TotalRecords).
		Int("inserted", result.SuccessfulCount).
		Int("skipped", result.SkippedCount).
		Int("failed", result.FailedCount).
		Int64("duration_ms", result.DurationMs).
		Msg("Catalogue import completed")

	c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) tooLarge(c *gin.Context, maxSize int64) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("file too large, max size is %d MB", maxSize/(1024*1024)),
	})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
