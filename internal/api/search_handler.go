package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	msgEmptyQuery       = "Please tell us what you're looking for."
	msgSearchCalibrated = "The reference desk is calibrating its shelves. Kindly try again shortly."
	msgSearchFailed     = "We could not retrieve catalogue entries just now. Please try another topic."
)

// SearchHandler handles catalogue search
type SearchHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(services *service.Services, log zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		services: services,
		log:      log.With().Str("handler", "search").Logger(),
	}
}

// Search handles GET /search/?q=
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, models.SearchResponse{Results: []models.SearchResult{}, Error: msgEmptyQuery})
		return
	}

	results, err := h.services.Search.Search(c.Request.Context(), query)
	if err != nil {
		msg := msgSearchFailed
		if errors.Is(err, models.ErrProviderMisconfigured) {
			msg = msgSearchCalibrated
		}
		h.log.Error().Err(err).Str("query", query).Msg("Catalogue search failed")
		c.JSON(http.StatusServiceUnavailable, models.SearchResponse{Results: []models.SearchResult{}, Error: msg})
		return
	}

	c.JSON(http.StatusOK, models.SearchResponse{Results: emptyIfNil(results)})
}
