package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anime-watchlist/internal/service"
)

// CatalogHandler sirve los listados públicos del catálogo.
type CatalogHandler struct {
	logger *zap.Logger
	anime  *service.AnimeService
}

func NewCatalogHandler(logger *zap.Logger, anime *service.AnimeService) *CatalogHandler {
	return &CatalogHandler{logger: logger, anime: anime}
}

// Top maneja GET /catalog/top/:page/:type/:limit.
func (h *CatalogHandler) Top(c *gin.Context) {
	page, ok := intParam(c, "page")
	if !ok {
		return
	}
	limit, ok := intParam(c, "limit")
	if !ok {
		return
	}
	items, err := h.anime.Top(c.Request.Context(), page, c.Param("type"), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(items), "data": nonNilRaw(items)})
}

// Seasonal maneja GET /catalog/season/:year/:season/:limit.
func (h *CatalogHandler) Seasonal(c *gin.Context) {
	year, ok := intParam(c, "year")
	if !ok {
		return
	}
	limit, ok := intParam(c, "limit")
	if !ok {
		return
	}
	items, err := h.anime.Seasonal(c.Request.Context(), year, c.Param("season"), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(items), "data": nonNilRaw(items)})
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: %s must be a number", service.ErrInvalidInput, name))
		return 0, false
	}
	return n, true
}
