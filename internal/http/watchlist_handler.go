package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anime-watchlist/internal/domain"
	"anime-watchlist/internal/service"
)

// WatchlistHandler expone el watchlist del usuario y el buscador del catálogo.
type WatchlistHandler struct {
	logger    *zap.Logger
	watchlist *service.WatchlistService
	anime     *service.AnimeService
}

func NewWatchlistHandler(logger *zap.Logger, watchlist *service.WatchlistService, anime *service.AnimeService) *WatchlistHandler {
	return &WatchlistHandler{logger: logger, watchlist: watchlist, anime: anime}
}

// Search maneja POST /watchlist/search.
func (h *WatchlistHandler) Search(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
		Limit int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "search", err)
		return
	}

	items, err := h.anime.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(items), "data": items})
}

// Add maneja POST /watchlist. El estado se valida al decodificar el cuerpo.
func (h *WatchlistHandler) Add(c *gin.Context) {
	var req struct {
		AnimeData       domain.AnimeSnapshot `json:"animeData" binding:"required"`
		Status          domain.WatchStatus   `json:"status"`
		ExternalAnimeID *int                 `json:"externalAnimeId"`
		WatchURL        string               `json:"watchUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "add watchlist entry", err)
		return
	}
	identity := CurrentIdentity(c)
	if identity == nil {
		_ = c.Error(service.ErrUnauthenticated)
		return
	}

	entry, err := h.watchlist.AddEntry(c.Request.Context(), identity.UserID, service.AddEntryInput{
		ExternalAnimeID: req.ExternalAnimeID,
		Snapshot:        req.AnimeData,
		Status:          req.Status,
		WatchURL:        req.WatchURL,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": entry})
}

// List maneja GET /watchlist.
func (h *WatchlistHandler) List(c *gin.Context) {
	listing, err := h.watchlist.ListEntries(c.Request.Context(), CurrentIdentity(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"count":              listing.Count,
		"data":               listing.Entries,
		"shareWatchlistLink": listing.ShareWatchlistLink,
	})
}

// ListByUser maneja POST /watchlist/by-user.
func (h *WatchlistHandler) ListByUser(c *gin.Context) {
	var req struct {
		OwnerID string `json:"ownerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "list by user", err)
		return
	}

	listing, err := h.watchlist.ListEntriesPublic(c.Request.Context(), req.OwnerID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": listing.Count, "data": listing.Entries})
}

// Delete maneja DELETE /watchlist/:id.
func (h *WatchlistHandler) Delete(c *gin.Context) {
	identity := CurrentIdentity(c)
	if identity == nil {
		_ = c.Error(service.ErrUnauthenticated)
		return
	}
	if err := h.watchlist.DeleteEntry(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{}})
}

// Update maneja PUT /watchlist/:id. Los campos ausentes no se modifican.
func (h *WatchlistHandler) Update(c *gin.Context) {
	var req struct {
		Status    *domain.WatchStatus  `json:"status"`
		AnimeData domain.AnimeSnapshot `json:"animeData"`
		WatchURL  *string              `json:"watchUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "update watchlist entry", err)
		return
	}
	identity := CurrentIdentity(c)
	if identity == nil {
		_ = c.Error(service.ErrUnauthenticated)
		return
	}

	entry, err := h.watchlist.UpdateEntry(c.Request.Context(), identity.UserID, c.Param("id"), domain.WatchlistPatch{
		Status:        req.Status,
		AnimeSnapshot: req.AnimeData,
		WatchURL:      req.WatchURL,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": entry})
}

// Details maneja GET /watchlist/:id/details; :id es el id del catálogo.
func (h *WatchlistHandler) Details(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	details, err := h.anime.Details(c.Request.Context(), CurrentIdentity(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"alreadyInWatchlist": details.AlreadyInWatchlist,
		"data":               details.Data,
	})
}

// Reviews maneja GET /watchlist/:id/reviews.
func (h *WatchlistHandler) Reviews(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	reviews, err := h.anime.Reviews(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(reviews), "data": nonNilRaw(reviews)})
}

// Stats maneja GET /watchlist/stats.
func (h *WatchlistHandler) Stats(c *gin.Context) {
	identity := CurrentIdentity(c)
	if identity == nil {
		_ = c.Error(service.ErrUnauthenticated)
		return
	}
	stats, err := h.watchlist.Stats(c.Request.Context(), identity.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "total": stats.Total, "byStatus": stats.ByStatus})
}

func nonNilRaw(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}
