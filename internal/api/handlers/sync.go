package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/services"
)

// SyncHandler handles bulk sync endpoints
type SyncHandler struct {
	syncService *services.SyncService
	siteService *services.SiteService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService *services.SyncService, siteService *services.SiteService) *SyncHandler {
	return &SyncHandler{syncService: syncService, siteService: siteService}
}

// RunAll syncs every active site sequentially and returns the per-site
// results
func (h *SyncHandler) RunAll(c *gin.Context) {
	sites, err := h.siteService.ListSites(false)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sites")
		return
	}

	results := make([]*services.SyncResult, 0, len(sites))
	for _, site := range sites {
		result, err := h.syncService.SyncSite(c.Request.Context(), site.ID)
		if err != nil {
			result = &services.SyncResult{SiteID: site.ID, Status: "error", Message: err.Error()}
		}
		results = append(results, result)
	}
	respondOK(c, results)
}
