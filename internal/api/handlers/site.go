package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api/middleware"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/services"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/wordpress"
)

// SiteHandler handles WordPress site management endpoints
type SiteHandler struct {
	siteService *services.SiteService
	syncService *services.SyncService
}

// NewSiteHandler creates a new site handler
func NewSiteHandler(siteService *services.SiteService, syncService *services.SyncService) *SiteHandler {
	return &SiteHandler{siteService: siteService, syncService: syncService}
}

type createSiteRequest struct {
	Name        string `json:"name" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Username    string `json:"username" binding:"required"`
	AppPassword string `json:"app_password" binding:"required"`
}

type updateSiteRequest struct {
	Name        *string `json:"name"`
	URL         *string `json:"url"`
	Username    *string `json:"username"`
	AppPassword *string `json:"app_password"`
}

type siteResponse struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Username      string     `json:"username"`
	Active        bool       `json:"active"`
	ContactFormID *int64     `json:"contact_form_id"`
	LastSyncedAt  *time.Time `json:"last_synced_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toSiteResponse(s *models.Site) siteResponse {
	return siteResponse{
		ID:            s.ID,
		Name:          s.Name,
		URL:           s.URL,
		Username:      s.Username,
		Active:        s.Active,
		ContactFormID: s.ContactFormID,
		LastSyncedAt:  s.LastSyncedAt,
		CreatedAt:     s.CreatedAt,
	}
}

// ListSites returns all sites
func (h *SiteHandler) ListSites(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	sites, err := h.siteService.ListSites(includeInactive)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sites")
		return
	}

	out := make([]siteResponse, 0, len(sites))
	for i := range sites {
		out = append(out, toSiteResponse(&sites[i]))
	}
	respondOK(c, out)
}

// CreateSite registers a new site
func (h *SiteHandler) CreateSite(c *gin.Context) {
	var req createSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Name, url, username and app_password are required")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	site, err := h.siteService.CreateSite(c.Request.Context(), userID, req.Name, req.URL, req.Username, req.AppPassword)
	if err != nil {
		respondSiteError(c, err)
		return
	}
	respondOK(c, toSiteResponse(site))
}

// GetSite returns one site
func (h *SiteHandler) GetSite(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	site, err := h.siteService.GetSite(id)
	if err != nil {
		respondSiteError(c, err)
		return
	}
	respondOK(c, toSiteResponse(site))
}

// UpdateSite changes site fields
func (h *SiteHandler) UpdateSite(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	site, err := h.siteService.UpdateSite(c.Request.Context(), userID, id, req.Name, req.URL, req.Username, req.AppPassword)
	if err != nil {
		respondSiteError(c, err)
		return
	}
	respondOK(c, toSiteResponse(site))
}

// DeleteSite soft-deletes a site
func (h *SiteHandler) DeleteSite(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	if err := h.siteService.DeactivateSite(userID, id); err != nil {
		respondSiteError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Site deactivated"})
}

// RestoreSite reverses a soft delete
func (h *SiteHandler) RestoreSite(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	if err := h.siteService.RestoreSite(userID, id); err != nil {
		respondSiteError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Site restored"})
}

// TestConnection probes the site's integration layers
func (h *SiteHandler) TestConnection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	diag, err := h.siteService.TestConnection(c.Request.Context(), id)
	if err != nil {
		respondSiteError(c, err)
		return
	}
	respondOK(c, diag)
}

// SyncSite triggers an immediate sync for one site
func (h *SiteHandler) SyncSite(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.syncService.SyncSite(c.Request.Context(), id)
	if err != nil {
		respondSiteError(c, err)
		return
	}
	respondOK(c, result)
}

func respondSiteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSiteNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Site not found")
	case errors.Is(err, services.ErrSiteInactive):
		respondError(c, http.StatusConflict, "SITE_INACTIVE", "Site is deactivated")
	case errors.Is(err, services.ErrSiteNameTaken):
		respondError(c, http.StatusConflict, "NAME_TAKEN", "A site with this name already exists")
	case errors.Is(err, wordpress.ErrInvalidCredentials):
		respondError(c, http.StatusBadRequest, "INVALID_CREDENTIALS", "WordPress rejected the credentials")
	case errors.Is(err, wordpress.ErrPluginInactive):
		respondError(c, http.StatusBadRequest, "PLUGIN_INACTIVE", "Fluent Forms plugin not active on site")
	case errors.Is(err, wordpress.ErrTimeout), errors.Is(err, wordpress.ErrUnreachable):
		respondError(c, http.StatusBadGateway, "SITE_UNREACHABLE", "Could not connect to site")
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
