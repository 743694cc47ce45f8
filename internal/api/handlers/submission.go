package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api/middleware"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/services"
)

// SubmissionHandler handles ticket endpoints
type SubmissionHandler struct {
	submissionService *services.SubmissionService
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(submissionService *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

type submissionResponse struct {
	ID             uint            `json:"id"`
	SiteID         uint            `json:"site_id"`
	FormID         int64           `json:"form_id"`
	RemoteEntryID  int64           `json:"remote_entry_id"`
	Status         string          `json:"status"`
	SubmitterName  string          `json:"submitter_name"`
	SubmitterEmail string          `json:"submitter_email"`
	Subject        string          `json:"subject"`
	Message        string          `json:"message"`
	Data           json.RawMessage `json:"data,omitempty"`
	SubmittedAt    *time.Time      `json:"submitted_at"`
	GmailThreadID  *string         `json:"gmail_thread_id"`
	LockedBy       *uint           `json:"locked_by"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	Emails         []emailResponse `json:"emails,omitempty"`
}

func toSubmissionResponse(s *models.Submission, withDetail bool) submissionResponse {
	resp := submissionResponse{
		ID:             s.ID,
		SiteID:         s.SiteID,
		FormID:         s.FormID,
		RemoteEntryID:  s.RemoteEntryID,
		Status:         s.Status,
		SubmitterName:  s.SubmitterName,
		SubmitterEmail: s.SubmitterEmail,
		Subject:        s.Subject,
		Message:        s.Message,
		SubmittedAt:    s.SubmittedAt,
		GmailThreadID:  s.GmailThreadID,
		LockedBy:       s.LockedBy,
		Active:         s.Active,
		CreatedAt:      s.CreatedAt,
	}
	if withDetail {
		resp.Data = json.RawMessage(s.Data)
		resp.Emails = make([]emailResponse, 0, len(s.Emails))
		for i := range s.Emails {
			resp.Emails = append(resp.Emails, toEmailResponse(&s.Emails[i]))
		}
	}
	return resp
}

// ListSubmissions returns tickets matching the query filters
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	filter := services.SubmissionFilter{
		SiteID:          uint(parseIntQuery(c, "site_id", 0)),
		Status:          c.Query("status"),
		Search:          c.Query("search"),
		IncludeInactive: c.Query("include_inactive") == "true",
		Limit:           parseIntQuery(c, "limit", 50),
		Offset:          parseIntQuery(c, "offset", 0),
	}

	subs, total, err := h.submissionService.ListSubmissions(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list submissions")
		return
	}

	out := make([]submissionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, toSubmissionResponse(&subs[i], false))
	}
	respondOK(c, gin.H{"items": out, "total": total})
}

// GetSubmission returns one ticket with its conversation
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sub, err := h.submissionService.GetSubmission(id)
	if err != nil {
		respondSubmissionError(c, err)
		return
	}
	respondOK(c, toSubmissionResponse(sub, true))
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus changes a ticket's lifecycle status
func (h *SubmissionHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Status is required")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	sub, err := h.submissionService.UpdateStatus(userID, id, req.Status)
	if err != nil {
		respondSubmissionError(c, err)
		return
	}
	respondOK(c, toSubmissionResponse(sub, false))
}

// Lock claims a ticket for the current user
func (h *SubmissionHandler) Lock(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	if err := h.submissionService.Lock(userID, id); err != nil {
		respondSubmissionError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Submission locked"})
}

// Unlock releases a ticket lock
func (h *SubmissionHandler) Unlock(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	if err := h.submissionService.Unlock(userID, id); err != nil {
		respondSubmissionError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Submission unlocked"})
}

// DeleteSubmission soft-deletes a ticket
func (h *SubmissionHandler) DeleteSubmission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	if err := h.submissionService.Deactivate(userID, id); err != nil {
		respondSubmissionError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Submission deactivated"})
}

// RestoreSubmission reverses a soft delete
func (h *SubmissionHandler) RestoreSubmission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	if err := h.submissionService.Restore(userID, id); err != nil {
		respondSubmissionError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Submission restored"})
}

func respondSubmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSubmissionNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Submission not found")
	case errors.Is(err, services.ErrSubmissionLocked):
		respondError(c, http.StatusConflict, "LOCKED", "Submission is locked by another user")
	case errors.Is(err, services.ErrInvalidStatus):
		respondError(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown submission status")
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
