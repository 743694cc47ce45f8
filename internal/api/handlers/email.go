package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api/middleware"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/services"
)

// EmailHandler handles reply sending, inbox polling and mailbox
// connection endpoints
type EmailHandler struct {
	threadService *services.ThreadService
	replyService  *services.ReplyService
	gmailService  *services.GmailService
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(threadService *services.ThreadService, replyService *services.ReplyService, gmailService *services.GmailService) *EmailHandler {
	return &EmailHandler{
		threadService: threadService,
		replyService:  replyService,
		gmailService:  gmailService,
	}
}

type emailResponse struct {
	ID             uint      `json:"id"`
	SubmissionID   uint      `json:"submission_id"`
	UserID         *uint     `json:"user_id"`
	Direction      string    `json:"direction"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	MessageID      string    `json:"message_id"`
	ToEmail        string    `json:"to_email"`
	FromEmail      string    `json:"from_email"`
	Status         *string   `json:"status"`
	GmailMessageID *string   `json:"gmail_message_id"`
	GmailThreadID  *string   `json:"gmail_thread_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func toEmailResponse(e *models.EmailThread) emailResponse {
	return emailResponse{
		ID:             e.ID,
		SubmissionID:   e.SubmissionID,
		UserID:         e.UserID,
		Direction:      e.Direction,
		Subject:        e.Subject,
		Body:           e.Body,
		MessageID:      e.MessageID,
		ToEmail:        e.ToEmail,
		FromEmail:      e.FromEmail,
		Status:         e.Status,
		GmailMessageID: e.GmailMessageID,
		GmailThreadID:  e.GmailThreadID,
		CreatedAt:      e.CreatedAt,
	}
}

type sendReplyRequest struct {
	// Subject is required for the first reply on a ticket and ignored
	// once the thread exists
	Subject   string `json:"subject"`
	ReplyText string `json:"reply_text" binding:"required"`
}

// SendReply sends an admin reply on a ticket's mail thread. A delivery
// failure still records the attempt and answers 502 so the client can
// distinguish it from validation errors.
func (h *EmailHandler) SendReply(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req sendReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "reply_text is required")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	row, err := h.threadService.SendReply(c.Request.Context(), userID, id, req.Subject, req.ReplyText)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSubmissionNotFound):
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Submission not found")
		case errors.Is(err, services.ErrSubjectRequired):
			respondError(c, http.StatusBadRequest, "SUBJECT_REQUIRED", "Subject is required for the first reply")
		case errors.Is(err, services.ErrNoRecipient):
			respondError(c, http.StatusBadRequest, "NO_RECIPIENT", "Submission has no email address")
		case errors.Is(err, services.ErrNoTransport):
			respondError(c, http.StatusConflict, "NO_TRANSPORT", "No mail transport configured")
		case errors.Is(err, services.ErrDeliveryFailed):
			payload := gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DELIVERY_FAILED",
					"message": "Email delivery failed",
				},
			}
			if row != nil {
				payload["data"] = toEmailResponse(row)
			}
			c.JSON(http.StatusBadGateway, payload)
		default:
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		}
		return
	}

	respondOK(c, toEmailResponse(row))
}

// PollInbox triggers an immediate inbox poll
func (h *EmailHandler) PollInbox(c *gin.Context) {
	result, err := h.replyService.PollReplies(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondOK(c, result)
}

// GmailStatus reports whether a mailbox is connected
func (h *EmailHandler) GmailStatus(c *gin.Context) {
	cred, err := h.gmailService.GetCredential()
	if err != nil {
		if errors.Is(err, services.ErrGmailNotConnected) {
			respondOK(c, gin.H{"connected": false})
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load credential")
		return
	}
	respondOK(c, gin.H{"connected": true, "email": cred.UserEmail})
}

// GmailAuthURL returns the Google consent URL
func (h *EmailHandler) GmailAuthURL(c *gin.Context) {
	url, err := h.gmailService.AuthURL(c.Query("state"))
	if err != nil {
		if errors.Is(err, services.ErrOAuthNotConfigured) {
			respondError(c, http.StatusConflict, "OAUTH_NOT_CONFIGURED", "Google OAuth client not configured")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondOK(c, gin.H{"auth_url": url})
}

// GmailCallback completes the OAuth flow
func (h *EmailHandler) GmailCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Missing authorization code")
		return
	}

	cred, err := h.gmailService.HandleCallback(c.Request.Context(), code)
	if err != nil {
		respondError(c, http.StatusBadGateway, "OAUTH_FAILED", err.Error())
		return
	}
	respondOK(c, gin.H{"connected": true, "email": cred.UserEmail})
}

// GmailDisconnect removes the stored mailbox credential
func (h *EmailHandler) GmailDisconnect(c *gin.Context) {
	if err := h.gmailService.Disconnect(); err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to disconnect")
		return
	}
	respondOK(c, gin.H{"connected": false})
}
