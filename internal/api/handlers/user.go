package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api/middleware"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/services"
)

// UserHandler handles account management endpoints
type UserHandler struct {
	userService *services.UserService
	logService  *services.LogService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, logService *services.LogService) *UserHandler {
	return &UserHandler{userService: userService, logService: logService}
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// CreateUser registers a new account (admin only)
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Email and password are required")
		return
	}

	user, err := h.userService.CreateUser(req.Email, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "Email already registered")
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	respondOK(c, toUserResponse(user))
}

// ListUsers returns all accounts (admin only)
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	respondOK(c, out)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword updates the current user's password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Not authenticated")
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Old and new passwords are required")
		return
	}

	if err := h.userService.UpdatePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrInvalidPassword) {
			respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Old password is incorrect")
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	respondOK(c, gin.H{"message": "Password updated"})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive enables or disables an account (admin only)
func (h *UserHandler) SetActive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "active is required")
		return
	}

	if err := h.userService.SetActive(id, *req.Active); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondOK(c, gin.H{"message": "User updated"})
}

// GetLogs returns recent system logs (admin only)
func (h *UserHandler) GetLogs(c *gin.Context) {
	filter := services.LogFilter{
		Level:  c.Query("level"),
		Module: c.Query("module"),
		Limit:  parseIntQuery(c, "limit", 100),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if sinceStr := c.Query("since"); sinceStr != "" {
		if since, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			filter.Since = &since
		}
	}

	logs, total, err := h.logService.GetLogs(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list logs")
		return
	}
	respondOK(c, gin.H{"items": logs, "total": total})
}
