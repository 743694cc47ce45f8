package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api/middleware"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/cache"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/services"
)

// AuthHandler handles login and session endpoints
type AuthHandler struct {
	userService  *services.UserService
	jwtManager   *middleware.JWTManager
	logService   *services.LogService
	loginCounter *cache.SlidingCounter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *services.UserService, jwtManager *middleware.JWTManager, logService *services.LogService, loginCounter *cache.SlidingCounter) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		jwtManager:   jwtManager,
		logService:   logService,
		loginCounter: loginCounter,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID     uint   `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Role: u.Role, Active: u.Active}
}

// Login authenticates a user and issues a JWT
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Email and password are required")
		return
	}

	user, err := h.userService.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logService.Warn(0, models.LogModuleAuth, "login", "Login failed for "+req.Email, map[string]interface{}{"ip": c.ClientIP()})
		switch {
		case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrInvalidPassword):
			respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Invalid email or password")
		case errors.Is(err, services.ErrUserInactive):
			respondError(c, http.StatusForbidden, "USER_INACTIVE", "Account is disabled")
		default:
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		}
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
		return
	}

	// Successful login clears the attempt counter for this client
	h.loginCounter.Reset(c.ClientIP())
	h.logService.Info(user.ID, models.LogModuleAuth, "login", "User logged in: "+user.Email, nil)

	respondOK(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       toUserResponse(user),
	})
}

// RefreshToken issues a fresh JWT for the authenticated user
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Not authenticated")
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User no longer exists")
		return
	}
	if !user.Active {
		respondError(c, http.StatusForbidden, "USER_INACTIVE", "Account is disabled")
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
		return
	}

	respondOK(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Logout records the logout. Tokens are stateless, so this is advisory.
func (h *AuthHandler) Logout(c *gin.Context) {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		h.logService.Info(userID, models.LogModuleAuth, "logout", "User logged out", nil)
	}
	respondOK(c, gin.H{"message": "Logged out"})
}

// GetCurrentUser returns the authenticated user
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Not authenticated")
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	respondOK(c, toUserResponse(user))
}
