package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/timewatch-admin/internal/logger"
	"github.com/SergeiKhy/timewatch-admin/internal/middleware"
	"github.com/SergeiKhy/timewatch-admin/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service service.AuthService
	logger  *zap.Logger
}

func NewAuthHandler(service service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, logger: logger.OrNop(log)}
}

type SignInRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// SignIn godoc
// @Summary Sign in to the admin console
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "credentials"
// @Success 200 {object} UserResponse
// @Failure 401 {object} AuthErrorResponse
// @Router /api/auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthErrorResponse{Error: "invalid_request", Message: "username and password are required"})
		return
	}

	user, err := h.service.SignIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, AuthErrorResponse{Error: "invalid_credentials", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, AuthErrorResponse{Error: "internal_error", Message: "Internal server error"})
		return
	}

	if err := middleware.SaveSessionUser(c, user); err != nil {
		h.logger.Error("Failed to save session", zap.String("username", user.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, AuthErrorResponse{Error: "session_error", Message: "Failed to save session"})
		return
	}

	h.logger.Info("Signed in", zap.String("username", user.Username), zap.String("role", user.Role))
	c.JSON(http.StatusOK, gin.H{"user": UserResponse{
		ID:       user.ID.Hex(),
		Username: user.Username,
		Nickname: user.Nickname,
		Email:    user.Email,
		Role:     user.Role,
	}})
}

// SignOut godoc
// @Summary Clear the admin session
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := middleware.ClearSession(c); err != nil {
		h.logger.Warn("Failed to clear session", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me godoc
// @Summary Current session user
// @Tags auth
// @Produce json
// @Success 200 {object} middleware.SessionUser
// @Failure 401 {object} AuthErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetSessionUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, AuthErrorResponse{Error: "unauthenticated", Message: "Not signed in"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// HealthCheck godoc
// @Summary Liveness check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "timewatch-admin"})
}
