// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"

	"subscription-service/internal/domain/auth"
	"subscription-service/internal/middleware"
	xerrors "subscription-service/internal/pkg/errors"
	"subscription-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Service interface {
	Register(ctx context.Context, req *auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req *auth.LoginRequest) (*auth.TokenResponse, error)
	Logout(ctx context.Context, p *auth.Principal) error
	GetMe(ctx context.Context, userID int64) (*auth.UserInfo, error)
}

// SessionCloser drops live connections opened with a revoked token
type SessionCloser interface {
	DisconnectToken(userID int64, tokenID string)
}

type AuthHandler struct {
	authService Service
	sessions    SessionCloser
	logger      *zap.Logger
}

func NewAuthHandler(authService Service, sessions SessionCloser, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		logger:      logger,
	}
}

// ========== Registration ==========

// Register handles user registration (public endpoint)
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("registration failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		response.FromError(c, "registration failed", err)
		return
	}

	response.Success(c, http.StatusCreated, "registration successful", auth.NewUserInfo(user))
}

// ========== Login ==========

// Login accepts JSON or a form-encoded username/password pair
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}
	req.IPAddress = c.ClientIP()

	token, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		response.FromError(c, "login failed", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", token)
}

// ========== Logout ==========

// Logout revokes the presented token (requires auth)
func (h *AuthHandler) Logout(c *gin.Context) {
	principal := middleware.MustGetPrincipal(c)

	if err := h.authService.Logout(c.Request.Context(), principal); err != nil {
		h.logger.Error("logout failed",
			zap.Int64("user_id", principal.UserID),
			zap.Error(err),
		)
		response.FromError(c, "logout failed", err)
		return
	}

	if h.sessions != nil {
		h.sessions.DisconnectToken(principal.UserID, principal.TokenID)
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// ========== Profile ==========

// Me returns the authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	me, err := h.authService.GetMe(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to load user", err)
		return
	}

	response.Success(c, http.StatusOK, "user retrieved", me)
}
