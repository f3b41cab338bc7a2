package accounts

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"skills-backend/internal/shared/server/middleware"
	"skills-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// RegisterPublicRoutes attaches the unauthenticated /auth endpoints.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.POST("/register", h.register)
	g.GET("/verify-email", h.verifyEmail)
	g.POST("/resend-verification", h.resendVerification)
	g.POST("/login", h.login)
	g.POST("/forgot-password", h.forgotPassword)
	g.POST("/reset-password", h.resetPassword)
}

// RegisterRoutes attaches the authenticated account endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	acct, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrEmailTaken):
			respond.Error(c, http.StatusConflict, "email_taken", "email already registered", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to register", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, gin.H{
		"id":         acct.ID,
		"email":      acct.Email,
		"isVerified": acct.IsVerified,
	})
}

func (h *Handler) verifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "token is required", nil)
		return
	}
	acct, err := h.Svc.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			respond.Error(c, http.StatusBadRequest, "invalid_token", "invalid or expired token", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to verify email", nil)
		return
	}
	respond.OK(c, gin.H{"email": acct.Email, "isVerified": true})
}

func (h *Handler) resendVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "email is required", nil)
		return
	}
	if err := h.Svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to resend verification", nil)
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{"status": "sent"})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	session, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to log in", nil)
		return
	}
	respond.OK(c, gin.H{
		"accessToken": session.Token,
		"tokenType":   "bearer",
		"expiresAt":   session.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "email is required", nil)
		return
	}
	if err := h.Svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start password reset", nil)
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{"status": "sent"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "token and newPassword are required", nil)
		return
	}
	err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrInvalidToken):
			respond.Error(c, http.StatusBadRequest, "invalid_token", "invalid or expired token", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to reset password", nil)
		}
		return
	}
	respond.OK(c, gin.H{"status": "updated"})
}

func (h *Handler) me(c *gin.Context) {
	id := middleware.AccountIDFromContext(c)
	if id == 0 {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	profile, err := h.Svc.Profile(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "account not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load account", nil)
		return
	}
	acct := profile.Account
	usage := gin.H{
		"limit": profile.Limit,
		"used":  profile.Used,
	}
	if !profile.ResetsAt.IsZero() {
		usage["resetsAt"] = profile.ResetsAt.Format(time.RFC3339)
	}
	body := gin.H{
		"id":                 acct.ID,
		"email":              acct.Email,
		"isVerified":         acct.IsVerified,
		"subscriptionStatus": acct.SubscriptionStatus.String(),
		"usage":              usage,
	}
	if acct.SubscriptionStartDate != nil {
		body["subscriptionStartDate"] = acct.SubscriptionStartDate.Format(time.RFC3339)
	}
	respond.OK(c, body)
}
