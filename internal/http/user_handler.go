package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anime-watchlist/internal/service"
)

// UserHandler expone el ciclo de vida de la cuenta.
type UserHandler struct {
	logger   *zap.Logger
	accounts *service.AccountService
}

func NewUserHandler(logger *zap.Logger, accounts *service.AccountService) *UserHandler {
	return &UserHandler{logger: logger, accounts: accounts}
}

// Register maneja POST /auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "register", err)
		return
	}

	if err := h.accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Account created. Check your email to verify your account.",
	})
}

// Login maneja POST /auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "login", err)
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// Me maneja GET /auth/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.accounts.Me(c.Request.Context(), CurrentIdentity(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// VerifyAccount maneja POST /auth/verify-account.
func (h *UserHandler) VerifyAccount(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "verify account", err)
		return
	}

	if err := h.accounts.VerifyAccount(c.Request.Context(), req.Email, req.Token); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Account verified successfully."})
}

// ForgotPassword maneja PUT /auth/forgot-password.
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "forgot password", err)
		return
	}

	if err := h.accounts.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If the account exists, a reset link has been sent to your email.",
	})
}

// ResetPassword maneja PUT /auth/reset-password.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "reset password", err)
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password reset successfully."})
}

// UpdatePassword maneja PUT /auth/update-password.
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "update password", err)
		return
	}

	err := h.accounts.UpdatePassword(c.Request.Context(), CurrentIdentity(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated successfully."})
}

// UpdateProfilePic maneja PUT /auth/update-profile-pic.
func (h *UserHandler) UpdateProfilePic(c *gin.Context) {
	var req struct {
		ImageData string `json:"imageData" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "update profile pic", err)
		return
	}

	url, err := h.accounts.UpdateProfileImage(c.Request.Context(), CurrentIdentity(c), req.ImageData)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"profileImageUrl": url}})
}

// GetUser maneja POST /auth/get-user.
func (h *UserHandler) GetUser(c *gin.Context) {
	var req struct {
		ID   string `json:"id" binding:"required"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "get user", err)
		return
	}

	user, err := h.accounts.GetPublicUser(c.Request.Context(), req.ID, req.Name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}
