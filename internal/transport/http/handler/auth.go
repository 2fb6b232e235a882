package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tenantrag/internal/app"
	"tenantrag/internal/pkg/jwtutil"
	"tenantrag/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	FullName string `json:"full_name" binding:"max=128"`
	TenantID string `json:"tenant_id" binding:"required,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=128"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type WidgetTokenRequest struct {
	VisitorID string `json:"visitor_id" binding:"max=64"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		TenantID: req.TenantID,
	})
	if err != nil {
		respondError(c, err, "register failed")
		return
	}

	response.OK(c, authPayload(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err, "login failed")
		return
	}

	response.OK(c, authPayload(result))
}

func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	if p.Role != jwtutil.RoleUser {
		response.OK(c, gin.H{
			"session_key": p.SessionKey,
			"tenant_id":   p.TenantID,
			"role":        p.Role,
		})
		return
	}

	user, err := h.authService.GetUserByEmail(c.Request.Context(), p.SessionKey)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch current user failed")
		return
	}
	if user == nil || user.Disabled {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
		return
	}

	response.OK(c, gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
		"tenant_id": user.TenantID,
		"role":      p.Role,
	})
}

// WidgetToken exchanges the tenant API key in X-API-Key for a visitor token.
func (h *AuthHandler) WidgetToken(c *gin.Context) {
	var req WidgetTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}

	result, err := h.authService.WidgetToken(c.Request.Context(), c.GetHeader("X-API-Key"), req.VisitorID)
	if err != nil {
		respondError(c, err, "issue widget token failed")
		return
	}

	response.OK(c, gin.H{
		"token":      result.Token,
		"company_id": result.TenantID,
		"visitor_id": result.VisitorID,
		"expires_in": int(result.ExpiresIn.Seconds()),
	})
}

func authPayload(result *app.AuthResult) gin.H {
	return gin.H{
		"token": result.Token,
		"user": gin.H{
			"id":        result.User.ID,
			"email":     result.User.Email,
			"full_name": result.User.FullName,
			"tenant_id": result.User.TenantID,
		},
	}
}
