package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tenantrag/internal/app"
	"tenantrag/internal/pkg/jwtutil"
	"tenantrag/internal/transport/http/response"
)

const (
	ContextSessionKey = "session_key"
	ContextTenantID   = "tenant_id"
	ContextRole       = "role"

	accessTokenParam = "access_token"
)

// AuthJWT accepts a bearer token, or the access_token query parameter for
// EventSource clients that cannot set headers.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization")
			c.Abort()
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, claims.Subject)
		c.Set(ContextTenantID, claims.TenantID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole must run after AuthJWT.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != role {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "not allowed for this token")
			c.Abort()
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the caller set by AuthJWT.
func PrincipalFrom(c *gin.Context) (app.Principal, bool) {
	p := app.Principal{
		SessionKey: c.GetString(ContextSessionKey),
		TenantID:   c.GetString(ContextTenantID),
		Role:       c.GetString(ContextRole),
	}
	return p, p.SessionKey != "" && p.TenantID != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		return token, token != ""
	}
	token := strings.TrimSpace(c.Query(accessTokenParam))
	return token, token != ""
}
