// Package middleware loads the session identity and enforces roles.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exam-server-go/db"
	"exam-server-go/models"
)

const (
	userKey      = "sessionUser"
	sessionIDKey = "sessionID"
)

// Session resolves the session cookie into a SessionUser. Requests without a
// valid session continue anonymously.
func Session(store db.SessionStore, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cookieName)
		if err != nil || id == "" {
			c.Next()
			return
		}
		user, err := store.Get(c.Request.Context(), id)
		if err != nil {
			logger.Warn("Failed to load session", zap.Error(err))
		}
		c.Set(sessionIDKey, id)
		if user != nil {
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// CurrentUser returns the session identity, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.SessionUser {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.SessionUser)
	return u
}

// SessionID returns the id from the request's session cookie, if any.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// SetUser replaces the identity for the rest of the request.
func SetUser(c *gin.Context, u *models.SessionUser) {
	c.Set(userKey, u)
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return RequireRole()
}

// RequireRole requires a session and, when roles are given, one of them.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "인증이 필요합니다."})
			return
		}
		if len(roles) == 0 {
			c.Next()
			return
		}
		for _, r := range roles {
			if u.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "권한이 없습니다."})
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole(models.RoleAdmin) }

func RequireBranchManager() gin.HandlerFunc { return RequireRole(models.RoleBranch) }

func RequireStudent() gin.HandlerFunc { return RequireRole(models.RoleStudent) }

func RequireAdminOrBranch() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleBranch)
}
