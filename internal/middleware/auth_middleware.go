package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"itbudget/config"
	"itbudget/internal/scope"
)

const identityCacheTTL = 10 * time.Minute

// IdentityKey is where the resolved actor context lives in the gin context.
const IdentityKey = "identity"

func identityCacheKey(userID uint) string {
	return fmt.Sprintf("user:%d:identity", userID)
}

// AuthMiddleware authenticates the bearer token and attaches the resolved
// identity (effective permissions + OpCo allowlist) to the request. The
// identity is cached in Redis for its TTL and invalidated explicitly when
// roles or grants change.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie("auth_token")
		if err != nil || tokenStr == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				handleAuthError(c, "Authorization token not provided")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handleAuthError(c, "Invalid Authorization header format")
				return
			}
			tokenStr = parts[1]
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return config.JwtKey, nil
		})
		if err != nil || !token.Valid {
			c.SetCookie("auth_token", "", -1, "/", "", false, true)
			handleAuthError(c, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			handleAuthError(c, "Invalid token claims")
			return
		}
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok {
			handleAuthError(c, "Invalid user ID format in token")
			return
		}
		userID := uint(userIDFloat)

		if config.RDB != nil {
			cached, err := config.RDB.Get(config.Ctx, identityCacheKey(userID)).Result()
			if err == nil {
				var identity scope.Identity
				if json.Unmarshal([]byte(cached), &identity) == nil {
					setIdentityAndProceed(c, &identity)
					return
				}
				slog.Warn("failed to unmarshal cached identity", "user_id", userID)
			} else if err != redis.Nil {
				slog.Error("redis GET failed", "error", err, "user_id", userID)
			}
		}

		identity, err := scope.Resolve(config.DB, userID)
		if err != nil {
			c.SetCookie("auth_token", "", -1, "/", "", false, true)
			handleAuthError(c, "User from token not found")
			return
		}

		if config.RDB != nil {
			if data, err := json.Marshal(identity); err == nil {
				if err := config.RDB.Set(config.Ctx, identityCacheKey(userID), data, identityCacheTTL).Err(); err != nil {
					slog.Error("failed to cache identity", "error", err, "user_id", userID)
				}
			}
		}

		setIdentityAndProceed(c, identity)
	}
}

func setIdentityAndProceed(c *gin.Context, identity *scope.Identity) {
	c.Set(IdentityKey, identity)
	c.Set("user_id", identity.UserID)
	c.Set("login", identity.Login)
	c.Next()
}

// Identity returns the actor context the auth middleware attached.
func Identity(c *gin.Context) *scope.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*scope.Identity)
	return identity
}

// PermissionMiddleware gates a route on one effective permission code. The
// admin role bypasses individual codes.
func PermissionMiddleware(requiredPermission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := Identity(c)
		if identity == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Identity not found in context"})
			c.Abort()
			return
		}
		if identity.RoleName == "admin" || identity.HasPermission(requiredPermission) {
			c.Next()
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		c.Abort()
	}
}

// InvalidateIdentity drops a user's cached identity after a grant change.
func InvalidateIdentity(userID uint) {
	if config.RDB == nil {
		return
	}
	if err := config.RDB.Del(config.Ctx, identityCacheKey(userID)).Err(); err != nil {
		slog.Warn("failed to invalidate identity cache", "error", err, "user_id", userID)
	}
}

// InvalidateRoleIdentities drops the cached identity of every user holding
// the role, after the role's permission set changed.
func InvalidateRoleIdentities(roleID uint) {
	if config.RDB == nil {
		return
	}
	go func() {
		var userIDs []uint
		config.DB.Table("users").Where("role_id = ? AND deleted_at IS NULL", roleID).Pluck("id", &userIDs)
		for _, userID := range userIDs {
			InvalidateIdentity(userID)
		}
		if len(userIDs) > 0 {
			slog.Info("identity cache invalidated for role", "role_id", roleID, "user_count", len(userIDs))
		}
	}()
}

func handleAuthError(c *gin.Context, message string) {
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusFound, "/")
	} else {
		c.JSON(http.StatusUnauthorized, gin.H{"error": message})
	}
	c.Abort()
}
