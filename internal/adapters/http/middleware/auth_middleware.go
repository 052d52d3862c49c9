package middleware

import (
	"errors"
	"strings"

	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/jwt"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the auth middlewares
const (
	LocalUserID   = "userID"
	LocalUsername = "username"
	LocalRole     = "role"
)

// bearerToken reads the access token from the Authorization header
func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func setIdentity(c *fiber.Ctx, userID uint, username string, role domain.Role) {
	c.Locals(LocalUserID, userID)
	c.Locals(LocalUsername, username)
	c.Locals(LocalRole, role)
}

// AuthMiddleware requires a valid bearer access token
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Read token
		accessToken := bearerToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Authentication credentials were not provided")
		}

		// 2. Validate token
		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			return response.Unauthorized(c, "Invalid access token")
		}

		// 3. Set user info in context
		setIdentity(c, claims.UserID, claims.Username, role)

		return c.Next()
	}
}

// CurrentActor returns the authenticated caller, if any
func CurrentActor(c *fiber.Ctx) (domain.Actor, bool) {
	id, ok := c.Locals(LocalUserID).(uint)
	if !ok || id == 0 {
		return domain.Actor{}, false
	}
	role, _ := c.Locals(LocalRole).(domain.Role)
	return domain.Actor{ID: id, Role: role}, true
}

// RequireCapability allows only callers whose role grants capability
func RequireCapability(capability domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := CurrentActor(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		if !actor.Role.Can(capability) {
			return response.Forbidden(c, "You don't have permission to access this resource")
		}

		return c.Next()
	}
}

// StaffOnly allows STAFF and ADMIN
func StaffOnly() fiber.Handler {
	return RequireCapability(domain.CapManageCatalog)
}

// AdminOnly allows only ADMIN
func AdminOnly() fiber.Handler {
	return RequireCapability(domain.CapManageUsers)
}
