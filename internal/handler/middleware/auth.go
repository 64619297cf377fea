package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"credential-service/pkg/blacklist"
	"credential-service/pkg/jwt"
)

// AuthMiddleware validates the bearer access token and loads its claims
// into the request context. Tokens that verify but were blacklisted (logout,
// sign-out-everywhere) are rejected the same as invalid ones.
func AuthMiddleware(tokenService *jwt.TokenService, tokenBlacklist *blacklist.TokenBlacklist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization header",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization header format",
			})
		}
		token := parts[1]

		claims, err := tokenService.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		if claims.TokenType != "access" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token type",
			})
		}

		isBlacklisted, err := tokenBlacklist.IsBlacklisted(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to verify token status",
			})
		}
		if isBlacklisted {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token has been revoked",
			})
		}

		// A sign-out-everywhere invalidates every token issued before it.
		if claims.IssuedAt != nil {
			userBlacklisted, err := tokenBlacklist.IsUserBlacklisted(c.Context(), claims.UserID, claims.IssuedAt.Time)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to verify token status",
				})
			}
			if userBlacklisted {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "token has been revoked",
				})
			}
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("tenant_id", claims.TenantID)
		c.Locals("username", claims.Username)
		c.Locals("roles", claims.Roles)
		c.Locals("claims", claims)

		return c.Next()
	}
}
