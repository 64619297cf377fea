package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// The refresh token travels in an HttpOnly cookie scoped to the auth
// endpoints. The credential service itself only ever sees the raw string;
// these helpers are the transport side-channel.
const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

func setRefreshCookie(c *fiber.Ctx, token string, ttl time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func readRefreshCookie(c *fiber.Ctx) string {
	return c.Cookies(refreshCookieName)
}

func clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
