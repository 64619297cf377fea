package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"credential-service/internal/config"
	"credential-service/internal/domain"
	"credential-service/internal/service"
	"credential-service/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validator
	cfg         *config.Config
}

func NewAuthHandler(authService *service.AuthService, validator *validator.Validator, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator,
		cfg:         cfg,
	}
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.authService.Login(c.Context(), req, requestMetadata(c))
	if err != nil {
		return respondError(c, err)
	}

	setRefreshCookie(c, resp.RefreshToken, h.cfg.JWT.RefreshTokenTTL)
	return c.Status(fiber.StatusOK).JSON(resp)
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.authService.Register(c.Context(), req, requestMetadata(c))
	if err != nil {
		return respondError(c, err)
	}

	setRefreshCookie(c, resp.RefreshToken, h.cfg.JWT.RefreshTokenTTL)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Refresh rotates the refresh token and issues a new access token
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	rawToken := readRefreshCookie(c)
	if rawToken == "" {
		// Non-browser clients send the token in the body instead.
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&req); err == nil {
			rawToken = req.RefreshToken
		}
	}
	if rawToken == "" {
		return respondError(c, domain.E(domain.CodeInvalidToken, "missing refresh token"))
	}

	resp, err := h.authService.Refresh(c.Context(), rawToken, requestMetadata(c))
	if err != nil {
		// Whatever the cause, the stored token is no longer usable.
		clearRefreshCookie(c)
		return respondError(c, err)
	}

	setRefreshCookie(c, resp.RefreshToken, h.cfg.JWT.RefreshTokenTTL)
	return c.Status(fiber.StatusOK).JSON(resp)
}

// Logout revokes the current session
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	rawToken := readRefreshCookie(c)
	if rawToken == "" {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&req); err == nil {
			rawToken = req.RefreshToken
		}
	}

	h.authService.Logout(c.Context(), rawToken, bearerToken(c))
	clearRefreshCookie(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "logged out",
	})
}

// LogoutEverywhere revokes all of the user's sessions
// POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutEverywhere(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	if err := h.authService.LogoutEverywhere(c.Context(), userID); err != nil {
		return respondError(c, err)
	}

	clearRefreshCookie(c)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "all sessions signed out",
	})
}

// requestMetadata collects the informational device/network details stored
// on the session.
func requestMetadata(c *fiber.Ctx) domain.SessionMetadata {
	meta := domain.SessionMetadata{}

	if ip := c.IP(); ip != "" {
		meta.IPAddress = &ip
	}
	if ua := c.Get("User-Agent"); ua != "" {
		meta.UserAgent = &ua
	}
	if deviceID := c.Get("X-Device-Id"); deviceID != "" {
		meta.DeviceID = &deviceID
	}

	return meta
}

// bearerToken extracts the access token from the Authorization header, if
// one was sent.
func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
