package handler

import (
	"github.com/gofiber/fiber/v2"

	"credential-service/internal/domain"
)

// statusForCode maps the business error taxonomy to HTTP statuses.
func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return fiber.StatusBadRequest
	case domain.CodeInvalidCredential, domain.CodeInvalidToken:
		return fiber.StatusUnauthorized
	case domain.CodeForbidden:
		return fiber.StatusForbidden
	case domain.CodeNotFound:
		return fiber.StatusNotFound
	case domain.CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes a typed service error as JSON with the right status.
func respondError(c *fiber.Ctx, err error) error {
	return c.Status(statusForCode(domain.CodeOf(err))).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// currentUserID reads the authenticated user id placed in locals by the auth
// middleware.
func currentUserID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals("user_id").(int64)
	return id, ok
}
