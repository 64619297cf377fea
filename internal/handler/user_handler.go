package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"credential-service/internal/repository"
	"credential-service/internal/service"
)

type UserHandler struct {
	userRepo    repository.UserRepository
	authService *service.AuthService
}

func NewUserHandler(userRepo repository.UserRepository, authService *service.AuthService) *UserHandler {
	return &UserHandler{userRepo: userRepo, authService: authService}
}

// GetMe returns the authenticated user's profile
// GET /api/v1/users/me
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load user",
		})
	}

	return c.JSON(user)
}

// ListRoles returns the roles a user can hold
// GET /api/v1/roles
func (h *UserHandler) ListRoles(c *fiber.Ctx) error {
	roles, err := h.authService.ListRoles(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"roles": roles,
	})
}
