package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"credential-service/internal/domain"
	"credential-service/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// SessionResponse is a session without its token hashes.
type SessionResponse struct {
	ID         int64      `json:"id"`
	IPAddress  *string    `json:"ip_address,omitempty"`
	UserAgent  *string    `json:"user_agent,omitempty"`
	DeviceID   *string    `json:"device_id,omitempty"`
	IssuedAt   time.Time  `json:"issued_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	IsCurrent  bool       `json:"is_current"`
}

// GetMySessions lists the user's open sessions
// GET /api/v1/users/me/sessions
func (h *SessionHandler) GetMySessions(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	sessions, err := h.sessionService.ListUserSessions(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	now := time.Now()
	response := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		if session.Revoked() || session.Expired(now) {
			continue
		}
		response = append(response, SessionResponse{
			ID:         session.ID,
			IPAddress:  session.IPAddress,
			UserAgent:  session.UserAgent,
			DeviceID:   session.DeviceID,
			IssuedAt:   session.IssuedAt,
			LastUsedAt: session.LastUsedAt,
			ExpiresAt:  session.ExpiresAt,
			IsCurrent:  session.IsCurrent,
		})
	}

	return c.JSON(fiber.Map{
		"sessions": response,
		"count":    len(response),
	})
}

// DeleteSession revokes one of the user's sessions by id
// DELETE /api/v1/users/me/sessions/:id
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return respondError(c, domain.E(domain.CodeValidation, "invalid session id"))
	}

	if err := h.sessionService.RevokeUserSessionByID(c.Context(), sessionID, userID, "revoked by user"); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "session revoked",
	})
}
