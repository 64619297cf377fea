package handler

import (
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(
	app *fiber.App,
	authHandler *AuthHandler,
	userHandler *UserHandler,
	sessionHandler *SessionHandler,
	healthHandler *HealthHandler,
	authMiddleware fiber.Handler,
) {
	// Health checks (public)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)

	// API v1
	api := app.Group("/api/v1")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/logout-all", authMiddleware, authHandler.LogoutEverywhere)

	// Role catalog (protected)
	api.Get("/roles", authMiddleware, userHandler.ListRoles)

	// User routes (protected)
	users := api.Group("/users", authMiddleware)
	users.Get("/me", userHandler.GetMe)
	users.Get("/me/sessions", sessionHandler.GetMySessions)
	users.Delete("/me/sessions/:id", sessionHandler.DeleteSession)
}
