package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rsams/attendance-service/internal/api/http/handlers"
	"github.com/rsams/attendance-service/internal/auth"
	"github.com/rsams/attendance-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Admin          *handlers.AdminHandler
	Profiles       *handlers.ProfileHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/profile", cfg.Auth.Profile)
	protected.Put("/profile", cfg.Auth.UpdateProfile)
	protected.Put("/change-password", cfg.Auth.ChangePassword)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/dashboard", cfg.Admin.Dashboard)
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Post("/users", cfg.Admin.CreateUser)
	admin.Get("/users/:id", cfg.Admin.GetUser)
	admin.Put("/users/:id", cfg.Admin.UpdateUser)
	admin.Delete("/users/:id", cfg.Admin.DeactivateUser)
	admin.Post("/users/:id/unlock", cfg.Admin.UnlockUser)

	teacher := app.Group("/teacher", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleTeacher, domain.RoleAdmin))
	teacher.Get("/profile", cfg.Profiles.Teacher)

	student := app.Group("/student", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleStudent))
	student.Get("/profile", cfg.Profiles.Student)
}
