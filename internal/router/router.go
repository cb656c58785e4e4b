package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tmshq/tms-go-api/internal/handler"
	"github.com/tmshq/tms-go-api/internal/middleware"
	"github.com/tmshq/tms-go-api/internal/models"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	ActivityHandler *handler.ActivityHandler
	TaskHandler     *handler.TaskHandler
	ProjectHandler  *handler.ProjectHandler
	UserHandler     *handler.UserHandler
	HealthHandler   *handler.HealthHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, deps Dependencies) {
	api := app.Group("/api")

	if deps.HealthHandler != nil {
		deps.HealthHandler.Register(api)
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		deps.AuthHandler.RegisterPublic(auth)
		deps.AuthHandler.RegisterProtected(auth.Group("", jwtMiddleware))
	}

	if deps.ActivityHandler != nil {
		activity := api.Group("/activity", jwtMiddleware)
		deps.ActivityHandler.Register(activity)

		adminActivity := api.Group("/admin/activity", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.ActivityHandler.RegisterAdmin(adminActivity)
	}

	if deps.TaskHandler != nil {
		tasks := api.Group("/tasks", jwtMiddleware)
		deps.TaskHandler.Register(tasks)
		deps.TaskHandler.RegisterManaged(tasks.Group("", middleware.RequireRole(models.RoleAdmin, models.RoleManager)))
	}

	if deps.ProjectHandler != nil {
		projects := api.Group("/projects", jwtMiddleware, middleware.RequireRole(models.RoleAdmin, models.RoleManager))
		deps.ProjectHandler.Register(projects)
	}

	if deps.UserHandler != nil {
		users := api.Group("/users", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.UserHandler.Register(users)
	}
}
