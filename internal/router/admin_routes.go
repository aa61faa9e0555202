package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/access"
	"github.com/iliyamo/event-registration/internal/handler"
	"github.com/iliyamo/event-registration/internal/middleware"
)

// RegisterAdmin registers admin-scoped endpoints under /v1/admin.  All
// routes require a valid session whose identity has the admin role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, ev *handler.EventHandler, gate *access.Gate, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.Authenticate(gate),
		middleware.RequireRole(access.RequireAdmin),
		limiter,
	)

	// ---- Registrations ----
	g.GET("/registrations", a.ListRegistrations)
	g.POST("/registrations/:id/approve", a.Approve)
	g.POST("/registrations/:id/reject", a.Reject)
	g.PUT("/registrations/:id/notes", a.SetNotes)

	// ---- Events ----
	g.POST("/events", ev.Create)
	g.PUT("/events/:id", ev.Replace)
	g.PATCH("/events/:id", ev.Patch)
	g.DELETE("/events/:id", ev.Delete)
}
