package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/access"
	"github.com/iliyamo/event-registration/internal/handler"
	"github.com/iliyamo/event-registration/internal/middleware"
)

// RegisterUser registers the end-user registration endpoints under /v1.
// Any signed-in identity may call them; ownership of a registration is
// enforced by the lifecycle engine.
func RegisterUser(e *echo.Echo, h *handler.RegistrationHandler, gate *access.Gate, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.Authenticate(gate),
		middleware.RequireRole(access.RequireAny),
		limiter,
	)
	g.GET("/me", h.Me)
	g.POST("/events/:id/register", h.Register)
	g.GET("/my-registrations", h.ListMine)
	g.GET("/registrations/:id", h.Get)
	g.POST("/registrations/:id/receipt", h.UploadReceipt)
	g.DELETE("/registrations/:id", h.Withdraw)
}
