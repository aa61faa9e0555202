package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-registration/internal/handler"
)

// RegisterRoutes registers the health check used by load balancers.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterPublic registers unauthenticated endpoints.  The event catalog
// sits behind the response cache; receipt downloads are authorized by the
// signed token in the path and are never cached.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler, rc *handler.ReceiptHandler, cache echo.MiddlewareFunc) {
	catalog := e.Group("/v1/events", cache)
	catalog.GET("", ev.List)
	catalog.GET("/:id", ev.Get)

	e.GET("/v1/receipts/:token", rc.Download)
}
