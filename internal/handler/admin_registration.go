package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-registration/internal/lifecycle"
    "github.com/iliyamo/event-registration/internal/utils"
    "github.com/iliyamo/event-registration/internal/view"
)

// AdminHandler serves the review side of the workflow.
type AdminHandler struct {
    Engine *lifecycle.Engine
    Views  *view.Composer
}

// NewAdminHandler panics if any dependency is nil.
func NewAdminHandler(engine *lifecycle.Engine, views *view.Composer) *AdminHandler {
    if engine == nil || views == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    return &AdminHandler{Engine: engine, Views: views}
}

type decisionRequest struct {
    Notes *string `json:"notes" validate:"omitempty,max=2000"`
}

type notesRequest struct {
    Notes string `json:"notes" validate:"max=2000"`
}

// ListRegistrations handles GET /v1/admin/registrations.
func (h *AdminHandler) ListRegistrations(c echo.Context) error {
    items, err := h.Views.ComposeForAdmin(c.Request().Context(), principal(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Approve handles POST /v1/admin/registrations/:id/approve.
func (h *AdminHandler) Approve(c echo.Context) error { return h.decide(c, true) }

// Reject handles POST /v1/admin/registrations/:id/reject.
func (h *AdminHandler) Reject(c echo.Context) error { return h.decide(c, false) }

func (h *AdminHandler) decide(c echo.Context, approve bool) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    var body decisionRequest
    // An empty body is a decision without notes.
    if c.Request().ContentLength != 0 {
        if err := c.Bind(&body); err != nil {
            return badRequest(c, "invalid request body")
        }
    }
    if err := utils.Validate(c.Request().Context(), body); err != nil {
        return badRequest(c, err.Error())
    }
    reg, err := h.Engine.Decide(c.Request().Context(), principal(c), id, approve, body.Notes)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, reg)
}

// SetNotes handles PUT /v1/admin/registrations/:id/notes.
func (h *AdminHandler) SetNotes(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    var body notesRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := utils.Validate(c.Request().Context(), body); err != nil {
        return badRequest(c, err.Error())
    }
    reg, err := h.Engine.Annotate(c.Request().Context(), principal(c), id, body.Notes)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, reg)
}
