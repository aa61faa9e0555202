package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-registration/internal/access"
    "github.com/iliyamo/event-registration/internal/middleware"
    "github.com/iliyamo/event-registration/internal/model"
    "github.com/iliyamo/event-registration/internal/utils"
)

const dateLayout = "2006-01-02"

// EventStore is the event catalog as used by the HTTP layer.
type EventStore interface {
    Create(ctx context.Context, ev *model.Event) error
    GetByID(ctx context.Context, id uint64) (model.Event, error)
    List(ctx context.Context) ([]model.Event, error)
    Update(ctx context.Context, ev *model.Event) error
    Delete(ctx context.Context, id uint64) error
}

// EventHandler serves the public catalog and the admin catalog CRUD.
type EventHandler struct {
    Events EventStore
    // OnChange runs after every successful write; the server uses it to
    // purge the public catalog cache.  May be nil.
    OnChange func(ctx context.Context) error
}

// NewEventHandler panics if events is nil.
func NewEventHandler(events EventStore, onChange func(ctx context.Context) error) *EventHandler {
    if events == nil {
        panic("nil repository passed to NewEventHandler")
    }
    return &EventHandler{Events: events, OnChange: onChange}
}

type eventRequest struct {
    Name       string `json:"name" validate:"required,notblank,max=200"`
    Location   string `json:"location" validate:"required,notblank,max=200"`
    StartDate  string `json:"start_date" validate:"required,date"`
    EndDate    string `json:"end_date" validate:"required,date"`
    PriceCents uint32 `json:"price_cents"`
}

type eventPatch struct {
    Name       *string `json:"name" validate:"omitempty,notblank,max=200"`
    Location   *string `json:"location" validate:"omitempty,notblank,max=200"`
    StartDate  *string `json:"start_date" validate:"omitempty,date"`
    EndDate    *string `json:"end_date" validate:"omitempty,date"`
    PriceCents *uint32 `json:"price_cents"`
}

// List handles GET /v1/events.
func (h *EventHandler) List(c echo.Context) error {
    items, err := h.Events.List(c.Request().Context())
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/events/:id.
func (h *EventHandler) Get(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    ev, err := h.Events.GetByID(c.Request().Context(), id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, ev)
}

// Create handles POST /v1/admin/events.
func (h *EventHandler) Create(c echo.Context) error {
    if err := access.Authorize(principal(c), access.RequireAdmin, nil); err != nil {
        return writeError(c, err)
    }
    var body eventRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := utils.Validate(c.Request().Context(), body); err != nil {
        return badRequest(c, err.Error())
    }
    ev := model.Event{Name: strings.TrimSpace(body.Name), Location: strings.TrimSpace(body.Location), PriceCents: body.PriceCents}
    ev.StartDate, _ = time.Parse(dateLayout, body.StartDate)
    ev.EndDate, _ = time.Parse(dateLayout, body.EndDate)
    if ev.EndDate.Before(ev.StartDate) {
        return badRequest(c, "end_date must not be before start_date")
    }
    if err := h.Events.Create(c.Request().Context(), &ev); err != nil {
        return writeError(c, err)
    }
    h.changed(c)
    return c.JSON(http.StatusCreated, ev)
}

// Replace handles PUT /v1/admin/events/:id; every field is required.
func (h *EventHandler) Replace(c echo.Context) error {
    if err := access.Authorize(principal(c), access.RequireAdmin, nil); err != nil {
        return writeError(c, err)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    var body eventRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := utils.Validate(c.Request().Context(), body); err != nil {
        return badRequest(c, err.Error())
    }
    return h.save(c, id, eventPatch{
        Name:       &body.Name,
        Location:   &body.Location,
        StartDate:  &body.StartDate,
        EndDate:    &body.EndDate,
        PriceCents: &body.PriceCents,
    })
}

// Patch handles PATCH /v1/admin/events/:id; absent fields are kept.
func (h *EventHandler) Patch(c echo.Context) error {
    if err := access.Authorize(principal(c), access.RequireAdmin, nil); err != nil {
        return writeError(c, err)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    var body eventPatch
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := utils.Validate(c.Request().Context(), body); err != nil {
        return badRequest(c, err.Error())
    }
    return h.save(c, id, body)
}

// Delete handles DELETE /v1/admin/events/:id.  Registrations for the event
// are kept and shown with an event placeholder.
func (h *EventHandler) Delete(c echo.Context) error {
    if err := access.Authorize(principal(c), access.RequireAdmin, nil); err != nil {
        return writeError(c, err)
    }
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    if err := h.Events.Delete(c.Request().Context(), id); err != nil {
        return writeError(c, err)
    }
    h.changed(c)
    return c.NoContent(http.StatusNoContent)
}

func (h *EventHandler) save(c echo.Context, id uint64, p eventPatch) error {
    ctx := c.Request().Context()
    ev, err := h.Events.GetByID(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    if p.Name != nil {
        ev.Name = strings.TrimSpace(*p.Name)
    }
    if p.Location != nil {
        ev.Location = strings.TrimSpace(*p.Location)
    }
    if p.StartDate != nil {
        ev.StartDate, _ = time.Parse(dateLayout, *p.StartDate)
    }
    if p.EndDate != nil {
        ev.EndDate, _ = time.Parse(dateLayout, *p.EndDate)
    }
    if p.PriceCents != nil {
        ev.PriceCents = *p.PriceCents
    }
    if ev.EndDate.Before(ev.StartDate) {
        return badRequest(c, "end_date must not be before start_date")
    }
    if err := h.Events.Update(ctx, &ev); err != nil {
        return writeError(c, err)
    }
    h.changed(c)
    return c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) changed(c echo.Context) {
    if h.OnChange == nil {
        return
    }
    if err := h.OnChange(c.Request().Context()); err != nil {
        middleware.Logger(c).Warn().Err(err).Msg("event cache invalidation failed")
    }
}
