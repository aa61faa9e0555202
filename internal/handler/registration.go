package handler

import (
    "bytes"
    "errors"
    "io"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-registration/internal/lifecycle"
    "github.com/iliyamo/event-registration/internal/view"
)

// allowedReceiptTypes lists the sniffed content types accepted as receipts.
var allowedReceiptTypes = map[string]bool{
    "application/pdf": true,
    "image/jpeg":      true,
    "image/png":       true,
    "image/webp":      true,
}

// RegistrationHandler serves the end-user side of the registration
// workflow.  Role and ownership checks happen in the lifecycle engine;
// the handler only parses input and maps errors.
type RegistrationHandler struct {
    Engine   *lifecycle.Engine
    Views    *view.Composer
    MaxBytes int64 // upload limit checked before the body is streamed
}

// NewRegistrationHandler panics if any dependency is nil.
func NewRegistrationHandler(engine *lifecycle.Engine, views *view.Composer, maxBytes int64) *RegistrationHandler {
    if engine == nil || views == nil {
        panic("nil dependency passed to NewRegistrationHandler")
    }
    return &RegistrationHandler{Engine: engine, Views: views, MaxBytes: maxBytes}
}

// Me handles GET /v1/me and returns the resolved caller.
func (h *RegistrationHandler) Me(c echo.Context) error {
    p := principal(c)
    if p.ID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login required"})
    }
    return c.JSON(http.StatusOK, p)
}

// Register handles POST /v1/events/:id/register.  It creates a
// registration in the selected state and answers 201.
func (h *RegistrationHandler) Register(c echo.Context) error {
    eventID, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    reg, err := h.Engine.Select(c.Request().Context(), principal(c), eventID)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, reg)
}

// ListMine handles GET /v1/my-registrations.
func (h *RegistrationHandler) ListMine(c echo.Context) error {
    items, err := h.Views.ComposeForUser(c.Request().Context(), principal(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/registrations/:id.  Users can read only their own.
func (h *RegistrationHandler) Get(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    reg, err := h.Engine.Get(c.Request().Context(), principal(c), id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, reg)
}

// UploadReceipt handles POST /v1/registrations/:id/receipt.  The file is
// taken from the multipart field "receipt"; its type is sniffed from the
// first bytes rather than trusted from the client.
func (h *RegistrationHandler) UploadReceipt(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    fh, err := c.FormFile("receipt")
    if err != nil {
        return badRequest(c, "receipt file is required")
    }
    if h.MaxBytes > 0 && fh.Size > h.MaxBytes {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "receipt too large"})
    }
    f, err := fh.Open()
    if err != nil {
        return badRequest(c, "unreadable receipt")
    }
    defer f.Close()

    head := make([]byte, 512)
    n, err := io.ReadFull(f, head)
    if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
        return badRequest(c, "unreadable receipt")
    }
    head = head[:n]
    if ct := http.DetectContentType(head); !allowedReceiptTypes[ct] {
        return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": "receipt must be a PDF or image"})
    }

    reg, err := h.Engine.SubmitReceipt(c.Request().Context(), principal(c), id, fh.Filename, io.MultiReader(bytes.NewReader(head), f))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, reg)
}

// Withdraw handles DELETE /v1/registrations/:id and answers 204.
func (h *RegistrationHandler) Withdraw(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid id")
    }
    if err := h.Engine.Withdraw(c.Request().Context(), principal(c), id); err != nil {
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
