package handler

import (
    "io"
    "net/http"
    "path"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
)

// ReceiptSource resolves signed receipt links to readable blobs.
type ReceiptSource interface {
    Resolve(token string) (string, error)
    Open(ref string) (io.ReadSeekCloser, error)
}

// ReceiptHandler serves GET /v1/receipts/:token.  The token is the only
// credential: anyone holding an unexpired link can read that one receipt.
type ReceiptHandler struct {
    Receipts ReceiptSource
}

// NewReceiptHandler panics if receipts is nil.
func NewReceiptHandler(receipts ReceiptSource) *ReceiptHandler {
    if receipts == nil {
        panic("nil receipt source passed to NewReceiptHandler")
    }
    return &ReceiptHandler{Receipts: receipts}
}

// Download streams the receipt named by a valid signed token.
func (h *ReceiptHandler) Download(c echo.Context) error {
    tok := c.Param("token")
    if tok == "" {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    ref, err := h.Receipts.Resolve(tok)
    if err != nil {
        return writeError(c, err)
    }
    f, err := h.Receipts.Open(ref)
    if err != nil {
        return writeError(c, err)
    }
    defer f.Close()

    name := path.Base(ref)
    c.Response().Header().Set("Cache-Control", "private, no-store")
    c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
    http.ServeContent(c.Response(), c.Request(), name, time.Time{}, f)
    return nil
}
