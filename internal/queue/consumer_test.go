package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
    ref := "u1/3/1-abcd1234-r.pdf"
    line := FormatLine(RegistrationEvent{
        Type:           "submit_receipt",
        RegistrationID: 7,
        UserID:         "u1",
        EventID:        3,
        FromStatus:     "selected",
        ToStatus:       "payment_pending",
        ReceiptRef:     &ref,
        OccurredAt:     "2030-01-01T00:00:00Z",
    })
    assert.Equal(t, `[2030-01-01T00:00:00Z] Registration submit_receipt | registration_id=7 | user_id=u1 | event_id=3 | selected -> payment_pending | receipt="u1/3/1-abcd1234-r.pdf"`+"\n", line)
}

func TestFormatLineWithoutPriorStatusOrReceipt(t *testing.T) {
    line := FormatLine(RegistrationEvent{Type: "select", RegistrationID: 1, UserID: "u", EventID: 2, ToStatus: "selected"})
    assert.Contains(t, line, "none -> selected")
    assert.Contains(t, line, `receipt="-"`)
}

func TestHandleAppendsLines(t *testing.T) {
    nop := zerolog.Nop()
    c := &Consumer{LogPath: filepath.Join(t.TempDir(), "logs", "registration.log"), Log: &nop}

    for _, typ := range []string{"select", "withdraw"} {
        body, err := json.Marshal(RegistrationEvent{Type: typ, RegistrationID: 1, UserID: "u", EventID: 2, ToStatus: "x"})
        require.NoError(t, err)
        require.NoError(t, c.Handle(body))
    }

    data, err := os.ReadFile(c.LogPath)
    require.NoError(t, err)
    lines := strings.Split(strings.TrimSpace(string(data)), "\n")
    require.Len(t, lines, 2)
    assert.Contains(t, lines[0], "Registration select")
    assert.Contains(t, lines[1], "Registration withdraw")
}

func TestHandleRejectsMalformedBody(t *testing.T) {
    nop := zerolog.Nop()
    c := &Consumer{LogPath: filepath.Join(t.TempDir(), "registration.log"), Log: &nop}
    assert.Error(t, c.Handle([]byte("{not json")))
    _, err := os.Stat(c.LogPath)
    assert.True(t, os.IsNotExist(err))
}
