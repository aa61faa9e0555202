package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/iliyamo/event-registration/internal/apperr"
)

var allStatuses = []Status{"", StatusSelected, StatusPaymentPending, StatusApproved, StatusRejected}

var allActions = []Action{ActionSelect, ActionSubmitReceipt, ActionApprove, ActionReject, ActionWithdraw}

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		action  Action
		want    Status
		wantErr bool
	}{
		{"select creates", "", ActionSelect, StatusSelected, false},
		{"receipt from selected", StatusSelected, ActionSubmitReceipt, StatusPaymentPending, false},
		{"approve pending", StatusPaymentPending, ActionApprove, StatusApproved, false},
		{"reject pending", StatusPaymentPending, ActionReject, StatusRejected, false},
		{"withdraw selected", StatusSelected, ActionWithdraw, StatusRemoved, false},
		{"withdraw pending", StatusPaymentPending, ActionWithdraw, StatusRemoved, false},
		{"select twice", StatusSelected, ActionSelect, "", true},
		{"approve selected", StatusSelected, ActionApprove, "", true},
		{"reject selected", StatusSelected, ActionReject, "", true},
		{"receipt while pending", StatusPaymentPending, ActionSubmitReceipt, "", true},
		{"receipt after approval", StatusApproved, ActionSubmitReceipt, "", true},
		{"withdraw approved", StatusApproved, ActionWithdraw, "", true},
		{"withdraw rejected", StatusRejected, ActionWithdraw, "", true},
		{"reapprove", StatusApproved, ActionApprove, "", true},
		{"reject approved", StatusApproved, ActionReject, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.from, tt.action)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourcesOf(t *testing.T) {
	assert.Equal(t, []Status{StatusSelected, StatusPaymentPending}, SourcesOf(ActionWithdraw))
	assert.Equal(t, []Status{StatusPaymentPending}, SourcesOf(ActionApprove))
	assert.Equal(t, []Status{StatusSelected}, SourcesOf(ActionSubmitReceipt))
	assert.Empty(t, SourcesOf(ActionSelect))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("payment_pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentPending, s)

	_, err = ParseStatus("removed")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestConsistent(t *testing.T) {
	ref := "u1/1/receipt.pdf"
	assert.True(t, Registration{Status: StatusSelected}.Consistent())
	assert.False(t, Registration{Status: StatusSelected, ReceiptRef: &ref}.Consistent())
	assert.True(t, Registration{Status: StatusApproved, ReceiptRef: &ref}.Consistent())
	assert.False(t, Registration{Status: StatusPaymentPending}.Consistent())
	assert.False(t, Registration{Status: StatusRemoved}.Consistent())
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleUser, ParseRole("user"))
	assert.Equal(t, RoleUser, ParseRole("superuser"))
	assert.Equal(t, RoleUser, ParseRole(""))
}

// TestNextNeverLeavesLifecycle checks that any sequence of actions only
// visits persisted statuses (or removal) and that terminal states absorb.
func TestNextNeverLeavesLifecycle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cur := Status("")
		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			a := rapid.SampledFrom(allActions).Draw(rt, "action")
			next, err := Next(cur, a)
			if err != nil {
				if !errors.Is(err, apperr.ErrInvalidTransition) {
					rt.Fatalf("unexpected error kind: %v", err)
				}
				continue
			}
			if cur.Terminal() {
				rt.Fatalf("terminal %q moved to %q via %s", cur, next, a)
			}
			if next == StatusRemoved {
				cur = ""
				continue
			}
			if !next.Valid() {
				rt.Fatalf("%s from %q produced invalid status %q", a, cur, next)
			}
			cur = next
		}
	})
}

func TestEveryEdgeStartsFromKnownState(t *testing.T) {
	for e, to := range transitions {
		assert.Contains(t, allStatuses, e.from)
		assert.Contains(t, allActions, e.act)
		assert.True(t, to.Valid() || to == StatusRemoved)
	}
}
