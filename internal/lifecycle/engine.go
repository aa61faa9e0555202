// Package lifecycle is the only place that changes a registration's
// status. Each operation authorizes the caller, reads the latest persisted
// row, asks model.Next whether the step is allowed, and then performs a
// write conditioned on the status it just read.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/event-registration/internal/access"
	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/queue"
)

// Registrations is the persistence contract the engine relies on. Status
// dependent writes take the expected prior status and must fail with
// apperr.ErrInvalidTransition when it no longer matches.
type Registrations interface {
	Create(ctx context.Context, userID string, eventID uint64, at time.Time) (model.Registration, error)
	Get(ctx context.Context, id uint64) (model.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]model.Registration, error)
	ListAll(ctx context.Context) ([]model.Registration, error)
	SetReceipt(ctx context.Context, id uint64, expected model.Status, ref string, at time.Time) (model.Registration, error)
	SetDecision(ctx context.Context, id uint64, expected, to model.Status, notes *string, at time.Time) (model.Registration, error)
	SetNotes(ctx context.Context, id uint64, notes string, at time.Time) (model.Registration, error)
	Delete(ctx context.Context, id uint64, userID string, allowed []model.Status) error
}

// EventCatalog is the read side of the event catalog.
type EventCatalog interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
}

// ReceiptStore stores receipt blobs.
type ReceiptStore interface {
	Put(ctx context.Context, ownerID string, eventID uint64, filename string, r io.Reader) (string, error)
}

// Notifier receives an event after every committed transition. It must not
// block the request on delivery problems.
type Notifier interface {
	Notify(ctx context.Context, ev queue.RegistrationEvent)
}

// Engine applies lifecycle transitions.
type Engine struct {
	regs     Registrations
	events   EventCatalog
	receipts ReceiptStore
	notifier Notifier
	log      *zerolog.Logger
	now      func() time.Time
}

// NewEngine wires the engine. notifier may be nil.
func NewEngine(regs Registrations, events EventCatalog, receipts ReceiptStore, notifier Notifier, log *zerolog.Logger) *Engine {
	if regs == nil || events == nil || receipts == nil {
		panic("nil dependency passed to lifecycle.NewEngine")
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Engine{regs: regs, events: events, receipts: receipts, notifier: notifier, log: log, now: time.Now}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Select creates a registration for the caller in the selected state.
func (e *Engine) Select(ctx context.Context, p access.Principal, eventID uint64) (model.Registration, error) {
	if err := access.Authorize(p, access.RequireAny, nil); err != nil {
		return model.Registration{}, err
	}
	if _, err := model.Next("", model.ActionSelect); err != nil {
		return model.Registration{}, err
	}
	if _, err := e.events.GetByID(ctx, eventID); err != nil {
		return model.Registration{}, err
	}
	reg, err := e.regs.Create(ctx, p.ID, eventID, e.now())
	if err != nil {
		return model.Registration{}, err
	}
	e.emit(ctx, model.ActionSelect, "", reg)
	return reg, nil
}

// Get returns one registration. Non-admins may only read their own.
func (e *Engine) Get(ctx context.Context, p access.Principal, id uint64) (model.Registration, error) {
	if err := access.Authorize(p, access.RequireAny, nil); err != nil {
		return model.Registration{}, err
	}
	reg, err := e.regs.Get(ctx, id)
	if err != nil {
		return model.Registration{}, err
	}
	if !p.IsAdmin() {
		if err := access.Authorize(p, access.RequireAny, &reg.UserID); err != nil {
			return model.Registration{}, err
		}
	}
	return reg, nil
}

// ListMine returns the caller's own registrations.
func (e *Engine) ListMine(ctx context.Context, p access.Principal) ([]model.Registration, error) {
	if err := access.Authorize(p, access.RequireAny, nil); err != nil {
		return nil, err
	}
	return e.regs.ListByUser(ctx, p.ID)
}

// ListAll returns every registration. Admin only.
func (e *Engine) ListAll(ctx context.Context, p access.Principal) ([]model.Registration, error) {
	if err := access.Authorize(p, access.RequireAdmin, nil); err != nil {
		return nil, err
	}
	return e.regs.ListAll(ctx)
}

// SubmitReceipt stores the receipt and moves the caller's registration from
// selected to payment_pending. The blob is written first; if the status
// write then fails the registration keeps its previous state and the blob
// is left unreferenced, so the call can simply be retried.
func (e *Engine) SubmitReceipt(ctx context.Context, p access.Principal, id uint64, filename string, r io.Reader) (model.Registration, error) {
	cur, err := e.load(ctx, p, id, access.RequireAny, true)
	if err != nil {
		return model.Registration{}, err
	}
	if _, err := model.Next(cur.Status, model.ActionSubmitReceipt); err != nil {
		return model.Registration{}, err
	}
	ref, err := e.receipts.Put(ctx, p.ID, cur.EventID, filename, r)
	if err != nil {
		return model.Registration{}, err
	}
	reg, err := e.regs.SetReceipt(ctx, id, cur.Status, ref, e.now())
	if err != nil {
		e.log.Warn().Err(err).Uint64("registration_id", id).Str("receipt_ref", ref).
			Msg("receipt stored but registration not updated; blob orphaned")
		return model.Registration{}, err
	}
	e.emit(ctx, model.ActionSubmitReceipt, cur.Status, reg)
	return reg, nil
}

// Decide approves or rejects a payment_pending registration. Admin only.
// notes, when non-nil, replaces the registration's notes in the same write.
func (e *Engine) Decide(ctx context.Context, p access.Principal, id uint64, approve bool, notes *string) (model.Registration, error) {
	cur, err := e.load(ctx, p, id, access.RequireAdmin, false)
	if err != nil {
		return model.Registration{}, err
	}
	act := model.ActionReject
	if approve {
		act = model.ActionApprove
	}
	to, err := model.Next(cur.Status, act)
	if err != nil {
		return model.Registration{}, err
	}
	reg, err := e.regs.SetDecision(ctx, id, cur.Status, to, notes, e.now())
	if err != nil {
		return model.Registration{}, err
	}
	e.emit(ctx, act, cur.Status, reg)
	return reg, nil
}

// Annotate replaces the admin notes of a registration in any state.
func (e *Engine) Annotate(ctx context.Context, p access.Principal, id uint64, notes string) (model.Registration, error) {
	if err := access.Authorize(p, access.RequireAdmin, nil); err != nil {
		return model.Registration{}, err
	}
	return e.regs.SetNotes(ctx, id, notes, e.now())
}

// Withdraw deletes the caller's registration while it is still selected or
// payment_pending. Decided registrations are kept as an audit record.
func (e *Engine) Withdraw(ctx context.Context, p access.Principal, id uint64) error {
	cur, err := e.load(ctx, p, id, access.RequireAny, true)
	if err != nil {
		return err
	}
	if _, err := model.Next(cur.Status, model.ActionWithdraw); err != nil {
		return err
	}
	if err := e.regs.Delete(ctx, id, p.ID, []model.Status{cur.Status}); err != nil {
		return err
	}
	removed := cur
	removed.Status = model.StatusRemoved
	removed.UpdatedAt = e.now().UTC()
	e.emit(ctx, model.ActionWithdraw, cur.Status, removed)
	return nil
}

// load authorizes the role, reads the latest row and, when owned is set,
// checks that the caller owns it.
func (e *Engine) load(ctx context.Context, p access.Principal, id uint64, req access.Requirement, owned bool) (model.Registration, error) {
	if err := access.Authorize(p, req, nil); err != nil {
		return model.Registration{}, err
	}
	cur, err := e.regs.Get(ctx, id)
	if err != nil {
		return model.Registration{}, err
	}
	if owned {
		if err := access.Authorize(p, req, &cur.UserID); err != nil {
			return model.Registration{}, err
		}
	}
	if !cur.Consistent() {
		// A row violating the receipt invariant was written outside the engine.
		return model.Registration{}, fmt.Errorf("registration %d has inconsistent receipt state: %w", id, apperr.ErrInvalidTransition)
	}
	return cur, nil
}

func (e *Engine) emit(ctx context.Context, act model.Action, from model.Status, reg model.Registration) {
	e.log.Info().
		Uint64("registration_id", reg.ID).
		Str("user_id", reg.UserID).
		Uint64("event_id", reg.EventID).
		Str("action", string(act)).
		Str("from", string(from)).
		Str("to", string(reg.Status)).
		Msg("registration transition")
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, queue.RegistrationEvent{
		Type:           string(act),
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
		EventID:        reg.EventID,
		FromStatus:     string(from),
		ToStatus:       string(reg.Status),
		ReceiptRef:     reg.ReceiptRef,
		Notes:          reg.Notes,
		OccurredAt:     reg.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
