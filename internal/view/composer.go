// Package view builds the read models shown to users and admins. A
// registration is joined with its event and, for admins, with the owner's
// profile and a signed receipt link. Enrichment is best-effort: a missing
// or failing lookup leaves a placeholder and never fails the whole list.
package view

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/event-registration/internal/access"
	"github.com/iliyamo/event-registration/internal/model"
)

// Placeholder names listed in EnrichedRegistration.Missing.
const (
	MissingEvent      = "event"
	MissingProfile    = "profile"
	MissingReceiptURL = "receipt_url"
)

// EnrichedRegistration is a registration plus whatever context could be
// resolved for it.
type EnrichedRegistration struct {
	model.Registration
	Event      *model.Event   `json:"event"`
	Profile    *model.Profile `json:"profile,omitempty"`
	ReceiptURL *string        `json:"receipt_url,omitempty"`
	Missing    []string       `json:"missing,omitempty"`
}

// RegistrationSource lists registrations.
type RegistrationSource interface {
	ListByUser(ctx context.Context, userID string) ([]model.Registration, error)
	ListAll(ctx context.Context) ([]model.Registration, error)
}

// EventSource resolves events in bulk.
type EventSource interface {
	GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Event, error)
}

// ProfileSource resolves profiles in bulk.
type ProfileSource interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error)
}

// ReceiptSigner issues signed receipt links.
type ReceiptSigner interface {
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// Composer joins registrations with their context. It holds no state
// between calls; every composition reads fresh data.
type Composer struct {
	regs     RegistrationSource
	events   EventSource
	profiles ProfileSource
	signer   ReceiptSigner
	ttl      time.Duration
	log      *zerolog.Logger
}

// NewComposer wires a Composer. ttl is the lifetime of signed receipt links.
func NewComposer(regs RegistrationSource, events EventSource, profiles ProfileSource, signer ReceiptSigner, ttl time.Duration, log *zerolog.Logger) *Composer {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Composer{regs: regs, events: events, profiles: profiles, signer: signer, ttl: ttl, log: log}
}

// ComposeForUser returns the caller's registrations joined with events.
func (c *Composer) ComposeForUser(ctx context.Context, p access.Principal) ([]EnrichedRegistration, error) {
	if err := access.Authorize(p, access.RequireAny, nil); err != nil {
		return nil, err
	}
	regs, err := c.regs.ListByUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]EnrichedRegistration, len(regs))
	for i, r := range regs {
		out[i] = EnrichedRegistration{Registration: r}
	}
	c.attachEvents(ctx, out)
	return out, nil
}

// ComposeForAdmin returns all registrations joined with events, profiles
// and signed receipt links. A link that cannot be signed falls back to the
// raw receipt reference.
func (c *Composer) ComposeForAdmin(ctx context.Context, p access.Principal) ([]EnrichedRegistration, error) {
	if err := access.Authorize(p, access.RequireAdmin, nil); err != nil {
		return nil, err
	}
	regs, err := c.regs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EnrichedRegistration, len(regs))
	for i, r := range regs {
		out[i] = EnrichedRegistration{Registration: r}
	}
	c.attachEvents(ctx, out)
	c.attachProfiles(ctx, out)
	c.attachReceiptURLs(ctx, out)
	return out, nil
}

func (c *Composer) attachEvents(ctx context.Context, out []EnrichedRegistration) {
	seen := make(map[uint64]bool)
	ids := make([]uint64, 0, len(out))
	for _, r := range out {
		if !seen[r.EventID] {
			seen[r.EventID] = true
			ids = append(ids, r.EventID)
		}
	}
	events, err := c.events.GetByIDs(ctx, ids)
	if err != nil {
		c.log.Warn().Err(err).Msg("view: event lookup failed; using placeholders")
		events = nil
	}
	for i := range out {
		if ev, ok := events[out[i].EventID]; ok {
			ev := ev
			out[i].Event = &ev
			continue
		}
		out[i].Missing = append(out[i].Missing, MissingEvent)
	}
}

func (c *Composer) attachProfiles(ctx context.Context, out []EnrichedRegistration) {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(out))
	for _, r := range out {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			ids = append(ids, r.UserID)
		}
	}
	profiles, err := c.profiles.GetByIDs(ctx, ids)
	if err != nil {
		c.log.Warn().Err(err).Msg("view: profile lookup failed; using placeholders")
		profiles = nil
	}
	for i := range out {
		if pr, ok := profiles[out[i].UserID]; ok {
			pr := pr
			out[i].Profile = &pr
			continue
		}
		out[i].Missing = append(out[i].Missing, MissingProfile)
	}
}

func (c *Composer) attachReceiptURLs(ctx context.Context, out []EnrichedRegistration) {
	for i := range out {
		ref := out[i].ReceiptRef
		if ref == nil {
			continue
		}
		u, err := c.signer.SignedURL(ctx, *ref, c.ttl)
		if err != nil {
			c.log.Warn().Err(err).Uint64("registration_id", out[i].ID).Msg("view: signing receipt url failed; using raw ref")
			raw := *ref
			out[i].ReceiptURL = &raw
			out[i].Missing = append(out[i].Missing, MissingReceiptURL)
			continue
		}
		out[i].ReceiptURL = &u
	}
}
