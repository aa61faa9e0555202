package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-registration/internal/model"
)

// EventRepo provides CRUD operations for the event catalog. Registrations
// reference events by id only; deleting an event leaves its registrations
// in place and views fall back to a placeholder.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, name, location, start_date, end_date, price_cents, created_at, updated_at`

func scanEvent(s rowScanner) (model.Event, error) {
	var (
		ev                   model.Event
		start, end, cre, upd dbTime
	)
	if err := s.Scan(&ev.ID, &ev.Name, &ev.Location, &start, &end, &ev.PriceCents, &cre, &upd); err != nil {
		return ev, err
	}
	ev.StartDate, ev.EndDate, ev.CreatedAt, ev.UpdatedAt = start.t, end.t, cre.t, upd.t
	return ev, nil
}

// Create inserts an event and populates its generated id and timestamps.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	now := time.Now().UTC()
	const q = `INSERT INTO events (name, location, start_date, end_date, price_cents, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, ev.Name, ev.Location, ev.StartDate.UTC(), ev.EndDate.UTC(), ev.PriceCents, now, now)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	ev.ID = uint64(id)
	ev.CreatedAt, ev.UpdatedAt = now, now
	return nil
}

// GetByID returns the event or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("load event %d: %w", id, err)
	}
	return ev, nil
}

// GetByIDs loads several events in one query. Missing ids are simply
// absent from the returned map.
func (r *EventRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Event, error) {
	out := make(map[uint64]model.Event, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out[ev.ID] = ev
	}
	return out, rows.Err()
}

// List returns all events ordered by start date, like the catalog pages.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Update overwrites the mutable columns of an event. It returns
// ErrNotFound when the id does not exist.
func (r *EventRepo) Update(ctx context.Context, ev *model.Event) error {
	now := time.Now().UTC()
	const q = `UPDATE events SET name = ?, location = ?, start_date = ?, end_date = ?, price_cents = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, ev.Name, ev.Location, ev.StartDate.UTC(), ev.EndDate.UTC(), ev.PriceCents, now, ev.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %d: %w", ev.ID, ErrNotFound)
	}
	ev.UpdatedAt = now
	return nil
}

// Delete removes an event. Existing registrations keep their event_id.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return nil
}
