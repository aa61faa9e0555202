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

// RegistrationRepo persists registrations. Every write that depends on the
// current status is a single conditional statement keyed on the status the
// caller observed, so two concurrent writers can never both succeed. All
// timestamps are stored in UTC.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo returns a new RegistrationRepo bound to the given database.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// DB exposes the underlying handle.
func (r *RegistrationRepo) DB() *sql.DB { return r.db }

const registrationColumns = `id, user_id, event_id, status, receipt_ref, notes, created_at, updated_at`

func scanRegistration(s rowScanner) (model.Registration, error) {
	var (
		reg        model.Registration
		status     string
		receiptRef sql.NullString
		notes      sql.NullString
		createdAt  dbTime
		updatedAt  dbTime
	)
	if err := s.Scan(&reg.ID, &reg.UserID, &reg.EventID, &status, &receiptRef, &notes, &createdAt, &updatedAt); err != nil {
		return reg, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		return reg, err
	}
	reg.Status = st
	if receiptRef.Valid {
		ref := receiptRef.String
		reg.ReceiptRef = &ref
	}
	if notes.Valid {
		n := notes.String
		reg.Notes = &n
	}
	reg.CreatedAt = createdAt.t
	reg.UpdatedAt = updatedAt.t
	return reg, nil
}

// Create inserts a registration in the selected state. It returns
// ErrConflict when the (user, event) pair is already registered; the
// unique key on the table is the authority, not a prior read.
func (r *RegistrationRepo) Create(ctx context.Context, userID string, eventID uint64, at time.Time) (model.Registration, error) {
	at = at.UTC()
	const q = `INSERT INTO registrations (user_id, event_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, userID, eventID, string(model.StatusSelected), at, at)
	if err != nil {
		if isDuplicateKey(err) {
			return model.Registration{}, fmt.Errorf("registration for event %d: %w", eventID, ErrConflict)
		}
		return model.Registration{}, fmt.Errorf("insert registration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Registration{}, fmt.Errorf("last insert id: %w", err)
	}
	return r.Get(ctx, uint64(id))
}

// Get loads a single registration. It returns ErrNotFound when no row exists.
func (r *RegistrationRepo) Get(ctx context.Context, id uint64) (model.Registration, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, id)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Registration{}, fmt.Errorf("registration %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Registration{}, fmt.Errorf("load registration %d: %w", id, err)
	}
	return reg, nil
}

// ListByUser returns the registrations owned by userID, oldest first.
func (r *RegistrationRepo) ListByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// ListAll returns every registration, oldest first. Callers must have
// checked that the principal is an admin.
func (r *RegistrationRepo) ListAll(ctx context.Context) ([]model.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations ORDER BY created_at, id`)
}

func (r *RegistrationRepo) list(ctx context.Context, q string, args ...any) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	out := make([]model.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return out, nil
}

// SetReceipt moves a registration from expected to payment_pending and
// records ref in the same statement, so status and receipt_ref always
// change together.
func (r *RegistrationRepo) SetReceipt(ctx context.Context, id uint64, expected model.Status, ref string, at time.Time) (model.Registration, error) {
	const q = `UPDATE registrations SET status = ?, receipt_ref = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(model.StatusPaymentPending), ref, at.UTC(), id, string(expected))
	if err != nil {
		return model.Registration{}, fmt.Errorf("set receipt: %w", err)
	}
	return r.afterConditionalWrite(ctx, res, id)
}

// SetDecision moves a registration from expected to the decided status and
// optionally replaces the notes.
func (r *RegistrationRepo) SetDecision(ctx context.Context, id uint64, expected, to model.Status, notes *string, at time.Time) (model.Registration, error) {
	q := `UPDATE registrations SET status = ?, updated_at = ?`
	args := []any{string(to), at.UTC()}
	if notes != nil {
		q += `, notes = ?`
		args = append(args, *notes)
	}
	q += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(expected))
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.Registration{}, fmt.Errorf("set decision: %w", err)
	}
	return r.afterConditionalWrite(ctx, res, id)
}

// SetNotes replaces the admin notes. Notes may be attached in any state.
func (r *RegistrationRepo) SetNotes(ctx context.Context, id uint64, notes string, at time.Time) (model.Registration, error) {
	const q = `UPDATE registrations SET notes = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, notes, at.UTC(), id); err != nil {
		return model.Registration{}, fmt.Errorf("set notes: %w", err)
	}
	// MySQL reports 0 affected rows when nothing changed, so existence is
	// decided by the read that follows.
	return r.Get(ctx, id)
}

// Delete removes a registration owned by userID whose status is one of
// allowed. When nothing is deleted the row is re-read to report
// ErrNotFound, ErrForbidden or ErrInvalidTransition.
func (r *RegistrationRepo) Delete(ctx context.Context, id uint64, userID string, allowed []model.Status) error {
	if len(allowed) == 0 {
		return fmt.Errorf("delete registration %d: %w", id, ErrInvalidTransition)
	}
	placeholders := make([]string, 0, len(allowed))
	args := []any{id, userID}
	for _, s := range allowed {
		placeholders = append(placeholders, "?")
		args = append(args, string(s))
	}
	q := `DELETE FROM registrations WHERE id = ? AND user_id = ? AND status IN (` + strings.Join(placeholders, ",") + `)`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	cur, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if cur.UserID != userID {
		return fmt.Errorf("registration %d: %w", id, ErrForbidden)
	}
	return fmt.Errorf("registration %d is %s: %w", id, cur.Status, ErrInvalidTransition)
}

// afterConditionalWrite returns the updated row when the statement matched,
// and otherwise distinguishes a missing row from a lost status race.
func (r *RegistrationRepo) afterConditionalWrite(ctx context.Context, res sql.Result, id uint64) (model.Registration, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return model.Registration{}, fmt.Errorf("rows affected: %w", err)
	}
	cur, err := r.Get(ctx, id)
	if err != nil {
		return model.Registration{}, err
	}
	if n == 0 {
		return model.Registration{}, fmt.Errorf("registration %d is %s: %w", id, cur.Status, ErrInvalidTransition)
	}
	return cur, nil
}
