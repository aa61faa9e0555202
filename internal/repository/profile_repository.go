package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/event-registration/internal/model"
)

// ProfileRepo reads the profiles table. Profiles are provisioned by the
// identity provider; this service never writes them.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// GetByID fetches a profile by identity id.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (model.Profile, error) {
	var (
		p                  model.Profile
		name, email, phone sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, full_name, email, phone FROM profiles WHERE id=? LIMIT 1", id).
		Scan(&p.ID, &name, &email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return p, err
	}
	p.FullName, p.Email, p.Phone = nullable(name), nullable(email), nullable(phone)
	return p, nil
}

// GetByIDs fetches several profiles at once, keyed by identity id.
func (r *ProfileRepo) GetByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, full_name, email, phone FROM profiles WHERE id IN ("+strings.Join(placeholders, ",")+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p                  model.Profile
			name, email, phone sql.NullString
		)
		if err := rows.Scan(&p.ID, &name, &email, &phone); err != nil {
			return nil, err
		}
		p.FullName, p.Email, p.Phone = nullable(name), nullable(email), nullable(phone)
		out[p.ID] = p
	}
	return out, rows.Err()
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
