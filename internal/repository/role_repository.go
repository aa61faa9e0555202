package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-registration/internal/model"
)

// RoleRepo looks up identity roles in the `user_roles` table.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// RoleOf returns the role recorded for the identity. A missing row is not
// an error: it yields model.RoleUser (least privilege).
func (r *RoleRepo) RoleOf(ctx context.Context, identityID string) (model.Role, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, "SELECT role FROM user_roles WHERE id=? LIMIT 1", identityID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return model.ParseRole(role), nil
}
