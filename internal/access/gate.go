// Package access resolves the calling identity and its role and applies
// the single authorization policy used by every registration operation:
// a role requirement plus an optional row-ownership check.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/model"
)

// Principal is the resolved caller of a request.
type Principal struct {
	ID   string     `json:"id"`
	Role model.Role `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

// Requirement is the role an operation declares.
type Requirement int

const (
	RequireAny Requirement = iota
	RequireUser
	RequireAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireUser:
		return "user"
	case RequireAdmin:
		return "admin"
	}
	return "any"
}

// RoleLookup maps an identity to its role.
type RoleLookup interface {
	RoleOf(ctx context.Context, identityID string) (model.Role, error)
}

// Gate verifies session tokens issued by the identity provider and looks
// the role up on every call. Nothing is cached between requests because
// both the session and the role may change at any time.
type Gate struct {
	secret []byte
	roles  RoleLookup
	opts   []jwt.ParserOption
}

// NewGate builds a Gate for HS256 tokens signed with secret.
func NewGate(secret string, roles RoleLookup, opts ...jwt.ParserOption) *Gate {
	opts = append([]jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}, opts...)
	return &Gate{secret: []byte(secret), roles: roles, opts: opts}
}

// Resolve turns a raw bearer token into a Principal. Any problem with the
// token itself is reported as apperr.ErrUnauthenticated; a failing role
// lookup is returned as-is.
func (g *Gate) Resolve(ctx context.Context, raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, fmt.Errorf("missing session: %w", apperr.ErrUnauthenticated)
	}
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, g.opts...)
	if err != nil || !tok.Valid {
		return Principal{}, fmt.Errorf("invalid session: %w", apperr.ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("session without subject: %w", apperr.ErrUnauthenticated)
	}
	role, err := g.roles.RoleOf(ctx, claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("role lookup: %w", err)
	}
	return Principal{ID: claims.Subject, Role: role}, nil
}

// Authorize checks p against the requirement and, when owner is non-nil,
// against the record owner. Admins satisfy every role requirement but the
// ownership check applies to them too.
func Authorize(p Principal, req Requirement, owner *string) error {
	if p.ID == "" {
		return apperr.ErrUnauthenticated
	}
	switch req {
	case RequireAdmin:
		if !p.IsAdmin() {
			return fmt.Errorf("%s requires admin: %w", p.ID, apperr.ErrForbidden)
		}
	case RequireUser:
		if p.Role != model.RoleUser && !p.IsAdmin() {
			return fmt.Errorf("%s requires user: %w", p.ID, apperr.ErrForbidden)
		}
	}
	if owner != nil && *owner != p.ID {
		return fmt.Errorf("%s does not own record: %w", p.ID, apperr.ErrForbidden)
	}
	return nil
}

// IsDenied reports whether err is an authentication or authorization failure.
func IsDenied(err error) bool {
	return errors.Is(err, apperr.ErrUnauthenticated) || errors.Is(err, apperr.ErrForbidden)
}
