package utils // package utils provides helpers shared by handlers, tests and tools

import (
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// SessionToken is a signed HS256 session token along with its expiry.
type SessionToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewSessionToken signs a session token for identityID in the format the
// identity provider issues: sub is the identity id, exp and iat are set.
// The service only verifies these tokens; this helper exists for tests
// and the devtoken command.
func NewSessionToken(secret, identityID string, ttl time.Duration) (SessionToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.RegisteredClaims{
        Subject:   identityID,
        IssuedAt:  jwt.NewNumericDate(now),
        ExpiresAt: jwt.NewNumericDate(exp),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return SessionToken{}, err
    }
    return SessionToken{Token: signed, Exp: exp}, nil
}
