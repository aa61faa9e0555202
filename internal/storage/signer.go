package storage

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/iliyamo/event-registration/internal/apperr"
)

// ErrBadSignature is returned when a signed URL token is expired, tampered
// with or was signed by another key.
var ErrBadSignature = fmt.Errorf("invalid or expired receipt link: %w", apperr.ErrForbidden)

// receiptClaims is the payload of a signed receipt URL.
type receiptClaims struct {
	Ref string `json:"ref"`
	jwt.RegisteredClaims
}

// URLSigner produces and verifies signed receipt links. The signing key is
// derived from the application secret so that session tokens and receipt
// links can never be swapped for one another.
type URLSigner struct {
	key     []byte
	baseURL string
	now     func() time.Time
}

// NewURLSigner derives the link key from secret with HKDF-SHA256. baseURL
// is the public origin of the API, e.g. https://api.example.com.
func NewURLSigner(secret, baseURL string) (*URLSigner, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("receipt-url-v1")), key); err != nil {
		return nil, fmt.Errorf("derive receipt key: %w", err)
	}
	return &URLSigner{key: key, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}, nil
}

// SetClock replaces the time source; tests use it to move past expiry.
func (s *URLSigner) SetClock(now func() time.Time) { s.now = now }

// Sign returns the signed URL for ref, valid for ttl.
func (s *URLSigner) Sign(ref string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("non-positive ttl: %w", apperr.ErrInvalidInput)
	}
	now := s.now().UTC()
	claims := receiptClaims{
		Ref: ref,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign receipt url: %v: %w", err, apperr.ErrStorageFailure)
	}
	return s.baseURL + "/v1/receipts/" + url.PathEscape(tok), nil
}

// Verify checks a token taken from a signed URL and returns the ref it grants.
func (s *URLSigner) Verify(token string) (string, error) {
	var claims receiptClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid || claims.Ref == "" {
		return "", ErrBadSignature
	}
	return claims.Ref, nil
}
