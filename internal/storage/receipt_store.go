// Package storage keeps uploaded payment receipts as immutable blobs on a
// local volume and hands out time-limited signed URLs for reading them.
// Blobs are append-only: nothing in this package overwrites or deletes a
// stored receipt.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-registration/internal/apperr"
)

// ErrTooLarge is returned by Put when the receipt exceeds the size limit.
var ErrTooLarge = fmt.Errorf("receipt too large: %w", apperr.ErrInvalidInput)

// LocalStore stores receipts below Root. A ref is the slash separated path
// relative to Root.
type LocalStore struct {
	Root     string
	MaxBytes int64
	Signer   *URLSigner

	now func() time.Time
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string, maxBytes int64, signer *URLSigner) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	return &LocalStore{Root: root, MaxBytes: maxBytes, Signer: signer, now: time.Now}, nil
}

// Put writes r under a path derived from owner, event, the current time
// and a random disambiguator, so two uploads never collide even for the
// same owner and event.
func (s *LocalStore) Put(ctx context.Context, ownerID string, eventID uint64, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := path.Join(
		SanitizeFilename(ownerID),
		strconv.FormatUint(eventID, 10),
		fmt.Sprintf("%d-%s-%s", s.now().UTC().UnixNano(), uuid.NewString()[:8], SanitizeFilename(filename)),
	)
	full, err := s.pathOf(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("mkdir: %v: %w", err, apperr.ErrStorageFailure)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create blob: %v: %w", err, apperr.ErrStorageFailure)
	}
	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && n > s.MaxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		// An incomplete file was never referenced; drop it.
		_ = os.Remove(full)
		if errors.Is(err, ErrTooLarge) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("write blob: %v: %w", err, apperr.ErrStorageFailure)
	}
	return ref, nil
}

// Exists reports whether ref names a stored blob.
func (s *LocalStore) Exists(ref string) (bool, error) {
	full, err := s.pathOf(ref)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob: %v: %w", err, apperr.ErrStorageFailure)
	}
	return st.Mode().IsRegular(), nil
}

// SignedURL returns a URL that grants read access to ref for ttl. It fails
// with apperr.ErrNotFound when the blob does not exist.
func (s *LocalStore) SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ok, err := s.Exists(ref)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("receipt %q: %w", ref, apperr.ErrNotFound)
	}
	return s.Signer.Sign(ref, ttl)
}

// Open returns a reader for ref. The caller closes it.
func (s *LocalStore) Open(ref string) (io.ReadSeekCloser, error) {
	full, err := s.pathOf(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("receipt %q: %w", ref, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %v: %w", err, apperr.ErrStorageFailure)
	}
	return f, nil
}

// pathOf maps a ref to a file below Root, rejecting anything that would
// escape it.
func (s *LocalStore) pathOf(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if ref == "" || clean == "/" || strings.Contains(ref, "\\") || clean != "/"+ref {
		return "", fmt.Errorf("bad receipt ref %q: %w", ref, apperr.ErrNotFound)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean[1:])), nil
}

// SanitizeFilename keeps the base name of an uploaded file and replaces
// anything outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "receipt"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}

// Resolve verifies a signed URL token and returns the ref it grants.
func (s *LocalStore) Resolve(token string) (string, error) {
	return s.Signer.Verify(token)
}
