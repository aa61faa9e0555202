// Package repository defines error types that are reused across multiple
// repositories. The values are the shared failure kinds from apperr so
// that higher layers such as handlers can distinguish between the
// different failure scenarios with errors.Is regardless of which layer
// produced them.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-registration/internal/apperr"
)

// ErrForbidden is returned when the caller attempts an operation on a
// registration owned by someone else. Handlers translate it into 403.
var ErrForbidden = apperr.ErrForbidden

// ErrConflict is returned when a registration already exists for the
// (user, event) pair. Handlers translate it into 409.
var ErrConflict = apperr.ErrConflict

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = apperr.ErrNotFound

// ErrInvalidTransition is returned when a conditional write finds the row
// in a different status than the caller observed.
var ErrInvalidTransition = apperr.ErrInvalidTransition

// isDuplicateKey reports whether err is a unique-key violation. MySQL
// reports error 1062; SQLite (used by the test suite) reports a
// "UNIQUE constraint failed" message.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
