// Package testutil provides test utilities for database setup.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
)

// Schema mirrors migrations/mysql in SQLite syntax. The CHECK constraints
// restate the lifecycle invariants so that a bug in the repository fails
// loudly in tests.
const Schema = `
CREATE TABLE events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	location TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	price_cents INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE profiles (
	id TEXT PRIMARY KEY,
	full_name TEXT,
	email TEXT,
	phone TEXT
);

CREATE TABLE user_roles (
	id TEXT PRIMARY KEY,
	role TEXT NOT NULL CHECK (role IN ('user', 'admin'))
);

CREATE TABLE registrations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	event_id INTEGER NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('selected', 'payment_pending', 'approved', 'rejected')),
	receipt_ref TEXT,
	notes TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (user_id, event_id),
	CHECK ((receipt_ref IS NULL) = (status = 'selected'))
);
`

// NewTestDB creates a file-backed SQLite database in t.TempDir with the
// full schema. A single connection serializes statements the way a row
// lock would. The database is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(Schema)
	require.NoError(t, err)
	return db
}

// InsertEvent adds an event and returns its id.
func InsertEvent(t *testing.T, db *sql.DB, name string) uint64 {
	t.Helper()
	now := time.Now().UTC()
	start := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	res, err := db.Exec(
		`INSERT INTO events (name, location, start_date, end_date, price_cents, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, "Hall A", start, start.Add(48*time.Hour), 2500, now, now,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

// InsertProfile adds a profile.
func InsertProfile(t *testing.T, db *sql.DB, id, fullName, email string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO profiles (id, full_name, email, phone) VALUES (?, ?, ?, NULL)`, id, fullName, email)
	require.NoError(t, err)
}

// GrantRole stores a role row for id.
func GrantRole(t *testing.T, db *sql.DB, id, role string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO user_roles (id, role) VALUES (?, ?)`, id, role)
	require.NoError(t, err)
}
