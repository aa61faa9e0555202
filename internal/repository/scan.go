package repository

import (
	"fmt"
	"time"
)

// dbTime scans DATETIME columns. MySQL with parseTime=true yields
// time.Time; SQLite may hand back text or unix seconds instead.
type dbTime struct{ t time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (d *dbTime) Scan(v any) error {
	switch t := v.(type) {
	case time.Time:
		d.t = t.UTC()
		return nil
	case int64:
		d.t = time.Unix(t, 0).UTC()
		return nil
	case []byte:
		return d.parse(string(t))
	case string:
		return d.parse(t)
	case nil:
		d.t = time.Time{}
		return nil
	}
	return fmt.Errorf("unsupported time value %T", v)
}

func (d *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...any) error }
