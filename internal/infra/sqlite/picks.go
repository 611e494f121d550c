package sqlite

import (
	"time"
)

const dayLayout = "2006-01-02"

// ─── Pick Ledger ────────────────────────────────────────────────────────────

// InsertPick records the calendar day of t (in t's location).
// Returns false if that day was already recorded (idempotent).
func (d *DB) InsertPick(t time.Time) (bool, error) {
	result, err := d.db.Exec(
		`INSERT OR IGNORE INTO picks (day, created_at) VALUES (?, ?)`,
		t.Format(dayLayout), time.Now().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly recorded
}

// ListPicks returns every recorded day as local midnight, ascending.
func (d *DB) ListPicks() ([]time.Time, error) {
	rows, err := d.db.Query(`SELECT day FROM picks ORDER BY day ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation(dayLayout, s, time.Local)
		if err != nil {
			return nil, err
		}
		days = append(days, t)
	}
	return days, rows.Err()
}
