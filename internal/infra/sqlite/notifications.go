package sqlite

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification queues a notification for delivery.
func (d *DB) InsertNotification(n domain.Notification) error {
	_, err := d.db.Exec(
		`INSERT INTO notifications (id, type, title, body, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID.String(), string(n.Type), n.Title, n.Body, n.CreatedAt.Unix(), n.Shown,
	)
	return err
}

// GetNotification retrieves a notification by ID. Returns nil if not found.
func (d *DB) GetNotification(id string) (*domain.Notification, error) {
	row := d.db.QueryRow(
		`SELECT id, type, title, body, created_at, shown FROM notifications WHERE id = ?`, id,
	)
	n, err := scanNotif(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// ListPendingNotifications returns unshown notifications, newest first.
func (d *DB) ListPendingNotifications(limit int) ([]domain.Notification, error) {
	rows, err := d.db.Query(
		`SELECT id, type, title, body, created_at, shown
		 FROM notifications WHERE shown = 0 ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []domain.Notification
	for rows.Next() {
		n, err := scanNotif(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, *n)
	}
	return notifs, rows.Err()
}

// MarkNotificationShown marks a notification as shown.
func (d *DB) MarkNotificationShown(id string) error {
	result, err := d.db.Exec(`UPDATE notifications SET shown = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotif(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	var id string
	var createdAt int64
	err := s.Scan(&id, &n.Type, &n.Title, &n.Body, &createdAt, &n.Shown)
	if err != nil {
		return nil, err
	}
	n.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	n.CreatedAt = time.Unix(createdAt, 0)
	return &n, nil
}
