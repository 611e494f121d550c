package domain

import (
	"context"
	"time"
)

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.

// StateStore persists EngagementState as a flat key-value record.
type StateStore interface {
	LoadState(defaults EngagementState) (EngagementState, error)
	SaveState(st EngagementState) error
}

// PickLedger is the append-only, day-unique record of picks.
type PickLedger interface {
	// InsertPick records day. Returns false if that calendar day was
	// already present (idempotent).
	InsertPick(day time.Time) (bool, error)

	// ListPicks returns all pick days in ascending order.
	ListPicks() ([]time.Time, error)
}

// NotificationOutbox records notifications for external delivery.
type NotificationOutbox interface {
	InsertNotification(n Notification) error
	ListPendingNotifications(limit int) ([]Notification, error)
	MarkNotificationShown(id string) error
	GetNotification(id string) (*Notification, error)
}

// PurchaseSource fetches purchase facts from the purchase backend.
type PurchaseSource interface {
	CustomerInfo(ctx context.Context) (PurchaseFacts, error)
}

// CompanionMessage is a latest-value update for the companion device.
// Only the non-nil fields are sent.
type CompanionMessage struct {
	IsPro             *bool    `json:"isPro,omitempty"`
	SunGoal           *float64 `json:"sunGoal,omitempty"`   // seconds
	TimeInSun         *float64 `json:"timeInSun,omitempty"` // seconds
	LastSunflowerDate string   `json:"lastSunflowerDate,omitempty"`
}

// CompanionChannel relays state to the companion device.
type CompanionChannel interface {
	Send(ctx context.Context, msg CompanionMessage) error
}
