package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Settings errors
	ErrInvalidSunGoal  = errors.New("sun goal must be a positive duration")
	ErrInvalidExposure = errors.New("sun exposure must not be negative")

	// Collaborator errors (fail-soft: logged, never fatal to a decision)
	ErrPurchasesUnavailable = errors.New("purchase backend is unreachable")
	ErrCompanionUnavailable = errors.New("companion relay is unreachable")

	// Storage errors
	ErrStateCorrupted       = errors.New("persisted engagement state is corrupted")
	ErrNotificationNotFound = errors.New("notification not found")
)
