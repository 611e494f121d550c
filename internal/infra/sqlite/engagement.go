package sqlite

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// Engagement keys, one per EngagementState field.
const (
	keyOnboardingDate            = "onboardingDate"
	keyPromoOfferStartDate       = "promoOfferStartDate"
	keyLastPickedDate            = "lastPickedDate"
	keyLastSunNotificationDate   = "lastSunNotificationDate"
	keyLastSleepNotificationDate = "lastSleepNotificationDate"
	keyLastStreakLossShownDate   = "lastStreakLossShownDate"
	keyLaunchCount               = "launchCount"
	keyNextAlertLaunchCount      = "nextAlertLaunchCount"
	keyGaveReview                = "gaveReview"
	keySunGoal                   = "sunGoal"
	keyEntitlement               = "entitlement"
	keyTimeInSun                 = "timeInSun"
)

// ─── Engagement State ───────────────────────────────────────────────────────

// LoadState reads the engagement record. Keys that were never written keep
// the value from defaults.
func (d *DB) LoadState(defaults domain.EngagementState) (domain.EngagementState, error) {
	st := defaults

	rows, err := d.db.Query(`SELECT key, value FROM engagement`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return st, err
		}
		if err := applyKey(&st, key, value); err != nil {
			return defaults, fmt.Errorf("%w: key %s: %v", domain.ErrStateCorrupted, key, err)
		}
	}
	return st, rows.Err()
}

// SaveState writes the whole engagement record in one transaction.
// Unset timestamps are removed so they read back as unset.
func (d *DB) SaveState(st domain.EngagementState) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.Prepare(
		`INSERT INTO engagement (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
	)
	if err != nil {
		return err
	}
	defer upsert.Close()

	del, err := tx.Prepare(`DELETE FROM engagement WHERE key = ?`)
	if err != nil {
		return err
	}
	defer del.Close()

	for key, value := range encodeState(st) {
		if value == "" {
			_, err = del.Exec(key)
		} else {
			_, err = upsert.Exec(key, value)
		}
		if err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func encodeState(st domain.EngagementState) map[string]string {
	return map[string]string{
		keyOnboardingDate:            formatTime(st.OnboardingDate),
		keyPromoOfferStartDate:       formatTime(st.PromoOfferStartDate),
		keyLastPickedDate:            formatTime(st.LastPickedDate),
		keyLastSunNotificationDate:   formatTime(st.LastSunNotificationDate),
		keyLastSleepNotificationDate: formatTime(st.LastSleepNotificationDate),
		keyLastStreakLossShownDate:   formatTime(st.LastStreakLossShownDate),
		keyLaunchCount:               strconv.Itoa(st.LaunchCount),
		keyNextAlertLaunchCount:      strconv.Itoa(st.NextAlertLaunchCount),
		keyGaveReview:                boolStr(st.GaveReview),
		keySunGoal:                   formatSeconds(st.SunGoal),
		keyEntitlement:               string(st.Entitlement),
		keyTimeInSun:                 formatSeconds(st.TimeInSun),
	}
}

func applyKey(st *domain.EngagementState, key, value string) error {
	var err error
	switch key {
	case keyOnboardingDate:
		st.OnboardingDate, err = parseTime(value)
	case keyPromoOfferStartDate:
		st.PromoOfferStartDate, err = parseTime(value)
	case keyLastPickedDate:
		st.LastPickedDate, err = parseTime(value)
	case keyLastSunNotificationDate:
		st.LastSunNotificationDate, err = parseTime(value)
	case keyLastSleepNotificationDate:
		st.LastSleepNotificationDate, err = parseTime(value)
	case keyLastStreakLossShownDate:
		st.LastStreakLossShownDate, err = parseTime(value)
	case keyLaunchCount:
		st.LaunchCount, err = strconv.Atoi(value)
	case keyNextAlertLaunchCount:
		st.NextAlertLaunchCount, err = strconv.Atoi(value)
	case keyGaveReview:
		st.GaveReview = value == "1"
	case keySunGoal:
		st.SunGoal, err = parseSeconds(value)
	case keyTimeInSun:
		st.TimeInSun, err = parseSeconds(value)
	case keyEntitlement:
		e := domain.Entitlement(value)
		if !e.IsValid() {
			return fmt.Errorf("unknown entitlement %q", value)
		}
		st.Entitlement = e
	}
	// Unknown keys are left alone for forward compatibility.
	return err
}

// Timestamps are stored as ISO 8601 so companion apps can read them directly.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Local(), nil
}

// Durations are stored as fractional seconds.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
