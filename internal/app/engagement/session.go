package engagement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sunflower-app/sunflower/internal/app/calendar"
	"github.com/sunflower-app/sunflower/internal/domain"
	"github.com/sunflower-app/sunflower/internal/infra/companion"
	"github.com/sunflower-app/sunflower/internal/infra/metrics"
)

// Deps are the collaborators a Session drives. Purchases and Companion may
// be nil: refreshes then report stale and relays are skipped.
type Deps struct {
	Store     domain.StateStore
	Ledger    domain.PickLedger
	Outbox    domain.NotificationOutbox
	Purchases domain.PurchaseSource
	Companion domain.CompanionChannel
	Policy    domain.Policy
	Logger    *zap.Logger
}

// Session is the single owner of the persisted engagement state.
// Every operation loads the state, applies one rule and saves the result
// under one lock, so foreground events and background sample callbacks
// never interleave. Network calls (purchase fetch, companion relay) run
// outside the lock.
type Session struct {
	mu        sync.Mutex
	store     domain.StateStore
	ledger    domain.PickLedger
	outbox    domain.NotificationOutbox
	purchases domain.PurchaseSource
	companion domain.CompanionChannel
	policy    domain.Policy
	log       *zap.Logger
}

// NewSession creates a session.
func NewSession(d Deps) *Session {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		store:     d.Store,
		ledger:    d.Ledger,
		outbox:    d.Outbox,
		purchases: d.Purchases,
		companion: d.Companion,
		policy:    d.Policy,
		log:       log.Named("engagement"),
	}
}

// Policy returns the thresholds the session applies.
func (s *Session) Policy() domain.Policy { return s.policy }

// ─── Foreground ─────────────────────────────────────────────────────────────

// Launch registers a cold launch, refreshes the entitlement from the
// purchase backend, then decides which modal to present. A failed fetch
// keeps the persisted tier.
func (s *Session) Launch(ctx context.Context, now time.Time) (domain.Decision, error) {
	facts, fetchErr := s.fetchFacts(ctx)
	return s.decide(ctx, now, true, &facts, fetchErr)
}

// BecameActive decides which modal to present when the app returns to the
// foreground. The launch count is unchanged and purchases are not fetched.
func (s *Session) BecameActive(ctx context.Context, now time.Time) (domain.Decision, error) {
	return s.decide(ctx, now, false, nil, nil)
}

// decide runs one foreground evaluation. facts is nil when no fetch was
// attempted. Without fresh facts an elapsed free trial is still expired
// from the persisted onboarding date.
func (s *Session) decide(ctx context.Context, now time.Time, launch bool, facts *domain.PurchaseFacts, fetchErr error) (domain.Decision, error) {
	fetched := facts != nil && fetchErr == nil

	s.mu.Lock()
	st, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return domain.Decision{}, err
	}
	prev := st.Entitlement
	if launch {
		st = RegisterLaunch(st)
	}
	if fetched {
		st.Entitlement = ResolveEntitlement(*facts, st.OnboardingDate, now, s.policy)
	} else {
		st = ExpireTrial(st, now, s.policy)
	}
	picks, err := s.ledger.ListPicks()
	if err != nil {
		s.mu.Unlock()
		return domain.Decision{}, fmt.Errorf("list picks: %w", err)
	}
	streak := CalculateStreak(picks, now)
	d := Decide(st, streak, now, s.policy)
	if err := s.store.SaveState(d.State); err != nil {
		s.mu.Unlock()
		return domain.Decision{}, fmt.Errorf("save state: %w", err)
	}
	s.mu.Unlock()

	if launch {
		metrics.Launches.Inc()
	}
	if facts != nil {
		s.noteRefresh(domain.EntitlementUpdate{
			Entitlement: d.State.Entitlement,
			Previous:    prev,
			Stale:       !fetched,
		}, fetchErr)
	} else if d.State.Entitlement != prev {
		metrics.Entitled.Set(metrics.BoolGauge(d.State.Entitlement.IsEntitled()))
		s.log.Info("free trial expired", zap.Time("onboarding", d.State.OnboardingDate))
	}
	metrics.ModalsPresented.WithLabelValues(string(d.Modal)).Inc()
	if d.ForcedPaywall {
		metrics.ForcedPaywalls.Inc()
	}
	metrics.StreakCurrent.Set(float64(streak.TodayStreak))
	s.log.Info("foreground decision",
		zap.String("modal", string(d.Modal)),
		zap.Bool("first_run", d.FirstRun),
		zap.Bool("forced_paywall", d.ForcedPaywall),
		zap.String("entitlement", string(d.State.Entitlement)),
		zap.Int("launch_count", d.State.LaunchCount),
		zap.Int("streak", streak.TodayStreak),
	)

	if fetched || d.State.Entitlement != prev {
		s.relay(ctx, companion.IsPro(d.State.Entitlement.IsEntitled()))
	}
	if d.State.TimeInSun > 0 {
		s.relay(ctx, companion.TimeInSun(d.State.TimeInSun))
	}
	return d, nil
}

// ResolveReview records the user's answer to the review prompt.
func (s *Session) ResolveReview(accepted bool) (domain.EngagementState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return st, err
	}
	st = ResolveReview(st, accepted, s.policy)
	if err := s.store.SaveState(st); err != nil {
		return st, fmt.Errorf("save state: %w", err)
	}
	s.log.Info("review resolved",
		zap.Bool("accepted", accepted),
		zap.Int("next_alert_launch_count", st.NextAlertLaunchCount),
	)
	return st, nil
}

// ─── Picks & Settings ───────────────────────────────────────────────────────

// RecordPick records today's pick. Picking twice on one day reports
// AlreadyPicked and changes nothing.
func (s *Session) RecordPick(ctx context.Context, now time.Time) (domain.PickOutcome, error) {
	day := calendar.StartOfDay(now)
	out := domain.PickOutcome{Day: day}

	s.mu.Lock()
	inserted, err := s.ledger.InsertPick(day)
	if err != nil {
		s.mu.Unlock()
		return out, fmt.Errorf("insert pick: %w", err)
	}
	if inserted {
		st, err := s.load()
		if err != nil {
			s.mu.Unlock()
			return out, err
		}
		st.LastPickedDate = now
		if err := s.store.SaveState(st); err != nil {
			s.mu.Unlock()
			return out, fmt.Errorf("save state: %w", err)
		}
	}
	picks, err := s.ledger.ListPicks()
	s.mu.Unlock()
	if err != nil {
		return out, fmt.Errorf("list picks: %w", err)
	}

	out.AlreadyPicked = !inserted
	out.Streak = CalculateStreak(picks, now)
	out.Increased = out.Streak.TodayStreak > out.Streak.YesterdayStreak
	metrics.StreakCurrent.Set(float64(out.Streak.TodayStreak))
	if !inserted {
		return out, nil
	}

	metrics.PicksRecorded.Inc()
	s.log.Info("pick recorded",
		zap.Time("day", day),
		zap.Int("streak", out.Streak.TodayStreak),
		zap.Bool("increased", out.Increased),
	)
	s.relay(ctx, companion.LastPicked(now))
	return out, nil
}

// SetSunGoal changes the daily exposure goal.
func (s *Session) SetSunGoal(ctx context.Context, goal time.Duration) error {
	if goal <= 0 {
		return domain.ErrInvalidSunGoal
	}

	s.mu.Lock()
	st, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	st.SunGoal = goal
	err = s.store.SaveState(st)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	s.log.Info("sun goal set", zap.Duration("goal", goal))
	s.relay(ctx, companion.SunGoal(goal))
	return nil
}

// ─── Entitlement ────────────────────────────────────────────────────────────

// RefreshEntitlement fetches purchase facts and recomputes the tier.
// A failed fetch keeps the persisted tier and reports Stale; it is not an
// error. The entitled flag is relayed to the companion after every
// successful recompute.
func (s *Session) RefreshEntitlement(ctx context.Context, now time.Time) (domain.EntitlementUpdate, error) {
	facts, fetchErr := s.fetchFacts(ctx)

	s.mu.Lock()
	st, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return domain.EntitlementUpdate{}, err
	}
	upd := domain.EntitlementUpdate{Entitlement: st.Entitlement, Previous: st.Entitlement}

	if fetchErr != nil {
		s.mu.Unlock()
		upd.Stale = true
		s.noteRefresh(upd, fetchErr)
		return upd, nil
	}

	st.Entitlement = ResolveEntitlement(facts, st.OnboardingDate, now, s.policy)
	upd.Entitlement = st.Entitlement
	err = s.store.SaveState(st)
	s.mu.Unlock()
	if err != nil {
		return upd, fmt.Errorf("save state: %w", err)
	}

	s.noteRefresh(upd, nil)
	s.relay(ctx, companion.IsPro(upd.Entitlement.IsEntitled()))
	return upd, nil
}

func (s *Session) fetchFacts(ctx context.Context) (domain.PurchaseFacts, error) {
	if s.purchases == nil {
		return domain.PurchaseFacts{}, domain.ErrPurchasesUnavailable
	}
	return s.purchases.CustomerInfo(ctx)
}

// noteRefresh records the outcome of an entitlement fetch.
func (s *Session) noteRefresh(upd domain.EntitlementUpdate, fetchErr error) {
	if upd.Stale {
		metrics.EntitlementRefreshes.WithLabelValues("stale").Inc()
		s.log.Warn("purchase facts unavailable, keeping entitlement",
			zap.String("entitlement", string(upd.Entitlement)),
			zap.Error(fetchErr),
		)
		return
	}
	metrics.EntitlementRefreshes.WithLabelValues("ok").Inc()
	metrics.Entitled.Set(metrics.BoolGauge(upd.Entitlement.IsEntitled()))
	if upd.Entitlement != upd.Previous {
		s.log.Info("entitlement changed",
			zap.String("from", string(upd.Previous)),
			zap.String("to", string(upd.Entitlement)),
		)
	}
}

// ─── Health Samples ─────────────────────────────────────────────────────────

// HandleSunSample stores today's exposure and queues the sun-ready
// notification when it becomes eligible.
func (s *Session) HandleSunSample(ctx context.Context, timeInSun time.Duration, now time.Time) (domain.Eligibility, error) {
	if timeInSun < 0 {
		return domain.Eligibility{}, domain.ErrInvalidExposure
	}

	s.mu.Lock()
	st, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return domain.Eligibility{}, err
	}
	st.TimeInSun = timeInSun
	el := SunReady(timeInSun, st, now, s.policy)
	if el.Fire {
		st.LastSunNotificationDate = el.Stamp
	}
	err = s.commit(st, el, domain.NotifySunReady, now)
	s.mu.Unlock()
	if err != nil {
		return domain.Eligibility{}, err
	}

	metrics.ExposureSeconds.Set(timeInSun.Seconds())
	s.relay(ctx, companion.TimeInSun(timeInSun))
	return el, nil
}

// HandleSleepSample queues the good-morning notification when the last
// sleep sample ended after the morning cutoff. A zero end means no data.
func (s *Session) HandleSleepSample(ctx context.Context, end time.Time, now time.Time) (domain.Eligibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return domain.Eligibility{}, err
	}
	el := MorningSleep(end, st, now, s.policy)
	if !el.Fire {
		return el, nil
	}
	st.LastSleepNotificationDate = el.Stamp
	if err := s.commit(st, el, domain.NotifyMorningSleep, now); err != nil {
		return domain.Eligibility{}, err
	}
	return el, nil
}

// commit queues a notification when el fired, then saves st.
// Caller holds s.mu.
func (s *Session) commit(st domain.EngagementState, el domain.Eligibility, typ domain.NotificationType, now time.Time) error {
	if el.Fire {
		n := domain.NewNotification(typ, now)
		if err := s.outbox.InsertNotification(n); err != nil {
			return fmt.Errorf("queue notification: %w", err)
		}
		metrics.NotificationsQueued.WithLabelValues(string(typ)).Inc()
		s.log.Info("notification queued", zap.String("type", string(typ)), zap.String("id", n.ID.String()))
	}
	if err := s.store.SaveState(st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ─── Notifications ──────────────────────────────────────────────────────────

// PendingNotifications lists queued notifications not yet shown.
func (s *Session) PendingNotifications(limit int) ([]domain.Notification, error) {
	return s.outbox.ListPendingNotifications(limit)
}

// MarkNotificationShown marks a queued notification as delivered.
func (s *Session) MarkNotificationShown(id string) error {
	return s.outbox.MarkNotificationShown(id)
}

// NotificationOpened handles the user tapping a notification. Opening a
// sun notification restarts the sun cooldown from now.
func (s *Session) NotificationOpened(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.outbox.GetNotification(id)
	if err != nil {
		return err
	}
	if n == nil {
		return domain.ErrNotificationNotFound
	}
	if !n.Shown {
		if err := s.outbox.MarkNotificationShown(id); err != nil {
			return err
		}
	}
	if n.Type != domain.NotifySunReady {
		return nil
	}

	st, err := s.load()
	if err != nil {
		return err
	}
	st.LastSunNotificationDate = now
	if err := s.store.SaveState(st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Streak returns the streak as of now.
func (s *Session) Streak(now time.Time) (domain.StreakResult, error) {
	picks, err := s.ledger.ListPicks()
	if err != nil {
		return domain.StreakResult{}, fmt.Errorf("list picks: %w", err)
	}
	return CalculateStreak(picks, now), nil
}

// Growth classifies exposure against the current goal.
func (s *Session) Growth(exposure time.Duration) (domain.Growth, error) {
	s.mu.Lock()
	st, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return domain.Growth{}, err
	}
	return GrowthFor(exposure, st.SunGoal), nil
}

// Snapshot returns a consistent read-only view of the engagement state.
func (s *Session) Snapshot(now time.Time) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return domain.Snapshot{}, err
	}
	picks, err := s.ledger.ListPicks()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("list picks: %w", err)
	}
	return domain.Snapshot{
		State:    st,
		Streak:   CalculateStreak(picks, now),
		Growth:   GrowthFor(st.TimeInSun, st.SunGoal),
		Picks:    len(picks),
		TakenAt:  now,
		Entitled: st.Entitlement.IsEntitled(),
	}, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Session) load() (domain.EngagementState, error) {
	st, err := s.store.LoadState(domain.DefaultEngagementState(s.policy))
	if err != nil {
		return st, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// relay sends msg to the companion. Failures are logged and counted only.
func (s *Session) relay(ctx context.Context, msg domain.CompanionMessage) {
	if s.companion == nil {
		return
	}
	if err := s.companion.Send(ctx, msg); err != nil {
		metrics.CompanionSendFailures.Inc()
		s.log.Warn("companion relay failed", zap.Error(err))
	}
}
