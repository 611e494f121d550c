package engagement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sunflower-app/sunflower/internal/app/engagement"
	"github.com/sunflower-app/sunflower/internal/domain"
	"github.com/sunflower-app/sunflower/internal/infra/sqlite"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakePurchases struct {
	facts domain.PurchaseFacts
	err   error
}

func (f *fakePurchases) CustomerInfo(ctx context.Context) (domain.PurchaseFacts, error) {
	return f.facts, f.err
}

type fakeCompanion struct {
	mu   sync.Mutex
	sent []domain.CompanionMessage
	err  error
}

func (f *fakeCompanion) Send(ctx context.Context, msg domain.CompanionMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeCompanion) last(t *testing.T) domain.CompanionMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing relayed to the companion")
	}
	return f.sent[len(f.sent)-1]
}

type fixture struct {
	db        *sqlite.DB
	purchases *fakePurchases
	companion *fakeCompanion
	session   *engagement.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:        testDB(t),
		purchases: &fakePurchases{},
		companion: &fakeCompanion{},
	}
	f.session = engagement.NewSession(engagement.Deps{
		Store:     f.db,
		Ledger:    f.db,
		Outbox:    f.db,
		Purchases: f.purchases,
		Companion: f.companion,
		Policy:    domain.DefaultPolicy(),
		Logger:    zap.NewNop(),
	})
	return f
}

func (f *fixture) state(t *testing.T) domain.EngagementState {
	t.Helper()
	st, err := f.db.LoadState(domain.DefaultEngagementState(domain.DefaultPolicy()))
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	return st
}

var ctx = context.Background()

// ═══════════════════════════════════════════════════════════════════════════
// Launch & Foreground
// ═══════════════════════════════════════════════════════════════════════════

func TestSession_FirstLaunch(t *testing.T) {
	f := newFixture(t)
	now := day(2025, 5, 1)

	d, err := f.session.Launch(ctx, now)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if !d.FirstRun || d.Modal != domain.ModalPaywall {
		t.Errorf("decision = %+v, want first-run paywall", d)
	}

	st := f.state(t)
	if st.LaunchCount != 1 {
		t.Errorf("LaunchCount = %d, want 1", st.LaunchCount)
	}
	if !st.OnboardingDate.Equal(now) {
		t.Errorf("OnboardingDate = %v, want %v", st.OnboardingDate, now)
	}
}

func TestSession_ReviewAfterSecondLaunch(t *testing.T) {
	f := newFixture(t)
	now := day(2025, 5, 1)

	if _, err := f.session.Launch(ctx, now); err != nil {
		t.Fatal(err)
	}
	d, err := f.session.Launch(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if d.Modal != domain.ModalReview {
		t.Fatalf("Modal = %q, want review", d.Modal)
	}

	st, err := f.session.ResolveReview(false)
	if err != nil {
		t.Fatal(err)
	}
	if st.LaunchCount != 0 || st.NextAlertLaunchCount != 10 {
		t.Errorf("after decline = %+v", st)
	}

	d, err = f.session.BecameActive(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if d.Modal != domain.ModalNone {
		t.Errorf("Modal after decline = %q, want none", d.Modal)
	}
	if f.state(t).LaunchCount != 0 {
		t.Error("BecameActive must not count a launch")
	}
}

func TestSession_ForcedPaywallPersistsPromoStart(t *testing.T) {
	f := newFixture(t)
	onboarding := day(2025, 5, 1)
	if _, err := f.session.Launch(ctx, onboarding); err != nil {
		t.Fatal(err)
	}

	// No purchases and the trial is over.
	later := day(2025, 5, 6)
	if _, err := f.session.RefreshEntitlement(ctx, later); err != nil {
		t.Fatal(err)
	}
	d, err := f.session.BecameActive(ctx, later)
	if err != nil {
		t.Fatal(err)
	}
	if !d.ForcedPaywall || !d.PromoOfferActive {
		t.Fatalf("decision = %+v, want forced paywall with live promo", d)
	}

	d2, err := f.session.BecameActive(ctx, later.Add(25*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !d2.State.PromoOfferStartDate.Equal(later) {
		t.Errorf("promo start = %v, want %v", d2.State.PromoOfferStartDate, later)
	}
	if d2.PromoOfferActive {
		t.Error("promo should expire after 24h")
	}
}

func TestSession_TrialExpiresAcrossLaunches(t *testing.T) {
	f := newFixture(t)
	onboarding := day(2025, 5, 1)

	// Startup refresh before the first launch, as the daemon does.
	if _, err := f.session.RefreshEntitlement(ctx, onboarding); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.Launch(ctx, onboarding); err != nil {
		t.Fatal(err)
	}

	d, err := f.session.Launch(ctx, day(2025, 5, 6))
	if err != nil {
		t.Fatal(err)
	}
	if !d.ForcedPaywall || d.State.Entitlement != domain.EntitlementNone {
		t.Fatalf("5 days in with no purchases: modal=%s forced=%v entitlement=%s",
			d.Modal, d.ForcedPaywall, d.State.Entitlement)
	}
	if msg := f.companion.last(t); msg.IsPro == nil || *msg.IsPro {
		t.Errorf("relayed %+v, want isPro false", msg)
	}
}

func TestSession_TrialExpiresWhileBackendDown(t *testing.T) {
	f := newFixture(t)
	f.purchases.err = domain.ErrPurchasesUnavailable
	if _, err := f.session.Launch(ctx, day(2025, 5, 1)); err != nil {
		t.Fatal(err)
	}

	d, err := f.session.BecameActive(ctx, day(2025, 5, 6))
	if err != nil {
		t.Fatal(err)
	}
	if !d.ForcedPaywall {
		t.Errorf("decision = %+v, want forced paywall", d)
	}
	if f.state(t).Entitlement != domain.EntitlementNone {
		t.Error("expired trial not persisted")
	}
}

func TestSession_LaunchResolvesPurchase(t *testing.T) {
	f := newFixture(t)
	if _, err := f.session.Launch(ctx, day(2025, 5, 1)); err != nil {
		t.Fatal(err)
	}

	f.purchases.facts = domain.PurchaseFacts{ActiveSubscriptions: []string{"monthly"}}
	d, err := f.session.Launch(ctx, day(2025, 5, 9))
	if err != nil {
		t.Fatal(err)
	}
	if d.ForcedPaywall || d.State.Entitlement != domain.EntitlementSubscription {
		t.Errorf("decision = %+v, want subscription without paywall", d)
	}
}

func TestSession_LaunchFetchFailureKeepsPaidTier(t *testing.T) {
	f := newFixture(t)
	f.purchases.facts = domain.PurchaseFacts{NonSubscriptions: []string{"lifetime"}}
	if _, err := f.session.Launch(ctx, day(2025, 5, 1)); err != nil {
		t.Fatal(err)
	}

	f.purchases.err = domain.ErrPurchasesUnavailable
	d, err := f.session.Launch(ctx, day(2025, 5, 20))
	if err != nil {
		t.Fatal(err)
	}
	if d.ForcedPaywall || d.State.Entitlement != domain.EntitlementAllTime {
		t.Errorf("decision = %+v, want allTime kept", d)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Picks
// ═══════════════════════════════════════════════════════════════════════════

func TestSession_RecordPick(t *testing.T) {
	f := newFixture(t)
	now := day(2025, 5, 2)

	out, err := f.session.RecordPick(ctx, now)
	if err != nil {
		t.Fatalf("RecordPick: %v", err)
	}
	if out.AlreadyPicked || out.Streak.TodayStreak != 1 || !out.Increased {
		t.Errorf("outcome = %+v", out)
	}
	if !out.Day.Equal(midnight(2025, 5, 2)) {
		t.Errorf("Day = %v", out.Day)
	}
	if !f.state(t).LastPickedDate.Equal(now) {
		t.Error("LastPickedDate not persisted")
	}
	if f.companion.last(t).LastSunflowerDate == "" {
		t.Error("pick should relay lastSunflowerDate")
	}
}

func TestSession_RecordPickIdempotent(t *testing.T) {
	f := newFixture(t)
	first := day(2025, 5, 2)

	if _, err := f.session.RecordPick(ctx, first); err != nil {
		t.Fatal(err)
	}
	out, err := f.session.RecordPick(ctx, first.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !out.AlreadyPicked {
		t.Error("second pick on the same day should report AlreadyPicked")
	}
	if out.Streak.TodayStreak != 1 {
		t.Errorf("TodayStreak = %d, want 1", out.Streak.TodayStreak)
	}
	if !f.state(t).LastPickedDate.Equal(first) {
		t.Error("second pick must not move LastPickedDate")
	}
}

func TestSession_StreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	for d := 1; d <= 3; d++ {
		if _, err := f.session.RecordPick(ctx, day(2025, 5, d)); err != nil {
			t.Fatal(err)
		}
	}

	s, err := f.session.Streak(day(2025, 5, 3))
	if err != nil {
		t.Fatal(err)
	}
	if s.TodayStreak != 3 || s.YesterdayStreak != 2 {
		t.Errorf("streak = %+v, want (3, 2)", s)
	}

	s, err = f.session.Streak(day(2025, 5, 4))
	if err != nil {
		t.Fatal(err)
	}
	if s.TodayStreak != 3 || !s.Carried {
		t.Errorf("next day streak = %+v, want carried 3", s)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal & Growth
// ═══════════════════════════════════════════════════════════════════════════

func TestSession_SetSunGoal(t *testing.T) {
	f := newFixture(t)

	if err := f.session.SetSunGoal(ctx, 0); !errors.Is(err, domain.ErrInvalidSunGoal) {
		t.Errorf("zero goal err = %v", err)
	}
	if err := f.session.SetSunGoal(ctx, time.Hour); err != nil {
		t.Fatal(err)
	}
	if f.state(t).SunGoal != time.Hour {
		t.Errorf("SunGoal = %v", f.state(t).SunGoal)
	}
	if msg := f.companion.last(t); msg.SunGoal == nil || *msg.SunGoal != 3600 {
		t.Errorf("relayed %+v, want sunGoal 3600", msg)
	}

	g, err := f.session.Growth(45 * time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if g.State != domain.GrowthHappy {
		t.Errorf("45m of 1h = %v, want happy", g.State)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Entitlement
// ═══════════════════════════════════════════════════════════════════════════

func TestSession_RefreshEntitlement(t *testing.T) {
	f := newFixture(t)
	f.purchases.facts = domain.PurchaseFacts{ActiveSubscriptions: []string{"monthly"}}

	upd, err := f.session.RefreshEntitlement(ctx, day(2025, 5, 1))
	if err != nil {
		t.Fatal(err)
	}
	if upd.Stale || upd.Entitlement != domain.EntitlementSubscription || upd.Previous != domain.EntitlementFreeTrial {
		t.Errorf("update = %+v", upd)
	}
	if f.state(t).Entitlement != domain.EntitlementSubscription {
		t.Error("entitlement not persisted")
	}
	if msg := f.companion.last(t); msg.IsPro == nil || !*msg.IsPro {
		t.Errorf("relayed %+v, want isPro true", msg)
	}
}

func TestSession_RefreshEntitlementFailSoft(t *testing.T) {
	f := newFixture(t)
	f.purchases.facts = domain.PurchaseFacts{NonSubscriptions: []string{"lifetime"}}
	if _, err := f.session.RefreshEntitlement(ctx, day(2025, 5, 1)); err != nil {
		t.Fatal(err)
	}
	relayed := len(f.companion.sent)

	f.purchases.err = domain.ErrPurchasesUnavailable
	upd, err := f.session.RefreshEntitlement(ctx, day(2025, 5, 2))
	if err != nil {
		t.Fatalf("fetch failure must not be an error: %v", err)
	}
	if !upd.Stale || upd.Entitlement != domain.EntitlementAllTime {
		t.Errorf("update = %+v, want stale allTime", upd)
	}
	if f.state(t).Entitlement != domain.EntitlementAllTime {
		t.Error("persisted entitlement changed on fetch failure")
	}
	if len(f.companion.sent) != relayed {
		t.Error("a stale refresh must not relay")
	}
}

func TestSession_CompanionFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	f.companion.err = domain.ErrCompanionUnavailable
	if err := f.session.SetSunGoal(ctx, time.Hour); err != nil {
		t.Errorf("relay failure leaked: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Samples & Notifications
// ═══════════════════════════════════════════════════════════════════════════

func TestSession_SunSampleQueuesOnce(t *testing.T) {
	f := newFixture(t)
	now := day(2025, 5, 3)

	el, err := f.session.HandleSunSample(ctx, 2000*time.Second, now)
	if err != nil {
		t.Fatal(err)
	}
	if !el.Fire {
		t.Fatal("2000s over an 1800s goal should fire")
	}
	st := f.state(t)
	if !st.LastSunNotificationDate.Equal(now) || st.TimeInSun != 2000*time.Second {
		t.Errorf("state = %+v", st)
	}

	el, err = f.session.HandleSunSample(ctx, 2100*time.Second, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if el.Fire {
		t.Error("second sample within the cooldown fired")
	}

	pending, err := f.session.PendingNotifications(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Type != domain.NotifySunReady {
		t.Errorf("pending = %+v, want one sun_ready", pending)
	}
}

func TestSession_SunSampleRejectsNegative(t *testing.T) {
	f := newFixture(t)
	if _, err := f.session.HandleSunSample(ctx, -time.Second, day(2025, 5, 3)); !errors.Is(err, domain.ErrInvalidExposure) {
		t.Errorf("err = %v, want ErrInvalidExposure", err)
	}
}

func TestSession_SunSampleAfterPick(t *testing.T) {
	f := newFixture(t)
	now := day(2025, 5, 3)
	if _, err := f.session.RecordPick(ctx, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	el, err := f.session.HandleSunSample(ctx, time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	if el.Fire {
		t.Error("already picked today, should not fire")
	}
}

func TestSession_SleepSample(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 5, 3, 9, 0, 0, 0, time.Local)
	woke := time.Date(2025, 5, 3, 7, 10, 0, 0, time.Local)

	el, err := f.session.HandleSleepSample(ctx, woke, now)
	if err != nil || !el.Fire {
		t.Fatalf("first sample: %+v %v", el, err)
	}
	el, err = f.session.HandleSleepSample(ctx, woke, now.Add(time.Hour))
	if err != nil || el.Fire {
		t.Errorf("second sample same day: %+v %v", el, err)
	}
	if !f.state(t).LastSleepNotificationDate.Equal(now) {
		t.Error("LastSleepNotificationDate not persisted")
	}
}

func TestSession_NotificationOpened(t *testing.T) {
	f := newFixture(t)
	now := day(2025, 5, 3)
	if _, err := f.session.HandleSunSample(ctx, time.Hour, now); err != nil {
		t.Fatal(err)
	}
	pending, err := f.session.PendingNotifications(10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %v %v", pending, err)
	}

	opened := now.Add(2 * time.Hour)
	if err := f.session.NotificationOpened(pending[0].ID.String(), opened); err != nil {
		t.Fatal(err)
	}
	if !f.state(t).LastSunNotificationDate.Equal(opened) {
		t.Error("opening a sun notification should restart the cooldown")
	}
	pending, _ = f.session.PendingNotifications(10)
	if len(pending) != 0 {
		t.Errorf("opened notification still pending: %+v", pending)
	}

	if err := f.session.NotificationOpened("missing", opened); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Errorf("missing id err = %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Snapshot & Concurrency
// ═══════════════════════════════════════════════════════════════════════════

func TestSession_Snapshot(t *testing.T) {
	f := newFixture(t)
	now := day(2025, 5, 3)
	if _, err := f.session.RecordPick(ctx, now); err != nil {
		t.Fatal(err)
	}
	if _, err := f.session.HandleSunSample(ctx, 20*time.Minute, now); err != nil {
		t.Fatal(err)
	}

	snap, err := f.session.Snapshot(now)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Picks != 1 || snap.Streak.TodayStreak != 1 {
		t.Errorf("snapshot picks/streak = %d/%+v", snap.Picks, snap.Streak)
	}
	if snap.Growth.State != domain.GrowthHappy {
		t.Errorf("20m of 30m = %v, want happy", snap.Growth.State)
	}
	if !snap.Entitled {
		t.Error("fresh install is on the free trial")
	}
}

func TestSession_ConcurrentLaunches(t *testing.T) {
	f := newFixture(t)
	now := day(2025, 5, 3)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.session.Launch(ctx, now); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := f.state(t).LaunchCount; got != n {
		t.Errorf("LaunchCount = %d, want %d (lost update)", got, n)
	}
}
