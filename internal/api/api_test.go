package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sunflower-app/sunflower/internal/app/engagement"
	"github.com/sunflower-app/sunflower/internal/domain"
	"github.com/sunflower-app/sunflower/internal/health"
	"github.com/sunflower-app/sunflower/internal/infra/sqlite"
)

// fixedNow is local noon so day boundaries are unambiguous.
var fixedNow = time.Date(2025, 5, 3, 12, 0, 0, 0, time.Local)

func newTestServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	session := engagement.NewSession(engagement.Deps{
		Store:  db,
		Ledger: db,
		Outbox: db,
		Policy: domain.DefaultPolicy(),
		Logger: zap.NewNop(),
	})
	srv := NewServer(session, zap.NewNop())
	srv.Engagement().SetClock(func() time.Time { return fixedNow })
	return srv, db
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// ─── Health & Version ───────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestAPI_HealthWithChecker(t *testing.T) {
	srv, db := newTestServer(t)
	srv.SetHealth(health.NewChecker(db, nil))
	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d (no run yet is healthy)", w.Code, http.StatusOK)
	}
}

func TestAPI_Version(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "GET", "/api/version", "")
	var body map[string]string
	decode(t, w, &body)
	if body["version"] != Version {
		t.Errorf("version = %q", body["version"])
	}
}

func TestAPI_MetricsDisabledByDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	srv.EnableMetrics()
	if w := do(t, srv, "GET", "/metrics", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// ─── Foreground ─────────────────────────────────────────────────────────────

func TestAPI_LaunchFirstRun(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "POST", "/api/engagement/launch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var d domain.Decision
	decode(t, w, &d)
	if d.Modal != domain.ModalPaywall || !d.FirstRun {
		t.Errorf("decision = %+v", d)
	}
	if d.State.LaunchCount != 1 {
		t.Errorf("LaunchCount = %d", d.State.LaunchCount)
	}
}

func TestAPI_ActiveThenReview(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, "POST", "/api/engagement/launch", "")
	do(t, srv, "POST", "/api/engagement/launch", "")

	w := do(t, srv, "POST", "/api/engagement/active", "")
	var d domain.Decision
	decode(t, w, &d)
	if d.Modal != domain.ModalReview {
		t.Fatalf("Modal = %q, want review", d.Modal)
	}

	w = do(t, srv, "POST", "/api/engagement/review", `{"accepted": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("review status = %d", w.Code)
	}
	var st domain.EngagementState
	decode(t, w, &st)
	if !st.GaveReview {
		t.Error("GaveReview should be set")
	}
}

func TestAPI_ReviewRequiresAnswer(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "POST", "/api/engagement/review", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ─── Picks & Growth ─────────────────────────────────────────────────────────

func TestAPI_Pick(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "POST", "/api/engagement/picks", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	w = do(t, srv, "POST", "/api/engagement/picks", "")
	if w.Code != http.StatusOK {
		t.Errorf("repeat status = %d, want 200", w.Code)
	}
	var out domain.PickOutcome
	decode(t, w, &out)
	if !out.AlreadyPicked {
		t.Error("repeat pick should report already picked")
	}

	w = do(t, srv, "GET", "/api/engagement/streak", "")
	var s domain.StreakResult
	decode(t, w, &s)
	if s.TodayStreak != 1 {
		t.Errorf("TodayStreak = %d", s.TodayStreak)
	}
}

func TestAPI_Growth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/engagement/growth?exposure=1800", "")
	var g map[string]interface{}
	decode(t, w, &g)
	if g["state"] != "grown" {
		t.Errorf("state = %v, want grown", g["state"])
	}

	if w := do(t, srv, "GET", "/api/engagement/growth?exposure=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad exposure status = %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/engagement/growth?exposure=NaN", ""); w.Code != http.StatusBadRequest {
		t.Errorf("NaN exposure status = %d", w.Code)
	}
}

func TestAPI_Goal(t *testing.T) {
	srv, db := newTestServer(t)

	if w := do(t, srv, "PUT", "/api/engagement/goal", `{"seconds": 0}`); w.Code != http.StatusBadRequest {
		t.Errorf("zero goal status = %d", w.Code)
	}
	if w := do(t, srv, "PUT", "/api/engagement/goal", `{"seconds": 2700}`); w.Code != http.StatusOK {
		t.Fatalf("goal status = %d", w.Code)
	}
	st, err := db.LoadState(domain.DefaultEngagementState(domain.DefaultPolicy()))
	if err != nil {
		t.Fatal(err)
	}
	if st.SunGoal != 45*time.Minute {
		t.Errorf("SunGoal = %v", st.SunGoal)
	}
}

// ─── Entitlement ────────────────────────────────────────────────────────────

func TestAPI_RefreshWithoutBackendIsStale(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "POST", "/api/engagement/entitlement/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var upd domain.EntitlementUpdate
	decode(t, w, &upd)
	if !upd.Stale || upd.Entitlement != domain.EntitlementFreeTrial {
		t.Errorf("update = %+v", upd)
	}
}

// ─── Samples & Notifications ────────────────────────────────────────────────

func TestAPI_SunSampleAndNotifications(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "POST", "/api/engagement/samples/sun", `{"seconds": 2000}`)
	var el domain.Eligibility
	decode(t, w, &el)
	if !el.Fire {
		t.Fatal("sun sample over goal should fire")
	}

	w = do(t, srv, "GET", "/api/engagement/notifications", "")
	var body struct {
		Notifications []domain.Notification `json:"notifications"`
		Count         int                   `json:"count"`
	}
	decode(t, w, &body)
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}

	id := body.Notifications[0].ID.String()
	if w := do(t, srv, "POST", "/api/engagement/notifications/"+id+"/opened", ""); w.Code != http.StatusOK {
		t.Errorf("opened status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/engagement/notifications/nope/shown", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
}

func TestAPI_NegativeSunSample(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "POST", "/api/engagement/samples/sun", `{"seconds": -5}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAPI_SleepSample(t *testing.T) {
	srv, _ := newTestServer(t)
	end := time.Date(2025, 5, 3, 7, 0, 0, 0, time.Local).Format(time.RFC3339)
	w := do(t, srv, "POST", "/api/engagement/samples/sleep", `{"end": "`+end+`"}`)
	var el domain.Eligibility
	decode(t, w, &el)
	if !el.Fire {
		t.Error("sleep ending at 07:00 should fire")
	}
}

func TestAPI_State(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, "POST", "/api/engagement/picks", "")
	w := do(t, srv, "GET", "/api/engagement/state", "")
	var snap domain.Snapshot
	decode(t, w, &snap)
	if snap.Picks != 1 || !snap.Entitled {
		t.Errorf("snapshot = %+v", snap)
	}
}

// ─── CORS ───────────────────────────────────────────────────────────────────

func TestAPI_CORS(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.SetCORSOrigins([]string{"https://app.sunflower.example"})

	req := httptest.NewRequest("OPTIONS", "/api/engagement/state", nil)
	req.Header.Set("Origin", "https://app.sunflower.example")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.sunflower.example" {
		t.Errorf("allowed origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/api/version", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin got %q", got)
	}
}
