package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sunflower-app/sunflower/internal/app/engagement"
	"github.com/sunflower-app/sunflower/internal/domain"
)

// EngagementAPI exposes the engagement session over REST.
type EngagementAPI struct {
	session *engagement.Session
	log     *zap.Logger
	now     func() time.Time
}

// NewEngagementAPI creates the engagement handlers.
func NewEngagementAPI(session *engagement.Session, log *zap.Logger) *EngagementAPI {
	return &EngagementAPI{session: session, log: log.Named("engagement_api"), now: time.Now}
}

// SetClock overrides the wall clock.
func (e *EngagementAPI) SetClock(now func() time.Time) { e.now = now }

// ─── Foreground ─────────────────────────────────────────────────────────────

// HandleState handles GET /api/engagement/state.
func (e *EngagementAPI) HandleState(w http.ResponseWriter, r *http.Request) {
	snap, err := e.session.Snapshot(e.now())
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleLaunch handles POST /api/engagement/launch.
func (e *EngagementAPI) HandleLaunch(w http.ResponseWriter, r *http.Request) {
	d, err := e.session.Launch(r.Context(), e.now())
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleActive handles POST /api/engagement/active.
func (e *EngagementAPI) HandleActive(w http.ResponseWriter, r *http.Request) {
	d, err := e.session.BecameActive(r.Context(), e.now())
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type reviewRequest struct {
	Accepted *bool `json:"accepted"`
}

// HandleReview handles POST /api/engagement/review.
func (e *EngagementAPI) HandleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Accepted == nil {
		writeError(w, http.StatusBadRequest, "accepted is required")
		return
	}
	st, err := e.session.ResolveReview(*req.Accepted)
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Picks, Goal & Growth ───────────────────────────────────────────────────

// HandleStreak handles GET /api/engagement/streak.
func (e *EngagementAPI) HandleStreak(w http.ResponseWriter, r *http.Request) {
	s, err := e.session.Streak(e.now())
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandlePick handles POST /api/engagement/picks.
func (e *EngagementAPI) HandlePick(w http.ResponseWriter, r *http.Request) {
	out, err := e.session.RecordPick(r.Context(), e.now())
	if err != nil {
		e.fail(w, err)
		return
	}
	status := http.StatusCreated
	if out.AlreadyPicked {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

// HandleGrowth handles GET /api/engagement/growth?exposure=SECONDS.
func (e *EngagementAPI) HandleGrowth(w http.ResponseWriter, r *http.Request) {
	secs, err := strconv.ParseFloat(r.URL.Query().Get("exposure"), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		writeError(w, http.StatusBadRequest, "exposure must be a number of seconds")
		return
	}
	g, err := e.session.Growth(seconds(secs))
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type secondsRequest struct {
	Seconds *float64 `json:"seconds"`
}

// HandleGoal handles PUT /api/engagement/goal.
func (e *EngagementAPI) HandleGoal(w http.ResponseWriter, r *http.Request) {
	d, ok := decodeSeconds(w, r)
	if !ok {
		return
	}
	if err := e.session.SetSunGoal(r.Context(), d); err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"sun_goal_seconds": d.Seconds()})
}

// ─── Entitlement ────────────────────────────────────────────────────────────

// HandleRefreshEntitlement handles POST /api/engagement/entitlement/refresh.
func (e *EngagementAPI) HandleRefreshEntitlement(w http.ResponseWriter, r *http.Request) {
	upd, err := e.session.RefreshEntitlement(r.Context(), e.now())
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, upd)
}

// ─── Samples ────────────────────────────────────────────────────────────────

// HandleSunSample handles POST /api/engagement/samples/sun.
func (e *EngagementAPI) HandleSunSample(w http.ResponseWriter, r *http.Request) {
	d, ok := decodeSeconds(w, r)
	if !ok {
		return
	}
	el, err := e.session.HandleSunSample(r.Context(), d, e.now())
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

type sleepRequest struct {
	End time.Time `json:"end"`
}

// HandleSleepSample handles POST /api/engagement/samples/sleep.
func (e *EngagementAPI) HandleSleepSample(w http.ResponseWriter, r *http.Request) {
	var req sleepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	el, err := e.session.HandleSleepSample(r.Context(), req.End.Local(), e.now())
	if err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

// ─── Notifications ──────────────────────────────────────────────────────────

// HandleNotifications handles GET /api/engagement/notifications.
func (e *EngagementAPI) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	notifs, err := e.session.PendingNotifications(limit)
	if err != nil {
		e.fail(w, err)
		return
	}
	if notifs == nil {
		notifs = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifs,
		"count":         len(notifs),
	})
}

// HandleNotificationShown handles POST /api/engagement/notifications/{id}/shown.
func (e *EngagementAPI) HandleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := e.session.MarkNotificationShown(id); err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleNotificationOpened handles POST /api/engagement/notifications/{id}/opened.
func (e *EngagementAPI) HandleNotificationOpened(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := e.session.NotificationOpened(id, e.now()); err != nil {
		e.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// fail maps domain errors onto HTTP statuses.
func (e *EngagementAPI) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSunGoal), errors.Is(err, domain.ErrInvalidExposure):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		e.log.Error("engagement request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeSeconds(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	var req secondsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if req.Seconds == nil {
		writeError(w, http.StatusBadRequest, "seconds is required")
		return 0, false
	}
	return seconds(*req.Seconds), true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
