package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/database"
	"github.com/rturner/choreboard/internal/model"
	"github.com/rturner/choreboard/internal/permission"
	"github.com/rturner/choreboard/internal/schedule"
	"github.com/rturner/choreboard/internal/store"
	"github.com/rturner/choreboard/internal/timeutil"
)

// testNow is the reference instant all handler tests run at.
var testNow = time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db          *sql.DB
	users       *store.UserStore
	entries     *store.EntryStore
	completions *store.CompletionStore
	sessions    *store.SessionStore
	settings    *store.SettingsStore
	svc         *schedule.Service
	eval        *permission.Evaluator
	norm        *timeutil.Normalizer
	clock       timeutil.Clock
	logger      *slog.Logger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	norm := timeutil.MustNormalizer("UTC")
	clock := timeutil.Fixed(testNow)
	eval := permission.NewEvaluator(permission.Policy{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		db:          db,
		users:       store.NewUserStore(db),
		entries:     store.NewEntryStore(db),
		completions: store.NewCompletionStore(db),
		sessions:    store.NewSessionStore(db),
		settings:    store.NewSettingsStore(db),
		eval:        eval,
		norm:        norm,
		clock:       clock,
		logger:      logger,
	}
	f.svc = schedule.NewService(f.entries, f.completions, eval, clock, norm, logger)
	return f
}

func (f *fixture) user(t *testing.T, username string, perms ...string) *model.User {
	t.Helper()
	hash, err := auth.HashSecret("password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := f.users.Create(username, hash, "", perms)
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// weeklyChore inserts a Monday 08:00 UTC chore anchored 2024-01-01.
func (f *fixture) weeklyChore(t *testing.T, createdBy int64) *model.CalendarEntry {
	t.Helper()
	e, err := f.entries.Create(&model.CalendarEntry{
		Kind:            model.KindChore,
		Title:           "Take out trash",
		StartTime:       time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		DurationSeconds: 900,
		RecurrenceRule:  "FREQ=WEEKLY;BYDAY=MO",
		Timezone:        "UTC",
		CreatedBy:       createdBy,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return e
}

func authed(req *http.Request, u *model.User) *http.Request {
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{User: u})
	return req.WithContext(ctx)
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

func TestLoginPassword(t *testing.T) {
	f := setup(t)
	f.user(t, "alice", "view")
	h := NewAuthHandler(f.users, f.sessions, f.settings, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, map[string]string{
		"username": "alice", "password": "password",
	}))
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "choreboard_session" || cookies[0].Value == "" {
		t.Fatalf("expected session cookie, got %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if _, leaked := body["password_hash"]; leaked {
		t.Error("response must not include password hash")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := setup(t)
	f.user(t, "alice", "view")
	h := NewAuthHandler(f.users, f.sessions, f.settings, f.logger)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, map[string]string{
		"username": "alice", "password": "nope",
	})))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginPIN(t *testing.T) {
	f := setup(t)
	u := f.user(t, "alice", "view")
	pinHash, _ := auth.HashSecret("4321")
	f.users.SetPINHash(u.ID, pinHash)
	h := NewAuthHandler(f.users, f.sessions, f.settings, f.logger)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, map[string]string{
		"username": "alice", "pin": "4321",
	})))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	f := setup(t)
	u := f.user(t, "alice", "view")
	f.users.SetDisabled(u.ID, true)
	h := NewAuthHandler(f.users, f.sessions, f.settings, f.logger)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, map[string]string{
		"username": "alice", "password": "password",
	})))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginViewerHasNoCredentials(t *testing.T) {
	f := setup(t)
	if _, err := f.users.Create("Viewer", "", "", []string{"view"}); err != nil {
		t.Fatalf("create viewer: %v", err)
	}
	h := NewAuthHandler(f.users, f.sessions, f.settings, f.logger)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, map[string]string{
		"username": "Viewer", "password": "",
	})))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for empty credentials", rec.Code)
	}
}

func TestOccurrenceListStatuses(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	entry := f.weeklyChore(t, admin.ID)

	// Complete the Jan 8 occurrence; Jan 1 stays overdue, Jan 15 is
	// overdue too at testNow (Jan 16), Jan 22 is upcoming but outside
	// this window.
	if _, err := f.completions.Create(entry.ID, time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC), admin.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	h := NewOccurrenceHandler(f.svc, f.entries, f.completions, f.norm, nil, f.logger)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/occurrences?start=2024-01-01&end=2024-01-16", nil)
	h.List(rec, authed(req, admin))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var occurrences []schedule.Occurrence
	if err := json.Unmarshal(rec.Body.Bytes(), &occurrences); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(occurrences) != 3 {
		t.Fatalf("len = %d, want 3", len(occurrences))
	}
	wantStatuses := []schedule.Status{schedule.StatusOverdue, schedule.StatusCompleted, schedule.StatusOverdue}
	for i, want := range wantStatuses {
		if occurrences[i].Status != want {
			t.Errorf("occurrence %d status = %q, want %q", i, occurrences[i].Status, want)
		}
	}
}

func TestOccurrenceListRequiresWindow(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	h := NewOccurrenceHandler(f.svc, f.entries, f.completions, f.norm, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/occurrences", nil)
	h.List(rec, authed(req, admin))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCompleteEndpoint(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	entry := f.weeklyChore(t, admin.ID)
	h := NewOccurrenceHandler(f.svc, f.entries, f.completions, f.norm, nil, f.logger)

	occ := time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)
	body := map[string]any{"occurrence_at": occ}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries/1/complete", jsonBody(t, body))
	req.SetPathValue("id", "1")
	h.Complete(rec, authed(req, admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var first model.ChoreCompletion
	json.Unmarshal(rec.Body.Bytes(), &first)

	// Completing again returns the original record, not a second row.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/entries/1/complete", jsonBody(t, body))
	req.SetPathValue("id", "1")
	h.Complete(rec, authed(req, admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("repeat status = %d: %s", rec.Code, rec.Body)
	}
	var second model.ChoreCompletion
	json.Unmarshal(rec.Body.Bytes(), &second)
	if second.ID != first.ID {
		t.Errorf("repeat returned id %d, want %d", second.ID, first.ID)
	}

	all, _ := f.completions.ListByEntry(entry.ID)
	if len(all) != 1 {
		t.Errorf("rows = %d, want 1", len(all))
	}
}

func TestCompleteFabricatedInstant(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	f.weeklyChore(t, admin.ID)
	h := NewOccurrenceHandler(f.svc, f.entries, f.completions, f.norm, nil, f.logger)

	// A Tuesday on a Monday-only series.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries/1/complete", jsonBody(t, map[string]any{
		"occurrence_at": time.Date(2024, 1, 9, 8, 0, 0, 0, time.UTC),
	}))
	req.SetPathValue("id", "1")
	h.Complete(rec, authed(req, admin))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCompleteWithoutPermission(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	viewer := f.user(t, "viewer", "view")
	f.weeklyChore(t, admin.ID)
	h := NewOccurrenceHandler(f.svc, f.entries, f.completions, f.norm, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries/1/complete", jsonBody(t, map[string]any{
		"occurrence_at": time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC),
	}))
	req.SetPathValue("id", "1")
	h.Complete(rec, authed(req, viewer))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCompleteMissingEntry(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	h := NewOccurrenceHandler(f.svc, f.entries, f.completions, f.norm, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries/99/complete", jsonBody(t, map[string]any{
		"occurrence_at": time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC),
	}))
	req.SetPathValue("id", "99")
	h.Complete(rec, authed(req, admin))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUncompleteEndpoint(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	entry := f.weeklyChore(t, admin.ID)
	occ := time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)
	f.completions.Create(entry.ID, occ, admin.ID)

	h := NewOccurrenceHandler(f.svc, f.entries, f.completions, f.norm, nil, f.logger)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/entries/1/complete", jsonBody(t, map[string]any{
		"occurrence_at": occ,
	}))
	req.SetPathValue("id", "1")
	h.Uncomplete(rec, authed(req, admin))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got, _ := f.completions.GetByOccurrence(entry.ID, occ); got != nil {
		t.Error("expected completion removed")
	}
}

func TestEntryCreateEndpoint(t *testing.T) {
	f := setup(t)
	creator := f.user(t, "parent", "create")
	h := NewEntryHandler(f.svc, f.entries, f.eval, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries", jsonBody(t, map[string]any{
		"kind":             "chore",
		"title":            "Water plants",
		"start_time":       time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		"duration_seconds": 600,
		"recurrence_rule":  "FREQ=DAILY;INTERVAL=2",
		"timezone":         "UTC",
	}))
	h.Create(rec, authed(req, creator))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var created model.CalendarEntry
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.CreatedBy != creator.ID {
		t.Errorf("created_by = %d, want %d", created.CreatedBy, creator.ID)
	}
}

func TestEntryCreateValidationError(t *testing.T) {
	f := setup(t)
	creator := f.user(t, "parent", "create")
	h := NewEntryHandler(f.svc, f.entries, f.eval, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries", jsonBody(t, map[string]any{
		"kind":             "chore",
		"title":            "",
		"start_time":       time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		"duration_seconds": 600,
	}))
	h.Create(rec, authed(req, creator))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEntryCreateForbidden(t *testing.T) {
	f := setup(t)
	viewer := f.user(t, "viewer", "view")
	h := NewEntryHandler(f.svc, f.entries, f.eval, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/entries", jsonBody(t, map[string]any{
		"kind":             "chore",
		"title":            "Water plants",
		"start_time":       time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		"duration_seconds": 600,
	}))
	h.Create(rec, authed(req, viewer))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestEntryGetHiddenWithoutView(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	noView := f.user(t, "worker", "complete")
	f.weeklyChore(t, admin.ID)
	h := NewEntryHandler(f.svc, f.entries, f.eval, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/entries/1", nil)
	req.SetPathValue("id", "1")
	h.Get(rec, authed(req, noView))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unviewable entry", rec.Code)
	}
}

func TestUserCreateRejectsUnknownPermission(t *testing.T) {
	f := setup(t)
	h := NewUserHandler(f.users, f.sessions, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users", jsonBody(t, map[string]any{
		"username":    "kid",
		"permissions": []string{"superuser"},
	}))
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	f := setup(t)
	f.user(t, "alice", "view")
	h := NewUserHandler(f.users, f.sessions, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users", jsonBody(t, map[string]any{
		"username":    "ALICE",
		"permissions": []string{"view"},
	}))
	h.Create(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestUserCannotDisableSelf(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	h := NewUserHandler(f.users, f.sessions, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/1/disable", jsonBody(t, map[string]any{
		"disabled": true,
	}))
	req.SetPathValue("id", "1")
	h.SetDisabled(rec, authed(req, admin))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUserDisableRevokesSessions(t *testing.T) {
	f := setup(t)
	admin := f.user(t, "admin", "admin")
	target := f.user(t, "bob", "view")
	sess, _ := f.sessions.Create(target.ID, 5*time.Minute)
	h := NewUserHandler(f.users, f.sessions, nil, f.logger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/2/disable", jsonBody(t, map[string]any{
		"disabled": true,
	}))
	req.SetPathValue("id", "2")
	h.SetDisabled(rec, authed(req, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got, _ := f.sessions.GetByToken(sess.Token); got != nil {
		t.Error("expected target's sessions revoked")
	}
}
