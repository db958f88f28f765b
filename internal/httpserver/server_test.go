package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/busdle/internal/database"
	"github.com/robalobadob/busdle/internal/game"
	"github.com/robalobadob/busdle/internal/store"
)

const adminPassword = "correct horse"

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "busdle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	s := New(Config{JWTSecret: "test-secret", AdminPasswordHash: hash}, db, store.NewMemoryStore(), []string{"5", "7", "10", "12"})
	s.now = func() time.Time { return testNow }
	return s
}

// client replays cookies between requests like a browser would.
type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, s *Server) *client {
	return &client{t: t, h: s.Router(), cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["error"].(string)
}

func login(t *testing.T, s *Server) *client {
	t.Helper()
	admin := newClient(t, s)
	rec := admin.do(http.MethodPost, "/auth/login", map[string]string{"password": adminPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return admin
}

func setTemplate(t *testing.T, admin *client, order string) {
	t.Helper()
	rec := admin.do(http.MethodPut, "/admin/template", map[string]any{"order": order})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := newClient(t, s).do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := newClient(t, s).do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreflight(t *testing.T) {
	s := newTestServer(t)
	rec := newClient(t, s).do(http.MethodOptions, "/busdle/guess", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestBusdleWithoutTemplate(t *testing.T) {
	s := newTestServer(t)
	player := newClient(t, s)

	rec := player.do(http.MethodGet, "/busdle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[stateRes](t, rec)
	assert.False(t, st.Available)
	assert.Contains(t, player.cookies, anonCookieName)

	rec = player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"5"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_target", errorCode(t, rec))

	rec = player.do(http.MethodGet, "/busdle/share", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireLogin(t *testing.T) {
	s := newTestServer(t)
	anon := newClient(t, s)

	for _, r := range []struct{ method, path string }{
		{http.MethodPut, "/admin/template"},
		{http.MethodGet, "/admin/bank"},
		{http.MethodPost, "/rides"},
		{http.MethodPost, "/rides/undo"},
		{http.MethodDelete, "/rides"},
		{http.MethodGet, "/auth/me"},
	} {
		rec := anon.do(r.method, r.path, map[string]any{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
	}

	anon.cookies["busdle_token"] = &http.Cookie{Name: "busdle_token", Value: "not-a-jwt"}
	rec := anon.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginLogout(t *testing.T) {
	s := newTestServer(t)
	c := newClient(t, s)

	rec := c.do(http.MethodPost, "/auth/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/auth/login", map[string]string{"password": adminPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, c.cookies, "busdle_token")
	token := c.cookies["busdle_token"].Value

	rec = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"admin":true}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, c.cookies, "busdle_token")
	rec = c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bearer tokens work without the cookie.
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	s.Router().ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "busdle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := New(Config{}, db, nil, []string{"5"})

	rec := newClient(t, s).do(http.MethodPost, "/auth/login", map[string]string{"password": ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuessFlow(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s)
	setTemplate(t, admin, "5, 10, Line 1, 5")
	player := newClient(t, s)

	rec := player.do(http.MethodGet, "/busdle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[stateRes](t, rec)
	assert.True(t, st.Available)
	assert.Equal(t, "2024-03-01.1", st.TargetID)
	assert.Equal(t, 3, st.Length)
	assert.Equal(t, 2, st.UniqueBusCount)
	assert.Equal(t, game.ModeFree, st.Mode)
	assert.Empty(t, st.History)

	rec = player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"5", "10"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "incomplete_guess", errorCode(t, rec))

	rec = player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"10", "5", "5"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	g := decode[guessRes](t, rec)
	assert.Equal(t, []game.Verdict{game.VerdictDisplaced, game.VerdictDisplaced, game.VerdictExact}, g.Record.Verdict)
	assert.True(t, g.Record.Animating)
	assert.False(t, g.GameWon)
	assert.Equal(t, 1, g.Guesses)

	rec = player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"5", "10", "5"}})
	require.Equal(t, http.StatusOK, rec.Code)
	g = decode[guessRes](t, rec)
	assert.True(t, g.GameWon)
	assert.Equal(t, 2, g.Guesses)

	rec = player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"5", "10", "5"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "game_won", errorCode(t, rec))

	rec = player.do(http.MethodGet, "/busdle/share", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "🎯 Busdle March 1, 2024 - 2 Guesses 🔥")
	assert.Contains(t, rec.Body.String(), "5-10-5 🟩🟩🟩")

	// Another browser has its own game.
	other := newClient(t, s)
	st = decode[stateRes](t, other.do(http.MethodGet, "/busdle", nil))
	assert.Empty(t, st.History)
	assert.False(t, st.GameWon)
	rec = other.do(http.MethodGet, "/busdle/share", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = player.do(http.MethodPost, "/busdle/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[stateRes](t, rec)
	assert.Empty(t, st.History)
	assert.False(t, st.GameWon)

	mrec := player.do(http.MethodGet, "/metrics", nil)
	assert.Contains(t, mrec.Body.String(), `busdle_guesses_total{outcome="won"} 1`)
	assert.Contains(t, mrec.Body.String(), `busdle_guesses_rejected_total{reason="won"} 1`)
}

func TestNewRevisionStartsFreshGame(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s)
	setTemplate(t, admin, "5, 10")
	player := newClient(t, s)

	rec := player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"10", "5"}})
	require.Equal(t, http.StatusOK, rec.Code)

	setTemplate(t, admin, "7, 12")
	st := decode[stateRes](t, player.do(http.MethodGet, "/busdle", nil))
	assert.Equal(t, "2024-03-01.2", st.TargetID)
	assert.Empty(t, st.History)

	rec = admin.do(http.MethodDelete, "/admin/template", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[stateRes](t, player.do(http.MethodGet, "/busdle", nil))
	assert.False(t, st.Available)
}

func TestAssistedMode(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s)
	setTemplate(t, admin, "5, 20x, 5")
	player := newClient(t, s)

	rec := player.do(http.MethodGet, "/busdle/bank", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bank := decode[map[string][]string](t, rec)["buses"]
	assert.Equal(t, []string{"5", "7", "10", "12", "20X"}, bank)

	rec = player.do(http.MethodPost, "/busdle/mode", map[string]any{"mode": "expert"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_mode", errorCode(t, rec))

	rec = player.do(http.MethodPost, "/busdle/mode", map[string]any{"mode": "assisted"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, game.ModeAssisted, decode[stateRes](t, rec).Mode)

	rec = player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"5", "99", "BLUE"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "unknown_identifier", body["error"])
	assert.Equal(t, []any{"99", "BLUE"}, body["invalid"])

	rec = player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"5", "7", "20X"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = player.do(http.MethodPost, "/busdle/mode", map[string]any{"mode": "free"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "mode_locked", errorCode(t, rec))

	rec = player.do(http.MethodGet, "/busdle/share", nil)
	assert.Contains(t, rec.Body.String(), "Wimpy Mode")
}

func TestPendingInput(t *testing.T) {
	s := newTestServer(t)
	setTemplate(t, login(t, s), "5, 10")
	player := newClient(t, s)

	rec := player.do(http.MethodPut, "/busdle/pending", map[string]any{"inputs": []string{"5", ""}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	st := decode[stateRes](t, player.do(http.MethodGet, "/busdle", nil))
	assert.Equal(t, []string{"5", ""}, st.PendingInput)
}

func TestActiveBank(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s)

	rec := admin.do(http.MethodGet, "/admin/bank", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string][]string](t, rec)
	assert.Empty(t, got["buses"])
	assert.Equal(t, []string{"5", "7", "10", "12"}, got["fallback"])

	rec = admin.do(http.MethodPut, "/admin/bank", map[string]any{"buses": []string{"red", "line 2", "3", " ", "3"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Line 2", "3", "RED"}, decode[map[string][]string](t, rec)["buses"])

	setTemplate(t, admin, "3, 4")
	player := newClient(t, s)
	bank := decode[map[string][]string](t, player.do(http.MethodGet, "/busdle/bank", nil))["buses"]
	assert.Equal(t, []string{"Line 2", "3", "4", "RED"}, bank)

	// A template's own bank wins over the active one.
	rec = admin.do(http.MethodPut, "/admin/template", map[string]any{"order": "3, 4", "busBank": []string{"9"}})
	require.Equal(t, http.StatusOK, rec.Code)
	bank = decode[map[string][]string](t, player.do(http.MethodGet, "/busdle/bank", nil))["buses"]
	assert.Equal(t, []string{"3", "4", "9"}, bank)
}

func TestTemplateValidation(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s)

	rec := admin.do(http.MethodPut, "/admin/template", map[string]any{"order": "Line 1, Line 2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = admin.do(http.MethodGet, "/admin/template", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = admin.do(http.MethodPut, "/admin/template", map[string]any{"order": "5", "date": "2024-02-28"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = admin.do(http.MethodGet, "/admin/template?date=2024-02-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"5"}, decode[map[string]any](t, rec)["busOrder"])
}

func TestRides(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s)

	for _, b := range []string{"5", "20x", "5"} {
		rec := admin.do(http.MethodPost, "/rides", map[string]any{"busNumber": b})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := admin.do(http.MethodPost, "/rides/light-rail", map[string]any{"line": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = admin.do(http.MethodPost, "/rides/light-rail", map[string]any{"line": 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = admin.do(http.MethodPost, "/rides", map[string]any{"busNumber": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	public := newClient(t, s)
	day := decode[dayRes](t, public.do(http.MethodGet, "/rides", nil))
	assert.Equal(t, "2024-03-01", day.Date)
	assert.Equal(t, 4, day.Count)
	assert.Equal(t, "20X", day.Entries[1].BusNumber)
	assert.Equal(t, "Line 1", day.Entries[3].BusNumber)

	stats := decode[statsRes](t, public.do(http.MethodGet, "/stats?size=2", nil))
	assert.Equal(t, 4, stats.TotalRides)
	assert.Equal(t, 3, stats.UniqueBuses)
	assert.Equal(t, 2, stats.TotalPages)
	assert.Equal(t, 2, stats.MaxCount)
	require.Len(t, stats.Buses, 2)
	assert.Equal(t, "5", stats.Buses[0].Bus)
	assert.Equal(t, "Line 1", stats.Buses[1].Bus)

	rec = admin.do(http.MethodPost, "/rides/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = admin.do(http.MethodDelete, "/rides/2024-03-01/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = admin.do(http.MethodDelete, "/rides/2024-03-01/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = admin.do(http.MethodDelete, "/rides/2024-03-01/x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	day = decode[dayRes](t, public.do(http.MethodGet, "/rides?date=2024-03-01", nil))
	require.Equal(t, 2, day.Count)
	assert.Equal(t, "20X", day.Entries[0].BusNumber)

	rec = admin.do(http.MethodDelete, "/rides/2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = admin.do(http.MethodPost, "/rides/undo", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_ = admin.do(http.MethodPost, "/rides", map[string]any{"busNumber": "7", "date": "2024-02-01"})
	setTemplate(t, admin, "7")
	all := decode[map[string][]any](t, public.do(http.MethodGet, "/rides/all", nil))
	assert.Len(t, all["2024-02-01"], 1)

	rec = admin.do(http.MethodDelete, "/rides", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all = decode[map[string][]any](t, public.do(http.MethodGet, "/rides/all", nil))
	assert.Empty(t, all)
	st := decode[stateRes](t, public.do(http.MethodGet, "/busdle", nil))
	assert.False(t, st.Available)
}

func TestAdminTokenFollowsServerClock(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s)

	rec := admin.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s.now = func() time.Time { return testNow.Add(15 * 24 * time.Hour) }
	rec = admin.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClearAllStartsFreshGame(t *testing.T) {
	s := newTestServer(t)
	admin := login(t, s)
	setTemplate(t, admin, "5, 10, 5")
	player := newClient(t, s)

	rec := player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"5", "10", "5"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, decode[guessRes](t, rec).GameWon)

	rec = admin.do(http.MethodDelete, "/rides", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[stateRes](t, player.do(http.MethodGet, "/busdle", nil)).Available)

	setTemplate(t, admin, "7, 12, 7")
	st := decode[stateRes](t, player.do(http.MethodGet, "/busdle", nil))
	assert.Equal(t, "2024-03-01.3", st.TargetID)
	assert.Empty(t, st.History)
	assert.False(t, st.GameWon)

	rec = player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"7", "12", "7"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	g := decode[guessRes](t, rec)
	assert.True(t, g.GameWon)
	assert.Equal(t, 1, g.Guesses)
}

func TestAnonymousVisitorsAreBounded(t *testing.T) {
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "busdle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	s := New(Config{JWTSecret: "test-secret", AdminPasswordHash: hash}, db, store.NewSQLiteStore(db), []string{"5", "10"})
	s.now = func() time.Time { return testNow }
	clock := testNow
	s.sessions.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	s.sessions.max = 8
	setTemplate(t, login(t, s), "5, 10")

	rows := func() int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM game_states`).Scan(&n))
		return n
	}

	for i := 0; i < 50; i++ {
		rec := newClient(t, s).do(http.MethodGet, "/busdle", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.LessOrEqual(t, s.sessions.len(), 8)
	assert.Zero(t, rows(), "visitors who never play leave no state")

	player := newClient(t, s)
	rec := player.do(http.MethodPost, "/busdle/guess", map[string]any{"buses": []string{"10", "5"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, rows())

	for i := 0; i < 20; i++ {
		_ = newClient(t, s).do(http.MethodGet, "/busdle", nil)
	}
	assert.NotContains(t, s.sessions.machines, player.cookies[anonCookieName].Value)

	st := decode[stateRes](t, player.do(http.MethodGet, "/busdle", nil))
	require.Len(t, st.History, 1)
	assert.Equal(t, []string{"10", "5"}, st.History[0].Guess)
}
