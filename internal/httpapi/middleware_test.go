package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vaderboard-backend/internal/engine"
	"vaderboard-backend/internal/model"
	"vaderboard-backend/internal/session"
	"vaderboard-backend/internal/ws"
)

// stubStore satisfies engine.Store; the guard tests never reach the
// durable layer.
type stubStore struct{}

func (stubStore) InsertEvent(context.Context, model.Event) error             { return nil }
func (stubStore) DeleteEvent(context.Context, uuid.UUID) error              { return nil }
func (stubStore) InsertTeam(context.Context, model.Team) error              { return nil }
func (stubStore) InsertUser(context.Context, model.User) error              { return nil }
func (stubStore) AddEventTeam(context.Context, uuid.UUID, uuid.UUID) error  { return nil }
func (stubStore) AddEventUser(context.Context, uuid.UUID, uuid.UUID) error  { return nil }
func (stubStore) AddTeamMembers(context.Context, uuid.UUID, uuid.UUID, []uuid.UUID) error {
	return nil
}
func (stubStore) CountTeamMembers(context.Context, uuid.UUID) (int, error) { return 0, nil }
func (stubStore) AddScore(context.Context, model.ParticipantKind, uuid.UUID, int64) (int64, error) {
	return 0, nil
}
func (stubStore) ResetScoresForEvent(context.Context, uuid.UUID) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *session.Store) {
	t.Helper()
	log := zap.NewNop()
	machine := engine.New(stubStore{}, log)
	sessions := session.NewStore("test-secret")
	api := &API{Machine: machine, Sessions: sessions, Log: log}
	return SetupRoutes(api, ws.Deps{Machine: machine, Log: log}, t.TempDir()), sessions
}

func adminCookie(t *testing.T, sessions *session.Store) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.IssueAdmin(rec))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestAdminRoutesRejectAnonymous(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{
		"/admin/event/add",
		"/admin/event/start",
		"/admin/event/stop",
		"/admin/score/update",
	} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.Contains(t, rec.Body.String(), "unauthorized access request")
	}
}

func TestAdminRoutesPassWithSession(t *testing.T) {
	router, sessions := newTestRouter(t)
	cookie := adminCookie(t, sessions)

	body := `{"name":"E1","event_type":{"TeamEvent":{"team_size":3}}}`
	req := httptest.NewRequest(http.MethodPost, "/admin/event/add", strings.NewReader(body))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "successfully added team event")
}

func TestCurrentEventInfoReflectsMachine(t *testing.T) {
	router, sessions := newTestRouter(t)
	cookie := adminCookie(t, sessions)

	req := httptest.NewRequest(http.MethodGet, "/event/info", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "no event added")

	add := httptest.NewRequest(http.MethodPost, "/admin/event/add",
		strings.NewReader(`{"name":"E1","event_type":"UserEvent"}`))
	add.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, add)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/event/info", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"state":"added"`)
	require.Contains(t, rec.Body.String(), `"UserEvent"`)
}

func TestPreconditionFailuresMapTo400(t *testing.T) {
	router, sessions := newTestRouter(t)
	cookie := adminCookie(t, sessions)

	// Stop without any event added.
	req := httptest.NewRequest(http.MethodPost, "/admin/event/stop", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "no event added to stop")
}

func TestBadJSONMapsTo400(t *testing.T) {
	router, sessions := newTestRouter(t)
	cookie := adminCookie(t, sessions)

	req := httptest.NewRequest(http.MethodPost, "/admin/event/add", strings.NewReader("{nope"))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "bad json")
}
