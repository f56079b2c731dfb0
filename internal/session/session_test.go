package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func requestWithCookies(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/event/add", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestIssueAdminGrantsSession(t *testing.T) {
	s := NewStore("test-secret")

	rec := httptest.NewRecorder()
	require.NoError(t, s.IssueAdmin(rec))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	require.True(t, s.IsAdmin(requestWithCookies(t, rec)))
}

func TestIsAdminRejectsMissingCookie(t *testing.T) {
	s := NewStore("test-secret")
	req := httptest.NewRequest(http.MethodPost, "/admin/event/add", nil)
	require.False(t, s.IsAdmin(req))
}

func TestIsAdminRejectsTamperedCookie(t *testing.T) {
	s := NewStore("test-secret")

	rec := httptest.NewRecorder()
	require.NoError(t, s.IssueAdmin(rec))
	c := rec.Result().Cookies()[0]

	// Flip the signature segment.
	parts := strings.Split(c.Value, ".")
	require.Len(t, parts, 3)
	parts[2] = strings.Repeat("A", len(parts[2]))

	req := httptest.NewRequest(http.MethodPost, "/admin/event/add", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: strings.Join(parts, ".")})
	require.False(t, s.IsAdmin(req))
}

func TestIsAdminRejectsForeignSecret(t *testing.T) {
	issuer := NewStore("secret-one")
	verifier := NewStore("secret-two")

	rec := httptest.NewRecorder()
	require.NoError(t, issuer.IssueAdmin(rec))
	require.False(t, verifier.IsAdmin(requestWithCookies(t, rec)))
}

func TestIsAdminRequiresServerSideSession(t *testing.T) {
	// Same secret, different store: a valid signature alone is not
	// enough, the opaque id must resolve server-side.
	issuer := NewStore("shared-secret")
	verifier := NewStore("shared-secret")

	rec := httptest.NewRecorder()
	require.NoError(t, issuer.IssueAdmin(rec))
	require.False(t, verifier.IsAdmin(requestWithCookies(t, rec)))
}
