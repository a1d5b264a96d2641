package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", time.Hour, false), mr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("42")
	sess.Set("theme", "dark")

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	cookie := sessionCookie(t, rr, "test_session")
	require.NotNil(t, cookie)
	assert.True(t, mr.Exists("session:"+cookie.Value))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "42", loaded.User())
	assert.Equal(t, "dark", loaded.Get("theme"))
}

func TestAnonymousSessionNotPersisted(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))

	assert.Nil(t, sessionCookie(t, rr, "test_session"))
	assert.Empty(t, mr.Keys())
}

func TestUnknownSessionIDIsNotAdopted(t *testing.T) {
	sm, _ := newTestSessions(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "attacker-chosen"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
}

func TestRenewRotatesID(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, _ := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	sess.Set(CSRFSessionKey, "token")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID

	sm.Renew(sess)
	sess.SetUser("7")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	assert.NotEqual(t, oldID, sess.ID)
	assert.False(t, mr.Exists("session:"+oldID))
	assert.True(t, mr.Exists("session:"+sess.ID))
}

func TestDestroyClearsCookie(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, _ := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	sess.SetUser("9")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	cookie := sessionCookie(t, rr, "test_session")
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.False(t, mr.Exists("session:"+sess.ID))
}

func TestCSRFToken(t *testing.T) {
	sm, _ := newTestSessions(t)
	ctx := context.Background()
	csrf := NewCSRFManager("secret")

	sess, _ := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	require.NoError(t, csrf.VerifyToken(ctx, sess, token))
	require.ErrorIs(t, csrf.VerifyToken(ctx, sess, "forged"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	require.ErrorIs(t, csrf.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)
}

func TestCSRFTokenBoundToSessionID(t *testing.T) {
	sm, _ := newTestSessions(t)
	ctx := context.Background()
	csrf := NewCSRFManager("secret")

	sess, _ := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)

	sm.Renew(sess)
	require.ErrorIs(t, csrf.VerifyToken(ctx, sess, token), ErrCSRFTokenMismatch)

	fresh, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
	require.NoError(t, csrf.VerifyToken(ctx, sess, fresh))

	rotated, err := csrf.Rotate(sess)
	require.NoError(t, err)
	require.ErrorIs(t, csrf.VerifyToken(ctx, sess, fresh), ErrCSRFTokenMismatch)
	require.NoError(t, csrf.VerifyToken(ctx, sess, rotated))

	other := NewCSRFManager("other-secret")
	require.ErrorIs(t, other.VerifyToken(ctx, sess, rotated), ErrCSRFTokenMismatch)
}
