package app_test

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

	"github.com/atlas-admin/atlas-admin/internal/app"
	"github.com/atlas-admin/atlas-admin/internal/shared"
)

func newGateSession(t *testing.T) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := shared.NewSessionManager(client, "atlas_session", "gate-test-secret", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return sess
}

func gateRequest(sess *shared.Session, xhr bool) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	if xhr {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.Header.Set("Accept", "application/json")
	}
	return req
}

func serveGate(sess *shared.Session, xhr bool) (*httptest.ResponseRecorder, bool) {
	reached := false
	gate := app.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	res := httptest.NewRecorder()
	gate.ServeHTTP(res, gateRequest(sess, xhr))
	return res, reached
}

func TestRequireUserRedirectsAnonymous(t *testing.T) {
	res, reached := serveGate(newGateSession(t), false)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.False(t, reached)
}

func TestRequireUserAnonymousJSON(t *testing.T) {
	res, reached := serveGate(newGateSession(t), true)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.False(t, reached)
}

func TestRequireUserHoldsPendingPasswordChange(t *testing.T) {
	sess := newGateSession(t)
	sess.SetUser("7")
	sess.Set(shared.MustChangePasswordKey, "1")

	res, reached := serveGate(sess, false)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/password", res.Header().Get("Location"))
	assert.False(t, reached)

	res, reached = serveGate(sess, true)
	require.Equal(t, http.StatusForbidden, res.Code)
	assert.False(t, reached)
}

func TestRequireUserPassesAuthenticated(t *testing.T) {
	sess := newGateSession(t)
	sess.SetUser("7")

	res, reached := serveGate(sess, false)
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, reached)
}
