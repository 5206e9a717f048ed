package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mehmetcc/billadmin/internal/backend"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Data  map[string]any `json:"data"`
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func serve(t *testing.T, a Context, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	NewAuthenticationHandler(a, zap.NewNop()).Routes().ServeHTTP(w, r)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHandlerLogin(t *testing.T) {
	t.Run("success returns the profile", func(t *testing.T) {
		fb := newFakeBackend()
		fb.loginResp = successResponse(validToken(t, "Invoices.View"))
		a := newTestContext(t, fb, storage.NewMemory())
		require.NoError(t, a.Init(context.Background()))

		w, env := serve(t, a, http.MethodPost, "/login", `{"email":"ada@example.com","password":"secret"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "authenticated", env.Data["status"])
		user, ok := env.Data["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ada@example.com", user["email"])
	})

	t.Run("mfa challenge", func(t *testing.T) {
		fb := newFakeBackend()
		fb.loginResp = &backend.LoginResponse{Success: true, Otp: "123456"}
		a := newTestContext(t, fb, storage.NewMemory())

		w, env := serve(t, a, http.MethodPost, "/login", `{"email":"ada@example.com","password":"secret"}`)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, string(httpx.ErrMfaRequired), env.Data["status"])
	})

	t.Run("rejected login carries the backend message", func(t *testing.T) {
		fb := newFakeBackend()
		fb.loginErr = &backend.APIError{Status: http.StatusOK, Message: "Account suspended"}
		a := newTestContext(t, fb, storage.NewMemory())

		w, env := serve(t, a, http.MethodPost, "/login", `{"email":"ada@example.com","password":"secret"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", env.Error.Code)
		assert.Equal(t, "Account suspended", env.Error.Message)
		assert.JSONEq(t, `{"kind":"suspended","title":"Account suspended"}`, string(env.Error.Details))
	})

	t.Run("invalid email", func(t *testing.T) {
		fb := newFakeBackend()
		a := newTestContext(t, fb, storage.NewMemory())

		w, env := serve(t, a, http.MethodPost, "/login", `{"email":"nope","password":"secret"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "validation_failed", env.Error.Code)
		assert.Zero(t, fb.count("login"))
	})

	t.Run("backend unreachable", func(t *testing.T) {
		fb := newFakeBackend()
		fb.loginErr = fmt.Errorf("%w: dial tcp", backend.ErrNetwork)
		a := newTestContext(t, fb, storage.NewMemory())

		w, env := serve(t, a, http.MethodPost, "/login", `{"email":"ada@example.com","password":"secret"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "upstream_unavailable", env.Error.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		a := newTestContext(t, newFakeBackend(), storage.NewMemory())
		r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{}`))
		r.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		NewAuthenticationHandler(a, zap.NewNop()).Routes().ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})
}

func TestHandlerVerifyMfaWithoutChallenge(t *testing.T) {
	a := newTestContext(t, newFakeBackend(), storage.NewMemory())
	w, env := serve(t, a, http.MethodPost, "/mfa/verify", `{"userId":"42","code":"123456"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "request_rejected", env.Error.Code)
}

func TestHandlerResetPasswordRejected(t *testing.T) {
	fb := newFakeBackend()
	fb.statusErr = &backend.APIError{Status: http.StatusBadRequest, Message: "Reset link has expired"}
	a := newTestContext(t, fb, storage.NewMemory())

	w, env := serve(t, a, http.MethodPost, "/reset-password",
		`{"token":"t","newPassword":"Passw0rd!","confirmNewPassword":"Passw0rd!"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Reset link has expired", env.Error.Message)
}

func TestHandlerMe(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend()
	fb.loginResp = successResponse(validToken(t))
	a := newTestContext(t, fb, storage.NewMemory())

	w, env := serve(t, a, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "loading", env.Error.Code)

	require.NoError(t, a.Init(ctx))
	w, _ = serve(t, a, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, err := a.Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err)
	w, env = serve(t, a, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "authenticated", env.Data["status"])

	w, env = serve(t, a, http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "logged_out", env.Data["status"])
	assert.False(t, a.IsAuthenticated())
}
