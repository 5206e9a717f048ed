package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mehmetcc/billadmin/internal/auth"
	"github.com/mehmetcc/billadmin/internal/backend"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/metrics"
	"github.com/mehmetcc/billadmin/internal/session"
	"github.com/mehmetcc/billadmin/internal/storage"
	"github.com/mehmetcc/billadmin/internal/token/tokentest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	auth   auth.Context
	router http.Handler
}

func newFixture(t *testing.T, permissions ...string) *fixture {
	t.Helper()
	raw := tokentest.Expiring(t, time.Now(), time.Hour, jwt.MapClaims{"permissions": permissions})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case backend.LoginPath:
			fmt.Fprintf(w, `{"success":true,"data":{"accessToken":%q,"user":{"id":1,"email":"ada@example.com"}}}`, raw)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a := auth.NewContext(auth.Options{
		Backend: backend.NewAuthClient(upstream.URL, upstream.Client(), httpx.ClientMeta{Platform: httpx.PlatformWeb}, logger),
		Store:   session.NewSessionStore(storage.NewMemory(), logger),
		Logger:  logger,
		Metrics: m,
	})
	return &fixture{
		auth: a,
		router: NewRouter(Options{
			Auth:        a,
			Logger:      logger,
			Metrics:     m,
			Gatherer:    reg,
			CORSOrigins: []string{"http://localhost:5173"},
		}),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestGuardedViews(t *testing.T) {
	f := newFixture(t, "Invoices.View")

	w := f.do(t, http.MethodGet, "/invoices", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, f.auth.Init(context.Background()))
	w = f.do(t, http.MethodGet, "/invoices?status=open", "")
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/invoices?status=open", loc.Query().Get("returnTo"))

	f.login(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/invoices", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/customers", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/settings", "").Code)
}

func TestMenu(t *testing.T) {
	f := newFixture(t, "Invoices.View", "Roles.View")
	require.NoError(t, f.auth.Init(context.Background()))
	f.login(t)

	w := f.do(t, http.MethodGet, "/menu", "")
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data []struct {
			Key      string `json:"key"`
			Children []struct {
				Key string `json:"key"`
			} `json:"children"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data, 3)
	assert.Equal(t, "dashboard", env.Data[0].Key)
	assert.Equal(t, "invoices", env.Data[1].Key)
	assert.Equal(t, "administration", env.Data[2].Key)
	require.Len(t, env.Data[2].Children, 1)
	assert.Equal(t, "roles", env.Data[2].Children[0].Key)
}

func TestLoginPage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.auth.Init(context.Background()))

	w := f.do(t, http.MethodGet, "/login?returnTo=/reports", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"returnTo":"/reports"`)

	f.login(t)
	w = f.do(t, http.MethodGet, "/login?returnTo=/reports", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/reports", w.Header().Get("Location"))

	w = f.do(t, http.MethodGet, "/reset-password?email=ada%40example.com", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ada@example.com"`)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.auth.Init(context.Background()))
	f.do(t, http.MethodGet, "/invoices", "")

	w := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"session":"unauthenticated"`)

	w = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `billadmin_guard_decisions_total{decision="redirect_login"} 1`)
	assert.Contains(t, w.Body.String(), `billadmin_auth_hydrations_total{result="empty"} 1`)
}

func TestLocalPath(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/invoices?page=2":     "/invoices?page=2",
		"https://evil.example": "/",
		"//evil.example/path":  "/",
		"/\\evil.example":      "/",
		"invoices":             "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, localPath(in), in)
	}
}
