// Package guard decides whether a protected view may render for the current
// session and provides chi-compatible middleware around that decision.
package guard

import (
	"net/http"
	"net/url"

	"github.com/mehmetcc/billadmin/internal/auth"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/metrics"
	"github.com/mehmetcc/billadmin/internal/permission"
	"github.com/mehmetcc/billadmin/internal/person"
	"go.uber.org/zap"
)

type Decision int

const (
	Allow Decision = iota
	Loading
	RedirectLogin
	RedirectReset
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectReset:
		return "redirect_reset"
	default:
		return "unknown"
	}
}

// Session is the part of auth.Context the guard reads.
type Session interface {
	State() auth.State
	User() *person.Profile
	Permissions() *permission.Evaluator
}

// Decide applies, in order: loading, signed out, forced password change.
func Decide(state auth.State, user *person.Profile) Decision {
	switch {
	case state.Loading():
		return Loading
	case state != auth.StateAuthenticated || user == nil:
		return RedirectLogin
	case user.MustChangePassword:
		return RedirectReset
	default:
		return Allow
	}
}

type Config struct {
	LoginPath string
	ResetPath string
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

func (c Config) withDefaults() Config {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.ResetPath == "" {
		c.ResetPath = "/reset-password"
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// LoginTarget is the login page carrying the original destination.
func (c Config) LoginTarget(dest *url.URL) string {
	c = c.withDefaults()
	return c.LoginPath + "?" + url.Values{"returnTo": {dest.RequestURI()}}.Encode()
}

// ResetTarget is the password reset page prefilled with email.
func (c Config) ResetTarget(email string) string {
	c = c.withDefaults()
	return c.ResetPath + "?" + url.Values{"email": {email}}.Encode()
}

// Middleware renders nothing of the wrapped view unless Decide allows it.
func Middleware(s Session, cfg Config) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := s.User()
			decision := Decide(s.State(), user)
			cfg.Metrics.GuardDecision(decision.String())

			switch decision {
			case Loading:
				w.Header().Set("Retry-After", "1")
				httpx.WriteErrorCode(w, http.StatusServiceUnavailable, httpx.ErrLoading, "session is loading")
			case RedirectLogin:
				cfg.Logger.Debug("redirecting to login", zap.String("path", r.URL.Path))
				http.Redirect(w, r, cfg.LoginTarget(r.URL), http.StatusFound)
			case RedirectReset:
				cfg.Logger.Info("password change required", zap.String("user_id", string(user.ID)))
				http.Redirect(w, r, cfg.ResetTarget(user.Email), http.StatusFound)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequirePermission forbids the view unless any of required is granted.
// An empty list lets everyone through.
func RequirePermission(s Session, required ...string) func(http.Handler) http.Handler {
	return requireGrant(s, func(e *permission.Evaluator) bool { return e.HasAnyPermission(required...) })
}

func requireGrant(s Session, allowed func(*permission.Evaluator) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(s.Permissions()) {
				httpx.WriteErrorCode(w, http.StatusForbidden, httpx.ErrForbidden, "missing permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
