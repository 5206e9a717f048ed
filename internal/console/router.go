// Package console is the local HTTP surface of billadmin: auth endpoints,
// the permission-filtered menu and the guarded views behind it.
package console

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/mehmetcc/billadmin/internal/auth"
	"github.com/mehmetcc/billadmin/internal/guard"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/metrics"
	"github.com/mehmetcc/billadmin/internal/nav"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"moul.io/chizap"
)

// Options configures NewRouter. A nil Gatherer disables /metrics.
type Options struct {
	Auth           auth.Context
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Menu           []nav.Item
	CORSOrigins    []string
	LoginRateLimit int
	Guard          guard.Config
}

func NewRouter(o Options) chi.Router {
	if o.Menu == nil {
		o.Menu = nav.DefaultMenu()
	}
	if o.LoginRateLimit <= 0 {
		o.LoginRateLimit = 10
	}
	if o.Guard.LoginPath == "" {
		o.Guard.LoginPath = "/login"
	}
	if o.Guard.ResetPath == "" {
		o.Guard.ResetPath = "/reset-password"
	}
	o.Guard.Logger = o.Logger
	o.Guard.Metrics = o.Metrics

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(chizap.New(o.Logger, &chizap.Opts{WithReferer: true, WithUserAgent: true}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", httpx.HeaderCorrelationID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	pages := &pageHandler{auth: o.Auth}

	r.Get("/healthz", pages.Health)
	if o.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(o.LoginRateLimit, time.Minute))
		r.Mount("/auth", auth.NewAuthenticationHandler(o.Auth, o.Logger).Routes())
	})

	r.Get(o.Guard.LoginPath, pages.Login)
	r.Get(o.Guard.ResetPath, pages.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware(o.Auth, o.Guard))
		r.Get("/menu", pages.Menu(o.Menu))
		for _, item := range leaves(o.Menu) {
			r.With(guard.RequirePermission(o.Auth, item.Permissions...)).Get(item.Path, pages.View(item))
		}
	})
	return r
}

// leaves flattens groups into the entries that own a view.
func leaves(items []nav.Item) []nav.Item {
	var out []nav.Item
	for _, it := range items {
		if len(it.Children) > 0 {
			out = append(out, leaves(it.Children)...)
			continue
		}
		if it.Path != "" {
			out = append(out, it)
		}
	}
	return out
}

// NewServer applies the configured timeouts to h.
func NewServer(addr string, h http.Handler, read, write, idle time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}
}
