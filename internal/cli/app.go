package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mehmetcc/billadmin/internal/auth"
	"github.com/mehmetcc/billadmin/internal/backend"
	"github.com/mehmetcc/billadmin/internal/config"
	"github.com/mehmetcc/billadmin/internal/database"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/metrics"
	"github.com/mehmetcc/billadmin/internal/session"
	"github.com/mehmetcc/billadmin/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// App is one process worth of wiring: storage, backend client and the auth
// context built over them.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Auth     auth.Context
	kv       storage.KV
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, platform httpx.Platform) (*App, error) {
	kv, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client := backend.NewAuthClient(
		cfg.BackendConfig.URL,
		&http.Client{Timeout: cfg.BackendConfig.Timeout},
		httpx.ClientMeta{Platform: platform, AppVersion: cfg.AppConfig.Version},
		logger.Named("backend"),
	)

	a := auth.NewContext(auth.Options{
		Backend:   client,
		Store:     session.NewSessionStore(kv, logger.Named("session")),
		Logger:    logger.Named("auth"),
		Metrics:   m,
		Wildcards: cfg.SecurityConfig.PermissionWildcards,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		Auth:     a,
		kv:       kv,
	}, nil
}

func (a *App) Close() error {
	return a.kv.Close()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.KV, error) {
	sc := cfg.StorageConfig
	var kv storage.KV
	switch sc.Driver {
	case config.DriverMemory:
		kv = storage.NewMemory()
	case config.DriverFile:
		kv = storage.NewFile(sc.Path, logger.Named("storage"))
	case config.DriverRedis:
		client, err := storage.NewRedisUniversalClient(sc.RedisAddr)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		kv = storage.NewRedis(client)
	case config.DriverPostgres:
		db, err := database.Init(ctx, cfg.DbConfig)
		if err != nil {
			return nil, err
		}
		database.SetMigrationLogger(logger.Named("migrate"))
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		kv = storage.NewPostgres(db, logger.Named("storage"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}

	logger.Debug("session storage ready", zap.String("driver", sc.Driver), zap.String("namespace", sc.Namespace))
	if sc.Namespace == "" {
		return kv, nil
	}
	return storage.WithPrefix(kv, sc.Namespace+":"), nil
}
