package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// AppConfig is the local console server. LoginRateLimit is the number of
// /auth requests allowed per minute per client.
type AppConfig struct {
	Port           string `validate:"required,numeric"`
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	Version        string
	CORSOrigins    []string
	LoginRateLimit int `validate:"gte=1"`
}

type BackendConfig struct {
	URL     string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

type StorageConfig struct {
	Driver    string `validate:"oneof=memory file redis postgres"`
	Path      string `validate:"required_if=Driver file"`
	Namespace string
	RedisAddr string `validate:"required_if=Driver redis"`
}

type DbConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

type SecurityConfig struct {
	PermissionWildcards bool
}

type Config struct {
	AppConfig      *AppConfig
	BackendConfig  *BackendConfig
	StorageConfig  *StorageConfig
	DbConfig       *DbConfig
	SecurityConfig *SecurityConfig
}

// LoadConfig reads the environment after loading envFiles (default ".env").
// Missing env files are skipped; unset variables take their defaults and
// malformed ones are errors.
func LoadConfig(logger *zap.Logger, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("env file not found, using environment", zap.String("file", f))
				continue
			}
			logger.Error("failed to load env file", zap.String("file", f), zap.Error(err))
			return nil, err
		}
	}

	/** app config */
	readTimeout, err := durationEnv("APP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := durationEnv("APP_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := durationEnv("APP_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	rateLimit, err := intEnv("LOGIN_RATE_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	appConfig := &AppConfig{
		Port:           stringEnv("APP_PORT", "8080"),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		Version:        stringEnv("APP_VERSION", "dev"),
		CORSOrigins:    listEnv("CORS_ORIGINS", []string{"http://localhost:5173"}),
		LoginRateLimit: rateLimit,
	}

	/** backend config */
	backendTimeout, err := durationEnv("BACKEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	backendConfig := &BackendConfig{
		URL:     strings.TrimRight(stringEnv("BACKEND_URL", "http://localhost:5000"), "/"),
		Timeout: backendTimeout,
	}

	/** storage config */
	storageConfig := &StorageConfig{
		Driver:    strings.ToLower(stringEnv("STORAGE_DRIVER", DriverFile)),
		Path:      stringEnv("STORAGE_PATH", defaultStoragePath()),
		Namespace: os.Getenv("STORAGE_NAMESPACE"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
	}

	/** db config */
	maxOpenConns, err := intEnv("DB_MAX_OPEN_CONNS", 5)
	if err != nil {
		return nil, err
	}
	maxIdleConns, err := intEnv("DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return nil, err
	}
	maxConnLifetime, err := durationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	dbConfig := &DbConfig{
		DSN:             os.Getenv("POSTGRES_DSN"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		MaxConnLifetime: maxConnLifetime,
	}

	/** security config */
	wildcards, err := boolEnv("PERMISSION_WILDCARDS", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppConfig:      appConfig,
		BackendConfig:  backendConfig,
		StorageConfig:  storageConfig,
		DbConfig:       dbConfig,
		SecurityConfig: &SecurityConfig{PermissionWildcards: wildcards},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	for _, s := range []any{c.AppConfig, c.BackendConfig, c.StorageConfig} {
		if err := v.Struct(s); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	if c.StorageConfig.Driver == DriverPostgres && c.DbConfig.DSN == "" {
		return errors.New("invalid config: POSTGRES_DSN is required for the postgres storage driver")
	}
	return nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".billadmin", "session.json")
	}
	return filepath.Join(dir, "billadmin", "session.json")
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func listEnv(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
