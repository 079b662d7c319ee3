package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v6"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via the config file or the environment.
type AppConfig struct {
	AppPort            string   `env:"APP_PORT"`
	JWTSecret          string   `env:"JWT_SECRET"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// Gin framework configuration
	GinMode string `env:"GIN_MODE"`
	GinPath string `env:"GIN_PATH"`
	// Database: mysql, postgres or sqlite
	DatabaseDriver string `env:"DATABASE_DRIVER"`
	DatabaseURI    string `env:"DATABASE_URI"`
	DBHost         string `env:"DB_HOST"`
	DBPort         string `env:"DB_PORT"`
	DBUser         string `env:"DB_USER"`
	DBPassword     string `env:"DB_PASSWORD"`
	DBName         string `env:"DB_NAME"`
	// Redis for page cache and token blacklist
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	// CacheBackend selects the page cache store: redis or memory
	CacheBackend     string `env:"CACHE_BACKEND"`
	PageCacheSeconds int    `env:"PAGE_CACHE_SECONDS"`
	PostsPerPage     int    `env:"POSTS_PER_PAGE"`
	// Session cookie
	SessionCookieName string `env:"SESSION_COOKIE_NAME"`
	SessionTTLHours   int    `env:"SESSION_TTL_HOURS"`
	SessionSecure     bool   `env:"SESSION_SECURE"`
	// Media storage for post images: local or minio
	MediaBackend   string `env:"MEDIA_BACKEND"`
	MediaRoot      string `env:"MEDIA_ROOT"`
	MediaURL       string `env:"MEDIA_URL"`
	MaxImageSizeMB int    `env:"MAX_IMAGE_SIZE_MB"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3UseSSL       bool   `env:"S3_USE_SSL"`
	S3PublicURL    string `env:"S3_PUBLIC_URL"`
	// Logging configuration
	LogLevel      string `env:"LOG_LEVEL"`
	LogPath       string `env:"LOG_PATH"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS"`
	LogCompress   bool   `env:"LOG_COMPRESS"`
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.Mutex
)

// ErrMissingSecret is returned when no JWT secret is configured.
var ErrMissingSecret = errors.New("JWT_SECRET must be set in config file or environment")

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	c, err := LoadFrom(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatal(err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.Lock()
	ok := loaded
	mu.Unlock()
	if !ok {
		return Load()
	}
	return cfg
}

// LoadFrom builds a configuration with precedence: JSON file -> defaults -> environment overrides.
// A missing file is not an error.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return c, fmt.Errorf("read %s: %w", path, err)
	}
	applyDefaults(&c)
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("read environment: %w", err)
	}
	if c.JWTSecret == "" {
		return c, ErrMissingSecret
	}
	return c, nil
}

// loadJSONConfig reads the JSON file into out. Both flat keys and grouped sections
// ({"app": {...}, "database": {...}}) are accepted; keys match AppConfig field names.
func loadJSONConfig(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return err
	}
	for _, section := range []string{"app", "gin", "database", "redis", "cache", "session", "media", "log"} {
		if v, ok := raw[section]; ok {
			if err := json.Unmarshal(v, out); err != nil {
				return fmt.Errorf("section %q: %w", section, err)
			}
		}
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DatabaseDriver == "" {
		c.DatabaseDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		switch c.DatabaseDriver {
		case "postgres":
			c.DBPort = "5432"
		default:
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "quill"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.CacheBackend == "" {
		c.CacheBackend = "redis"
	}
	if c.PageCacheSeconds == 0 {
		c.PageCacheSeconds = 20
	}
	if c.PostsPerPage == 0 {
		c.PostsPerPage = 10
	}
	if c.SessionCookieName == "" {
		c.SessionCookieName = "quill_session"
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 72
	}
	if c.MediaBackend == "" {
		c.MediaBackend = "local"
	}
	if c.MediaRoot == "" {
		c.MediaRoot = "media"
	}
	if c.MediaURL == "" {
		c.MediaURL = "/media/"
	}
	if c.MaxImageSizeMB == 0 {
		c.MaxImageSizeMB = 5
	}
	if c.S3Bucket == "" {
		c.S3Bucket = "quill"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}
