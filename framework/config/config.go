package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig
	Container ContainerConfig
	HTTP      HTTPConfig
}

type AppConfig struct {
	Name  string `validate:"required"`
	Env   string `validate:"oneof=local production testing"`
	Debug bool
	URL   string `validate:"omitempty,url"`
	Port  string `validate:"required,numeric"`
}

// ContainerConfig controls compilation and the compiled-container cache.
type ContainerConfig struct {
	CacheDir     string `validate:"required"`
	ServicesFile string
	Watch        bool
}

type HTTPConfig struct {
	CORSOrigins []string `validate:"dive,required"`
}

// Load reads .env (if present), populates a Config from environment
// variables and validates it.
// Call once at bootstrap: cfg, err := config.Load()
func Load(envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	debug := envBool("APP_DEBUG", true)
	cfg := &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "Swift"),
			Env:   env("APP_ENV", "local"),
			Debug: debug,
			URL:   env("APP_URL", "http://localhost"),
			Port:  env("APP_PORT", "8000"),
		},
		Container: ContainerConfig{
			CacheDir:     env("CONTAINER_CACHE_DIR", "var/cache"),
			ServicesFile: env("CONTAINER_SERVICES_FILE", "config/services.yaml"),
			Watch:        envBool("CONTAINER_WATCH", debug),
		},
		HTTP: HTTPConfig{
			CORSOrigins: envList("CORS_ALLOWED_ORIGINS"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.App.Env == "production" }

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envList splits a comma-separated value, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
