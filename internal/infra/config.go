package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	LogLevel         string
	Port             string
	DatabaseURL      string
	DBMaxConns       int
	GeoIPDBPath      string
	StoragePath      string
	GeminiAPIKey     string
	GeminiImageModel string
	GeminiTextModel  string
	GeminiBaseURL    string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	OpenAIOrg        string

	GenerationConcurrency int
	GenerationTimeout     time.Duration
	ExportConcurrency     int
	ExportJPEGQuality     int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	AllowedOrigins []string
	DefaultLocale  string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// DATABASE_URL is optional; without it projects live in memory only.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 10),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:        os.Getenv("OPENAI_ORG"),

		GenerationConcurrency: getEnvInt("GENERATION_CONCURRENCY", 4),
		GenerationTimeout:     time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 90)),
		ExportConcurrency:     getEnvInt("EXPORT_CONCURRENCY", 1),
		ExportJPEGQuality:     getEnvInt("EXPORT_JPEG_QUALITY", 90),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		DefaultLocale:  getEnv("DEFAULT_LOCALE", "en"),
	}

	if cfg.GenerationConcurrency < 1 {
		cfg.GenerationConcurrency = 1
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 90 * time.Second
	}
	if cfg.ExportConcurrency < 1 {
		cfg.ExportConcurrency = 1
	}
	if cfg.DBMaxConns < 1 {
		cfg.DBMaxConns = 10
	}
	if cfg.ExportJPEGQuality < 1 || cfg.ExportJPEGQuality > 100 {
		cfg.ExportJPEGQuality = 90
	}

	return cfg, nil
}

// Persistent reports whether a database is configured.
func (c *Config) Persistent() bool {
	return c != nil && c.DatabaseURL != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
