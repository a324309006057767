package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "PORT", "GENERATION_CONCURRENCY", "GENERATION_TIMEOUT_SECONDS",
		"EXPORT_CONCURRENCY", "EXPORT_JPEG_QUALITY", "GEMINI_IMAGE_MODEL", "STORAGE_PATH",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Persistent() {
		t.Fatal("expected in-memory mode without DATABASE_URL")
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
	if cfg.GenerationConcurrency != 4 {
		t.Fatalf("GenerationConcurrency = %d, want 4", cfg.GenerationConcurrency)
	}
	if cfg.GenerationTimeout != 90*time.Second {
		t.Fatalf("GenerationTimeout = %s, want 90s", cfg.GenerationTimeout)
	}
	if cfg.ExportConcurrency != 1 || cfg.ExportJPEGQuality != 90 {
		t.Fatalf("export defaults mismatch: %d %d", cfg.ExportConcurrency, cfg.ExportJPEGQuality)
	}
	if cfg.GeminiImageModel != "gemini-2.5-flash-image" {
		t.Fatalf("GeminiImageModel mismatch: %q", cfg.GeminiImageModel)
	}
	if cfg.StoragePath != "./storage" {
		t.Fatalf("StoragePath mismatch: %q", cfg.StoragePath)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("GENERATION_CONCURRENCY", "8")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "5")
	t.Setenv("EXPORT_CONCURRENCY", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.Persistent() {
		t.Fatal("expected persistent mode")
	}
	if cfg.GenerationConcurrency != 8 || cfg.GenerationTimeout != 5*time.Second || cfg.ExportConcurrency != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigClampsInvalidValues(t *testing.T) {
	t.Setenv("GENERATION_CONCURRENCY", "0")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "-1")
	t.Setenv("EXPORT_CONCURRENCY", "nope")
	t.Setenv("EXPORT_JPEG_QUALITY", "101")
	t.Setenv("DB_MAX_CONNS", "-3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GenerationConcurrency != 1 {
		t.Fatalf("GenerationConcurrency = %d, want 1", cfg.GenerationConcurrency)
	}
	if cfg.GenerationTimeout != 90*time.Second {
		t.Fatalf("GenerationTimeout = %s, want 90s", cfg.GenerationTimeout)
	}
	if cfg.ExportConcurrency != 1 {
		t.Fatalf("ExportConcurrency = %d, want 1", cfg.ExportConcurrency)
	}
	if cfg.ExportJPEGQuality != 90 {
		t.Fatalf("ExportJPEGQuality = %d, want 90", cfg.ExportJPEGQuality)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("DBMaxConns = %d, want 10", cfg.DBMaxConns)
	}
}

func TestLoadConfigAllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://localhost:5173, ,https://asseto.app ")
	t.Setenv("DEFAULT_LOCALE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "http://localhost:5173" || cfg.AllowedOrigins[1] != "https://asseto.app" {
		t.Fatalf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
	if cfg.DefaultLocale != "en" {
		t.Fatalf("DefaultLocale = %q, want en", cfg.DefaultLocale)
	}
}
