package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "GRADING_FALLBACK_FRACTION", "GRADING_CONCURRENCY", "ENABLE_DEV_LOGINS", "LOG_MODE"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Mode != ModeOffline || c.HTTPAddr != ":8080" || c.DBDriver != "sqlite" {
		t.Fatalf("unexpected defaults: %#v", c)
	}
	if c.FallbackFraction != 0.5 || c.GradingConcurrency != 4 || !c.DevLogins || c.LogMode != "dev" {
		t.Fatalf("unexpected grading defaults: %#v", c)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("GRADING_FALLBACK_FRACTION", "1.7")
	t.Setenv("ORACLE_TIMEOUT_SECONDS", "12")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ENABLE_DEV_LOGINS", "")
	t.Setenv("LOG_MODE", "")

	c := FromEnv()
	if c.FallbackFraction != 1 {
		t.Fatalf("fraction must clamp to 1, got %v", c.FallbackFraction)
	}
	if c.OracleTimeout != 12*time.Second {
		t.Fatalf("timeout: %v", c.OracleTimeout)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("origins: %v", c.CORSOrigins)
	}
	if c.DevLogins || c.LogMode != "prod" {
		t.Fatalf("online mode must default to prod logging without dev logins: %#v", c)
	}

	t.Setenv("GRADING_FALLBACK_FRACTION", "-0.2")
	if f := FromEnv().FallbackFraction; f != 0 {
		t.Fatalf("negative fraction must clamp to 0, got %v", f)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	t.Setenv("ORACLE_MODEL", "")
	os.Unsetenv("ORACLE_MODEL")
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ORACLE_MODEL=grader-from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := Load(path).OracleModel; m != "grader-from-file" {
		t.Fatalf("expected model from .env, got %q", m)
	}
	os.Unsetenv("ORACLE_MODEL")
}
