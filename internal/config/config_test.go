package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadRequiresToken(t *testing.T) {
	writeConfig(t, "log_level: debug\n")
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestLoadDefaults(t *testing.T) {
	writeConfig(t, "discord_token: abc\n")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Antinuke.Window() != time.Minute || cfg.Antinuke.Debounce() != 5*time.Second {
		t.Fatalf("unexpected antinuke timings %+v", cfg.Antinuke)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "/data/sentinel.db" {
		t.Fatalf("unexpected database %+v", cfg.Database)
	}
	if cfg.Antinuke.PresetThreshold() != 3 {
		t.Fatalf("expected medium preset, got %d", cfg.Antinuke.PresetThreshold())
	}
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	writeConfig(t, `
discord_token: from-file
antinuke:
  window_seconds: 30
  debounce_seconds: -1
  preset: HIGH
redis:
  enabled: true
  addr: redis:6379
`)
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("ANTINUKE_WINDOW_SECONDS", "45")
	t.Setenv("HTTP_ENABLED", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "from-env" {
		t.Fatalf("expected env token, got %q", cfg.DiscordToken)
	}
	if cfg.Antinuke.WindowSeconds != 45 {
		t.Fatalf("expected env window, got %d", cfg.Antinuke.WindowSeconds)
	}
	if cfg.Antinuke.DebounceSeconds != 5 {
		t.Fatalf("expected non-positive debounce to fall back, got %d", cfg.Antinuke.DebounceSeconds)
	}
	if cfg.Antinuke.Preset != "high" || cfg.Antinuke.PresetThreshold() != 1 {
		t.Fatalf("unexpected preset %q", cfg.Antinuke.Preset)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" || !cfg.HTTP.Enabled {
		t.Fatalf("unexpected redis/http %+v %+v", cfg.Redis, cfg.HTTP)
	}
}

func TestLoadRejectsPostgresWithoutURL(t *testing.T) {
	writeConfig(t, "discord_token: abc\ndatabase:\n  driver: postgres\n")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected postgres url error")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	writeConfig(t, "discord_token: abc\ndatabase:\n  driver: mongo\n")
	if _, err := Load(); err == nil {
		t.Fatalf("expected driver error")
	}
}

func TestBuildLogger(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "bogus"} {
		logger, err := BuildLogger(level)
		if err != nil {
			t.Fatalf("build logger %s: %v", level, err)
		}
		_ = logger.Sync()
	}
}
