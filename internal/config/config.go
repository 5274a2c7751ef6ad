package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string         `yaml:"discord_token"`
	LogLevel      string         `yaml:"log_level"`
	RetentionDays int            `yaml:"retention_days"`
	Database      DatabaseConfig `yaml:"database"`
	Antinuke      AntinukeConfig `yaml:"antinuke"`
	Redis         RedisConfig    `yaml:"redis"`
	HTTP          HTTPConfig     `yaml:"http"`
	Notifications NotifyConfig   `yaml:"notifications"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

type AntinukeConfig struct {
	WindowSeconds      int    `yaml:"window_seconds"`
	DebounceSeconds    int    `yaml:"debounce_seconds"`
	MemberCacheSeconds int    `yaml:"member_cache_seconds"`
	Preset             string `yaml:"preset"`
	DefaultPunishment  string `yaml:"default_punishment"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type NotifyConfig struct {
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		RetentionDays: 30,
		Database:      DatabaseConfig{Driver: DriverSQLite, Path: "/data/sentinel.db"},
		Antinuke: AntinukeConfig{
			WindowSeconds:      60,
			DebounceSeconds:    5,
			MemberCacheSeconds: 10,
			Preset:             "medium",
			DefaultPunishment:  "ban",
		},
		Redis: RedisConfig{Enabled: false, Addr: "localhost:6379"},
		HTTP:  HTTPConfig{Enabled: false, Addr: ":8080"},
		Notifications: NotifyConfig{
			EmbedColors: EmbedColors{
				Action:  0xF59E0B,
				Warning: 0xEF4444,
				Error:   0xF97316,
			},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = envString("DATABASE_PATH", cfg.Database.Path)
	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Antinuke.WindowSeconds = envInt("ANTINUKE_WINDOW_SECONDS", cfg.Antinuke.WindowSeconds)
	cfg.Antinuke.DebounceSeconds = envInt("ANTINUKE_DEBOUNCE_SECONDS", cfg.Antinuke.DebounceSeconds)
	cfg.Antinuke.MemberCacheSeconds = envInt("ANTINUKE_MEMBER_CACHE_SECONDS", cfg.Antinuke.MemberCacheSeconds)
	cfg.Antinuke.Preset = envString("ANTINUKE_PRESET", cfg.Antinuke.Preset)
	cfg.Antinuke.DefaultPunishment = envString("ANTINUKE_DEFAULT_PUNISHMENT", cfg.Antinuke.DefaultPunishment)
	cfg.Redis.Enabled = envBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.HTTP.Enabled = envBool("HTTP_ENABLED", cfg.HTTP.Enabled)
	cfg.HTTP.Addr = envString("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Notifications.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.Notifications.EmbedColors.Action)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
}

func (c *Config) normalize() error {
	defaults := DefaultConfig()

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", DriverSQLite:
		c.Database.Driver = DriverSQLite
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Antinuke.WindowSeconds <= 0 {
		c.Antinuke.WindowSeconds = defaults.Antinuke.WindowSeconds
	}
	if c.Antinuke.DebounceSeconds <= 0 {
		c.Antinuke.DebounceSeconds = defaults.Antinuke.DebounceSeconds
	}
	if c.Antinuke.MemberCacheSeconds < 0 {
		c.Antinuke.MemberCacheSeconds = 0
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = defaults.RetentionDays
	}
	c.Antinuke.Preset = normalizePreset(c.Antinuke.Preset)
	if c.Antinuke.DefaultPunishment == "" {
		c.Antinuke.DefaultPunishment = defaults.Antinuke.DefaultPunishment
	}
	return nil
}

func (a AntinukeConfig) Window() time.Duration {
	return time.Duration(a.WindowSeconds) * time.Second
}

func (a AntinukeConfig) Debounce() time.Duration {
	return time.Duration(a.DebounceSeconds) * time.Second
}

func (a AntinukeConfig) MemberCacheTTL() time.Duration {
	return time.Duration(a.MemberCacheSeconds) * time.Second
}

// PresetThreshold is the threshold the setup command applies to every module.
func (a AntinukeConfig) PresetThreshold() int {
	switch a.Preset {
	case "low":
		return 5
	case "high":
		return 1
	default:
		return 3
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizePreset(value string) string {
	switch strings.ToLower(value) {
	case "low", "medium", "high":
		return strings.ToLower(value)
	default:
		return "medium"
	}
}
