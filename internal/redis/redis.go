package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sentinel-antinuke/internal/antinuke"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type Client struct {
	client *redis.Client
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	network := "tcp"
	if len(cfg.Addr) > 0 && cfg.Addr[0] == '/' {
		network = "unix"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Network:      network,
		MaxRetries:   2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Client{client: rdb}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Debouncer keeps the punishment latch in redis so every process sharing the
// instance honours it. When redis is unreachable it falls back to a local
// latch rather than dropping or doubling punishments.
type Debouncer struct {
	client   *redis.Client
	ttl      time.Duration
	prefix   string
	fallback *antinuke.MemoryDebouncer
	logger   *zap.Logger
}

func NewDebouncer(c *Client, ttl time.Duration, logger *zap.Logger) *Debouncer {
	if ttl <= 0 {
		ttl = antinuke.DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		client:   c.client,
		ttl:      ttl,
		prefix:   "antinuke:latch:",
		fallback: antinuke.NewMemoryDebouncer(ttl),
		logger:   logger,
	}
}

func (d *Debouncer) TryAcquire(ctx context.Context, module antinuke.ModuleID, guildID string) bool {
	ok, err := d.client.SetNX(ctx, d.key(module, guildID), 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("redis latch failed, using local latch",
			zap.String("guild_id", guildID),
			zap.String("module", string(module)),
			zap.Error(err),
		)
		return d.fallback.TryAcquire(ctx, module, guildID)
	}
	return ok
}

func (d *Debouncer) key(module antinuke.ModuleID, guildID string) string {
	return d.prefix + string(module) + "-" + guildID
}
