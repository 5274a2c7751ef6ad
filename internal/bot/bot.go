package bot

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"sentinel-antinuke/internal/analytics"
	"sentinel-antinuke/internal/antinuke"
	"sentinel-antinuke/internal/config"
	"sentinel-antinuke/internal/modules/audit"
	"sentinel-antinuke/internal/storage"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     storage.Backend
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	platform  *platform
	engine    *antinuke.Engine
	stop      chan struct{}
	stopOnce  sync.Once
}

func New(cfg config.Config, logger *zap.Logger, store storage.Backend, auditLogger *audit.Logger, analyticsService *analytics.Service, debouncer antinuke.Debouncer, metrics *antinuke.Metrics) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	// audit log entries are delivered with the moderation (bans) intent
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans

	p, err := newPlatform(session, cfg.Antinuke.MemberCacheTTL())
	if err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsService,
		session:   session,
		platform:  p,
		stop:      make(chan struct{}),
	}
	b.engine = antinuke.New(antinuke.Config{
		Window:   cfg.Antinuke.Window(),
		Debounce: cfg.Antinuke.Debounce(),
	}, antinuke.Deps{
		Store:     store,
		Platform:  p,
		Notifier:  &notifier{session: session, color: cfg.Notifications.EmbedColors.Action},
		Debouncer: debouncer,
		Auditor:   auditLogger,
		Metrics:   metrics,
		Logger:    logger.Named("antinuke"),
	})
	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onAuditLogEntry)
	b.session.AddHandler(b.onGuildDelete)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startRetention()
	return nil
}

// Close stops background work, waits for in-flight punishments and closes
// the gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.stopOnce.Do(func() { close(b.stop) })
	if err := b.engine.Close(ctx); err != nil {
		b.logger.Warn("antinuke pipelines still running at shutdown", zap.Error(err))
	}
	if b.session != nil {
		_ = b.session.Close()
	}
	b.platform.close()
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onAuditLogEntry(session *discordgo.Session, event *discordgo.GuildAuditLogEntryCreate) {
	if event == nil || event.AuditLogEntry == nil {
		return
	}
	if session.State.User != nil && event.UserID == session.State.User.ID {
		return
	}

	var roles []*discordgo.Role
	if guild, err := session.State.Guild(event.GuildID); err == nil && guild != nil {
		roles = guild.Roles
	}
	incident, ok := incidentFromEntry(event.GuildID, event.AuditLogEntry, roles)
	if !ok {
		return
	}
	b.engine.Submit(incident)
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, event *discordgo.GuildDelete) {
	if event == nil || event.Guild == nil || event.Unavailable {
		return
	}
	b.engine.Window().ResetGuild(event.ID)
	b.logger.Info("left guild", zap.String("guild_id", event.ID))
}

func (b *Bot) startRetention() {
	if b.cfg.RetentionDays <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			b.cleanupAuditLogs()
			select {
			case <-ticker.C:
			case <-b.stop:
				return
			}
		}
	}()
}

func (b *Bot) cleanupAuditLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays); err != nil {
		b.logger.Warn("audit retention cleanup failed", zap.Error(err))
	}
}
