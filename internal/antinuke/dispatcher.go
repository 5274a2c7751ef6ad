package antinuke

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Dispatcher carries out a decided punishment and reports the outcome.
// A failed platform call is returned as *ExecutionError and nothing is
// reported; a failed report is logged and dropped.
type Dispatcher struct {
	platform Platform
	notifier Notifier
	store    ConfigStore
	clock    Clock
	logger   *zap.Logger
	metrics  *Metrics
}

func NewDispatcher(platform Platform, notifier Notifier, store ConfigStore, logger *zap.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		platform: platform,
		notifier: notifier,
		store:    store,
		clock:    realClock{},
		logger:   logger,
		metrics:  metrics,
	}
}

func (d *Dispatcher) WithClock(clock Clock) {
	d.clock = clock
}

func (d *Dispatcher) Dispatch(ctx context.Context, guild GuildInfo, module ModuleID, action Action, detectedAt time.Time) (Report, error) {
	if err := d.execute(ctx, action); err != nil {
		d.metrics.observeFailure(action.Kind)
		return Report{}, &ExecutionError{Action: action, Err: err}
	}

	elapsed := d.clock.Now().Sub(detectedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	d.metrics.observePunishment(action.Kind, elapsed)

	report := Report{
		IncidentID: action.ID,
		GuildID:    guild.ID,
		GuildName:  guild.Name,
		Module:     module,
		Target:     action.Target,
		Kind:       action.Kind,
		Reason:     action.Reason,
		Elapsed:    elapsed,
		Took:       FormatElapsed(elapsed),
	}
	if !d.notify(ctx, guild, report) {
		d.metrics.observeNotifyFailure()
	}
	return report, nil
}

func (d *Dispatcher) execute(ctx context.Context, action Action) error {
	switch action.Kind {
	case PunishBan:
		return d.platform.Ban(ctx, action.GuildID, action.Target.ID, action.Reason)
	case PunishKick:
		return d.platform.Kick(ctx, action.GuildID, action.Target.ID, action.Reason)
	case PunishStripRoles:
		return d.platform.StripRoles(ctx, action.GuildID, action.Target.ID, action.Reason)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPunishment, action.Kind)
	}
}

// notify prefers the guild's log channel and falls back to a direct message
// to the antinuke owner, or the guild owner when none is stored.
func (d *Dispatcher) notify(ctx context.Context, guild GuildInfo, report Report) bool {
	channelID, err := d.store.GetLogChannel(ctx, guild.ID)
	if err != nil {
		d.logger.Debug("log channel lookup failed", zap.String("guild_id", guild.ID), zap.Error(err))
	}
	if channelID != "" {
		err := d.notifier.SendChannel(ctx, channelID, report)
		if err == nil {
			return true
		}
		d.logger.Debug("log channel report failed", zap.String("guild_id", guild.ID), zap.String("channel_id", channelID), zap.Error(err))
	}

	ownerID, err := d.store.GetOwner(ctx, guild.ID)
	if err != nil {
		d.logger.Debug("owner lookup failed", zap.String("guild_id", guild.ID), zap.Error(err))
	}
	if ownerID == "" {
		ownerID = guild.OwnerID
	}
	if ownerID == "" {
		return false
	}
	if err := d.notifier.SendDirect(ctx, ownerID, report); err != nil {
		d.logger.Debug("owner report failed", zap.String("guild_id", guild.ID), zap.String("owner_id", ownerID), zap.Error(err))
		return false
	}
	return true
}

// FormatElapsed renders sub-second durations in milliseconds and anything
// longer in words.
func FormatElapsed(elapsed time.Duration) string {
	if elapsed < time.Second {
		return fmt.Sprintf("%dms", elapsed.Milliseconds())
	}
	start := time.Unix(0, 0)
	return strings.TrimSpace(humanize.RelTime(start, start.Add(elapsed), "", ""))
}
