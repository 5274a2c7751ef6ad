package antinuke

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ConfigStore is read on every evaluation. Implementations must not cache,
// so configuration changes apply to the next incident.
type ConfigStore interface {
	// GetPolicy reports ok=false when the module is disabled in the guild.
	GetPolicy(ctx context.Context, guildID string, module ModuleID) (policy Policy, ok bool, err error)
	GetExemptions(ctx context.Context, guildID string) (Exemptions, error)
	GetLogChannel(ctx context.Context, guildID string) (string, error)
	GetOwner(ctx context.Context, guildID string) (string, error)
}

type Platform interface {
	Guild(ctx context.Context, guildID string) (GuildInfo, error)
	Member(ctx context.Context, guildID, userID string) (Member, error)
	Ban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	StripRoles(ctx context.Context, guildID, userID, reason string) error
}

type Notifier interface {
	SendChannel(ctx context.Context, channelID string, report Report) error
	SendDirect(ctx context.Context, userID string, report Report) error
}

type Auditor interface {
	Log(ctx context.Context, level, guildID, userID, event, details string) error
}

// Audit levels, kept in step with the audit package.
const (
	auditWarn = "WARN"
	auditCrit = "CRIT"
)

type Config struct {
	Window   time.Duration
	Debounce time.Duration
}

type Deps struct {
	Store     ConfigStore
	Platform  Platform
	Notifier  Notifier
	Debouncer Debouncer
	Auditor   Auditor
	Metrics   *Metrics
	Logger    *zap.Logger
}

type Engine struct {
	store      ConfigStore
	platform   Platform
	debouncer  Debouncer
	dispatcher *Dispatcher
	auditor    Auditor
	window     *ActionWindow
	metrics    *Metrics
	logger     *zap.Logger
	clock      Clock
	wg         sync.WaitGroup
}

func New(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debouncer := deps.Debouncer
	if debouncer == nil {
		debouncer = NewMemoryDebouncer(cfg.Debounce)
	}
	return &Engine{
		store:      deps.Store,
		platform:   deps.Platform,
		debouncer:  debouncer,
		dispatcher: NewDispatcher(deps.Platform, deps.Notifier, deps.Store, logger, deps.Metrics),
		auditor:    deps.Auditor,
		window:     NewActionWindow(cfg.Window),
		metrics:    deps.Metrics,
		logger:     logger,
		clock:      realClock{},
	}
}

// WithClock replaces the clock used by the engine and its dispatcher. The
// debouncer keeps its own clock.
func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
	e.dispatcher.WithClock(clock)
}

func (e *Engine) Window() *ActionWindow { return e.window }

// Evaluate runs the full pipeline for one incident. Skips are reported
// through the outcome with a nil error; errors are store or platform
// lookups that failed, or an *ExecutionError when the punishment itself
// was rejected.
func (e *Engine) Evaluate(ctx context.Context, incident Incident) (Outcome, error) {
	if incident.DetectedAt.IsZero() {
		incident.DetectedAt = e.clock.Now()
	}
	outcome, err := e.evaluate(ctx, incident)
	e.metrics.observeOutcome(incident.Module, outcome)
	return outcome, err
}

func (e *Engine) evaluate(ctx context.Context, incident Incident) (Outcome, error) {
	guild, err := e.platform.Guild(ctx, incident.GuildID)
	if err != nil {
		return OutcomeError, fmt.Errorf("load guild: %w", err)
	}
	if !CanEnforce(guild) {
		return OutcomeNoPermission, nil
	}
	if incident.ActorID == guild.Agent.ID {
		return OutcomeExempt, nil
	}

	policy, ok, err := e.store.GetPolicy(ctx, incident.GuildID, incident.Module)
	if err != nil {
		return OutcomeError, fmt.Errorf("load policy: %w", err)
	}
	if !ok {
		return OutcomeDisabled, nil
	}

	var (
		exemptions Exemptions
		actor      Member
		actorErr   error
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		loaded, err := e.store.GetExemptions(groupCtx, incident.GuildID)
		if err != nil {
			return fmt.Errorf("load exemptions: %w", err)
		}
		exemptions = loaded
		return nil
	})
	group.Go(func() error {
		actor, actorErr = e.platform.Member(groupCtx, incident.GuildID, incident.ActorID)
		return nil
	})
	if err := group.Wait(); err != nil {
		return OutcomeError, err
	}

	if IsExempt(incident.ActorID, guild, exemptions) {
		return OutcomeExempt, nil
	}

	if incident.ExplicitRole == "" {
		count := e.window.RecordAndCount(incident.Module, incident.GuildID, incident.ActorID, e.clock.Now())
		if !policy.Over(count) {
			return OutcomeBelowThreshold, nil
		}
	}

	if actorErr != nil {
		e.logger.Debug("actor lookup failed",
			zap.String("guild_id", incident.GuildID),
			zap.String("actor_id", incident.ActorID),
			zap.Error(actorErr),
		)
		return OutcomeUnknownActor, nil
	}
	if !HierarchyOK(actor.Rank, guild.Agent.Rank) {
		return OutcomeHierarchy, nil
	}
	if !e.debouncer.TryAcquire(ctx, incident.Module, incident.GuildID) {
		return OutcomeDebounced, nil
	}

	action := Decide(policy, actor, incident.GuildID, incident.Reason)
	action.ID = uuid.NewString()

	report, err := e.dispatcher.Dispatch(ctx, guild, incident.Module, action, incident.DetectedAt)
	if err != nil {
		e.audit(ctx, auditWarn, incident.GuildID, actor.ID, "antinuke_failed",
			fmt.Sprintf("module=%s kind=%s incident=%s err=%v", incident.Module, action.Kind, action.ID, err))
		return OutcomeFailed, err
	}
	e.audit(ctx, auditCrit, incident.GuildID, actor.ID, "antinuke_punish",
		fmt.Sprintf("module=%s kind=%s incident=%s took=%s", incident.Module, report.Kind, report.IncidentID, report.Took))
	return OutcomePunished, nil
}

func (e *Engine) audit(ctx context.Context, level, guildID, userID, event, details string) {
	if e.auditor == nil {
		return
	}
	if err := e.auditor.Log(ctx, level, guildID, userID, event, details); err != nil {
		e.logger.Warn("audit log failed", zap.String("guild_id", guildID), zap.String("event", event), zap.Error(err))
	}
}

// Submit evaluates the incident on its own goroutine. Errors and panics are
// logged and never reach the caller.
func (e *Engine) Submit(incident Incident) {
	if incident.DetectedAt.IsZero() {
		incident.DetectedAt = e.clock.Now()
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("antinuke pipeline panic",
					zap.String("guild_id", incident.GuildID),
					zap.String("module", string(incident.Module)),
					zap.Any("panic", r),
				)
			}
		}()

		outcome, err := e.Evaluate(context.Background(), incident)
		fields := []zap.Field{
			zap.String("guild_id", incident.GuildID),
			zap.String("actor_id", incident.ActorID),
			zap.String("module", string(incident.Module)),
			zap.String("outcome", string(outcome)),
		}
		switch {
		case err != nil:
			e.logger.Warn("antinuke pipeline failed", append(fields, zap.Error(err))...)
		case outcome == OutcomePunished:
			e.logger.Info("antinuke punished actor", fields...)
		default:
			e.logger.Debug("antinuke skipped incident", fields...)
		}
	}()
}

// Close waits for in-flight pipelines or until ctx is done.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
