package antinuke

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ModuleID names a category of monitored administrative action.
type ModuleID string

const (
	ModuleBan           ModuleID = "ban"
	ModuleKick          ModuleID = "kick"
	ModuleRoleGiving    ModuleID = "role giving"
	ModuleChannelCreate ModuleID = "channel create"
	ModuleChannelDelete ModuleID = "channel delete"
	ModuleRoleCreate    ModuleID = "role create"
	ModuleRoleDelete    ModuleID = "role delete"
	ModuleWebhook       ModuleID = "webhook"
	ModuleBotAdd        ModuleID = "bot add"
	ModuleEmojiDelete   ModuleID = "emoji delete"
	ModuleEditGuild     ModuleID = "edit guild"
)

// KnownModules lists the modules the audit log source can raise.
var KnownModules = []ModuleID{
	ModuleBan,
	ModuleKick,
	ModuleRoleGiving,
	ModuleChannelCreate,
	ModuleChannelDelete,
	ModuleRoleCreate,
	ModuleRoleDelete,
	ModuleWebhook,
	ModuleBotAdd,
	ModuleEmojiDelete,
	ModuleEditGuild,
}

func ParseModule(value string) (ModuleID, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, module := range KnownModules {
		if string(module) == value {
			return module, true
		}
	}
	return "", false
}

type Punishment string

const (
	PunishBan        Punishment = "ban"
	PunishKick       Punishment = "kick"
	PunishStripRoles Punishment = "strip_roles"
)

var ErrUnknownPunishment = errors.New("unknown punishment")

func ParsePunishment(value string) (Punishment, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ban":
		return PunishBan, nil
	case "kick":
		return PunishKick, nil
	case "strip", "stripstaff", "strip_roles":
		return PunishStripRoles, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPunishment, value)
	}
}

// Policy is the per guild, per module configuration. Threshold 0 punishes
// the first occurrence.
type Policy struct {
	Threshold  int
	Punishment Punishment
}

// Over reports whether count crosses the policy: strictly greater than the
// threshold, or any occurrence at all for the zero sentinel.
func (p Policy) Over(count int) bool {
	if p.Threshold == 0 {
		return count >= 1
	}
	return count > p.Threshold
}

type Exemptions struct {
	Owner       string
	Admins      []string
	Whitelisted []string
}

// Rank is a member's effective position in the role hierarchy. The zero
// value means the member has no rank at all.
type Rank struct {
	position int
	present  bool
}

var NoRank = Rank{}

func RankOf(position int) Rank {
	return Rank{position: position, present: true}
}

func (r Rank) Present() bool { return r.present }

func (r Rank) Position() int { return r.position }

type Member struct {
	ID       string
	Username string
	Bot      bool
	Rank     Rank
}

type Capabilities struct {
	Ban         bool
	Kick        bool
	ManageRoles bool
}

// GuildInfo is a snapshot of the guild as seen by the enforcing agent.
type GuildInfo struct {
	ID           string
	Name         string
	OwnerID      string
	Agent        Member
	Capabilities Capabilities
}

// Incident is one monitored action raised by an event source.
type Incident struct {
	Module       ModuleID
	GuildID      string
	ActorID      string
	Reason       string
	ExplicitRole string
	DetectedAt   time.Time
}

type Action struct {
	ID      string
	GuildID string
	Target  Member
	Kind    Punishment
	Reason  string
}

// Report is the outcome notification for a completed punishment.
type Report struct {
	IncidentID string
	GuildID    string
	GuildName  string
	Module     ModuleID
	Target     Member
	Kind       Punishment
	Reason     string
	Elapsed    time.Duration
	Took       string
}

type Outcome string

const (
	OutcomeDisabled       Outcome = "disabled"
	OutcomeNoPermission   Outcome = "no_permission"
	OutcomeExempt         Outcome = "exempt"
	OutcomeBelowThreshold Outcome = "below_threshold"
	OutcomeUnknownActor   Outcome = "unknown_actor"
	OutcomeHierarchy      Outcome = "hierarchy"
	OutcomeDebounced      Outcome = "debounced"
	OutcomePunished       Outcome = "punished"
	OutcomeFailed         Outcome = "failed"
	OutcomeError          Outcome = "error"
)

// ExecutionError is returned when the platform rejects a punishment.
type ExecutionError struct {
	Action Action
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s in %s: %v", e.Action.Kind, e.Action.Target.ID, e.Action.GuildID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
