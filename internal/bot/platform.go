package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"sentinel-antinuke/internal/antinuke"
)

var errNoAgent = errors.New("bot user not ready")

// platform adapts a discordgo session to antinuke.Platform. Reads go to the
// gateway state first; REST fallbacks for members are cached briefly and
// coalesced so a burst of audit entries costs one request per member.
type platform struct {
	session *discordgo.Session
	members *ristretto.Cache
	ttl     time.Duration
	flight  singleflight.Group
}

func newPlatform(session *discordgo.Session, ttl time.Duration) (*platform, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100000,
		MaxCost:     10000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("member cache: %w", err)
	}
	return &platform{session: session, members: cache, ttl: ttl}, nil
}

func (p *platform) close() {
	p.members.Close()
}

func (p *platform) agentID() string {
	if p.session.State == nil || p.session.State.User == nil {
		return ""
	}
	return p.session.State.User.ID
}

func (p *platform) Guild(ctx context.Context, guildID string) (antinuke.GuildInfo, error) {
	guild, err := p.guild(guildID)
	if err != nil {
		return antinuke.GuildInfo{}, err
	}
	agentID := p.agentID()
	if agentID == "" {
		return antinuke.GuildInfo{}, errNoAgent
	}
	agent, err := p.member(ctx, guildID, agentID)
	if err != nil {
		return antinuke.GuildInfo{}, fmt.Errorf("agent member: %w", err)
	}

	return antinuke.GuildInfo{
		ID:      guild.ID,
		Name:    guild.Name,
		OwnerID: guild.OwnerID,
		Agent: antinuke.Member{
			ID:       agentID,
			Username: memberName(agent),
			Bot:      true,
			Rank:     topRank(guild, agent.Roles),
		},
		Capabilities: capabilitiesFor(memberPermissions(guild, agent.Roles)),
	}, nil
}

func (p *platform) Member(ctx context.Context, guildID, userID string) (antinuke.Member, error) {
	guild, err := p.guild(guildID)
	if err != nil {
		return antinuke.Member{}, err
	}
	member, err := p.member(ctx, guildID, userID)
	if err != nil {
		return antinuke.Member{}, err
	}
	return antinuke.Member{
		ID:       userID,
		Username: memberName(member),
		Bot:      member.User != nil && member.User.Bot,
		Rank:     topRank(guild, member.Roles),
	}, nil
}

func (p *platform) Ban(_ context.Context, guildID, userID, reason string) error {
	return p.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (p *platform) Kick(_ context.Context, guildID, userID, reason string) error {
	return p.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (p *platform) StripRoles(ctx context.Context, guildID, userID, reason string) error {
	guild, err := p.guild(guildID)
	if err != nil {
		return err
	}
	p.forget(guildID, userID)
	member, err := p.member(ctx, guildID, userID)
	if err != nil {
		return err
	}
	agent, err := p.member(ctx, guildID, p.agentID())
	if err != nil {
		return fmt.Errorf("agent member: %w", err)
	}

	keep := rolesToKeep(guild, member.Roles, topRank(guild, agent.Roles))
	_, err = p.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &keep}, discordgo.WithAuditLogReason(reason))
	p.forget(guildID, userID)
	return err
}

func (p *platform) guild(guildID string) (*discordgo.Guild, error) {
	if guild, err := p.session.State.Guild(guildID); err == nil && guild != nil {
		return guild, nil
	}
	guild, err := p.session.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s: %w", guildID, err)
	}
	return guild, nil
}

func (p *platform) member(_ context.Context, guildID, userID string) (*discordgo.Member, error) {
	if member, err := p.session.State.Member(guildID, userID); err == nil && member != nil {
		return member, nil
	}
	key := guildID + ":" + userID
	if cached, ok := p.members.Get(key); ok {
		return cached.(*discordgo.Member), nil
	}

	value, err, _ := p.flight.Do(key, func() (interface{}, error) {
		member, err := p.session.GuildMember(guildID, userID)
		if err != nil {
			return nil, err
		}
		if p.ttl > 0 {
			p.members.SetWithTTL(key, member, 1, p.ttl)
		}
		return member, nil
	})
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", userID, err)
	}
	return value.(*discordgo.Member), nil
}

func (p *platform) forget(guildID, userID string) {
	p.members.Del(guildID + ":" + userID)
}

func memberName(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return ""
	}
	return member.User.String()
}
