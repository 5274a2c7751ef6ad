package bot

import (
	"github.com/bwmarrin/discordgo"

	"sentinel-antinuke/internal/antinuke"
)

// Permission bits not every discordgo release names the same way.
const (
	permissionManageGuild       int64 = 1 << 5
	permissionManageExpressions int64 = 1 << 30
	permissionManageEvents      int64 = 1 << 33
	permissionManageThreads     int64 = 1 << 34
	permissionModerateMembers   int64 = 1 << 40
)

const dangerousPermissions = discordgo.PermissionAdministrator |
	discordgo.PermissionBanMembers |
	discordgo.PermissionKickMembers |
	discordgo.PermissionMentionEveryone |
	discordgo.PermissionManageChannels |
	discordgo.PermissionManageRoles |
	discordgo.PermissionManageMessages |
	discordgo.PermissionManageWebhooks |
	discordgo.PermissionVoiceMuteMembers |
	discordgo.PermissionVoiceDeafenMembers |
	discordgo.PermissionVoiceMoveMembers |
	permissionManageGuild |
	permissionManageExpressions |
	permissionManageEvents |
	permissionManageThreads |
	permissionModerateMembers

// IsDangerous reports whether a role carrying perms can be used to nuke a
// guild.
func IsDangerous(perms int64) bool {
	return perms&dangerousPermissions != 0
}

// memberPermissions folds @everyone and the member's roles together.
func memberPermissions(guild *discordgo.Guild, roleIDs []string) int64 {
	if guild == nil {
		return 0
	}
	roles := make(map[string]*discordgo.Role, len(guild.Roles))
	var perms int64
	for _, role := range guild.Roles {
		roles[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, id := range roleIDs {
		if role := roles[id]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms
}

func capabilitiesFor(perms int64) antinuke.Capabilities {
	if perms&discordgo.PermissionAdministrator != 0 {
		return antinuke.Capabilities{Ban: true, Kick: true, ManageRoles: true}
	}
	return antinuke.Capabilities{
		Ban:         perms&discordgo.PermissionBanMembers != 0,
		Kick:        perms&discordgo.PermissionKickMembers != 0,
		ManageRoles: perms&discordgo.PermissionManageRoles != 0,
	}
}

// topRank returns the position of the member's highest role. A member with
// only @everyone has no rank.
func topRank(guild *discordgo.Guild, roleIDs []string) antinuke.Rank {
	if guild == nil || len(roleIDs) == 0 {
		return antinuke.NoRank
	}
	positions := make(map[string]int, len(guild.Roles))
	for _, role := range guild.Roles {
		positions[role.ID] = role.Position
	}
	rank := antinuke.NoRank
	for _, id := range roleIDs {
		if id == guild.ID {
			continue
		}
		position, ok := positions[id]
		if !ok {
			continue
		}
		if !rank.Present() || position > rank.Position() {
			rank = antinuke.RankOf(position)
		}
	}
	return rank
}

// rolesToKeep returns the member roles the agent cannot remove: integration
// managed roles and roles at or above the agent's top role.
func rolesToKeep(guild *discordgo.Guild, memberRoles []string, agent antinuke.Rank) []string {
	roles := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roles[role.ID] = role
	}
	keep := make([]string, 0)
	for _, id := range memberRoles {
		role := roles[id]
		if role == nil {
			continue
		}
		if role.Managed || !agent.Present() || role.Position >= agent.Position() {
			keep = append(keep, id)
		}
	}
	return keep
}
