package bot

import (
	"github.com/bwmarrin/discordgo"

	"sentinel-antinuke/internal/antinuke"
)

var auditModules = map[discordgo.AuditLogAction]antinuke.ModuleID{
	discordgo.AuditLogActionMemberBanAdd:     antinuke.ModuleBan,
	discordgo.AuditLogActionMemberKick:       antinuke.ModuleKick,
	discordgo.AuditLogActionMemberPrune:      antinuke.ModuleKick,
	discordgo.AuditLogActionChannelCreate:    antinuke.ModuleChannelCreate,
	discordgo.AuditLogActionChannelDelete:    antinuke.ModuleChannelDelete,
	discordgo.AuditLogActionRoleCreate:       antinuke.ModuleRoleCreate,
	discordgo.AuditLogActionRoleDelete:       antinuke.ModuleRoleDelete,
	discordgo.AuditLogActionWebhookCreate:    antinuke.ModuleWebhook,
	discordgo.AuditLogActionBotAdd:           antinuke.ModuleBotAdd,
	discordgo.AuditLogActionEmojiDelete:      antinuke.ModuleEmojiDelete,
	discordgo.AuditLogActionGuildUpdate:      antinuke.ModuleEditGuild,
	discordgo.AuditLogActionMemberRoleUpdate: antinuke.ModuleRoleGiving,
}

var moduleReasons = map[antinuke.ModuleID]string{
	antinuke.ModuleBan:           "Banning Members",
	antinuke.ModuleKick:          "Kicking Members",
	antinuke.ModuleChannelCreate: "Creating Channels",
	antinuke.ModuleChannelDelete: "Deleting Channels",
	antinuke.ModuleRoleCreate:    "Creating Roles",
	antinuke.ModuleRoleDelete:    "Deleting Roles",
	antinuke.ModuleWebhook:       "Creating Webhooks",
	antinuke.ModuleBotAdd:        "Adding Bots",
	antinuke.ModuleEmojiDelete:   "Deleting Emojis",
	antinuke.ModuleEditGuild:     "Editing the Server",
	antinuke.ModuleRoleGiving:    "Giving Dangerous Roles",
}

func reasonFor(module antinuke.ModuleID) string {
	if reason, ok := moduleReasons[module]; ok {
		return reason
	}
	return string(module)
}

// incidentFromEntry maps an audit log entry to an incident. roles is the
// guild role list used to spot dangerous grants; member role updates that add
// nothing dangerous are ignored.
func incidentFromEntry(guildID string, entry *discordgo.AuditLogEntry, roles []*discordgo.Role) (antinuke.Incident, bool) {
	if entry == nil || entry.ActionType == nil || entry.UserID == "" || guildID == "" {
		return antinuke.Incident{}, false
	}
	module, ok := auditModules[*entry.ActionType]
	if !ok {
		return antinuke.Incident{}, false
	}

	incident := antinuke.Incident{
		Module:  module,
		GuildID: guildID,
		ActorID: entry.UserID,
		Reason:  reasonFor(module),
	}
	if module == antinuke.ModuleRoleGiving {
		roleID := dangerousRoleAdded(entry, roles)
		if roleID == "" {
			return antinuke.Incident{}, false
		}
		incident.ExplicitRole = roleID
	}
	return incident, true
}

// dangerousRoleAdded returns the first dangerous role in the entry's $add
// change, or "".
func dangerousRoleAdded(entry *discordgo.AuditLogEntry, roles []*discordgo.Role) string {
	perms := make(map[string]int64, len(roles))
	for _, role := range roles {
		perms[role.ID] = role.Permissions
	}
	for _, change := range entry.Changes {
		if change == nil || change.Key == nil || *change.Key != discordgo.AuditLogChangeKeyRoleAdd {
			continue
		}
		added, ok := change.NewValue.([]interface{})
		if !ok {
			continue
		}
		for _, item := range added {
			partial, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := partial["id"].(string)
			if id != "" && IsDangerous(perms[id]) {
				return id
			}
		}
	}
	return ""
}
