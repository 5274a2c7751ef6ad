package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"sentinel-antinuke/internal/antinuke"
)

func auditEntry(action discordgo.AuditLogAction, userID string, changes ...*discordgo.AuditLogChange) *discordgo.AuditLogEntry {
	return &discordgo.AuditLogEntry{
		UserID:     userID,
		ActionType: &action,
		Changes:    changes,
	}
}

func roleAdd(ids ...string) *discordgo.AuditLogChange {
	key := discordgo.AuditLogChangeKeyRoleAdd
	added := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		added = append(added, map[string]interface{}{"id": id, "name": id})
	}
	return &discordgo.AuditLogChange{Key: &key, NewValue: added}
}

func TestIncidentFromEntryModules(t *testing.T) {
	cases := []struct {
		action discordgo.AuditLogAction
		module antinuke.ModuleID
		reason string
	}{
		{discordgo.AuditLogActionMemberBanAdd, antinuke.ModuleBan, "Banning Members"},
		{discordgo.AuditLogActionMemberKick, antinuke.ModuleKick, "Kicking Members"},
		{discordgo.AuditLogActionChannelDelete, antinuke.ModuleChannelDelete, "Deleting Channels"},
		{discordgo.AuditLogActionWebhookCreate, antinuke.ModuleWebhook, "Creating Webhooks"},
		{discordgo.AuditLogActionBotAdd, antinuke.ModuleBotAdd, "Adding Bots"},
		{discordgo.AuditLogActionGuildUpdate, antinuke.ModuleEditGuild, "Editing the Server"},
	}
	for _, tc := range cases {
		incident, ok := incidentFromEntry("g1", auditEntry(tc.action, "u1"), nil)
		if !ok {
			t.Fatalf("%s: expected an incident", tc.module)
		}
		if incident.Module != tc.module || incident.Reason != tc.reason {
			t.Fatalf("%s: unexpected incident %+v", tc.module, incident)
		}
		if incident.GuildID != "g1" || incident.ActorID != "u1" || incident.ExplicitRole != "" {
			t.Fatalf("%s: unexpected incident %+v", tc.module, incident)
		}
	}
}

func TestIncidentFromEntryIgnoresUnmonitored(t *testing.T) {
	if _, ok := incidentFromEntry("g1", auditEntry(discordgo.AuditLogActionMessageDelete, "u1"), nil); ok {
		t.Fatalf("message deletes are not monitored")
	}
	if _, ok := incidentFromEntry("g1", auditEntry(discordgo.AuditLogActionMemberBanAdd, ""), nil); ok {
		t.Fatalf("entries without an actor must be ignored")
	}
	if _, ok := incidentFromEntry("g1", &discordgo.AuditLogEntry{UserID: "u1"}, nil); ok {
		t.Fatalf("entries without an action must be ignored")
	}
}

func TestIncidentFromEntryDangerousRole(t *testing.T) {
	roles := testGuild().Roles

	incident, ok := incidentFromEntry("g1", auditEntry(discordgo.AuditLogActionMemberRoleUpdate, "u1", roleAdd("member", "admin")), roles)
	if !ok {
		t.Fatalf("expected an incident for a dangerous grant")
	}
	if incident.Module != antinuke.ModuleRoleGiving || incident.ExplicitRole != "admin" {
		t.Fatalf("unexpected incident %+v", incident)
	}

	if _, ok := incidentFromEntry("g1", auditEntry(discordgo.AuditLogActionMemberRoleUpdate, "u1", roleAdd("member")), roles); ok {
		t.Fatalf("harmless grants must be ignored")
	}
	if _, ok := incidentFromEntry("g1", auditEntry(discordgo.AuditLogActionMemberRoleUpdate, "u1"), roles); ok {
		t.Fatalf("role removals must be ignored")
	}
}
