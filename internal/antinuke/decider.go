package antinuke

// Decide builds the punishment for actor under policy. Bot accounts are
// always kicked whatever the module is configured for.
func Decide(policy Policy, actor Member, guildID, reason string) Action {
	kind := policy.Punishment
	if actor.Bot {
		kind = PunishKick
	}
	return Action{
		GuildID: guildID,
		Target:  actor,
		Kind:    kind,
		Reason:  reason,
	}
}
