package antinuke

// CanEnforce requires ban, kick and role management together because the
// punishment configured for a module is not known up front.
func CanEnforce(guild GuildInfo) bool {
	caps := guild.Capabilities
	return caps.Ban && caps.Kick && caps.ManageRoles
}

// IsExempt reports whether actorID may never be punished in the guild.
func IsExempt(actorID string, guild GuildInfo, exemptions Exemptions) bool {
	if actorID == "" {
		return false
	}
	if actorID == guild.OwnerID || actorID == exemptions.Owner {
		return true
	}
	for _, id := range exemptions.Admins {
		if id == actorID {
			return true
		}
	}
	for _, id := range exemptions.Whitelisted {
		if id == actorID {
			return true
		}
	}
	return false
}

// HierarchyOK reports whether the agent ranks strictly above the actor.
//
//	actor ranked,   agent ranked   -> actor below agent
//	actor ranked,   agent unranked -> false
//	actor unranked, agent ranked   -> true
//	actor unranked, agent unranked -> false
func HierarchyOK(actor, agent Rank) bool {
	if !agent.Present() {
		return false
	}
	if !actor.Present() {
		return true
	}
	return actor.Position() < agent.Position()
}
