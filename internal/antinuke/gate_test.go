package antinuke

import "testing"

func TestCanEnforceRequiresAllCapabilities(t *testing.T) {
	full := Capabilities{Ban: true, Kick: true, ManageRoles: true}
	if !CanEnforce(GuildInfo{Capabilities: full}) {
		t.Fatalf("expected full capabilities to enforce")
	}
	for _, caps := range []Capabilities{
		{Kick: true, ManageRoles: true},
		{Ban: true, ManageRoles: true},
		{Ban: true, Kick: true},
		{},
	} {
		if CanEnforce(GuildInfo{Capabilities: caps}) {
			t.Fatalf("expected %+v to be refused", caps)
		}
	}
}

func TestIsExempt(t *testing.T) {
	guild := GuildInfo{OwnerID: "owner"}
	exemptions := Exemptions{Owner: "delegate", Admins: []string{"a1"}, Whitelisted: []string{"w1", "w2"}}

	for _, id := range []string{"owner", "delegate", "a1", "w2"} {
		if !IsExempt(id, guild, exemptions) {
			t.Fatalf("expected %s to be exempt", id)
		}
	}
	for _, id := range []string{"stranger", ""} {
		if IsExempt(id, guild, exemptions) {
			t.Fatalf("expected %q not to be exempt", id)
		}
	}
	if IsExempt("", GuildInfo{}, Exemptions{}) {
		t.Fatalf("empty actor must not match empty owner")
	}
}

func TestHierarchyOK(t *testing.T) {
	cases := []struct {
		actor, agent Rank
		want         bool
	}{
		{RankOf(1), RankOf(5), true},
		{RankOf(5), RankOf(5), false},
		{RankOf(6), RankOf(5), false},
		{RankOf(1), NoRank, false},
		{NoRank, RankOf(5), true},
		{NoRank, NoRank, false},
		{RankOf(0), RankOf(1), true},
	}
	for _, tc := range cases {
		if got := HierarchyOK(tc.actor, tc.agent); got != tc.want {
			t.Fatalf("HierarchyOK(%+v, %+v) = %v, want %v", tc.actor, tc.agent, got, tc.want)
		}
	}
}
