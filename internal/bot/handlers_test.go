package bot

import (
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"sentinel-antinuke/internal/antinuke"
)

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func TestParseOptions(t *testing.T) {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		stringOption("action", "module"),
		stringOption("module", "channel delete"),
		stringOption("punishment", "strip"),
		{Name: "threshold", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(0)},
		{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "u1"},
		{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "c1"},
	}
	opts, err := parseOptions(options)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Action != actionModule || opts.Module != antinuke.ModuleChannelDelete || opts.Punishment != antinuke.PunishStripRoles {
		t.Fatalf("unexpected options %+v", opts)
	}
	if !opts.HasLimit || opts.Threshold != 0 {
		t.Fatalf("explicit zero threshold must be kept, got %+v", opts)
	}
	if opts.UserID != "u1" || opts.ChannelID != "c1" {
		t.Fatalf("unexpected ids %+v", opts)
	}
}

func TestParseOptionsErrors(t *testing.T) {
	if _, err := parseOptions(nil); !errors.Is(err, errMissingOption) {
		t.Fatalf("expected missing action, got %v", err)
	}
	_, err := parseOptions([]*discordgo.ApplicationCommandInteractionDataOption{stringOption("action", "module"), stringOption("punishment", "mute")})
	if !errors.Is(err, antinuke.ErrUnknownPunishment) {
		t.Fatalf("expected unknown punishment, got %v", err)
	}
	_, err = parseOptions([]*discordgo.ApplicationCommandInteractionDataOption{stringOption("action", "module"), stringOption("module", "nuke")})
	if err == nil || !strings.Contains(err.Error(), "unknown module") {
		t.Fatalf("expected unknown module, got %v", err)
	}
}

func TestPermitted(t *testing.T) {
	exemptions := antinuke.Exemptions{Owner: "extra", Admins: []string{"admin"}, Whitelisted: []string{"friend"}}
	cases := []struct {
		action string
		user   string
		want   bool
	}{
		{actionSetup, "owner", true},
		{actionOwner, "owner", true},
		{actionAdmin, "extra", true},
		{actionSetup, "admin", true},
		{actionWhitelist, "admin", true},
		{actionAdmin, "admin", false},
		{actionOwner, "admin", false},
		{actionStatus, "friend", false},
		{actionStatus, "", false},
	}
	for _, tc := range cases {
		if got := permitted(tc.action, tc.user, "owner", exemptions); got != tc.want {
			t.Fatalf("%s by %q: expected %v, got %v", tc.action, tc.user, tc.want, got)
		}
	}
}

func TestStatusFields(t *testing.T) {
	modules := map[antinuke.ModuleID]antinuke.Policy{
		antinuke.ModuleBan: {Threshold: 2, Punishment: antinuke.PunishKick},
	}
	embed := statusFields(modules, antinuke.Exemptions{Admins: []string{"a", "b"}}, "c1", 1)
	lines := embed.Fields[0].Value
	if !strings.Contains(lines, "`ban` kick after 2") || !strings.Contains(lines, "`kick` off") {
		t.Fatalf("unexpected module lines %q", lines)
	}
	if embed.Fields[1].Value != "not set" || embed.Fields[2].Value != "<#c1>" || embed.Fields[3].Value != "2" {
		t.Fatalf("unexpected fields %+v", embed.Fields)
	}
}

func TestAntinukeCommandChoices(t *testing.T) {
	cmd := antinukeCommand()
	if cmd.Name != commandName {
		t.Fatalf("unexpected name %q", cmd.Name)
	}
	for _, opt := range cmd.Options {
		if opt.Name == "module" && len(opt.Choices) != len(antinuke.KnownModules) {
			t.Fatalf("expected %d module choices, got %d", len(antinuke.KnownModules), len(opt.Choices))
		}
	}
}
