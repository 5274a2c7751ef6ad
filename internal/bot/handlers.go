package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"sentinel-antinuke/internal/antinuke"
	"sentinel-antinuke/internal/modules/audit"
)

const (
	defaultReportDays = 7
	maxReportDays     = 90
)

var errMissingOption = errors.New("missing option")

type commandOptions struct {
	Action     string
	Module     antinuke.ModuleID
	Punishment antinuke.Punishment
	Threshold  int
	HasLimit   bool
	UserID     string
	ChannelID  string
	Days       int
}

// parseOptions reads the flat /antinuke options. Unknown module or
// punishment values are reported as errors.
func parseOptions(options []*discordgo.ApplicationCommandInteractionDataOption) (commandOptions, error) {
	var parsed commandOptions
	for _, opt := range options {
		if opt == nil {
			continue
		}
		switch opt.Name {
		case "action":
			parsed.Action = strings.ToLower(opt.StringValue())
		case "module":
			module, ok := antinuke.ParseModule(opt.StringValue())
			if !ok {
				return parsed, fmt.Errorf("unknown module %q", opt.StringValue())
			}
			parsed.Module = module
		case "punishment":
			punishment, err := antinuke.ParsePunishment(opt.StringValue())
			if err != nil {
				return parsed, err
			}
			parsed.Punishment = punishment
		case "threshold":
			parsed.Threshold = int(opt.IntValue())
			parsed.HasLimit = true
		case "user":
			if user := opt.UserValue(nil); user != nil {
				parsed.UserID = user.ID
			}
		case "channel":
			if channel := opt.ChannelValue(nil); channel != nil {
				parsed.ChannelID = channel.ID
			}
		case "days":
			parsed.Days = int(opt.IntValue())
		}
	}
	if parsed.Action == "" {
		return parsed, fmt.Errorf("%w: action", errMissingOption)
	}
	return parsed, nil
}

// permitted decides who may run an action. The guild owner and the
// configured antinuke owner may do everything; admins may change everything
// except the owner and the admin list.
func permitted(action, userID, guildOwnerID string, exemptions antinuke.Exemptions) bool {
	if userID == "" {
		return false
	}
	if userID == guildOwnerID || (exemptions.Owner != "" && userID == exemptions.Owner) {
		return true
	}
	switch action {
	case actionOwner, actionAdmin, actionUnadmin:
		return false
	}
	for _, id := range exemptions.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := interaction.ApplicationCommandData()
	if data.Name != commandName {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b.handleAntinukeCommand(ctx, session, interaction, data.Options)
}

func (b *Bot) handleAntinukeCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	colors := b.cfg.Notifications.EmbedColors
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("Antinuke", "This command only works in a server.", colors.Error, nil), true)
		return
	}

	opts, err := parseOptions(options)
	if err != nil {
		b.respondEmbed(session, interaction, b.commandEmbed("Antinuke", err.Error(), colors.Error, nil), true)
		return
	}

	userID := interactionUserID(interaction)
	guildID := interaction.GuildID
	exemptions, err := b.store.GetExemptions(ctx, guildID)
	if err != nil {
		b.logger.Warn("load exemptions failed", zap.String("guild_id", guildID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed("Antinuke", "Something went wrong, try again later.", colors.Error, nil), true)
		return
	}
	guildOwnerID := ""
	if guild, err := b.platform.guild(guildID); err == nil && guild != nil {
		guildOwnerID = guild.OwnerID
	}
	if !permitted(opts.Action, userID, guildOwnerID, exemptions) {
		b.respondEmbed(session, interaction, b.commandEmbed("Antinuke", "You are not allowed to configure the antinuke.", colors.Error, nil), true)
		return
	}

	embed, err := b.runAction(ctx, guildID, opts)
	if err != nil {
		if errors.Is(err, errMissingOption) || errors.Is(err, antinuke.ErrUnknownPunishment) {
			b.respondEmbed(session, interaction, b.commandEmbed("Antinuke", err.Error(), colors.Error, nil), true)
			return
		}
		b.logger.Warn("antinuke command failed", zap.String("guild_id", guildID), zap.String("action", opts.Action), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed("Antinuke", "Something went wrong, try again later.", colors.Error, nil), true)
		return
	}
	if opts.Action != actionStatus && opts.Action != actionReport {
		b.auditConfig(ctx, guildID, userID, opts)
	}
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) runAction(ctx context.Context, guildID string, opts commandOptions) (*discordgo.MessageEmbed, error) {
	color := b.cfg.Notifications.EmbedColors.Action
	switch opts.Action {
	case actionStatus:
		return b.statusEmbed(ctx, guildID)
	case actionSetup:
		punishment, err := antinuke.ParsePunishment(b.cfg.Antinuke.DefaultPunishment)
		if err != nil {
			punishment = antinuke.PunishBan
		}
		policy := antinuke.Policy{Threshold: b.cfg.Antinuke.PresetThreshold(), Punishment: punishment}
		if opts.Punishment != "" {
			policy.Punishment = opts.Punishment
		}
		if opts.HasLimit {
			policy.Threshold = opts.Threshold
		}
		for _, module := range antinuke.KnownModules {
			if err := b.store.SetModule(ctx, guildID, module, policy); err != nil {
				return nil, err
			}
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Modules", Value: fmt.Sprintf("%d", len(antinuke.KnownModules)), Inline: true},
			{Name: "Threshold", Value: fmt.Sprintf("%d", policy.Threshold), Inline: true},
			{Name: "Punishment", Value: string(policy.Punishment), Inline: true},
		}
		return b.commandEmbed("Antinuke setup", "Every module is now enabled.", color, fields), nil
	case actionModule:
		if opts.Module == "" || opts.Punishment == "" || !opts.HasLimit {
			return nil, fmt.Errorf("%w: module, punishment and threshold are required", errMissingOption)
		}
		policy := antinuke.Policy{Threshold: opts.Threshold, Punishment: opts.Punishment}
		if err := b.store.SetModule(ctx, guildID, opts.Module, policy); err != nil {
			return nil, err
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Module", Value: string(opts.Module), Inline: true},
			{Name: "Threshold", Value: fmt.Sprintf("%d", policy.Threshold), Inline: true},
			{Name: "Punishment", Value: string(policy.Punishment), Inline: true},
		}
		return b.commandEmbed("Antinuke module", "Module updated.", color, fields), nil
	case actionDisable:
		if opts.Module == "" {
			return nil, fmt.Errorf("%w: module", errMissingOption)
		}
		if err := b.store.DisableModule(ctx, guildID, opts.Module); err != nil {
			return nil, err
		}
		fields := []*discordgo.MessageEmbedField{{Name: "Module", Value: string(opts.Module), Inline: true}}
		return b.commandEmbed("Antinuke module", "Module disabled.", color, fields), nil
	case actionWhitelist, actionUnwhitelist, actionAdmin, actionUnadmin, actionOwner:
		if opts.UserID == "" {
			return nil, fmt.Errorf("%w: user", errMissingOption)
		}
		var (
			err         error
			description string
		)
		switch opts.Action {
		case actionWhitelist:
			description, err = "User whitelisted.", b.store.AddWhitelist(ctx, guildID, opts.UserID)
		case actionUnwhitelist:
			description, err = "User removed from the whitelist.", b.store.RemoveWhitelist(ctx, guildID, opts.UserID)
		case actionAdmin:
			description, err = "User added to the antinuke admins.", b.store.AddAdmin(ctx, guildID, opts.UserID)
		case actionUnadmin:
			description, err = "User removed from the antinuke admins.", b.store.RemoveAdmin(ctx, guildID, opts.UserID)
		case actionOwner:
			description, err = "Antinuke owner updated.", b.store.SetOwner(ctx, guildID, opts.UserID)
		}
		if err != nil {
			return nil, err
		}
		fields := []*discordgo.MessageEmbedField{{Name: "User", Value: "<@" + opts.UserID + ">", Inline: true}}
		return b.commandEmbed("Antinuke", description, color, fields), nil
	case actionLogs:
		if err := b.store.SetLogChannel(ctx, guildID, opts.ChannelID); err != nil {
			return nil, err
		}
		value := "not set"
		if opts.ChannelID != "" {
			value = "<#" + opts.ChannelID + ">"
		}
		fields := []*discordgo.MessageEmbedField{{Name: "Channel", Value: value, Inline: true}}
		return b.commandEmbed("Antinuke logs", "Log channel updated.", color, fields), nil
	case actionReport:
		return b.reportEmbed(ctx, guildID, opts.Days)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", errMissingOption, opts.Action)
	}
}

func (b *Bot) statusEmbed(ctx context.Context, guildID string) (*discordgo.MessageEmbed, error) {
	modules, err := b.store.ListModules(ctx, guildID)
	if err != nil {
		return nil, err
	}
	exemptions, err := b.store.GetExemptions(ctx, guildID)
	if err != nil {
		return nil, err
	}
	logChannel, err := b.store.GetLogChannel(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return statusFields(modules, exemptions, logChannel, b.cfg.Notifications.EmbedColors.Action), nil
}

func statusFields(modules map[antinuke.ModuleID]antinuke.Policy, exemptions antinuke.Exemptions, logChannel string, color int) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(antinuke.KnownModules))
	for _, module := range antinuke.KnownModules {
		policy, ok := modules[module]
		if !ok {
			lines = append(lines, fmt.Sprintf("`%s` off", module))
			continue
		}
		lines = append(lines, fmt.Sprintf("`%s` %s after %d", module, policy.Punishment, policy.Threshold))
	}

	owner := "not set"
	if exemptions.Owner != "" {
		owner = "<@" + exemptions.Owner + ">"
	}
	channel := "not set"
	if logChannel != "" {
		channel = "<#" + logChannel + ">"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Modules", Value: strings.Join(lines, "\n")},
		{Name: "Owner", Value: owner, Inline: true},
		{Name: "Log channel", Value: channel, Inline: true},
		{Name: "Admins", Value: fmt.Sprintf("%d", len(exemptions.Admins)), Inline: true},
		{Name: "Whitelisted", Value: fmt.Sprintf("%d", len(exemptions.Whitelisted)), Inline: true},
	}
	return &discordgo.MessageEmbed{
		Title:     "Antinuke status",
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields:    fields,
	}
}

func (b *Bot) reportEmbed(ctx context.Context, guildID string, days int) (*discordgo.MessageEmbed, error) {
	if days <= 0 {
		days = defaultReportDays
	}
	if days > maxReportDays {
		days = maxReportDays
	}
	since := time.Now().AddDate(0, 0, -days)
	report, err := b.analytics.Report(ctx, guildID, since)
	if err != nil {
		return nil, err
	}

	modules := make([]string, 0, len(report.ByModule))
	for module, count := range report.ByModule {
		modules = append(modules, fmt.Sprintf("`%s` %s", module, humanize.Comma(int64(count))))
	}
	sort.Strings(modules)
	users := make([]string, 0, len(report.TopUsers))
	for _, user := range report.TopUsers {
		users = append(users, fmt.Sprintf("<@%s> %d", user.UserID, user.Count))
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Punished", Value: humanize.Comma(int64(report.Punished)), Inline: true},
		{Name: "Failed", Value: humanize.Comma(int64(report.Failed)), Inline: true},
		{Name: "Entries", Value: humanize.Comma(int64(report.Total)), Inline: true},
	}
	if len(modules) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Modules", Value: strings.Join(modules, "\n")})
	}
	if len(users) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Top actors", Value: strings.Join(users, "\n")})
	}
	description := fmt.Sprintf("Since %s.", humanize.Time(since))
	return b.commandEmbed("Antinuke report", description, b.cfg.Notifications.EmbedColors.Action, fields), nil
}

func (b *Bot) auditConfig(ctx context.Context, guildID, userID string, opts commandOptions) {
	details := "action=" + opts.Action
	if opts.Module != "" {
		details += " module=" + string(opts.Module)
	}
	if opts.Punishment != "" {
		details += " kind=" + string(opts.Punishment)
	}
	if opts.UserID != "" {
		details += " target=" + opts.UserID
	}
	if err := b.audit.Log(ctx, audit.LevelInfo, guildID, userID, "antinuke_config", details); err != nil {
		b.logger.Warn("audit log failed", zap.Error(err))
	}
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}
