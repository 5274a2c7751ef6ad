package bot

import (
	"github.com/bwmarrin/discordgo"

	"sentinel-antinuke/internal/antinuke"
)

const commandName = "antinuke"

// Values of the "action" option of /antinuke.
const (
	actionStatus      = "status"
	actionSetup       = "setup"
	actionModule      = "module"
	actionDisable     = "disable"
	actionWhitelist   = "whitelist"
	actionUnwhitelist = "unwhitelist"
	actionAdmin       = "admin"
	actionUnadmin     = "unadmin"
	actionLogs        = "logs"
	actionOwner       = "owner"
	actionReport      = "report"
)

func antinukeCommand() *discordgo.ApplicationCommand {
	moduleChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(antinuke.KnownModules))
	for _, module := range antinuke.KnownModules {
		moduleChoices = append(moduleChoices, &discordgo.ApplicationCommandOptionChoice{Name: string(module), Value: string(module)})
	}

	minThreshold := float64(0)
	return &discordgo.ApplicationCommand{
		Name:        commandName,
		Description: "Configure the antinuke",
		DescriptionLocalizations: &map[discordgo.Locale]string{
			discordgo.French:    "Configurer l'antinuke",
			discordgo.EnglishUS: "Configure the antinuke",
			discordgo.SpanishES: "Configurar el antinuke",
		},
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "action",
				Description: "what to do",
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.French:    "action a effectuer",
					discordgo.EnglishUS: "what to do",
					discordgo.SpanishES: "accion a realizar",
				},
				Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: actionStatus, Value: actionStatus},
					{Name: actionSetup, Value: actionSetup},
					{Name: actionModule, Value: actionModule},
					{Name: actionDisable, Value: actionDisable},
					{Name: actionWhitelist, Value: actionWhitelist},
					{Name: actionUnwhitelist, Value: actionUnwhitelist},
					{Name: actionAdmin, Value: actionAdmin},
					{Name: actionUnadmin, Value: actionUnadmin},
					{Name: actionLogs, Value: actionLogs},
					{Name: actionOwner, Value: actionOwner},
					{Name: actionReport, Value: actionReport},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "module",
				Description: "monitored action",
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.French:    "action surveillee",
					discordgo.EnglishUS: "monitored action",
					discordgo.SpanishES: "accion vigilada",
				},
				Choices: moduleChoices,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "punishment",
				Description: "ban, kick or strip_roles",
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.French:    "ban, kick ou strip_roles",
					discordgo.EnglishUS: "ban, kick or strip_roles",
					discordgo.SpanishES: "ban, kick o strip_roles",
				},
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: string(antinuke.PunishBan), Value: string(antinuke.PunishBan)},
					{Name: string(antinuke.PunishKick), Value: string(antinuke.PunishKick)},
					{Name: string(antinuke.PunishStripRoles), Value: string(antinuke.PunishStripRoles)},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "threshold",
				Description: "actions tolerated per window, 0 punishes the first",
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.French:    "actions tolerees par fenetre, 0 sanctionne la premiere",
					discordgo.EnglishUS: "actions tolerated per window, 0 punishes the first",
					discordgo.SpanishES: "acciones toleradas por ventana, 0 sanciona la primera",
				},
				MinValue: &minThreshold,
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "target user",
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.French:    "utilisateur cible",
					discordgo.EnglishUS: "target user",
					discordgo.SpanishES: "usuario objetivo",
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "log channel",
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.French:    "salon de logs",
					discordgo.EnglishUS: "log channel",
					discordgo.SpanishES: "canal de registros",
				},
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "days",
				Description: "report period in days",
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.French:    "periode du rapport en jours",
					discordgo.EnglishUS: "report period in days",
					discordgo.SpanishES: "periodo del informe en dias",
				},
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{antinukeCommand()}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildID := guild.ID
		guildCmds, err := b.session.ApplicationCommands(appID, guildID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
		}
	}
	return nil
}
