package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"sentinel-antinuke/internal/antinuke"
)

type notifier struct {
	session *discordgo.Session
	color   int
}

func (n *notifier) SendChannel(_ context.Context, channelID string, report antinuke.Report) error {
	_, err := n.session.ChannelMessageSendEmbed(channelID, n.reportEmbed(report))
	return err
}

func (n *notifier) SendDirect(_ context.Context, userID string, report antinuke.Report) error {
	channel, err := n.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = n.session.ChannelMessageSendEmbed(channel.ID, n.reportEmbed(report))
	return err
}

func (n *notifier) agentName() string {
	if n.session.State != nil && n.session.State.User != nil {
		return n.session.State.User.Username
	}
	return "Sentinel"
}

func (n *notifier) reportEmbed(report antinuke.Report) *discordgo.MessageEmbed {
	return buildReportEmbed(report, n.agentName(), n.color, time.Now())
}

func buildReportEmbed(report antinuke.Report, agentName string, color int, now time.Time) *discordgo.MessageEmbed {
	user := report.Target.Username
	if user == "" {
		user = report.Target.ID
	}
	return &discordgo.MessageEmbed{
		Title:       "User punished",
		Description: fmt.Sprintf("**%s** took **%s** to take action", agentName, report.Took),
		Color:       color,
		Timestamp:   now.Format(time.RFC3339),
		Author:      &discordgo.MessageEmbedAuthor{Name: report.GuildName},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Server", Value: report.GuildName, Inline: true},
			{Name: "User", Value: fmt.Sprintf("%s (<@%s>)", user, report.Target.ID), Inline: false},
			{Name: "Reason", Value: report.Reason, Inline: false},
			{Name: "Punishment", Value: string(report.Kind), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "incident " + report.IncidentID},
	}
}
