package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"deal_hunter/models"
)

const (
	colorGreat = 0xE74C3C
	colorGood  = 0xF1C40F
	colorOther = 0x95A5A6
)

// DiscordNotifier posts alerts through a channel webhook. It needs no
// bot token or gateway connection.
type DiscordNotifier struct {
	session *discordgo.Session
	id      string
	token   string
}

func NewDiscordNotifier(webhookURL string, client *http.Client) (*DiscordNotifier, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if client != nil {
		s.Client = client
	}
	return &DiscordNotifier{session: s, id: id, token: token}, nil
}

// ParseWebhookURL splits https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid webhook url: no id/token in %q", u.Path)
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Send(ctx context.Context, s Summary) error {
	params := BuildWebhookParams(s)
	_, err := d.session.WebhookExecute(d.id, d.token, false, params, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("webhook execute: %w", err)
	}
	return nil
}

// BuildWebhookParams renders the summary as content plus one embed per
// top deal.
func BuildWebhookParams(s Summary) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Username: "Deal Hunter",
		Content:  FormatSummary(s),
	}
	for i, a := range s.Alerts {
		if i == summaryTopN {
			break
		}
		params.Embeds = append(params.Embeds, dealEmbed(a))
	}
	return params
}

func dealEmbed(a Alert) *discordgo.MessageEmbed {
	title := TierIcon(a.Tier) + " " + Truncate(a.Title, maxTitleLen)
	if IsUrgent(a.TimeLeft) {
		title = "⚡ " + title
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Price", Value: Money(a.Price), Inline: true},
		{Name: "Profit", Value: Money(a.Profit), Inline: true},
		{Name: "Margin", Value: Percent(a.Margin), Inline: true},
	}
	if a.EstimatedRetail > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Est. value", Value: Money(a.EstimatedRetail), Inline: true})
	}
	if a.TimeLeft != "" && a.TimeLeft != models.Unknown {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Time left", Value: a.TimeLeft, Inline: true})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Bids", Value: fmt.Sprint(a.Bids), Inline: true})

	embed := &discordgo.MessageEmbed{
		Title:     title,
		URL:       a.URL,
		Color:     tierColor(a),
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: string(a.Source)},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if a.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: a.ImageURL}
	}
	return embed
}

func tierColor(a Alert) int {
	switch a.Tier {
	case models.TierGreat:
		return colorGreat
	case models.TierGood:
		return colorGood
	default:
		return colorOther
	}
}
