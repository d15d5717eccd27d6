package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DiscordSink posts payloads as embeds to a Discord webhook.
type DiscordSink struct {
	client   *resty.Client
	url      string
	username string
}

func NewDiscordSink(webhookURL, username string) *DiscordSink {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetHeader("Content-Type", "application/json")

	return &DiscordSink{client: client, url: webhookURL, username: username}
}

func (d *DiscordSink) Name() string {
	return "discord"
}

type discordMessage struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color"`
	Fields      []Field        `json:"fields,omitempty"`
	Image       *discordImage  `json:"image,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (d *DiscordSink) Send(ctx context.Context, p Payload) error {
	embed := discordEmbed{
		Title:       p.Title,
		Description: p.Description,
		URL:         p.URL,
		Color:       p.Color,
		Fields:      p.Fields,
	}
	if p.ImageURL != "" {
		embed.Image = &discordImage{URL: p.ImageURL}
	}
	if p.Footer != "" {
		embed.Footer = &discordFooter{Text: p.Footer}
	}
	if !p.Timestamp.IsZero() {
		embed.Timestamp = p.Timestamp.UTC().Format(time.RFC3339)
	}

	res, err := d.client.R().
		SetContext(ctx).
		SetBody(discordMessage{Username: d.username, Embeds: []discordEmbed{embed}}).
		Post(d.url)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("webhook returned status %d", res.StatusCode())
	}
	return nil
}
