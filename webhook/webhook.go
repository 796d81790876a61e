// Package webhook delivers posts to a Discord channel through an incoming
// webhook.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/models"
)

// Discord length limits for embed fields.
const (
	maxAuthorName  = 256
	maxDescription = 4096
	maxFooter      = 2048
)

// Message is the JSON body of a webhook execute request.
type Message struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

type Embed struct {
	Author      *EmbedAuthor `json:"author,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Color       int          `json:"color"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// Discord posts one embed per delivered record.
type Discord struct {
	client *resty.Client
	cfg    config.NotifierConfig
	logger *slog.Logger
}

// NewDiscord creates a Discord notifier for cfg.WebhookURL. Delivery is
// attempted once; retrying is left to the next scheduled run.
func NewDiscord(cfg config.NotifierConfig, logger *slog.Logger) *Discord {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "postwatch/1.0")

	return &Discord{client: client, cfg: cfg, logger: logger}
}

// Deliver sends rec as a single embed. Any transport failure or a status
// of 400 and above is a DELIVERY_FAILED RunError.
func (d *Discord) Deliver(ctx context.Context, rec *models.PostRecord) error {
	msg := d.Build(rec)

	res, err := d.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post(d.cfg.WebhookURL)
	if err != nil {
		return models.NewRunError(models.ErrCodeDelivery, "webhook request failed", err)
	}
	if res.StatusCode() >= 400 {
		return models.NewRunError(
			models.ErrCodeDelivery,
			fmt.Sprintf("webhook returned status %d", res.StatusCode()),
			fmt.Errorf("webhook: %s", truncate(res.String(), 200)),
		)
	}

	d.logger.Info("post delivered to discord",
		"handle", rec.Handle,
		"url", rec.CanonicalURL,
		"status", res.StatusCode(),
	)
	return nil
}

// Build renders rec into the webhook payload.
func (d *Discord) Build(rec *models.PostRecord) *Message {
	embed := Embed{
		Author: &EmbedAuthor{
			Name:    truncate(fmt.Sprintf("%s (%s)", rec.AuthorName, rec.AuthorHandle), maxAuthorName),
			URL:     rec.CanonicalURL,
			IconURL: rec.AvatarURL,
		},
		Description: truncate(rec.BodyText, maxDescription),
		URL:         rec.CanonicalURL,
		Timestamp:   embedTimestamp(rec.Timestamp),
		Color:       d.cfg.Color,
	}
	if rec.HasMedia() {
		embed.Image = &EmbedImage{URL: rec.MediaURL}
	}
	if d.cfg.Footer != "" {
		embed.Footer = &EmbedFooter{Text: truncate(d.cfg.Footer, maxFooter)}
	}

	avatar := d.cfg.AvatarURL
	if avatar == "" {
		avatar = rec.AvatarURL
	}

	return &Message{
		Username:  d.cfg.Username,
		AvatarURL: avatar,
		Embeds:    []Embed{embed},
	}
}

// embedTimestamp normalizes to RFC 3339. Discord rejects the whole message
// on a malformed timestamp, so unparsable values are dropped.
func embedTimestamp(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
