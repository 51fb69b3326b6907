package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
	"github.com/yanqian/mars-clock/internal/infra/config"
)

const (
	channelName = "discord"
	authorName  = "Mars Clock"
	authorURL   = "http://interimm.org/mars-clock/"
	footerText  = "by InterImm Bot"
	embedColor  = 242424
)

// WebhookPayload is the JSON body accepted by a Discord webhook.
type WebhookPayload struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// Embed is a single rich embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// Channel posts payloads to a chat webhook as a branded embed.
type Channel struct {
	webhookURL string
	username   string
	client     *http.Client
	logger     *slog.Logger
}

// NewChannel validates the webhook URL and builds the channel.
func NewChannel(webhookURL, username string, logger *slog.Logger) (*Channel, error) {
	raw := strings.TrimSpace(webhookURL)
	if raw == "" {
		return nil, marsclock.ChannelConfigError(channelName, "webhook url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, marsclock.ChannelConfigError(channelName, "webhook url must be an absolute http(s) url")
	}
	return &Channel{
		webhookURL: raw,
		username:   strings.TrimSpace(username),
		client:     &http.Client{Timeout: config.DeliveryTimeout},
		logger:     logger.With("component", "channel.discord"),
	}, nil
}

func (c *Channel) Name() string { return channelName }

// Render builds the webhook body for payload.
func (c *Channel) Render(payload marsclock.Payload) WebhookPayload {
	return WebhookPayload{
		Username: c.username,
		Content:  payload.Claim,
		Embeds: []Embed{{
			Title:       payload.DateLabel,
			Description: payload.Greeting,
			Color:       embedColor,
			Author:      &EmbedAuthor{Name: authorName, URL: authorURL},
			Footer:      &EmbedFooter{Text: footerText},
		}},
	}
}

func (c *Channel) Deliver(ctx context.Context, payload marsclock.Payload) error {
	body, err := json.Marshal(c.Render(payload))
	if err != nil {
		return marsclock.DeliveryError(channelName, fmt.Errorf("marshal webhook payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return marsclock.DeliveryError(channelName, fmt.Errorf("build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return marsclock.DeliveryError(channelName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return marsclock.DeliveryError(channelName, fmt.Errorf("webhook status=%d body=%s", resp.StatusCode, string(snippet)))
	}

	c.logger.Info("posted to discord", "content", payload.Claim, "title", payload.DateLabel, "description", payload.Greeting)
	return nil
}
