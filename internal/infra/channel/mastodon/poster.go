package mastodon

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	gomastodon "github.com/mattn/go-mastodon"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
	"github.com/yanqian/mars-clock/internal/infra/config"
)

const (
	channelName = "mastodon"
	clockLink   = "http://interimm.org/mars-clock"
	hashtag     = "#marsclock"
)

// Channel publishes payloads as Mastodon statuses.
type Channel struct {
	client     *gomastodon.Client
	visibility string
	logger     *slog.Logger
}

// NewChannel requires both the instance URL and an access token.
func NewChannel(instanceURL, accessToken, visibility string, logger *slog.Logger) (*Channel, error) {
	instance := strings.TrimRight(strings.TrimSpace(instanceURL), "/")
	token := strings.TrimSpace(accessToken)
	if instance == "" || token == "" {
		return nil, marsclock.ChannelConfigError(channelName, "instance url and access token are both required")
	}
	if parsed, err := url.Parse(instance); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, marsclock.ChannelConfigError(channelName, "instance url must be absolute")
	}

	client := gomastodon.NewClient(&gomastodon.Config{
		Server:      instance,
		AccessToken: token,
	})
	client.Timeout = config.DeliveryTimeout
	return &Channel{
		client:     client,
		visibility: strings.TrimSpace(visibility),
		logger:     logger.With("component", "channel.mastodon"),
	}, nil
}

func (c *Channel) Name() string { return channelName }

// Compose renders the status text for payload.
func Compose(payload marsclock.Payload) string {
	return fmt.Sprintf("%s %s Check the current time here: %s %s", payload.DateLabel, payload.Greeting, clockLink, hashtag)
}

func (c *Channel) Deliver(ctx context.Context, payload marsclock.Payload) error {
	message := Compose(payload)
	status, err := c.client.PostStatus(ctx, &gomastodon.Toot{
		Status:     message,
		Visibility: c.visibility,
	})
	if err != nil {
		return marsclock.DeliveryError(channelName, err)
	}
	c.logger.Info("posted to mastodon", "status_id", string(status.ID), "message", message)
	return nil
}
