package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
	"github.com/yanqian/mars-clock/internal/infra/channel/console"
	"github.com/yanqian/mars-clock/internal/infra/channel/discord"
	"github.com/yanqian/mars-clock/internal/infra/channel/mastodon"
	"github.com/yanqian/mars-clock/internal/infra/config"
	"github.com/yanqian/mars-clock/internal/infra/daylock"
	"github.com/yanqian/mars-clock/internal/infra/marsapi"
	"github.com/yanqian/mars-clock/pkg/metrics"
)

func provideClockClient(cfg *config.Config) *marsapi.Client {
	return marsapi.NewClient(cfg.Clock.APIURL, cfg.Clock.RequestTimeout, marsapi.BreakerConfig{
		Enabled:          cfg.Clock.Breaker.Enabled,
		FailureThreshold: cfg.Clock.Breaker.FailureThreshold,
		Cooldown:         cfg.Clock.Breaker.Cooldown,
	})
}

// provideChannels builds channels in configured order. Missing credentials
// abort startup.
func provideChannels(cfg *config.Config, logger *slog.Logger) (marsclock.Channels, error) {
	channels := make(marsclock.Channels, 0, len(cfg.Channels))
	for _, name := range cfg.Channels {
		switch name {
		case config.ChannelDiscord:
			ch, err := discord.NewChannel(cfg.Discord.WebhookURL, cfg.Discord.Username, logger)
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		case config.ChannelMastodon:
			ch, err := mastodon.NewChannel(cfg.Mastodon.InstanceURL, cfg.Mastodon.AccessToken, cfg.Mastodon.Visibility, logger)
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		case config.ChannelConsole:
			channels = append(channels, console.NewChannel(os.Stdout, logger))
		default:
			return nil, marsclock.ChannelConfigError(name, "unknown channel")
		}
	}
	return channels, nil
}

func provideDayLock(cfg *config.Config, logger *slog.Logger) marsclock.DayLock {
	if !cfg.Lock.Enabled {
		return daylock.NewNoop()
	}
	opt, err := daylock.ParseOptions(strings.TrimSpace(cfg.Lock.Addr))
	if err != nil {
		logger.Error("invalid valkey configuration, day lock disabled", "error", err)
		return daylock.NewNoop()
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, day lock disabled", "error", err)
		return daylock.NewNoop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, day lock disabled", "error", err)
		client.Close()
		return daylock.NewNoop()
	}
	logger.Info("valkey day lock enabled", "addr", cfg.Lock.Addr)
	return daylock.NewValkeyLock(client, cfg.Lock.Prefix, cfg.Lock.TTL)
}

func provideMetricsHandler(m *metrics.ClockMetrics) http.Handler {
	return m.Handler()
}
