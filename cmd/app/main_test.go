package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/mars-clock/internal/infra/config"
)

func parseArgs(t *testing.T, args ...string) (*pflag.FlagSet, options) {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("MARSCLOCK_MODE", "")
	t.Setenv("MARSCLOCK_CHANNELS", "")
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	t.Setenv("MASTODON_INSTANCE_URL", "")
	t.Setenv("MASTODON_ACCESS_TOKEN", "")

	var opts options
	flags := pflag.NewFlagSet("marsclock", pflag.ContinueOnError)
	bindFlags(flags, &opts)
	require.NoError(t, flags.Parse(args))
	return flags, opts
}

func TestResolveConfigDefaults(t *testing.T) {
	flags, opts := parseArgs(t)

	cfg, err := resolveConfig(flags, opts)
	require.NoError(t, err)
	assert.Equal(t, "now", cfg.Mode)
	assert.Equal(t, 60*time.Second, cfg.Clock.CheckInterval)
	assert.Equal(t, []string{config.ChannelConsole}, cfg.Channels)
	assert.False(t, cfg.HTTP.Enabled)
}

func TestResolveConfigFlagsOverride(t *testing.T) {
	flags, opts := parseArgs(t,
		"-f", "daily",
		"-i", "90",
		"-c", "http://localhost:9999/now",
		"--http", ":9090",
	)

	cfg, err := resolveConfig(flags, opts)
	require.NoError(t, err)
	assert.Equal(t, "daily", cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.Clock.CheckInterval)
	assert.Equal(t, "http://localhost:9999/now", cfg.Clock.APIURL)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, ":9090", cfg.HTTP.Address)
}

func TestResolveConfigInfersChannelsFromCredentials(t *testing.T) {
	flags, opts := parseArgs(t,
		"-w", "https://discord.com/api/webhooks/1/abc",
		"--mastodon-token", "token",
		"--mastodon-instance", "https://mastodon.social",
	)

	cfg, err := resolveConfig(flags, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{config.ChannelDiscord, config.ChannelMastodon}, cfg.Channels)
}

func TestResolveConfigExplicitChannelsWin(t *testing.T) {
	flags, opts := parseArgs(t,
		"-w", "https://discord.com/api/webhooks/1/abc",
		"--channels", "Console, discord",
	)

	cfg, err := resolveConfig(flags, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{config.ChannelConsole, config.ChannelDiscord}, cfg.Channels)
}

func TestResolveConfigKeepsConfiguredConsoleChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
channels: [console]
discord:
  webhookUrl: https://discord.com/api/webhooks/1/abc
`), 0o644))
	flags, opts := parseArgs(t, "--config", path)

	cfg, err := resolveConfig(flags, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{config.ChannelConsole}, cfg.Channels)
}

func TestResolveConfigKeepsEnvChannels(t *testing.T) {
	flags, opts := parseArgs(t, "-w", "https://discord.com/api/webhooks/1/abc")
	t.Setenv("MARSCLOCK_CHANNELS", "console")

	cfg, err := resolveConfig(flags, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{config.ChannelConsole}, cfg.Channels)
}

func TestResolveConfigRejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"interval":      {"-i", "soon"},
		"function":      {"-f", "weekly"},
		"zero interval": {"-i", "0"},
		"channel":       {"--channels", "pager"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			flags, opts := parseArgs(t, args...)
			_, err := resolveConfig(flags, opts)
			assert.Error(t, err)
		})
	}
}
