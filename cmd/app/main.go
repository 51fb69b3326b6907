package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yanqian/mars-clock/internal/infra/config"
)

type options struct {
	configPath       string
	function         string
	interval         string
	clockAPI         string
	webhook          string
	mastodonToken    string
	mastodonInstance string
	channels         string
	httpAddress      string
}

func main() {
	// .env is optional; real deployments set the variables directly.
	_ = godotenv.Load()

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "marsclock",
		Short:        "Post the time on Mars to chat and social channels",
		Long:         "marsclock polls the InterImm Mars clock API and posts either the current Mars time (now) or a greeting whenever a new Mars day begins (daily).",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := initializeApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to wire application: %w", err)
			}
			return app.Run(ctx)
		},
	}

	bindFlags(cmd.Flags(), &opts)
	return cmd
}

func bindFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flags.StringVarP(&opts.function, "function", "f", "now", "Functionality: now or daily")
	flags.StringVarP(&opts.interval, "interval", "i", "60s", "Waiting time between API checks (duration or seconds)")
	flags.StringVarP(&opts.clockAPI, "clockapi", "c", "https://marsapi.interimm.org/now", "Mars clock API url")
	flags.StringVarP(&opts.webhook, "webhook", "w", "", "Discord webhook url")
	flags.StringVar(&opts.mastodonToken, "mastodon-token", "", "Mastodon access token")
	flags.StringVar(&opts.mastodonInstance, "mastodon-instance", "", "Mastodon instance url")
	flags.StringVar(&opts.channels, "channels", "", "Comma separated channels: discord,mastodon,console")
	flags.StringVar(&opts.httpAddress, "http", "", "Serve status and metrics on this address")
}

// resolveConfig layers explicitly set flags over file and environment config.
func resolveConfig(flags *pflag.FlagSet, opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if flags.Changed("function") {
		cfg.Mode = opts.function
	}
	if flags.Changed("interval") {
		interval, ok := config.ParseInterval(opts.interval)
		if !ok {
			return nil, fmt.Errorf("invalid --interval %q", opts.interval)
		}
		cfg.Clock.CheckInterval = interval
	}
	if flags.Changed("clockapi") {
		cfg.Clock.APIURL = opts.clockAPI
	}
	if flags.Changed("webhook") {
		cfg.Discord.WebhookURL = opts.webhook
	}
	if flags.Changed("mastodon-token") {
		cfg.Mastodon.AccessToken = opts.mastodonToken
	}
	if flags.Changed("mastodon-instance") {
		cfg.Mastodon.InstanceURL = opts.mastodonInstance
	}
	if flags.Changed("channels") {
		cfg.Channels = config.SplitList(opts.channels)
	} else if !cfg.ExplicitChannels() {
		if inferred := inferChannels(cfg); len(inferred) > 0 {
			cfg.Channels = inferred
		}
	}
	if flags.Changed("http") {
		cfg.HTTP.Enabled = true
		cfg.HTTP.Address = opts.httpAddress
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// inferChannels picks channels from the credentials that were supplied when
// no channel list was configured.
func inferChannels(cfg *config.Config) []string {
	var out []string
	if cfg.Discord.WebhookURL != "" {
		out = append(out, config.ChannelDiscord)
	}
	if cfg.Mastodon.AccessToken != "" || cfg.Mastodon.InstanceURL != "" {
		out = append(out, config.ChannelMastodon)
	}
	return out
}
