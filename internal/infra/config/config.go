package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Known channel names accepted in Config.Channels.
const (
	ChannelDiscord  = "discord"
	ChannelMastodon = "mastodon"
	ChannelConsole  = "console"
)

// Config aggregates runtime configuration used across the bot.
type Config struct {
	Mode     string         `yaml:"mode"`
	Clock    ClockConfig    `yaml:"clock"`
	Channels []string       `yaml:"channels"`
	Discord  DiscordConfig  `yaml:"discord"`
	Mastodon MastodonConfig `yaml:"mastodon"`
	HTTP     HTTPConfig     `yaml:"http"`
	Lock     LockConfig     `yaml:"lock"`

	explicitChannels bool
}

// ClockConfig controls how the Mars clock API is polled.
type ClockConfig struct {
	APIURL         string        `yaml:"apiUrl"`
	CheckInterval  time.Duration `yaml:"checkInterval"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig guards the API client with a circuit breaker.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failureThreshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// DiscordConfig holds the chat webhook destination.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
	Username   string `yaml:"username"`
}

// MastodonConfig holds the social posting credentials.
type MastodonConfig struct {
	InstanceURL string `yaml:"instanceUrl"`
	AccessToken string `yaml:"accessToken"`
	Visibility  string `yaml:"visibility"`
}

// HTTPConfig controls the optional status server.
type HTTPConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// LockConfig enables the shared day-announcement lock.
type LockConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr"`
	Prefix  string        `yaml:"prefix"`
	TTL     time.Duration `yaml:"ttl"`
}

// Load reads configuration from a YAML file and environment variables. path
// wins over CONFIG_PATH, which wins over configs/config.yaml.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	defaults := cfg.Channels
	cfg.Channels = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if cfg.Channels == nil {
		cfg.Channels = defaults
	} else {
		cfg.explicitChannels = true
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARSCLOCK_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("MARSCLOCK_API_URL"); v != "" {
		cfg.Clock.APIURL = v
	}
	if v := os.Getenv("MARSCLOCK_CHECK_INTERVAL"); v != "" {
		if parsed, ok := ParseInterval(v); ok {
			cfg.Clock.CheckInterval = parsed
		}
	}
	if v := os.Getenv("MARSCLOCK_CHANNELS"); v != "" {
		cfg.Channels = SplitList(v)
		cfg.explicitChannels = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Discord.WebhookURL = v
	}
	if v := os.Getenv("MASTODON_INSTANCE_URL"); v != "" {
		cfg.Mastodon.InstanceURL = v
	}
	if v := os.Getenv("MASTODON_ACCESS_TOKEN"); v != "" {
		cfg.Mastodon.AccessToken = v
	}
	if v := os.Getenv("HTTP_ENABLED"); v != "" {
		cfg.HTTP.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("LOCK_ENABLED"); v != "" {
		cfg.Lock.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOCK_ADDR"); v != "" {
		cfg.Lock.Addr = v
	}
}

// ParseInterval accepts Go durations ("90s") and bare seconds ("60").
func ParseInterval(v string) (time.Duration, bool) {
	if parsed, err := time.ParseDuration(v); err == nil {
		return parsed, true
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ExplicitChannels reports whether the channel list came from the config file
// or MARSCLOCK_CHANNELS rather than the built-in default.
func (c *Config) ExplicitChannels() bool {
	return c.explicitChannels
}

// DeliveryTimeout bounds a single outbound channel call.
const DeliveryTimeout = 15 * time.Second

// PostBudget is the longest a manual post can take: waiting behind one loop
// tick, then its own fetch and fan-out.
func (c *Config) PostBudget() time.Duration {
	fetch := c.Clock.RequestTimeout
	if fetch <= 0 {
		fetch = 10 * time.Second
	}
	op := fetch + time.Duration(len(c.Channels))*DeliveryTimeout
	return 2 * op
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode: "now",
		Clock: ClockConfig{
			APIURL:         "https://marsapi.interimm.org/now",
			CheckInterval:  60 * time.Second,
			RequestTimeout: 10 * time.Second,
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Cooldown:         2 * time.Minute,
			},
		},
		Channels: []string{ChannelConsole},
		Mastodon: MastodonConfig{
			Visibility: "public",
		},
		HTTP: HTTPConfig{
			Enabled:      false,
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Lock: LockConfig{
			Prefix: "marsclock",
			TTL:    36 * time.Hour,
		},
	}
}

// Validate ensures the configuration is safe to use. Channel credentials are
// checked by the channel constructors.
func (c *Config) Validate() error {
	switch c.Mode {
	case "now", "daily":
	default:
		return fmt.Errorf("mode must be now or daily, got %q", c.Mode)
	}
	if strings.TrimSpace(c.Clock.APIURL) == "" {
		return errors.New("clock.apiUrl cannot be empty")
	}
	if c.Clock.CheckInterval <= 0 {
		return errors.New("clock.checkInterval must be positive")
	}
	if c.Clock.RequestTimeout < 0 {
		return errors.New("clock.requestTimeout cannot be negative")
	}
	if len(c.Channels) == 0 {
		return errors.New("channels cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for _, name := range c.Channels {
		switch name {
		case ChannelDiscord, ChannelMastodon, ChannelConsole:
		default:
			return fmt.Errorf("unknown channel %q", name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("channel %q listed twice", name)
		}
		seen[name] = struct{}{}
	}
	if c.HTTP.Enabled && strings.TrimSpace(c.HTTP.Address) == "" {
		return errors.New("http.address cannot be empty when the status server is enabled")
	}
	if c.Lock.Enabled && strings.TrimSpace(c.Lock.Addr) == "" {
		return errors.New("lock.addr cannot be empty when the day lock is enabled")
	}
	return nil
}
