package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/pointer"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval        = 5 * time.Minute
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 30 * time.Second
	DefaultTopN            = 10
	MaxTopN                = 25
	DefaultLevelUnit       = 100
	DefaultHTTPAddr        = ":8080"
	DefaultCommandCooldown = 30 * time.Second
	DefaultBoardName       = "main"
	DefaultServiceName     = "discord-leaderboard-bot"
	DefaultPebblePath      = "data/pointers"
	DefaultPointerBucket   = "leaderboard-pointers"
	DefaultNotifierTopic   = "leaderboard.metric.changed"
)

// Config struct to hold the configuration settings
type Config struct {
	Service      ServiceConfig      `yaml:"service"`
	Discord      DiscordConfig      `yaml:"discord"`
	Leaderboard  LeaderboardConfig  `yaml:"leaderboard"`
	ScoreStore   ScoreStoreConfig   `yaml:"score_store"`
	PointerStore PointerStoreConfig `yaml:"pointer_store"`
	Notifier     NotifierConfig     `yaml:"notifier"`
	NATS         NATSConfig         `yaml:"nats"`
	Redis        RedisConfig        `yaml:"redis"`
	Loki         LokiConfig         `yaml:"loki"`
	Tempo        TempoConfig        `yaml:"tempo"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	HTTP         HTTPConfig         `yaml:"http"`
	Log          LogConfig          `yaml:"log"`
}

// ServiceConfig holds general service configuration
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// DiscordConfig holds Discord configuration.
type DiscordConfig struct {
	Token string `yaml:"token"`
	// GuildID scopes slash command registration. When empty, commands are
	// registered in every guild the bot joins.
	GuildID         string        `yaml:"guild_id"`
	CommandCooldown time.Duration `yaml:"command_cooldown"`
}

// LeaderboardConfig holds refresh settings shared by every board.
type LeaderboardConfig struct {
	Interval      time.Duration `yaml:"interval"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	TopN          int           `yaml:"top_n"`
	LevelUnit     int64         `yaml:"level_unit"`
	// ChannelID is shorthand for a single board named "main".
	ChannelID string        `yaml:"channel_id"`
	Boards    []BoardConfig `yaml:"boards"`
}

// BoardConfig describes one published board.
type BoardConfig struct {
	Name      string   `yaml:"name"`
	ChannelID string   `yaml:"channel_id"`
	Title     string   `yaml:"title"`
	Metrics   []string `yaml:"metrics"`
	TopN      int      `yaml:"top_n"`
}

// ScoreStoreConfig selects the score store backend.
type ScoreStoreConfig struct {
	Driver string `yaml:"driver"` // postgres | memory
	DSN    string `yaml:"dsn"`
}

// PointerStoreConfig selects where board pointers are persisted.
type PointerStoreConfig struct {
	Driver string `yaml:"driver"` // jetstream | redis | pebble | file | memory
	Bucket string `yaml:"bucket"`
	Path   string `yaml:"path"`
}

// NotifierConfig selects the change notification transport.
type NotifierConfig struct {
	Driver string `yaml:"driver"` // nats | redis | none
	Topic  string `yaml:"topic"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LokiConfig holds Loki configuration.
type LokiConfig struct {
	URL      string `yaml:"url"`
	TenantID string `yaml:"tenant_id"`
}

type TempoConfig struct {
	Endpoint   string  `yaml:"url"`
	Insecure   bool    `yaml:"insecure"`
	SampleRate float64 `yaml:"sample_rate"`
}

// MetricsConfig toggles the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// LoadConfig loads the configuration from a YAML file, then fills missing
// values from the environment (and an optional .env file) and defaults. A
// missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	var cfg Config
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	if err := loadConfigFromEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
// Only empty values are filled.
func loadConfigFromEnv(cfg *Config) error {
	setString(&cfg.Service.Name, "SERVICE_NAME")
	setString(&cfg.Service.Version, "SERVICE_VERSION")
	setString(&cfg.Discord.Token, "DISCORD_TOKEN")
	setString(&cfg.Discord.GuildID, "DISCORD_GUILD_ID")
	setString(&cfg.Leaderboard.ChannelID, "LEADERBOARD_CHANNEL_ID")
	setString(&cfg.ScoreStore.Driver, "SCORE_STORE_DRIVER")
	setString(&cfg.ScoreStore.DSN, "DATABASE_URL")
	setString(&cfg.PointerStore.Driver, "POINTER_STORE_DRIVER")
	setString(&cfg.PointerStore.Path, "POINTER_STORE_PATH")
	setString(&cfg.Notifier.Driver, "NOTIFIER_DRIVER")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Loki.URL, "LOKI_URL")
	setString(&cfg.Loki.TenantID, "LOKI_TENANT_ID")
	setString(&cfg.Tempo.Endpoint, "OTLP_ENDPOINT")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	if err := setDuration(&cfg.Leaderboard.Interval, "LEADERBOARD_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Leaderboard.RetryDelay, "LEADERBOARD_RETRY_DELAY"); err != nil {
		return err
	}
	if err := setInt(&cfg.Leaderboard.RetryAttempts, "LEADERBOARD_RETRY_ATTEMPTS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Leaderboard.TopN, "LEADERBOARD_TOP_N"); err != nil {
		return err
	}
	if !cfg.Metrics.Enabled {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid METRICS_ENABLED %q: %w", v, err)
			}
			cfg.Metrics.Enabled = enabled
		}
	}
	return nil
}

func setString(field *string, key string) {
	if *field == "" {
		*field = os.Getenv(key)
	}
}

func setInt(field *int, key string) error {
	v := os.Getenv(key)
	if *field != 0 || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = n
	return nil
}

func setDuration(field *time.Duration, key string) error {
	v := os.Getenv(key)
	if *field != 0 || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = d
	return nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = DefaultServiceName
	}
	if c.Service.Version == "" {
		c.Service.Version = "dev"
	}
	if c.Discord.CommandCooldown <= 0 {
		c.Discord.CommandCooldown = DefaultCommandCooldown
	}

	lb := &c.Leaderboard
	if lb.Interval <= 0 {
		lb.Interval = DefaultInterval
	}
	if lb.RetryAttempts <= 0 {
		lb.RetryAttempts = DefaultRetryAttempts
	}
	if lb.RetryDelay <= 0 {
		lb.RetryDelay = DefaultRetryDelay
	}
	lb.TopN = clampTopN(lb.TopN, DefaultTopN)
	if lb.LevelUnit <= 0 {
		lb.LevelUnit = DefaultLevelUnit
	}
	if len(lb.Boards) == 0 && lb.ChannelID != "" {
		lb.Boards = []BoardConfig{{Name: DefaultBoardName, ChannelID: lb.ChannelID}}
	}
	for i := range lb.Boards {
		b := &lb.Boards[i]
		if b.Name == "" {
			b.Name = DefaultBoardName
		}
		if len(b.Metrics) == 0 {
			b.Metrics = []string{"balance", "level"}
		}
		b.TopN = clampTopN(b.TopN, lb.TopN)
	}

	if c.ScoreStore.Driver == "" {
		c.ScoreStore.Driver = "postgres"
		if c.ScoreStore.DSN == "" {
			c.ScoreStore.Driver = "memory"
		}
	}
	if c.PointerStore.Driver == "" {
		c.PointerStore.Driver = "pebble"
	}
	if c.PointerStore.Bucket == "" {
		c.PointerStore.Bucket = DefaultPointerBucket
	}
	if c.PointerStore.Path == "" {
		c.PointerStore.Path = DefaultPebblePath
	}
	if c.Notifier.Driver == "" {
		c.Notifier.Driver = "none"
		if c.NATS.URL != "" {
			c.Notifier.Driver = "nats"
		}
	}
	if c.Notifier.Topic == "" {
		c.Notifier.Topic = DefaultNotifierTopic
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Tempo.SampleRate <= 0 {
		c.Tempo.SampleRate = 1
	}
}

func clampTopN(n, fallback int) int {
	if n <= 0 {
		n = fallback
	}
	if n > MaxTopN {
		n = MaxTopN
	}
	return n
}

// Validate checks everything the serve command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Discord.Token == "" {
		errs = append(errs, errors.New("discord token is required (DISCORD_TOKEN)"))
	}
	if len(c.Leaderboard.Boards) == 0 {
		errs = append(errs, errors.New("at least one board is required (leaderboard.boards or LEADERBOARD_CHANNEL_ID)"))
	}
	// Board names are matched case-insensitively everywhere, and two names
	// that map to the same pointer scope would overwrite each other's message.
	seen := map[string]string{}
	for _, b := range c.Leaderboard.Boards {
		scope := pointer.ScopeKey(b.Name)
		if prev, ok := seen[scope]; ok {
			errs = append(errs, fmt.Errorf("board %q collides with board %q (both stored as %q)", b.Name, prev, scope))
		} else {
			seen[scope] = b.Name
		}
		if b.ChannelID == "" {
			errs = append(errs, fmt.Errorf("board %q has no channel_id", b.Name))
		}
		for _, m := range b.Metrics {
			if _, err := board.ParseMetric(m); err != nil {
				errs = append(errs, fmt.Errorf("board %q: %w", b.Name, err))
			}
		}
	}
	errs = append(errs, c.ValidateScoreStore())

	switch c.PointerStore.Driver {
	case "jetstream":
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("pointer_store jetstream requires nats.url"))
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("pointer_store redis requires redis.addr"))
		}
	case "pebble", "file", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown pointer_store driver %q", c.PointerStore.Driver))
	}

	switch c.Notifier.Driver {
	case "nats":
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("notifier nats requires nats.url"))
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("notifier redis requires redis.addr"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown notifier driver %q", c.Notifier.Driver))
	}
	return errors.Join(errs...)
}

// ValidateScoreStore checks the score store settings alone, for commands
// that only mutate scores.
func (c *Config) ValidateScoreStore() error {
	switch c.ScoreStore.Driver {
	case "postgres":
		if c.ScoreStore.DSN == "" {
			return errors.New("score_store postgres requires a dsn (DATABASE_URL)")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown score_store driver %q", c.ScoreStore.Driver)
	}
	return nil
}

// Board returns the board named name, or the first board when name is empty.
func (c *Config) Board(name string) (BoardConfig, bool) {
	if len(c.Leaderboard.Boards) == 0 {
		return BoardConfig{}, false
	}
	if name == "" {
		return c.Leaderboard.Boards[0], true
	}
	for _, b := range c.Leaderboard.Boards {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return BoardConfig{}, false
}
