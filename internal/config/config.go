package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/keshon/lavaplay/internal/music/resolver"
)

type Config struct {
	DiscordToken          string   `env:"DISCORD_TOKEN"`
	DiscordGuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	NodeHost        string        `env:"NODE_HOST" envDefault:"localhost"`
	NodePort        int           `env:"NODE_PORT" envDefault:"80"`
	NodePassword    string        `env:"NODE_PASSWORD"`
	NodeShardCount  int           `env:"NODE_SHARD_COUNT" envDefault:"1"`
	NodeUserID      string        `env:"NODE_USER_ID"`
	NodeSendTimeout time.Duration `env:"NODE_SEND_TIMEOUT" envDefault:"10s"`

	// ResolverURL defaults to http://<NodeHost>:2333.
	ResolverURL     string        `env:"RESOLVER_URL"`
	ResolverTimeout time.Duration `env:"RESOLVER_TIMEOUT" envDefault:"15s"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env files (when present) into the environment. It reports
// whether a file was found.
func Load(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// New parses the environment into a Config.
func New() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ResolverURL == "" {
		cfg.ResolverURL = "http://" + net.JoinHostPort(cfg.NodeHost, "2333")
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.NodeHost == "" {
		return fmt.Errorf("NODE_HOST is empty")
	}
	if c.NodePort <= 0 || c.NodePort > 65535 {
		return fmt.Errorf("NODE_PORT %d is out of range", c.NodePort)
	}
	if c.NodeShardCount < 1 {
		return fmt.Errorf("NODE_SHARD_COUNT must be at least 1, got %d", c.NodeShardCount)
	}
	return nil
}

// RequireDiscord checks the settings only the bot needs.
func (c *Config) RequireDiscord() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is not set")
	}
	return nil
}

// Node builds the node client settings. userID is used when NODE_USER_ID is
// not set.
func (c *Config) Node(userID string) node.Config {
	if c.NodeUserID != "" {
		userID = c.NodeUserID
	}
	return node.Config{
		Host:        c.NodeHost,
		Port:        c.NodePort,
		ShardCount:  c.NodeShardCount,
		UserID:      userID,
		Password:    c.NodePassword,
		SendTimeout: c.NodeSendTimeout,
	}
}

func (c *Config) Resolver() resolver.Config {
	return resolver.Config{
		BaseURL:  c.ResolverURL,
		Password: c.NodePassword,
		Timeout:  c.ResolverTimeout,
	}
}

func (c *Config) NodeAddr() string {
	return net.JoinHostPort(c.NodeHost, strconv.Itoa(c.NodePort))
}
