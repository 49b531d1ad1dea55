package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	ConfigPath  string            `mapstructure:"-"`
	Transport   TransportConfig   `mapstructure:"transport"`
	OneBot      OneBotConfig      `mapstructure:"onebot"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Download    DownloadConfig    `mapstructure:"download"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	StoragePath string            `mapstructure:"storage_path"`
	LogDir      string            `mapstructure:"log_dir"`
	LogLevel    string            `mapstructure:"log_level"`
}

// TransportConfig selects the chat transport implementation
type TransportConfig struct {
	Kind string `mapstructure:"kind"` // "onebot" or "telegram"
}

// OneBotConfig holds OneBot v11 WebSocket configuration (NapCat and friends)
type OneBotConfig struct {
	WSURL             string `mapstructure:"ws_url"`
	AccessToken       string `mapstructure:"access_token"`
	ReconnectInterval int    `mapstructure:"reconnect_interval"` // seconds, 0 disables
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// DownloadConfig holds output directory and packaging configuration.
// Low-memory mode keeps disk usage minimal: artifacts are purged at
// startup, sent to the requester as soon as a download finishes, and
// deleted again after low_memory_delete_delay.
type DownloadConfig struct {
	Path                 string        `mapstructure:"path"`
	Format               string        `mapstructure:"format"` // "pdf" or "cbz"
	StagingMaxAge        time.Duration `mapstructure:"staging_max_age"`
	LowMemory            bool          `mapstructure:"low_memory"`
	LowMemoryDeleteDelay time.Duration `mapstructure:"low_memory_delete_delay"`
}

// FetchConfig holds gallery fetcher configuration
type FetchConfig struct {
	OptionsPath string        `mapstructure:"options_path"` // optional option.yml overrides
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PermissionsConfig holds the static allow/deny lists. An empty whitelist
// leaves its channel kind unrestricted; the blacklist always wins.
type PermissionsConfig struct {
	Blacklist        []string `mapstructure:"blacklist"`
	PrivateWhitelist []string `mapstructure:"private_whitelist"`
	GroupWhitelist   []string `mapstructure:"group_whitelist"`
	DeleteUsers      []string `mapstructure:"delete_users"`
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("storage_path", "~/.mangabot/mangabot.db")
	v.SetDefault("transport.kind", "onebot")
	v.SetDefault("onebot.ws_url", "ws://localhost:8080/qq")
	v.SetDefault("onebot.access_token", "")
	v.SetDefault("onebot.reconnect_interval", 10)
	v.SetDefault("download.path", "./downloads")
	v.SetDefault("download.format", "pdf")
	v.SetDefault("download.staging_max_age", "24h")
	v.SetDefault("download.low_memory", false)
	v.SetDefault("download.low_memory_delete_delay", "3m")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("permissions.blacklist", []string{})
	v.SetDefault("permissions.private_whitelist", []string{})
	v.SetDefault("permissions.group_whitelist", []string{})
	v.SetDefault("permissions.delete_users", []string{})

	// Environment variable prefix
	v.SetEnvPrefix("MANGABOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func finish(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.StoragePath = expandPath(cfg.StoragePath)
	cfg.Download.Path = expandPath(cfg.Download.Path)
	cfg.Fetch.OptionsPath = expandPath(cfg.Fetch.OptionsPath)
	cfg.ConfigPath = v.ConfigFileUsed()

	return &cfg, nil
}

// Load reads configuration from the default location and environment
func Load() (*Config, error) {
	v := newViper()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configFile := filepath.Join(homeDir, ".mangabot", "config")

	// Check if config exists
	if _, err := os.Stat(configFile + ".yaml"); err == nil {
		v.SetConfigFile(configFile + ".yaml")
	} else if _, err := os.Stat(configFile + ".yml"); err == nil {
		v.SetConfigFile(configFile + ".yml")
	} else if _, err := os.Stat(configFile + ".json"); err == nil {
		v.SetConfigFile(configFile + ".json")
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return finish(v)
}

// LoadFrom reads configuration from a specific file path
func LoadFrom(configPath string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return finish(v)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case "onebot":
		if c.OneBot.WSURL == "" {
			return fmt.Errorf("onebot.ws_url is required")
		}
	case "telegram":
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is required")
		}
	default:
		return fmt.Errorf("invalid transport.kind: %s (must be 'onebot' or 'telegram')", c.Transport.Kind)
	}

	if c.Download.Path == "" {
		return fmt.Errorf("download.path is required")
	}

	if c.Download.Format != "pdf" && c.Download.Format != "cbz" {
		return fmt.Errorf("invalid download.format: %s (must be 'pdf' or 'cbz')", c.Download.Format)
	}

	if c.StoragePath == "" {
		return fmt.Errorf("storage_path is required")
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
