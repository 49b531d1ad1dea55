package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mangabot/internal/config"
)

func newConfigCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Initialize and inspect mangabot configuration.`,
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(cfg))

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}

			configPath := filepath.Join(home, ".mangabot", "config.yaml")

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config already exists at %s", configPath)
			}

			if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			defaultConfig := `# mangabot Configuration

# Chat transport: "onebot" (QQ via NapCat) or "telegram"
transport:
  kind: "onebot"

onebot:
  ws_url: "ws://localhost:8080/qq"
  access_token: ""        # must match the NapCat token
  reconnect_interval: 10  # seconds, 0 disables reconnects

telegram:
  token: ""  # only used when transport.kind is "telegram"

download:
  path: "./downloads"
  format: "pdf"           # "pdf" or "cbz"
  staging_max_age: "24h"  # stale staging dirs older than this get swept
  low_memory: false       # purge at startup, auto-send, delete after delay
  low_memory_delete_delay: "3m"

fetch:
  timeout: "30s"
  # base_url: ""
  # options_path: "option.yml"

# All IDs are strings. The blacklist always wins. delete_users must hold
# exactly one entry or deletion is disabled.
permissions:
  blacklist: []
  private_whitelist: []
  group_whitelist: []
  delete_users: []

storage_path: "~/.mangabot/mangabot.db"
log_dir: "logs"
log_level: "info"  # debug, info, warn, error
`
			if err := os.WriteFile(configPath, []byte(defaultConfig), 0600); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("✅ Created config at %s\n", configPath)
			fmt.Println("\nNext steps:")
			fmt.Println("1. Point onebot.ws_url at your NapCat WebSocket endpoint")
			fmt.Println("2. Add your QQ number to permissions.private_whitelist")
			fmt.Println("3. Run 'mangabot start'")
			return nil
		},
	}
}

func newConfigShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Config file:    %s\n", orUnset(cfg.ConfigPath))
			fmt.Printf("Transport:      %s\n", cfg.Transport.Kind)
			if cfg.Transport.Kind == "telegram" {
				fmt.Printf("Telegram token: %s\n", maskSecret(cfg.Telegram.Token))
			} else {
				fmt.Printf("OneBot URL:     %s\n", cfg.OneBot.WSURL)
				fmt.Printf("Access token:   %s\n", maskSecret(cfg.OneBot.AccessToken))
			}
			fmt.Printf("Download path:  %s\n", cfg.Download.Path)
			fmt.Printf("Format:         %s\n", cfg.Download.Format)
			fmt.Printf("Storage:        %s\n", cfg.StoragePath)
			fmt.Printf("Log level:      %s\n", cfg.LogLevel)
			fmt.Printf("Blacklist:      %d entries\n", len(cfg.Permissions.Blacklist))
			fmt.Printf("Private allow:  %d entries\n", len(cfg.Permissions.PrivateWhitelist))
			fmt.Printf("Group allow:    %d entries\n", len(cfg.Permissions.GroupWhitelist))
			fmt.Printf("Delete users:   %d entries\n", len(cfg.Permissions.DeleteUsers))
		},
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(defaults)"
	}
	return s
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
