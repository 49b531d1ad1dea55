package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mangabot/internal/app"
	"mangabot/internal/config"
)

func newStartCommand(cfg *config.Config, application *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the mangabot chat bot",
		Long:  `Start the bot and begin processing chat messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Transport.Kind == "telegram" && cfg.Telegram.Token == "" {
				return fmt.Errorf("telegram token not configured. Run 'mangabot config init' first")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
			go func() {
				for sig := range sigChan {
					if sig == syscall.SIGHUP {
						fmt.Println("Reloading configuration...")
						if err := application.ReloadConfig(); err != nil {
							fmt.Printf("Reload failed: %v\n", err)
						}
						continue
					}
					fmt.Println("\nShutting down...")
					cancel()
					return
				}
			}()

			fmt.Println("📚 Starting mangabot...")
			if cfg.ConfigPath != "" {
				fmt.Printf("   Config: %s\n", cfg.ConfigPath)
			}

			if err := application.Start(ctx); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}

			return nil
		},
	}
}
