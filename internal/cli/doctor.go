package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mangabot/internal/config"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

type checkResult struct {
	name     string
	passed   bool
	required bool
	message  string
}

func newDoctorCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics to check bot configuration",
		Long:  `Verify that the configuration is complete enough to start the bot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("📚 mangabot diagnostics")
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Println()

			var results []checkResult
			var hasFailures bool

			results = append(results, checkConfigFile(cfg))
			results = append(results, checkTransport(cfg))
			results = append(results, checkDownloadPath(cfg))
			results = append(results, checkStoragePath(cfg))
			results = append(results, checkPermissions(cfg))
			results = append(results, checkDeletePermission(cfg))

			for _, result := range results {
				printResult(result)
				if result.required && !result.passed {
					hasFailures = true
				}
			}

			fmt.Println()
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

			if hasFailures {
				fmt.Printf("%s✗ Some required checks failed%s\n", colorRed, colorReset)
				return fmt.Errorf("diagnostics failed")
			}

			fmt.Printf("%s✓ All required checks passed%s\n", colorGreen, colorReset)
			return nil
		},
	}
}

func printResult(result checkResult) {
	var symbol, color, typeLabel string

	if result.passed {
		symbol = "✓"
		color = colorGreen
	} else {
		symbol = "✗"
		if result.required {
			color = colorRed
			typeLabel = " (required)"
		} else {
			color = colorYellow
			typeLabel = " (optional)"
		}
	}

	fmt.Printf("%s%s %s%s%s\n", color, symbol, result.name, typeLabel, colorReset)
	if result.message != "" {
		fmt.Printf("  %s\n", result.message)
	}
}

func checkConfigFile(cfg *config.Config) checkResult {
	if cfg.ConfigPath == "" {
		return checkResult{
			name:    "Config file",
			passed:  false,
			message: "No config file found, running on defaults. Run 'mangabot config init'.",
		}
	}
	return checkResult{
		name:    "Config file",
		passed:  true,
		message: cfg.ConfigPath,
	}
}

func checkTransport(cfg *config.Config) checkResult {
	switch cfg.Transport.Kind {
	case "onebot", "":
		u, err := url.Parse(cfg.OneBot.WSURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return checkResult{
				name:     "Transport",
				passed:   false,
				required: true,
				message:  fmt.Sprintf("onebot.ws_url %q is not a ws:// or wss:// URL", cfg.OneBot.WSURL),
			}
		}
		return checkResult{
			name:    "Transport",
			passed:  true,
			message: "OneBot via " + cfg.OneBot.WSURL,
		}
	case "telegram":
		if cfg.Telegram.Token == "" {
			return checkResult{
				name:     "Transport",
				passed:   false,
				required: true,
				message:  "telegram.token is empty",
			}
		}
		return checkResult{name: "Transport", passed: true, message: "Telegram"}
	default:
		return checkResult{
			name:     "Transport",
			passed:   false,
			required: true,
			message:  fmt.Sprintf("unknown transport.kind %q", cfg.Transport.Kind),
		}
	}
}

func checkDownloadPath(cfg *config.Config) checkResult {
	if err := os.MkdirAll(cfg.Download.Path, 0755); err != nil {
		return checkResult{
			name:     "Download directory",
			passed:   false,
			required: true,
			message:  err.Error(),
		}
	}
	return checkResult{
		name:    "Download directory",
		passed:  true,
		message: cfg.Download.Path,
	}
}

func checkStoragePath(cfg *config.Config) checkResult {
	dir := filepath.Dir(cfg.StoragePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{
			name:    "Storage directory",
			passed:  false,
			message: err.Error(),
		}
	}
	return checkResult{
		name:    "Storage directory",
		passed:  true,
		message: dir,
	}
}

func checkPermissions(cfg *config.Config) checkResult {
	private := len(cfg.Permissions.PrivateWhitelist)
	groups := len(cfg.Permissions.GroupWhitelist)
	if private == 0 && groups == 0 {
		return checkResult{
			name:    "Permission lists",
			passed:  false,
			message: "both whitelists are empty, the bot will answer anyone not blacklisted",
		}
	}
	return checkResult{
		name:    "Permission lists",
		passed:  true,
		message: fmt.Sprintf("%d private users, %d groups", private, groups),
	}
}

func checkDeletePermission(cfg *config.Config) checkResult {
	switch n := len(cfg.Permissions.DeleteUsers); n {
	case 0:
		return checkResult{
			name:    "Delete permission",
			passed:  false,
			message: "delete_users is empty, the delete command is disabled",
		}
	case 1:
		return checkResult{name: "Delete permission", passed: true}
	default:
		return checkResult{
			name:    "Delete permission",
			passed:  false,
			message: fmt.Sprintf("delete_users has %d entries, it must hold exactly one", n),
		}
	}
}
