package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mangabot/internal/app"
	"mangabot/internal/config"
)

func NewRootCommand(cfg *config.Config, application *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:   "mangabot",
		Short: "mangabot - QQ manga download bot",
		Long: `📚 mangabot - QQ manga download bot

A chat bot that downloads manga albums on command, converts them to
PDF or CBZ, and sends the files back over QQ (OneBot) or Telegram.`,

		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCommand(cfg, application))
	root.AddCommand(newConfigCommand(cfg))
	root.AddCommand(newDoctorCommand(cfg))
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mangabot v%s (go)\n", app.Version)
		},
	}
}
