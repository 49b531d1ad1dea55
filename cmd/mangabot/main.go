package main

import (
	"fmt"
	"os"

	"mangabot/internal/app"
	"mangabot/internal/cli"
	"mangabot/internal/config"
	"mangabot/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	application := app.New(cfg, store)

	cmd := cli.NewRootCommand(cfg, application)
	return cmd.Execute()
}
