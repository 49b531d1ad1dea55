// Package app wires the bot's components together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"mangabot/internal/bot"
	"mangabot/internal/config"
	"mangabot/internal/cron"
	"mangabot/internal/download"
	"mangabot/internal/fetch"
	"mangabot/internal/logger"
	"mangabot/internal/packager"
	"mangabot/internal/storage"
	"mangabot/internal/transport"
	"mangabot/internal/transport/onebot"
	"mangabot/internal/transport/telegram"
)

// Version is the bot version reported by the version command
const Version = "0.1.0"

// stagingDirName lives inside the download directory so publishing an
// artifact is a same-volume rename
const stagingDirName = ".staging"

// App orchestrates all components
type App struct {
	config    *config.Config
	store     *storage.Store
	transport transport.Transport
	manager   *download.Manager
	gate      *bot.Gate
	router    *bot.Router
	scheduler *cron.Scheduler
	watcher   *config.Watcher
}

// New creates a new application instance
func New(cfg *config.Config, store *storage.Store) *App {
	return &App{
		config: cfg,
		store:  store,
	}
}

// Start initializes every component and blocks until the context is
// cancelled, then drains the job queue before returning.
func (a *App) Start(ctx context.Context) error {
	logger.SetLevel(a.config.LogLevel)
	if a.config.LogDir != "" {
		if path, err := logger.EnableFileOutput(a.config.LogDir); err != nil {
			logger.Warnf("File logging disabled: %v", err)
		} else {
			logger.Infof("Logging to %s", path)
		}
		defer logger.Close()
	}

	tr, err := a.buildTransport()
	if err != nil {
		return err
	}
	a.transport = tr

	fetcher, err := a.buildFetcher()
	if err != nil {
		return err
	}

	pack, err := packager.New(a.config.Download.Format)
	if err != nil {
		return err
	}
	logger.Infof("Packaging downloads as %s", a.config.Download.Format)

	if a.config.Download.LowMemory {
		logger.Infof("Low-memory mode enabled, artifacts auto-delete after %s", a.config.Download.LowMemoryDeleteDelay)
	}
	a.manager = download.NewManager(download.Config{
		OutputDir:   a.config.Download.Path,
		StagingDir:  filepath.Join(a.config.Download.Path, stagingDirName),
		Fetcher:     fetcher,
		Packager:    pack,
		Notifier:    tr,
		Store:       a.store,
		LowMemory:   a.config.Download.LowMemory,
		DeleteDelay: a.config.Download.LowMemoryDeleteDelay,
	})
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start download manager: %w", err)
	}

	a.gate = bot.NewGate(a.config.Permissions)
	exec := bot.NewExecutor(a.manager, a.gate, tr, a.store, Version)
	a.router = bot.NewRouter(a.gate, exec)
	exec.SetSelfIDSource(a.router.SelfID)
	tr.OnEvent(a.router.HandleEvent)

	if err := tr.Start(ctx); err != nil {
		a.manager.Shutdown()
		return fmt.Errorf("failed to start transport: %w", err)
	}

	a.scheduler = cron.NewScheduler(a.manager, a.config.Download.StagingMaxAge)
	if err := a.scheduler.Start(ctx); err != nil {
		logger.Warnf("Failed to start maintenance scheduler: %v", err)
	}

	a.startConfigWatcher()

	logger.Infof("mangabot %s is up", Version)
	<-ctx.Done()
	return a.Stop()
}

// ReloadConfig re-reads the config file and applies the hot-reloadable
// parts immediately, without waiting for the file watcher's debounce.
func (a *App) ReloadConfig() error {
	if a.watcher == nil {
		return fmt.Errorf("hot reload is not enabled (no config file in use)")
	}
	return a.watcher.TriggerReload()
}

// Stop shuts components down in reverse order: stop taking events, drain
// the queue, then release everything else
func (a *App) Stop() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.transport != nil {
		if err := a.transport.Stop(); err != nil {
			logger.Warnf("Error stopping transport: %v", err)
		}
	}
	if a.manager != nil {
		a.manager.Shutdown()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	return nil
}

// buildTransport selects the chat backend from config
func (a *App) buildTransport() (transport.Transport, error) {
	switch a.config.Transport.Kind {
	case "onebot", "":
		return onebot.New(a.config.OneBot), nil
	case "telegram":
		return telegram.New(a.config.Telegram)
	default:
		return nil, fmt.Errorf("unknown transport kind %q", a.config.Transport.Kind)
	}
}

// buildFetcher creates the gallery fetcher, applying option.yml overrides
// when configured
func (a *App) buildFetcher() (fetch.ContentFetcher, error) {
	opts := fetch.OptionsFromConfig(a.config.Fetch)
	if a.config.Fetch.OptionsPath != "" {
		if err := opts.ApplyFile(a.config.Fetch.OptionsPath); err != nil {
			return nil, fmt.Errorf("failed to load fetch options: %w", err)
		}
		logger.Infof("Applied fetch options from %s", a.config.Fetch.OptionsPath)
	}
	return fetch.NewColly(opts), nil
}

// startConfigWatcher hot-reloads the permission lists on config edits.
// Everything else in config requires a restart.
func (a *App) startConfigWatcher() {
	if a.config.ConfigPath == "" {
		logger.Debugf("No config file in use, hot reload disabled")
		return
	}

	w, err := config.NewWatcher(a.config.ConfigPath, func(cfg *config.Config) {
		a.gate.Update(cfg.Permissions)
	})
	if err != nil {
		logger.Warnf("Config hot reload disabled: %v", err)
		return
	}
	a.watcher = w
}
