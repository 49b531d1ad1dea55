package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadFrom(t *testing.T) {
	path := writeConfig(t, `
transport:
  kind: "onebot"
onebot:
  ws_url: "ws://example:3001/qq"
  access_token: "secret"
download:
  path: "/tmp/manga"
  format: "cbz"
permissions:
  blacklist: ["666"]
  private_whitelist: ["100", "200"]
  delete_users: ["100"]
log_level: "debug"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.OneBot.WSURL != "ws://example:3001/qq" {
		t.Errorf("ws_url = %q", cfg.OneBot.WSURL)
	}
	if cfg.OneBot.AccessToken != "secret" {
		t.Errorf("access_token = %q", cfg.OneBot.AccessToken)
	}
	if cfg.Download.Format != "cbz" {
		t.Errorf("format = %q, want cbz", cfg.Download.Format)
	}
	if len(cfg.Permissions.PrivateWhitelist) != 2 {
		t.Errorf("private_whitelist = %v", cfg.Permissions.PrivateWhitelist)
	}
	if len(cfg.Permissions.DeleteUsers) != 1 || cfg.Permissions.DeleteUsers[0] != "100" {
		t.Errorf("delete_users = %v", cfg.Permissions.DeleteUsers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.ConfigPath != path {
		t.Errorf("ConfigPath = %q, want %q", cfg.ConfigPath, path)
	}

	// defaults fill the gaps
	if cfg.Download.StagingMaxAge != 24*time.Hour {
		t.Errorf("staging_max_age = %s, want 24h", cfg.Download.StagingMaxAge)
	}
	if cfg.OneBot.ReconnectInterval != 10 {
		t.Errorf("reconnect_interval = %d, want 10", cfg.OneBot.ReconnectInterval)
	}
	if cfg.Download.LowMemory {
		t.Error("low_memory should default to off")
	}
	if cfg.Download.LowMemoryDeleteDelay != 3*time.Minute {
		t.Errorf("low_memory_delete_delay = %s, want 3m", cfg.Download.LowMemoryDeleteDelay)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed on a complete config: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Transport:   TransportConfig{Kind: "onebot"},
			OneBot:      OneBotConfig{WSURL: "ws://localhost:8080/qq"},
			Download:    DownloadConfig{Path: "/tmp/manga", Format: "pdf"},
			StoragePath: "/tmp/db",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"complete onebot config", func(c *Config) {}, false},
		{"missing ws_url", func(c *Config) { c.OneBot.WSURL = "" }, true},
		{"telegram without token", func(c *Config) { c.Transport.Kind = "telegram" }, true},
		{"telegram with token", func(c *Config) {
			c.Transport.Kind = "telegram"
			c.Telegram.Token = "t"
		}, false},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "irc" }, true},
		{"bad format", func(c *Config) { c.Download.Format = "epub" }, true},
		{"missing download path", func(c *Config) { c.Download.Path = "" }, true},
		{"missing storage path", func(c *Config) { c.StoragePath = "" }, true},
	}

	for _, tt := range tests {
		cfg := valid()
		tt.mutate(cfg)
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestWatcherReloadsPermissions(t *testing.T) {
	path := writeConfig(t, `
transport:
  kind: "onebot"
onebot:
  ws_url: "ws://localhost:8080/qq"
download:
  path: "/tmp/manga"
  format: "pdf"
storage_path: "/tmp/db"
permissions:
  private_whitelist: ["100"]
`)

	changes := make(chan *Config, 4)
	watcher, err := NewWatcher(path, func(cfg *Config) {
		changes <- cfg
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	updated := `
transport:
  kind: "onebot"
onebot:
  ws_url: "ws://localhost:8080/qq"
download:
  path: "/tmp/manga"
  format: "pdf"
storage_path: "/tmp/db"
permissions:
  private_whitelist: ["100", "200"]
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("Failed to update config: %v", err)
	}

	select {
	case cfg := <-changes:
		if len(cfg.Permissions.PrivateWhitelist) != 2 {
			t.Errorf("reloaded private_whitelist = %v, want two entries", cfg.Permissions.PrivateWhitelist)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never fired after config change")
	}
}

func TestWatcherTriggerReload(t *testing.T) {
	path := writeConfig(t, `
transport:
  kind: "onebot"
onebot:
  ws_url: "ws://localhost:8080/qq"
download:
  path: "/tmp/manga"
  format: "pdf"
storage_path: "/tmp/db"
permissions:
  blacklist: ["666"]
`)

	changes := make(chan *Config, 4)
	watcher, err := NewWatcher(path, func(cfg *Config) {
		changes <- cfg
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if err := watcher.TriggerReload(); err != nil {
		t.Fatalf("TriggerReload failed: %v", err)
	}

	select {
	case cfg := <-changes:
		if len(cfg.Permissions.Blacklist) != 1 {
			t.Errorf("reloaded blacklist = %v", cfg.Permissions.Blacklist)
		}
	case <-time.After(time.Second):
		t.Fatal("TriggerReload never reached the callback")
	}

	if err := os.WriteFile(path, []byte("transport:\n  kind: \"irc\"\n"), 0644); err != nil {
		t.Fatalf("Failed to update config: %v", err)
	}
	if err := watcher.TriggerReload(); err == nil {
		t.Error("TriggerReload accepted an invalid config")
	}
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
transport:
  kind: "onebot"
onebot:
  ws_url: "ws://localhost:8080/qq"
download:
  path: "/tmp/manga"
  format: "pdf"
storage_path: "/tmp/db"
`)

	changes := make(chan *Config, 4)
	watcher, err := NewWatcher(path, func(cfg *Config) {
		changes <- cfg
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	// invalid transport kind must not reach the callback
	if err := os.WriteFile(path, []byte("transport:\n  kind: \"irc\"\n"), 0644); err != nil {
		t.Fatalf("Failed to update config: %v", err)
	}

	select {
	case cfg := <-changes:
		t.Errorf("watcher delivered an invalid config: %+v", cfg.Transport)
	case <-time.After(1 * time.Second):
	}
}
