package fetch

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mangabot/internal/config"
)

// Options controls collector behavior. Values come from the main config,
// optionally overridden by a standalone option.yml file so the fetcher can
// be retuned without touching the bot configuration.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Headers   map[string]string
}

// optionsFile is the YAML shape of option.yml. Timeout is a string so the
// file can use Go duration syntax ("10s", "1m").
type optionsFile struct {
	BaseURL   string            `yaml:"base_url"`
	UserAgent string            `yaml:"user_agent"`
	Timeout   string            `yaml:"timeout"`
	Headers   map[string]string `yaml:"headers"`
}

// OptionsFromConfig builds Options from the fetch config section
func OptionsFromConfig(cfg config.FetchConfig) Options {
	return Options{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	}
}

// ApplyFile overrides non-zero fields from a YAML options file
func (o *Options) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fetch options: %w", err)
	}

	var file optionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse fetch options: %w", err)
	}

	if file.BaseURL != "" {
		o.BaseURL = file.BaseURL
	}
	if file.UserAgent != "" {
		o.UserAgent = file.UserAgent
	}
	if file.Timeout != "" {
		d, err := time.ParseDuration(file.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout in fetch options: %w", err)
		}
		o.Timeout = d
	}
	if len(file.Headers) > 0 {
		o.Headers = file.Headers
	}

	return nil
}
