package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDatabaseURL = "todo_planner.db"
	DefaultFilesDir    = "files"
	DefaultDigestTime  = "08:00"
	DefaultSortLocale  = "en"
)

// Config keeps runtime settings for the bot and the CLI.
type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	DatabaseURL   string `yaml:"database_url"`
	FilesDir      string `yaml:"files_dir"`
	// DigestTime is the HH:MM time of the daily summary; empty disables it.
	DigestTime string `yaml:"digest_time"`
	SortLocale string `yaml:"sort_locale"`
}

// Load reads the optional YAML file named by CONFIG_FILE, then environment
// variables on top of it, then fills defaults.
func Load() (Config, error) {
	cfg := Config{DigestTime: DefaultDigestTime}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	overrideFromEnv(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	overrideFromEnv(&cfg.DatabaseURL, "DATABASE_URL")
	overrideFromEnv(&cfg.FilesDir, "FILES_DIR")
	overrideFromEnv(&cfg.SortLocale, "SORT_LOCALE")
	if raw, ok := os.LookupEnv("DIGEST_TIME"); ok {
		cfg.DigestTime = strings.TrimSpace(raw)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDatabaseURL
	}
	if cfg.FilesDir == "" {
		cfg.FilesDir = DefaultFilesDir
	}
	if cfg.SortLocale == "" {
		cfg.SortLocale = DefaultSortLocale
	}
	if strings.EqualFold(cfg.DigestTime, "off") {
		cfg.DigestTime = ""
	}

	if cfg.DigestTime != "" {
		if _, err := time.Parse("15:04", cfg.DigestTime); err != nil {
			return cfg, fmt.Errorf("DIGEST_TIME %q: expected HH:MM", cfg.DigestTime)
		}
	}
	return cfg, nil
}

// Validate checks the settings the Telegram bot cannot run without.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fromFile Config
	if err := yaml.Unmarshal(b, &fromFile); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if fromFile.TelegramToken != "" {
		c.TelegramToken = strings.TrimSpace(fromFile.TelegramToken)
	}
	if fromFile.DatabaseURL != "" {
		c.DatabaseURL = strings.TrimSpace(fromFile.DatabaseURL)
	}
	if fromFile.FilesDir != "" {
		c.FilesDir = strings.TrimSpace(fromFile.FilesDir)
	}
	if fromFile.DigestTime != "" {
		c.DigestTime = strings.TrimSpace(fromFile.DigestTime)
	}
	if fromFile.SortLocale != "" {
		c.SortLocale = strings.TrimSpace(fromFile.SortLocale)
	}
	return nil
}

func overrideFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
