package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ClockLayout is the HH:MM form of REPORT_SCHEDULE.
const ClockLayout = "15:04"

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken  string        `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`
	DatabaseDriver string        `yaml:"database_driver" env:"DATABASE_DRIVER" env-default:"sqlite"`
	DatabaseURL    string        `yaml:"database_url" env:"DATABASE_URL" env-default:"task_ledger.db"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	AllowedChatIDs []int64       `yaml:"allowed_chat_ids" env:"ALLOWED_CHAT_IDS" env-separator:","`
	ReportChatID   int64         `yaml:"report_chat_id" env:"REPORT_CHAT_ID"`
	ReportSchedule string        `yaml:"report_schedule" env:"REPORT_SCHEDULE"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout" env:"CONFIRM_TIMEOUT" env-default:"20s"`
	StatusTimeout  time.Duration `yaml:"status_timeout" env:"STATUS_TIMEOUT" env-default:"60s"`
}

// Load reads the YAML file at path, if any, then applies environment
// overrides and defaults. A missing file falls back to the environment alone.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	}

	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.ReportSchedule = strings.TrimSpace(cfg.ReportSchedule)

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be positive")
	}
	if c.StatusTimeout <= 0 {
		return fmt.Errorf("STATUS_TIMEOUT must be positive")
	}
	if c.ReportSchedule != "" && !validClock(c.ReportSchedule) {
		return fmt.Errorf("REPORT_SCHEDULE must be HH:MM, got %q", c.ReportSchedule)
	}
	return nil
}

// ChatAllowed applies the chat allow-list; an empty list admits every chat.
func (c Config) ChatAllowed(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// ReportEnabled reports whether the scheduled summary has somewhere to go.
func (c Config) ReportEnabled() bool {
	return c.ReportChatID != 0 && c.ReportSchedule != ""
}

// validClock accepts exactly what the scheduler parses.
func validClock(raw string) bool {
	_, err := time.Parse(ClockLayout, raw)
	return err == nil
}
