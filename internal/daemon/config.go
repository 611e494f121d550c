// Package daemon manages the Sunflower service lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig           `toml:"api"`
	Goal          GoalConfig          `toml:"goal"`
	Trial         TrialConfig         `toml:"trial"`
	Review        ReviewConfig        `toml:"review"`
	Notifications NotificationsConfig `toml:"notifications"`
	Purchases     PurchasesConfig     `toml:"purchases"`
	Companion     CompanionConfig     `toml:"companion"`
	Logging       LoggingConfig       `toml:"logging"`
	Telemetry     TelemetryConfig     `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// GoalConfig sets the default daily goal.
type GoalConfig struct {
	DefaultSunGoal string `toml:"default_sun_goal"`
}

// TrialConfig controls the free trial and the post-trial promo offer.
type TrialConfig struct {
	Days        int    `toml:"days"`
	PromoWindow string `toml:"promo_window"`
}

// ReviewConfig controls when the review prompt appears.
type ReviewConfig struct {
	FirstPromptLaunches int `toml:"first_prompt_launches"`
	RetryLaunches       int `toml:"retry_launches"`
}

// NotificationsConfig controls notification eligibility.
type NotificationsConfig struct {
	SunCooldown   string `toml:"sun_cooldown"`
	MorningCutoff string `toml:"morning_cutoff"` // HH:MM local time
}

// PurchasesConfig points at the purchase backend.
type PurchasesConfig struct {
	Endpoint  string `toml:"endpoint"`
	APIKey    string `toml:"api_key"`
	AppUserID string `toml:"app_user_id"`
	Timeout   string `toml:"timeout"`
}

// CompanionConfig controls the Redis relay to the companion device.
type CompanionConfig struct {
	Enabled       bool   `toml:"enabled"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Channel       string `toml:"channel"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	homeDir := sunflowerHome()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7411,
		},
		Goal: GoalConfig{
			DefaultSunGoal: "30m",
		},
		Trial: TrialConfig{
			Days:        3,
			PromoWindow: "24h",
		},
		Review: ReviewConfig{
			FirstPromptLaunches: 2,
			RetryLaunches:       10,
		},
		Notifications: NotificationsConfig{
			SunCooldown:   "4h",
			MorningCutoff: "04:00",
		},
		Purchases: PurchasesConfig{
			Endpoint: "https://api.revenuecat.com/v1",
			Timeout:  "10s",
		},
		Companion: CompanionConfig{
			RedisAddr: "127.0.0.1:6379",
			Channel:   "sunflower:companion",
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(homeDir, "sunflower.log"),
			MaxSizeMB: 20,
			MaxFiles:  3,
		},
	}
}

// LoadConfig reads config from ~/.sunflower/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(filepath.Join(sunflowerHome(), "config.toml"))
}

// LoadConfigFrom reads config from path, falling back to defaults when the
// file does not exist.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Policy(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.sunflower/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(sunflowerHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Policy maps the rule sections onto domain.Policy.
func (c Config) Policy() (domain.Policy, error) {
	def := domain.DefaultPolicy()
	p := domain.Policy{
		TrialDays:           c.Trial.Days,
		FirstReviewLaunch:   c.Review.FirstPromptLaunches,
		ReviewRetryLaunches: c.Review.RetryLaunches,
	}

	var err error
	if p.DefaultSunGoal, err = parseDuration(c.Goal.DefaultSunGoal, def.DefaultSunGoal); err != nil {
		return p, fmt.Errorf("goal.default_sun_goal: %w", err)
	}
	if p.DefaultSunGoal <= 0 {
		return p, fmt.Errorf("goal.default_sun_goal: %w", domain.ErrInvalidSunGoal)
	}
	if p.PromoWindow, err = parseDuration(c.Trial.PromoWindow, def.PromoWindow); err != nil {
		return p, fmt.Errorf("trial.promo_window: %w", err)
	}
	if p.SunCooldown, err = parseDuration(c.Notifications.SunCooldown, def.SunCooldown); err != nil {
		return p, fmt.Errorf("notifications.sun_cooldown: %w", err)
	}
	if p.MorningCutoffHour, p.MorningCutoffMinute, err = parseClock(c.Notifications.MorningCutoff); err != nil {
		return p, fmt.Errorf("notifications.morning_cutoff: %w", err)
	}

	if p.TrialDays < 0 {
		return p, fmt.Errorf("trial.days must not be negative")
	}
	if p.FirstReviewLaunch < 1 {
		p.FirstReviewLaunch = def.FirstReviewLaunch
	}
	if p.ReviewRetryLaunches < 1 {
		p.ReviewRetryLaunches = def.ReviewRetryLaunches
	}
	return p, nil
}

// sunflowerHome returns the Sunflower data directory.
func sunflowerHome() string {
	if env := os.Getenv("SUNFLOWER_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sunflower")
}

// SunflowerHome is exported for use by other packages.
func SunflowerHome() string {
	return sunflowerHome()
}

// parseDuration parses a duration string. Empty means fallback.
func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// parseClock parses "HH:MM". Empty means 04:00.
func parseClock(s string) (hour, minute int, err error) {
	if s == "" {
		return 4, 0, nil
	}
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	if hour, err = strconv.Atoi(h); err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	if minute, err = strconv.Atoi(m); err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour, minute, nil
}
