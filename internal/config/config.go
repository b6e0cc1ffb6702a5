// Package config loads the tracker's settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/sakif/playtracker/internal/apperror"
)

const (
	DefaultTimezone        = "Europe/Madrid"
	DefaultInitialDate     = "2020-01-01"
	DefaultSyncSchedule    = "*/30 * * * *"
	DefaultRankingSchedule = "0 22 * * *"
	DefaultCompletedTag    = "Completed"
)

// DefaultPlatformTags are the tag names treated as platforms when
// PLATFORM_TAGS is unset.
var DefaultPlatformTags = []string{
	"Steam", "PlayStation", "Xbox", "Nintendo Switch", "PC", "Epic Games", "GOG", "Mobile",
}

type Config struct {
	DBDriver string
	DBDSN    string
	Port     int
	LogLevel slog.Level

	JWTSecret string

	ClockifyBaseURL      string
	ClockifyWorkspace    string
	ClockifyAPIKey       string
	ClockifyWebhookToken string

	Location     *time.Location
	Season       int
	InitialDate  time.Time
	PlatformTags []string
	CompletedTag string

	TelegramToken  string
	TelegramChatID string

	RedisAddr     string
	RedisPassword string

	SyncSchedule    string
	RankingSchedule string
	RankingTopN     int
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return Parse(os.Getenv, time.Now())
}

// Parse builds a Config from getenv. now picks the default season.
// Every invalid setting is reported, not just the first.
func Parse(getenv func(string) string, now time.Time) (Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	atoi := func(key, def string) int {
		n, err := strconv.Atoi(env(key, def))
		if err != nil {
			errs = append(errs, apperror.ValidationFailed(key, fmt.Sprintf("%s must be an integer", key)))
		}
		return n
	}

	cfg := Config{
		DBDriver:             env("DB_DRIVER", "sqlite"),
		DBDSN:                env("DB_DSN", "data/playtracker.db"),
		Port:                 atoi("PORT", "8080"),
		JWTSecret:            getenv("JWT_SECRET"),
		ClockifyBaseURL:      env("CLOCKIFY_BASEURL", ""),
		ClockifyWorkspace:    env("CLOCKIFY_WORKSPACE", ""),
		ClockifyAPIKey:       env("CLOCKIFY_API_KEY", ""),
		ClockifyWebhookToken: env("CLOCKIFY_WEBHOOK_TOKEN", ""),
		CompletedTag:         env("COMPLETED_TAG", DefaultCompletedTag),
		TelegramToken:        env("TELEGRAM_TOKEN", ""),
		TelegramChatID:       env("TELEGRAM_CHAT_ID", ""),
		RedisAddr:            env("REDIS_ADDR", ""),
		RedisPassword:        getenv("REDIS_PASSWORD"),
		SyncSchedule:         env("SYNC_SCHEDULE", DefaultSyncSchedule),
		RankingSchedule:      env("RANKING_SCHEDULE", DefaultRankingSchedule),
		RankingTopN:          atoi("RANKING_TOP_N", "10"),
		PlatformTags:         splitList(env("PLATFORM_TAGS", "")),
	}
	if len(cfg.PlatformTags) == 0 {
		cfg.PlatformTags = DefaultPlatformTags
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, apperror.ValidationFailed("LOG_LEVEL", err.Error()))
	}

	loc, err := time.LoadLocation(env("TIMEZONE", DefaultTimezone))
	if err != nil {
		errs = append(errs, apperror.ValidationFailed("TIMEZONE", err.Error()))
		loc = time.UTC
	}
	cfg.Location = loc

	cfg.Season = atoi("CURRENT_SEASON", strconv.Itoa(now.In(loc).Year()))

	cfg.InitialDate, err = time.ParseInLocation("2006-01-02", env("INITIAL_DATE", DefaultInitialDate), loc)
	if err != nil {
		errs = append(errs, apperror.ValidationFailed("INITIAL_DATE", "INITIAL_DATE must be YYYY-MM-DD"))
	}

	if err := errors.Join(append(errs, cfg.Validate())...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that do not depend on parsing.
func (c Config) Validate() error {
	var errs []error
	if c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		errs = append(errs, apperror.ValidationFailed("DB_DRIVER", "DB_DRIVER must be sqlite or postgres"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, apperror.ValidationFailed("PORT", "PORT must be between 1 and 65535"))
	}
	if c.ClockifyWorkspace == "" {
		errs = append(errs, apperror.ValidationFailed("CLOCKIFY_WORKSPACE", "CLOCKIFY_WORKSPACE is required"))
	}
	if c.ClockifyAPIKey == "" {
		errs = append(errs, apperror.ValidationFailed("CLOCKIFY_API_KEY", "CLOCKIFY_API_KEY is required"))
	}
	if c.RankingTopN < 1 {
		errs = append(errs, apperror.ValidationFailed("RANKING_TOP_N", "RANKING_TOP_N must be positive"))
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		errs = append(errs, apperror.ValidationFailed("TELEGRAM_TOKEN", "TELEGRAM_TOKEN and TELEGRAM_CHAT_ID go together"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
