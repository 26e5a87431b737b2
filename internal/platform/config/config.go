package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/pscheid92/playtime/internal/domain"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSheets   = "sheets"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"10000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	LogFile   string `env:"LOG_FILE"`

	EntitiesFile string `env:"ENTITIES_FILE"`
	TrackedUsers string `env:"TRACKED_USERS"`

	Timezone       string        `env:"TIMEZONE" default:"Asia/Kolkata"`
	PresencePolicy string        `env:"PRESENCE_POLICY" default:"online"`
	SwitchPolicy   string        `env:"SWITCH_POLICY" default:"id"`
	Concurrency    int           `env:"TICK_CONCURRENCY" default:"8"`
	TickTimeout    time.Duration `env:"TICK_TIMEOUT" default:"60s"`
	TickInterval   time.Duration `env:"TICK_INTERVAL" default:"0s"` // 0 disables the in-process scheduler
	TickLockTTL    time.Duration `env:"TICK_LOCK_TTL" default:"2m"`

	StoreBackend   string `env:"STORE_BACKEND" default:"memory"`
	SinkBackend    string `env:"SINK_BACKEND" default:"memory"`
	StateFile      string `env:"STATE_FILE" default:"data/state.json"`
	SessionLogFile string `env:"SESSION_LOG_FILE" default:"data/sessions.jsonl"`

	RedisURL       string `env:"REDIS_URL"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" default:"playtime"`
	DatabaseURL    string `env:"DATABASE_URL"`

	SheetsSpreadsheetID string `env:"SHEETS_SPREADSHEET_ID"`
	GoogleCredentials   string `env:"GOOGLE_CREDENTIALS"`
	SheetsLogSheet      string `env:"SHEETS_LOG_SHEET" default:"Activity Log"`
	SheetsCacheRange    string `env:"SHEETS_CACHE_RANGE" default:"Cache!A2"`

	PresenceURL   string        `env:"ROBLOX_PRESENCE_URL" default:"https://presence.roblox.com/v1/presence/users"`
	GamesURL      string        `env:"ROBLOX_GAMES_URL" default:"https://games.roblox.com/v1/games"`
	RobloxTimeout time.Duration `env:"ROBLOX_TIMEOUT" default:"10s"`
	RobloxRPS     float64       `env:"ROBLOX_RPS" default:"5"`
	NameCacheTTL  time.Duration `env:"NAME_CACHE_TTL" default:"1h"` // 0 disables the game name cache

	RetryMaxAttempts      int           `env:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff   time.Duration `env:"RETRY_INITIAL_BACKOFF" default:"500ms"`
	RetryRateLimitBackoff time.Duration `env:"RETRY_RATE_LIMIT_BACKOFF" default:"5s"`

	entities []domain.TrackedEntity
	location *time.Location
}

// Entities returns the tracked users from ENTITIES_FILE and TRACKED_USERS.
func (c *Config) Entities() []domain.TrackedEntity {
	return c.entities
}

// Location returns the zone used for the local time columns of the session log.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	entities, err := loadEntities(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.entities = entities

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	return &cfg, nil
}

func validate(cfg *Config) error {
	if _, err := domain.ParsePresencePolicy(cfg.PresencePolicy); err != nil {
		return fmt.Errorf("PRESENCE_POLICY: %w", err)
	}
	if _, err := domain.ParseSwitchPolicy(cfg.SwitchPolicy); err != nil {
		return fmt.Errorf("SWITCH_POLICY: %w", err)
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendFile, BackendRedis, BackendPostgres, BackendSheets:
	default:
		return fmt.Errorf("STORE_BACKEND %q: %w", cfg.StoreBackend, domain.ErrUnknownBackend)
	}
	switch cfg.SinkBackend {
	case BackendMemory, BackendFile, BackendPostgres, BackendSheets:
	default:
		return fmt.Errorf("SINK_BACKEND %q: %w", cfg.SinkBackend, domain.ErrUnknownBackend)
	}

	uses := func(backend string) bool { return cfg.StoreBackend == backend || cfg.SinkBackend == backend }
	if cfg.StoreBackend == BackendRedis && cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if uses(BackendPostgres) && cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if uses(BackendSheets) {
		if cfg.SheetsSpreadsheetID == "" {
			return errors.New("SHEETS_SPREADSHEET_ID is required")
		}
		if cfg.GoogleCredentials == "" {
			return errors.New("GOOGLE_CREDENTIALS is required")
		}
	}

	if cfg.Concurrency < 1 {
		return errors.New("TICK_CONCURRENCY must be at least 1")
	}
	if cfg.RetryMaxAttempts < 1 {
		return errors.New("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.RobloxRPS <= 0 {
		return errors.New("ROBLOX_RPS must be positive")
	}
	if cfg.TickTimeout <= 0 {
		return errors.New("TICK_TIMEOUT must be positive")
	}
	// The lock must outlive the longest tick or a second runner can overlap it.
	if cfg.TickLockTTL <= cfg.TickTimeout {
		return errors.New("TICK_LOCK_TTL must be greater than TICK_TIMEOUT")
	}
	if cfg.TickInterval < 0 {
		return errors.New("TICK_INTERVAL must not be negative")
	}
	if cfg.EntitiesFile == "" && cfg.TrackedUsers == "" {
		return errors.New("ENTITIES_FILE or TRACKED_USERS is required")
	}

	return nil
}

type entitiesFile struct {
	Users []struct {
		ID   int64  `toml:"id"`
		Name string `toml:"name"`
	} `toml:"users"`
}

func loadEntities(cfg *Config) ([]domain.TrackedEntity, error) {
	var entities []domain.TrackedEntity

	if cfg.EntitiesFile != "" {
		var f entitiesFile
		if _, err := toml.DecodeFile(cfg.EntitiesFile, &f); err != nil {
			return nil, fmt.Errorf("ENTITIES_FILE %s: %w", cfg.EntitiesFile, err)
		}
		for _, u := range f.Users {
			entities = append(entities, domain.TrackedEntity{ID: domain.EntityID(u.ID), DisplayName: u.Name})
		}
	}

	inline, err := ParseTrackedUsers(cfg.TrackedUsers)
	if err != nil {
		return nil, err
	}
	entities = append(entities, inline...)

	seen := make(map[domain.EntityID]struct{}, len(entities))
	for _, e := range entities {
		if e.ID <= 0 {
			return nil, fmt.Errorf("tracked user %q has invalid id %d", e.DisplayName, e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("tracked user %d listed twice", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	if len(entities) == 0 {
		return nil, errors.New("no tracked users configured")
	}
	return entities, nil
}

// ParseTrackedUsers parses the TRACKED_USERS form "id:name,id:name". A missing name defaults to the id.
func ParseTrackedUsers(s string) ([]domain.TrackedEntity, error) {
	var entities []domain.TrackedEntity
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idText, name, _ := strings.Cut(part, ":")
		id, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TRACKED_USERS entry %q: %w", part, err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = strconv.FormatInt(id, 10)
		}
		entities = append(entities, domain.TrackedEntity{ID: domain.EntityID(id), DisplayName: name})
	}
	return entities, nil
}
