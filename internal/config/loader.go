package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dimasikck/teacher-tool/internal/application"
	"github.com/Dimasikck/teacher-tool/internal/scheduler"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort        int
	SQLitePath      string
	Location        *time.Location
	BusinessStart   scheduler.TimeOfDay
	BusinessEnd     scheduler.TimeOfDay
	SlotGranularity time.Duration
	SlotSearchDays  int
	MaxFreeSlots    int
	ImportPreview   int
	LogLevel        slog.Level
}

// Load reads the optional dotenv files and then parses configuration values
// from the process environment.
//
// Dotenv files that do not exist are skipped. Variables already present in the
// environment are never overridden by a dotenv file. Every invalid value is
// reported in a single error.
func Load(files ...string) (Config, error) {
	if err := loadDotenv(files); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:        8080,
		SQLitePath:      "scheduler.db",
		Location:        time.UTC,
		BusinessStart:   scheduler.DefaultBusinessStart,
		BusinessEnd:     scheduler.DefaultBusinessEnd,
		SlotGranularity: scheduler.DefaultGranularity,
		SlotSearchDays:  scheduler.DefaultSearchDays,
		MaxFreeSlots:    scheduler.DefaultMaxResults,
		ImportPreview:   10,
		LogLevel:        slog.LevelInfo,
	}

	invalid := make([]string, 0, 4)

	if value := env("SCHEDULER_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := env("SCHEDULER_SQLITE_DSN"); dsn != "" {
		cfg.SQLitePath = dsn
	}

	if value := env("SCHEDULER_TIMEZONE"); value != "" {
		loc, err := time.LoadLocation(value)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if value := env("SCHEDULER_BUSINESS_HOURS"); value != "" {
		start, end, ok := parseBusinessHours(value)
		if !ok {
			invalid = append(invalid, "SCHEDULER_BUSINESS_HOURS")
		} else {
			cfg.BusinessStart, cfg.BusinessEnd = start, end
		}
	}

	if value := env("SCHEDULER_SLOT_GRANULARITY"); value != "" {
		granularity, err := time.ParseDuration(value)
		if err != nil || granularity <= 0 {
			invalid = append(invalid, "SCHEDULER_SLOT_GRANULARITY")
		} else {
			cfg.SlotGranularity = granularity
		}
	}

	positiveInts := []struct {
		key    string
		target *int
	}{
		{"SCHEDULER_SLOT_SEARCH_DAYS", &cfg.SlotSearchDays},
		{"SCHEDULER_MAX_FREE_SLOTS", &cfg.MaxFreeSlots},
		{"SCHEDULER_IMPORT_PREVIEW", &cfg.ImportPreview},
	}
	for _, field := range positiveInts {
		value := env(field.key)
		if value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, field.key)
			continue
		}
		*field.target = n
	}

	if value := env("SCHEDULER_LOG_LEVEL"); value != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(value)); err != nil {
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("некорректные значения переменных окружения: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Settings converts the configuration into schedule service settings.
func (c Config) Settings() application.Settings {
	settings := application.DefaultSettings()
	settings.Location = c.Location
	settings.BusinessStart = c.BusinessStart
	settings.BusinessEnd = c.BusinessEnd
	settings.SlotGranularity = c.SlotGranularity
	settings.SlotSearchDays = c.SlotSearchDays
	settings.MaxFreeSlots = c.MaxFreeSlots
	settings.ImportPreview = c.ImportPreview
	return settings
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func loadDotenv(files []string) error {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("не удалось прочитать файл %s: %w", file, err)
		}
		existing = append(existing, file)
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("не удалось загрузить переменные окружения: %w", err)
	}
	return nil
}

func parseBusinessHours(value string) (scheduler.TimeOfDay, scheduler.TimeOfDay, bool) {
	before, after, found := strings.Cut(value, "-")
	if !found {
		return scheduler.TimeOfDay{}, scheduler.TimeOfDay{}, false
	}
	start, err := scheduler.ParseTimeOfDay(strings.TrimSpace(before))
	if err != nil {
		return scheduler.TimeOfDay{}, scheduler.TimeOfDay{}, false
	}
	end, err := scheduler.ParseTimeOfDay(strings.TrimSpace(after))
	if err != nil || !start.Before(end) {
		return scheduler.TimeOfDay{}, scheduler.TimeOfDay{}, false
	}
	return start, end, true
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
