package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings is the single typed configuration for the whole service,
// populated once at startup. Defaults live here and nowhere else.
type Settings struct {
	Port string `validate:"required"`

	LineChannelSecret string `validate:"required"`
	LineChannelToken  string `validate:"required"`

	SerialWidth       int `validate:"gte=1,lte=10"`
	RecordsFetchLimit int `validate:"gte=1,lte=12"`

	InventoryCacheTTL time.Duration
	UsersCacheTTL     time.Duration

	// Monthly close schedule. ArchiveEnabled is false when any of the three
	// values is missing or out of range; the job then never fires.
	ArchiveEnabled bool
	ArchiveDay     int
	ArchiveHour    int
	ArchiveMinute  int

	Timezone *time.Location

	GCSBucket       string
	DefaultImageURL string

	// Menu data for the add wizard's quick replies. Categories come from env
	// as "key:label" pairs; a missing label falls back to the key.
	Categories []MenuOption
	Units      []string
}

type MenuOption struct {
	Key   string
	Label string
}

var settings *Settings

func GetSettings() *Settings {
	return settings
}

// LoadSettings reads env (godotenv already loaded by init in this package),
// applies defaults, validates, and sets the package singleton.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		Port:              envOr("PORT", "3000"),
		LineChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
		LineChannelToken:  os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		SerialWidth:       intFromEnv("SERIAL_WIDTH", 3),
		RecordsFetchLimit: intFromEnv("RECORDS_FETCH_LIMIT", 5),
		InventoryCacheTTL: time.Duration(intFromEnv("CACHE_EXPIRATION_INVENTORY", 300)) * time.Second,
		UsersCacheTTL:     time.Duration(intFromEnv("CACHE_EXPIRATION_USERS", 3600)) * time.Second,
		GCSBucket:         os.Getenv("GCS_BUCKET"),
		DefaultImageURL:   envOr("DEFAULT_IMAGE_URL", "https://via.placeholder.com/500x300.png?text=No+Image"),
	}

	tzName := envOr("TIMEZONE", "Asia/Taipei")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}
	s.Timezone = loc

	for _, raw := range splitList(os.Getenv("CATEGORIES")) {
		key, label, _ := strings.Cut(raw, ":")
		if label == "" {
			label = key
		}
		s.Categories = append(s.Categories, MenuOption{Key: key, Label: label})
	}
	s.Units = splitList(envOr("UNITS", "pcs,box,set"))

	s.ArchiveDay = intFromEnv("ARCHIVE_DAY_OF_MONTH", -1)
	s.ArchiveHour = intFromEnv("ARCHIVE_HOUR", -1)
	s.ArchiveMinute = intFromEnv("ARCHIVE_MINUTE", -1)
	s.ArchiveEnabled = s.ArchiveDay >= 1 && s.ArchiveDay <= 28 &&
		s.ArchiveHour >= 0 && s.ArchiveHour <= 23 &&
		s.ArchiveMinute >= 0 && s.ArchiveMinute <= 59
	if !s.ArchiveEnabled {
		GetLogger().Warn("archive schedule missing or invalid; monthly archival job disabled")
	}

	if err := validator.New().Struct(s); err != nil {
		return nil, err
	}

	settings = s
	return s, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
