package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the validated server configuration, read from the
// environment with sensible defaults for local development.
type Config struct {
	Addr       string
	DataDir    string
	UploadsDir string

	SnapshotInterval time.Duration
	RetentionDays    int
	RoomGracePeriod  time.Duration

	MaxImageBytes   int64
	MaxRooms        int
	MaxRoomSessions int
	MaxElements     int

	AllowedOrigins []string
	Development    bool
}

// Load reads configuration from environment variables, applying defaults
// and collecting every validation failure into a single error.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:       getEnvOrDefault("ADDR", ":3001"),
		DataDir:    getEnvOrDefault("DATA_DIR", "./data"),
		UploadsDir: getEnvOrDefault("UPLOADS_DIR", "./uploads"),
	}
	var errs []string

	cfg.SnapshotInterval = parseDuration("SNAPSHOT_INTERVAL", 5*time.Second, &errs)
	cfg.RoomGracePeriod = parseDuration("ROOM_GRACE_PERIOD", 60*time.Second, &errs)
	cfg.RetentionDays = parseInt("RETENTION_DAYS", 30, &errs)
	cfg.MaxImageBytes = int64(parseInt("MAX_IMAGE_BYTES", 3<<20, &errs))
	cfg.MaxRooms = parseInt("MAX_ROOMS", 1000, &errs)
	cfg.MaxRoomSessions = parseInt("MAX_ROOM_SESSIONS", 50, &errs)
	cfg.MaxElements = parseInt("MAX_ELEMENTS", 10000, &errs)
	cfg.Development = os.Getenv("DEVELOPMENT") == "true"

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	if cfg.SnapshotInterval <= 0 {
		errs = append(errs, "SNAPSHOT_INTERVAL must be positive")
	}
	if cfg.RoomGracePeriod < 0 {
		errs = append(errs, "ROOM_GRACE_PERIOD must not be negative")
	}
	if cfg.RetentionDays <= 0 {
		errs = append(errs, "RETENTION_DAYS must be positive")
	}
	if cfg.MaxImageBytes <= 0 {
		errs = append(errs, "MAX_IMAGE_BYTES must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// RetentionHorizon converts the retention setting into a duration.
func (c *Config) RetentionHorizon() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be a duration like '5s' (got %q)", key, raw))
		return defaultValue
	}
	return d
}

func parseInt(key string, defaultValue int, errs *[]string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer (got %q)", key, raw))
		return defaultValue
	}
	return n
}
