// Package config provides configuration management for the watermark service.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Geocoder providers.
const (
	GeocoderOpenCage  = "opencage"
	GeocoderNominatim = "nominatim"
	GeocoderNone      = "none"
)

// defaultFallbackAddress is shown when a photo has no usable address.
const defaultFallbackAddress = "Jalan Cikempong\nPakansari\nKecamatan Cibinong\nKabupaten Bogor\nJawa Barat"

// Config holds all configuration for the watermark service.
type Config struct {
	// API server
	APIPort     string
	MaxUploadMB int

	// Redis connection for the job queue
	RedisURL     string
	QueueEnabled bool

	// Hot folder
	InboxDir     string
	OutputDir    string
	WatchEnabled bool
	WatchSettle  time.Duration

	// Geocoding
	Geocoder        string
	OpenCageKey     string
	OpenCageURL     string
	NominatimURL    string
	GeocodeLanguage string

	// Static maps
	MapboxToken   string
	MapboxURL     string
	MapboxStyle   string
	MapEnabled    bool
	MapBestEffort bool

	// Outbound HTTP timeout (0 = none)
	HTTPTimeout time.Duration

	// Rendering
	JPEGQuality int
	MaxPixels   int
	VipsEnabled bool

	// Display
	DisplayLocale   string
	Timezone        string
	FallbackAddress string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		// API
		APIPort:     getEnv("API_PORT", "8080"),
		MaxUploadMB: getIntEnv("MAX_UPLOAD_MB", 64),

		// Queue
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		QueueEnabled: getBoolEnv("QUEUE_ENABLED", false),

		// Hot folder
		InboxDir:     getEnv("INBOX_DIR", "/data/inbox"),
		OutputDir:    getEnv("OUTPUT_DIR", "/data/output"),
		WatchEnabled: getBoolEnv("WATCH_ENABLED", false),
		WatchSettle:  time.Duration(getIntEnv("WATCH_SETTLE_MS", 2000)) * time.Millisecond,

		// Geocoding
		Geocoder:        strings.ToLower(getEnv("GEOCODER", GeocoderOpenCage)),
		OpenCageKey:     getEnv("OPENCAGE_KEY", ""),
		OpenCageURL:     getEnv("OPENCAGE_URL", "https://api.opencagedata.com"),
		NominatimURL:    getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocodeLanguage: getEnv("GEOCODE_LANGUAGE", "id"),

		// Maps
		MapboxToken:   getEnv("MAPBOX_TOKEN", ""),
		MapboxURL:     getEnv("MAPBOX_URL", "https://api.mapbox.com"),
		MapboxStyle:   getEnv("MAPBOX_STYLE", "mapbox/streets-v11"),
		MapEnabled:    getBoolEnv("MAP_ENABLED", true),
		MapBestEffort: getBoolEnv("MAP_BEST_EFFORT", false),

		HTTPTimeout: time.Duration(getFloatEnv("HTTP_TIMEOUT_SEC", 0) * float64(time.Second)),

		// Rendering
		JPEGQuality: getIntEnv("JPEG_QUALITY", 90),
		MaxPixels:   getIntEnv("MAX_PIXELS", 100_000_000),
		VipsEnabled: getBoolEnv("VIPS_ENABLED", true),

		// Display
		DisplayLocale:   getEnv("DISPLAY_LOCALE", "id-ID"),
		Timezone:        getEnv("TIMEZONE", "Local"),
		FallbackAddress: fallbackAddress(getEnv("FALLBACK_ADDRESS", defaultFallbackAddress)),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// fallbackAddress turns literal "\n" sequences into line breaks. "none" disables
// the fallback.
func fallbackAddress(v string) string {
	if strings.EqualFold(v, "none") {
		return ""
	}
	return strings.ReplaceAll(v, `\n`, "\n")
}

// getEnv returns the environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns the environment variable as int or a default if not set.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getBoolEnv returns the environment variable as bool or a default if not set.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getFloatEnv returns the environment variable as float64 or a default if not set.
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Geocoder {
	case GeocoderOpenCage, GeocoderNominatim, GeocoderNone:
	default:
		return fmt.Errorf("unknown GEOCODER %q", c.Geocoder)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within 1-100, got %d", c.JPEGQuality)
	}
	if c.WatchEnabled && !c.QueueEnabled {
		return fmt.Errorf("WATCH_ENABLED requires QUEUE_ENABLED")
	}
	return nil
}

// Location returns the time zone used to render override timestamps.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// MaxUploadBytes returns the multipart upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// EnsureDirs creates required directories if they don't exist.
func (c *Config) EnsureDirs() error {
	if !c.QueueEnabled {
		return nil
	}
	dirs := []string{c.InboxDir, c.OutputDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
