package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"API_PORT", "JPEG_QUALITY", "MAP_ENABLED", "HTTP_TIMEOUT_SEC", "FALLBACK_ADDRESS", "GEOCODER"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Errorf("APIPort = %q", cfg.APIPort)
	}
	if cfg.JPEGQuality != 90 {
		t.Errorf("JPEGQuality = %d", cfg.JPEGQuality)
	}
	if !cfg.MapEnabled || cfg.MapBestEffort {
		t.Errorf("map flags = %v %v", cfg.MapEnabled, cfg.MapBestEffort)
	}
	if cfg.HTTPTimeout != 0 {
		t.Errorf("HTTPTimeout = %v, want none", cfg.HTTPTimeout)
	}
	if cfg.FallbackAddress != defaultFallbackAddress {
		t.Errorf("FallbackAddress = %q", cfg.FallbackAddress)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9000")
	t.Setenv("JPEG_QUALITY", "75")
	t.Setenv("MAP_BEST_EFFORT", "true")
	t.Setenv("HTTP_TIMEOUT_SEC", "2.5")
	t.Setenv("WATCH_SETTLE_MS", "500")
	t.Setenv("GEOCODER", "Nominatim")
	t.Setenv("FALLBACK_ADDRESS", `Jalan Merdeka\nBandung`)
	t.Setenv("MAX_UPLOAD_MB", "not-a-number")

	cfg := Load()

	if cfg.APIPort != "9000" || cfg.JPEGQuality != 75 || !cfg.MapBestEffort {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.HTTPTimeout != 2500*time.Millisecond {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.WatchSettle != 500*time.Millisecond {
		t.Errorf("WatchSettle = %v", cfg.WatchSettle)
	}
	if cfg.Geocoder != GeocoderNominatim {
		t.Errorf("Geocoder = %q", cfg.Geocoder)
	}
	if cfg.FallbackAddress != "Jalan Merdeka\nBandung" {
		t.Errorf("FallbackAddress = %q", cfg.FallbackAddress)
	}
	if cfg.MaxUploadMB != 64 {
		t.Errorf("MaxUploadMB = %d, want default on bad value", cfg.MaxUploadMB)
	}
}

func TestFallbackAddressDisabled(t *testing.T) {
	t.Setenv("FALLBACK_ADDRESS", "none")
	if got := Load().FallbackAddress; got != "" {
		t.Errorf("FallbackAddress = %q, want empty", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown geocoder", func(c *Config) { c.Geocoder = "google" }, true},
		{"quality too high", func(c *Config) { c.JPEGQuality = 101 }, true},
		{"watch without queue", func(c *Config) { c.WatchEnabled = true; c.QueueEnabled = false }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Geocoder: GeocoderNone, JPEGQuality: 90}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "Asia/Jakarta"}
	loc, err := cfg.Location()
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if loc.String() != "Asia/Jakarta" {
		t.Errorf("location = %s", loc)
	}

	if _, err := (&Config{Timezone: "Nowhere/Atlantis"}).Location(); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		QueueEnabled: true,
		InboxDir:     filepath.Join(root, "inbox"),
		OutputDir:    filepath.Join(root, "out", "nested"),
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
}
