package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// OpenCageConfig holds OpenCage client configuration.
type OpenCageConfig struct {
	// API base URL
	BaseURL string

	// API key
	Key string

	// Language for formatted results
	Language string

	// HTTP client timeout (0 = none)
	Timeout time.Duration
}

// DefaultOpenCageConfig returns default configuration.
func DefaultOpenCageConfig() OpenCageConfig {
	return OpenCageConfig{
		BaseURL:  "https://api.opencagedata.com",
		Language: "id",
	}
}

// OpenCage performs forward geocoding against the OpenCage API.
type OpenCage struct {
	client   *http.Client
	baseURL  string
	key      string
	language string
	logger   *logger.Logger
}

// NewOpenCage creates a new OpenCage geocoder.
func NewOpenCage(cfg OpenCageConfig, log *logger.Logger) *OpenCage {
	return &OpenCage{
		client:   newHTTPClient(cfg.Timeout),
		baseURL:  cfg.BaseURL,
		key:      cfg.Key,
		language: cfg.Language,
		logger:   log.WithField("component", "opencage"),
	}
}

type openCageResponse struct {
	Results []struct {
		Formatted string `json:"formatted"`
		Geometry  struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address to its first match.
func (o *OpenCage) Geocode(ctx context.Context, address string) (*Result, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("key", o.key)
	q.Set("language", o.language)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/geocode/v1/json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body openCageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Results) == 0 {
		return nil, ErrNoResults
	}

	first := body.Results[0]
	o.logger.WithFields(map[string]interface{}{
		"query":   address,
		"address": first.Formatted,
	}).Debug("geocoding successful")

	return &Result{
		FormattedAddress: first.Formatted,
		Lat:              first.Geometry.Lat,
		Lng:              first.Geometry.Lng,
	}, nil
}
