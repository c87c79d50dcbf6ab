package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// NominatimConfig holds Nominatim client configuration.
type NominatimConfig struct {
	// Nominatim API base URL
	BaseURL string

	// Rate limit in milliseconds between requests
	RateLimitMs int

	// Preferred response language
	Language string

	// HTTP client timeout (0 = none)
	Timeout time.Duration
}

// DefaultNominatimConfig returns default configuration.
func DefaultNominatimConfig() NominatimConfig {
	return NominatimConfig{
		BaseURL:     "https://nominatim.openstreetmap.org",
		RateLimitMs: 1100, // Slightly more than 1 req/sec to be safe
		Language:    "id",
	}
}

// Nominatim handles forward and reverse geocoding using Nominatim.
type Nominatim struct {
	client      *http.Client
	baseURL     string
	rateLimitMs int
	language    string
	logger      *logger.Logger

	// Rate limiting
	mu          sync.Mutex
	lastRequest time.Time
}

// NewNominatim creates a new Nominatim client.
func NewNominatim(cfg NominatimConfig, log *logger.Logger) *Nominatim {
	return &Nominatim{
		client:      newHTTPClient(cfg.Timeout),
		baseURL:     cfg.BaseURL,
		rateLimitMs: cfg.RateLimitMs,
		language:    cfg.Language,
		logger:      log.WithField("component", "nominatim"),
	}
}

// Address represents address details from Nominatim.
type Address struct {
	Road    string `json:"road"`
	Suburb  string `json:"suburb"`
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	County  string `json:"county"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Lines returns road, suburb, city-level name, county, state and country,
// skipping the empty ones.
func (a *Address) Lines() []string {
	city := a.City
	if city == "" {
		city = a.Town
	}
	if city == "" {
		city = a.Village
	}

	var lines []string
	for _, part := range []string{a.Road, a.Suburb, city, a.County, a.State, a.Country} {
		if part != "" {
			lines = append(lines, part)
		}
	}
	return lines
}

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// multiline formats the address one component per line, or the display name
// when no components came back.
func (p *place) multiline() string {
	if lines := p.Address.Lines(); len(lines) > 0 {
		return strings.Join(lines, "\n")
	}
	return p.DisplayName
}

// Geocode resolves a free-text address with the /search endpoint.
func (n *Nominatim) Geocode(ctx context.Context, address string) (*Result, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")

	var places []place
	if err := n.get(ctx, "/search?"+q.Encode(), &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrNoResults
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat: %w", err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon: %w", err)
	}

	return &Result{
		FormattedAddress: places[0].DisplayName,
		Lat:              lat,
		Lng:              lng,
	}, nil
}

// ReverseGeocode returns a newline-separated address for the coordinates.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	path := fmt.Sprintf("/reverse?lat=%f&lon=%f&zoom=18&format=jsonv2&addressdetails=1", lat, lng)

	var p place
	if err := n.get(ctx, path, &p); err != nil {
		return "", err
	}

	address := p.multiline()
	if address == "" {
		return "", ErrNoResults
	}

	n.logger.WithFields(map[string]interface{}{
		"lat":  lat,
		"lon":  lng,
		"name": p.DisplayName,
	}).Debug("reverse geocoding successful")

	return address, nil
}

func (n *Nominatim) get(ctx context.Context, path string, out interface{}) error {
	n.wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if n.language != "" {
		req.Header.Set("Accept-Language", n.language)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// wait enforces the minimum spacing between requests.
func (n *Nominatim) wait() {
	n.mu.Lock()
	defer n.mu.Unlock()

	interval := time.Duration(n.rateLimitMs) * time.Millisecond
	if elapsed := time.Since(n.lastRequest); elapsed < interval {
		time.Sleep(interval - elapsed)
	}
	n.lastRequest = time.Now()
}
