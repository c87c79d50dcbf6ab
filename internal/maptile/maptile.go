// Package maptile fetches static map images from the Mapbox Static Images API.
package maptile

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Config holds Mapbox client configuration.
type Config struct {
	// API base URL
	BaseURL string

	// Style identifier, e.g. "mapbox/streets-v11"
	Style string

	// Access token
	Token string

	// HTTP client timeout (0 = none)
	Timeout time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.mapbox.com",
		Style:   "mapbox/streets-v11",
	}
}

// Request describes a static map centred on a point.
type Request struct {
	Lng    float64
	Lat    float64
	Zoom   int
	Width  int
	Height int
}

// DefaultRequest returns a 600x400 request at zoom 15.
func DefaultRequest(lat, lng float64) Request {
	return Request{Lng: lng, Lat: lat, Zoom: 15, Width: 600, Height: 400}
}

// Fetcher downloads and decodes static map images.
type Fetcher struct {
	client  *http.Client
	baseURL string
	style   string
	token   string
	logger  *logger.Logger
}

// NewFetcher creates a new map fetcher.
func NewFetcher(cfg Config, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		style:   cfg.Style,
		token:   cfg.Token,
		logger:  log.WithField("component", "maptile"),
	}
}

// URL builds the static image URL for req.
func (f *Fetcher) URL(req Request) string {
	return fmt.Sprintf("%s/styles/v1/%s/static/%s,%s,%d,0,0/%dx%d?access_token=%s",
		f.baseURL,
		f.style,
		strconv.FormatFloat(req.Lng, 'f', -1, 64),
		strconv.FormatFloat(req.Lat, 'f', -1, 64),
		req.Zoom,
		req.Width,
		req.Height,
		url.QueryEscape(f.token),
	)
}

// Fetch downloads the map image for req.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (image.Image, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	img, format, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode map image: %w", err)
	}

	f.logger.WithFields(map[string]interface{}{
		"lat":      req.Lat,
		"lng":      req.Lng,
		"format":   format,
		"duration": time.Since(start).String(),
	}).Debug("map image fetched")

	return img, nil
}
