// Package location applies manual location overrides to a record.
package location

import (
	"context"
	"strings"

	"github.com/Adilonapsh/exif-watermark-app/internal/exifdata"
	"github.com/Adilonapsh/exif-watermark-app/internal/geo"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Geocoder resolves a free-text address.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geo.Result, error)
}

// ReverseGeocoder turns coordinates into a newline-separated address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Geocoding outcome labels passed to Config.OnGeocode.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Config holds resolver dependencies.
type Config struct {
	Geocoder Geocoder

	// Reverse is kept for picked-point resolution. Picked points currently get
	// PlaceholderAddress instead of a reverse lookup.
	Reverse ReverseGeocoder

	// PlaceholderAddress is used for picked points. Defaults to exifdata.PlaceholderAddress.
	PlaceholderAddress string

	// OnGeocode is called once per geocoding attempt with a Status* label.
	OnGeocode func(status string)
}

// Resolver decides the final address and coordinates of a record.
type Resolver struct {
	geocoder    Geocoder
	reverse     ReverseGeocoder
	placeholder string
	onGeocode   func(string)
	logger      *logger.Logger
}

// NewResolver creates a new location resolver.
func NewResolver(cfg Config, log *logger.Logger) *Resolver {
	r := &Resolver{
		geocoder:    cfg.Geocoder,
		reverse:     cfg.Reverse,
		placeholder: cfg.PlaceholderAddress,
		onGeocode:   cfg.OnGeocode,
		logger:      log.WithField("component", "location"),
	}
	if r.placeholder == "" {
		r.placeholder = exifdata.PlaceholderAddress
	}
	if r.onGeocode == nil {
		r.onGeocode = func(string) {}
	}
	return r
}

// Resolve applies, first match wins:
//  1. a non-blank manual address, geocoded (verbatim text and no coordinates on failure);
//  2. manual coordinates when the record has none, with the placeholder address;
//  3. nothing.
//
// Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, rec exifdata.Record, manualAddress string, manual exifdata.Coordinates) exifdata.Record {
	if address := strings.TrimSpace(manualAddress); address != "" {
		return r.fromAddress(ctx, rec, address)
	}

	if manual.Valid && !rec.Coordinates.Valid {
		rec.Coordinates = manual
		rec.Address = r.placeholder
		r.logger.WithFields(map[string]interface{}{
			"lat":             manual.Lat,
			"lng":             manual.Lng,
			"reverse_enabled": r.reverse != nil,
		}).Debug("using picked coordinates with placeholder address")
		return rec
	}

	return rec
}

func (r *Resolver) fromAddress(ctx context.Context, rec exifdata.Record, address string) exifdata.Record {
	if r.geocoder == nil {
		r.logger.WithField("address", address).Debug("no geocoder configured, using address verbatim")
		rec.Address = address
		rec.Coordinates = exifdata.Coordinates{}
		return rec
	}

	res, err := r.geocoder.Geocode(ctx, address)
	if err != nil || res == nil {
		r.onGeocode(StatusFailed)
		r.logger.WithError(err).WithField("address", address).Warn("geocoding failed, using address verbatim")
		rec.Address = address
		rec.Coordinates = exifdata.Coordinates{}
		return rec
	}

	r.onGeocode(StatusSuccess)
	rec.Address = res.FormattedAddress
	rec.Coordinates = exifdata.At(res.Lat, res.Lng)
	return rec
}
