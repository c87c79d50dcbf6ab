package exifdata

import (
	"encoding/json"
)

// Display literals used when a value is missing.
const (
	Unknown      = "Unknown"
	NotAvailable = "N/A"
	NoSpeed      = "0km/h"

	// AddressUnavailable is the address of every record built from raw tags.
	// Real address resolution happens later, in the location resolver.
	AddressUnavailable = "Lokasi tidak tersedia"

	// PlaceholderAddress is shown when nothing better is known.
	PlaceholderAddress = "Jalan Cikempong\nPakansari\nKecamatan Cibinong\nKabupaten Bogor\nJawa Barat"
)

// FallbackCoordinates pair with PlaceholderAddress in basic records.
var FallbackCoordinates = At(-6.4817, 106.837)

// Coordinates is a latitude/longitude pair that is either fully known or fully absent.
type Coordinates struct {
	Lat   float64
	Lng   float64
	Valid bool
}

// At returns known coordinates.
func At(lat, lng float64) Coordinates {
	return Coordinates{Lat: lat, Lng: lng, Valid: true}
}

// MarshalJSON renders absent coordinates as {"lat":null,"lng":null}.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte(`{"lat":null,"lng":null}`), nil
	}
	return json.Marshal(struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}{c.Lat, c.Lng})
}

// Camera holds display-ready camera identity and exposure settings.
type Camera struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	FocalLength  string `json:"focal_length"`
	Aperture     string `json:"aperture"`
	ISO          string `json:"iso"`
	ShutterSpeed string `json:"shutter_speed"`
}

// Record is the canonical, display-ready metadata of one photo.
// Only the location and timestamp override points change it after extraction.
type Record struct {
	CaptureDisplay string      `json:"date_time"`
	Camera         Camera      `json:"camera"`
	Coordinates    Coordinates `json:"coordinates"`
	Address        string      `json:"address"`
	Altitude       string      `json:"altitude"`
	Speed          string      `json:"speed"`
	Direction      string      `json:"direction"`

	// RawTags is passed through untouched for diagnostics.
	RawTags RawTagSet `json:"original_exif,omitempty"`
}

// HasAltitude reports whether the altitude is known.
func (r *Record) HasAltitude() bool {
	return r.Altitude != "" && r.Altitude != NotAvailable
}
