// Package geo provides the geocoding collaborators: OpenCage and Nominatim
// forward search, plus Nominatim reverse geocoding.
package geo

import (
	"errors"
	"net/http"
	"time"
)

// ErrNoResults is returned when the service answered but found nothing.
var ErrNoResults = errors.New("no geocoding results")

// Result is a resolved address with its coordinates.
type Result struct {
	FormattedAddress string
	Lat              float64
	Lng              float64
}

// userAgent is required by the Nominatim usage policy.
const userAgent = "exif-watermark/1.0 (+https://github.com/Adilonapsh/exif-watermark-app)"

// newHTTPClient returns a client with the given timeout. Zero means no timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
