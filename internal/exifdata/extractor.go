// Package exifdata turns raw EXIF tag sets into canonical, display-ready records.
package exifdata

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/internal/locale"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Decoder turns image bytes into a raw tag set.
type Decoder interface {
	Decode(r io.Reader) (RawTagSet, error)
}

// ExtractorConfig holds extractor dependencies.
type ExtractorConfig struct {
	// Decoder reads tags from image bytes. Optional when only Extract is used.
	Decoder Decoder

	// Locale controls month names in the capture display.
	Locale locale.Locale

	// Now supplies the default capture time. Defaults to time.Now.
	Now func() time.Time
}

// Extractor builds canonical records. It holds no global state; the decoder is
// injected at construction.
type Extractor struct {
	decoder Decoder
	locale  locale.Locale
	now     func() time.Time
	logger  *logger.Logger
}

// NewExtractor creates a new metadata extractor.
func NewExtractor(cfg ExtractorConfig, log *logger.Logger) *Extractor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Locale
	if loc.Tag == "" {
		loc = locale.Indonesian
	}
	return &Extractor{
		decoder: cfg.Decoder,
		locale:  loc,
		now:     now,
		logger:  log.WithField("component", "exif-extractor"),
	}
}

// ExtractImage decodes the tags embedded in data and extracts a record.
// Any decoder failure degrades to the basic record built from fileTime.
func (e *Extractor) ExtractImage(data []byte, fileTime time.Time) Record {
	if e.decoder == nil {
		return e.Extract(nil, fileTime)
	}

	tags, err := e.decoder.Decode(bytes.NewReader(data))
	if err != nil {
		e.logger.WithError(err).Debug("failed to decode EXIF, using basic metadata")
		return e.Extract(nil, fileTime)
	}
	return e.Extract(tags, fileTime)
}

// Extract converts a raw tag set into a record. A nil or empty tag set yields
// the basic record. Extract never fails.
func (e *Extractor) Extract(tags RawTagSet, fileTime time.Time) Record {
	if len(tags) == 0 {
		return e.basic(fileTime)
	}

	rec := Record{
		CaptureDisplay: e.locale.DateTime(e.now()),
		Camera: Camera{
			Make:         e.text(tags, FieldMake),
			Model:        e.text(tags, FieldModel),
			FocalLength:  e.number(tags, FieldFocalLength, func(f float64) string { return formatNumber(f) + "mm" }),
			Aperture:     e.prefixed(tags, FieldAperture, "f/"),
			ISO:          e.prefixed(tags, FieldISO, "ISO "),
			ShutterSpeed: e.number(tags, FieldExposureTime, FormatShutterSpeed),
		},
		Address:   AddressUnavailable,
		Altitude:  e.number(tags, FieldAltitude, FormatAltitude),
		Speed:     e.number(tags, FieldSpeed, FormatSpeed),
		Direction: e.number(tags, FieldDirection, FormatDirection),
		RawTags:   tags,
	}

	if v, ok := tags.Lookup(FieldCaptureTime); ok {
		if display, ok := e.captureDisplay(v); ok {
			rec.CaptureDisplay = display
		}
	}

	lat, latOK := e.float(tags, FieldLatitude)
	lng, lngOK := e.float(tags, FieldLongitude)
	if latOK && lngOK {
		rec.Coordinates = At(lat, lng)
	}

	return rec
}

// basic is the record used when no tag set is available.
func (e *Extractor) basic(fileTime time.Time) Record {
	if fileTime.IsZero() {
		fileTime = e.now()
	}
	return Record{
		CaptureDisplay: e.locale.DateTime(fileTime),
		Camera: Camera{
			Make:         Unknown,
			Model:        Unknown,
			FocalLength:  NotAvailable,
			Aperture:     NotAvailable,
			ISO:          NotAvailable,
			ShutterSpeed: NotAvailable,
		},
		Coordinates: FallbackCoordinates,
		Address:     PlaceholderAddress,
		Altitude:    NotAvailable,
		Speed:       NoSpeed,
		Direction:   NotAvailable,
		RawTags:     RawTagSet{},
	}
}

// captureDisplay formats a native time or an EXIF "YYYY:MM:DD HH:MM:SS" string.
func (e *Extractor) captureDisplay(v any) (string, bool) {
	switch val := v.(type) {
	case time.Time:
		return e.locale.DateTime(val), true
	case string:
		t, ok := parseExifDateTime(val)
		if !ok {
			e.logger.WithField("value", val).Debug("unparseable capture time, keeping default")
			return "", false
		}
		return e.locale.DateTime(t), true
	}
	return "", false
}

// parseExifDateTime splits on the first space into date and time parts, each
// split on ':'. Out-of-range components roll over like time.Date does.
func parseExifDateTime(s string) (time.Time, bool) {
	datePart, timePart, ok := strings.Cut(cleanString(s), " ")
	if !ok {
		return time.Time{}, false
	}
	d, ok := splitInts(datePart)
	if !ok {
		return time.Time{}, false
	}
	c, ok := splitInts(strings.TrimSpace(timePart))
	if !ok {
		return time.Time{}, false
	}
	return time.Date(d[0], time.Month(d[1]), d[2], c[0], c[1], c[2], 0, time.Local), true
}

func splitInts(s string) ([3]int, bool) {
	var out [3]int
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

func (e *Extractor) text(tags RawTagSet, f Field) string {
	if v, ok := tags.Lookup(f); ok {
		if s := toText(v); s != "" {
			return s
		}
	}
	return defaultFor(f)
}

func (e *Extractor) prefixed(tags RawTagSet, f Field, prefix string) string {
	if v, ok := tags.Lookup(f); ok {
		if s := toText(v); s != "" {
			return prefix + s
		}
	}
	return defaultFor(f)
}

func (e *Extractor) number(tags RawTagSet, f Field, format func(float64) string) string {
	if v, ok := e.float(tags, f); ok {
		return format(v)
	}
	return defaultFor(f)
}

func (e *Extractor) float(tags RawTagSet, f Field) (float64, bool) {
	v, ok := tags.Lookup(f)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}
