package exifdata

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/internal/locale"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

var fixedNow = time.Date(2025, time.August, 17, 9, 30, 0, 0, time.Local)

func newTestExtractor(dec Decoder) *Extractor {
	return NewExtractor(ExtractorConfig{
		Decoder: dec,
		Locale:  locale.Indonesian,
		Now:     func() time.Time { return fixedNow },
	}, logger.Nop())
}

func TestExtractBasicRecord(t *testing.T) {
	e := newTestExtractor(nil)
	fileTime := time.Date(2023, time.December, 3, 7, 8, 9, 0, time.Local)

	rec := e.Extract(nil, fileTime)

	if rec.CaptureDisplay != "03 Des 2023, 07:08:09" {
		t.Errorf("CaptureDisplay = %q", rec.CaptureDisplay)
	}
	if rec.Camera.Make != Unknown || rec.Camera.Model != Unknown {
		t.Errorf("camera identity = %q %q", rec.Camera.Make, rec.Camera.Model)
	}
	for name, v := range map[string]string{
		"focal":    rec.Camera.FocalLength,
		"aperture": rec.Camera.Aperture,
		"iso":      rec.Camera.ISO,
		"shutter":  rec.Camera.ShutterSpeed,
		"altitude": rec.Altitude,
		"dir":      rec.Direction,
	} {
		if v != NotAvailable {
			t.Errorf("%s = %q, want N/A", name, v)
		}
	}
	if rec.Speed != NoSpeed {
		t.Errorf("Speed = %q", rec.Speed)
	}
	if rec.Address != PlaceholderAddress {
		t.Errorf("Address = %q", rec.Address)
	}
	if rec.Coordinates != FallbackCoordinates {
		t.Errorf("Coordinates = %+v", rec.Coordinates)
	}
}

func TestExtractNamedTags(t *testing.T) {
	e := newTestExtractor(nil)
	tags := RawTagSet{
		"Make":            "Canon",
		"Model":           "EOS R6",
		"FocalLength":     35.0,
		"FNumber":         1.8,
		"ISOSpeedRatings": int64(200),
		"ExposureTime":    0.004,
		"DateTime":        "2024:05:01 14:05:09",
		"GPSAltitude":     123.4,
		"GPSSpeed":        10.0,
		"GPSImgDirection": 23.0,
		"latitude":        -6.2,
		"longitude":       106.8166,
	}

	rec := e.Extract(tags, time.Time{})

	want := Camera{
		Make:         "Canon",
		Model:        "EOS R6",
		FocalLength:  "35mm",
		Aperture:     "f/1.8",
		ISO:          "ISO 200",
		ShutterSpeed: "1/250",
	}
	if rec.Camera != want {
		t.Errorf("Camera = %+v, want %+v", rec.Camera, want)
	}
	if rec.CaptureDisplay != "01 Mei 2024, 14:05:09" {
		t.Errorf("CaptureDisplay = %q", rec.CaptureDisplay)
	}
	if rec.Altitude != "123m" || rec.Speed != "19km/h" || rec.Direction != "23° NNE" {
		t.Errorf("gps displays = %q %q %q", rec.Altitude, rec.Speed, rec.Direction)
	}
	if rec.Coordinates != At(-6.2, 106.8166) {
		t.Errorf("Coordinates = %+v", rec.Coordinates)
	}
	if rec.Address != AddressUnavailable {
		t.Errorf("Address = %q, want sentinel", rec.Address)
	}
}

func TestExtractNumericFallbacks(t *testing.T) {
	e := newTestExtractor(nil)
	tags := RawTagSet{
		"271":   "NIKON",
		"272":   "Z 6",
		"33437": 4.0,
		"34855": int64(800),
		"33434": 2.0,
		"306":   "2021:01:31 23:59:58",
		"6":     12.0,
		"13":    0.0,
	}

	rec := e.Extract(tags, time.Time{})

	if rec.Camera.Make != "NIKON" || rec.Camera.Model != "Z 6" {
		t.Errorf("identity = %q %q", rec.Camera.Make, rec.Camera.Model)
	}
	if rec.Camera.Aperture != "f/4" || rec.Camera.ISO != "ISO 800" || rec.Camera.ShutterSpeed != "2s" {
		t.Errorf("settings = %+v", rec.Camera)
	}
	if rec.Camera.FocalLength != NotAvailable {
		t.Errorf("FocalLength has no numeric fallback, got %q", rec.Camera.FocalLength)
	}
	if rec.CaptureDisplay != "31 Jan 2021, 23:59:58" {
		t.Errorf("CaptureDisplay = %q", rec.CaptureDisplay)
	}
	if rec.Altitude != "12m" {
		t.Errorf("Altitude = %q", rec.Altitude)
	}
	if rec.Speed != NoSpeed {
		t.Errorf("zero speed should fall back, got %q", rec.Speed)
	}
	if rec.Coordinates.Valid {
		t.Error("coordinates should be absent")
	}
}

func TestExtractNamedWinsOverNumeric(t *testing.T) {
	e := newTestExtractor(nil)
	rec := e.Extract(RawTagSet{"Make": "Sony", "271": "Other"}, time.Time{})
	if rec.Camera.Make != "Sony" {
		t.Errorf("Make = %q", rec.Camera.Make)
	}
}

func TestExtractCaptureTime(t *testing.T) {
	e := newTestExtractor(nil)
	def := locale.Indonesian.DateTime(fixedNow)

	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"native time", time.Date(2022, time.October, 5, 6, 7, 8, 0, time.Local), "05 Okt 2022, 06:07:08"},
		{"exif string", "2022:10:05 06:07:08", "05 Okt 2022, 06:07:08"},
		{"no time part", "2022:10:05", def},
		{"garbage", "yesterday at noon", def},
		{"short date", "2022:10 06:07:08", def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.Extract(RawTagSet{"Make": "X", "DateTimeOriginal": tt.value}, time.Time{})
			if rec.CaptureDisplay != tt.expected {
				t.Errorf("CaptureDisplay = %q, want %q", rec.CaptureDisplay, tt.expected)
			}
		})
	}
}

func TestCoordinatesInvariant(t *testing.T) {
	e := newTestExtractor(nil)

	for _, tags := range []RawTagSet{
		{"latitude": 1.5},
		{"longitude": 2.5},
		{"latitude": 1.5, "longitude": 2.5},
		{"Make": "X"},
	} {
		rec := e.Extract(tags, time.Time{})
		_, hasLat := tags["latitude"]
		_, hasLng := tags["longitude"]
		if rec.Coordinates.Valid != (hasLat && hasLng) {
			t.Errorf("tags %v: Valid = %v", tags, rec.Coordinates.Valid)
		}
	}
}

func TestCoordinatesJSON(t *testing.T) {
	data, err := json.Marshal(Coordinates{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"lat":null,"lng":null}` {
		t.Errorf("absent = %s", data)
	}

	data, _ = json.Marshal(At(1.25, -2.5))
	if string(data) != `{"lat":1.25,"lng":-2.5}` {
		t.Errorf("known = %s", data)
	}
}

type failingDecoder struct{}

func (failingDecoder) Decode(io.Reader) (RawTagSet, error) {
	return nil, errors.New("no exif")
}

func TestExtractImageDegrades(t *testing.T) {
	e := newTestExtractor(failingDecoder{})
	fileTime := time.Date(2020, time.February, 29, 12, 0, 0, 0, time.Local)

	rec := e.ExtractImage([]byte("not an image"), fileTime)
	if rec.Address != PlaceholderAddress || rec.CaptureDisplay != "29 Feb 2020, 12:00:00" {
		t.Errorf("expected basic record, got %+v", rec)
	}
}

func TestGoexifDecoderRejectsNonExif(t *testing.T) {
	e := newTestExtractor(GoexifDecoder{})

	rec := e.ExtractImage([]byte("plain bytes without exif"), time.Time{})
	if rec.Camera.Make != Unknown || rec.Address != PlaceholderAddress {
		t.Errorf("expected basic record, got %+v", rec)
	}
}
