package exifdata

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// RawTagSet maps a tag identifier to its decoded value. Identifiers are either
// the tag name ("Make") or its decimal numeric id ("271"). Values are strings,
// float64, int64 or time.Time. Consumers treat it as read-only.
type RawTagSet map[string]any

// Field names a canonical record field that is filled from raw tags.
type Field int

const (
	FieldMake Field = iota
	FieldModel
	FieldFocalLength
	FieldAperture
	FieldISO
	FieldExposureTime
	FieldCaptureTime
	FieldAltitude
	FieldSpeed
	FieldDirection
	FieldLatitude
	FieldLongitude
)

// fallback describes how one field is resolved: named tags first, in order,
// then the numeric id (0 means none), then the default literal.
type fallback struct {
	Names   []string
	ID      uint16
	Default string
}

var fallbackChains = map[Field]fallback{
	FieldMake:         {Names: []string{"Make"}, ID: 271, Default: Unknown},
	FieldModel:        {Names: []string{"Model"}, ID: 272, Default: Unknown},
	FieldFocalLength:  {Names: []string{"FocalLength"}, Default: NotAvailable},
	FieldAperture:     {Names: []string{"FNumber"}, ID: 33437, Default: NotAvailable},
	FieldISO:          {Names: []string{"ISO", "ISOSpeedRatings"}, ID: 34855, Default: NotAvailable},
	FieldExposureTime: {Names: []string{"ExposureTime"}, ID: 33434, Default: NotAvailable},
	FieldCaptureTime:  {Names: []string{"DateTime", "DateTimeOriginal", "CreateDate"}, ID: 306},
	FieldAltitude:     {Names: []string{"GPSAltitude"}, ID: 6, Default: NotAvailable},
	FieldSpeed:        {Names: []string{"GPSSpeed"}, ID: 13, Default: NoSpeed},
	FieldDirection:    {Names: []string{"GPSImgDirection"}, Default: NotAvailable},
	FieldLatitude:     {Names: []string{"latitude"}},
	FieldLongitude:    {Names: []string{"longitude"}},
}

// Lookup resolves a field through its fallback chain and returns the first
// present value. Nil, empty strings and zero numbers count as absent.
func (t RawTagSet) Lookup(f Field) (any, bool) {
	chain, ok := fallbackChains[f]
	if !ok || t == nil {
		return nil, false
	}
	for _, name := range chain.Names {
		if v, ok := t[name]; ok && present(v) {
			return v, true
		}
	}
	if chain.ID != 0 {
		if v, ok := t[strconv.Itoa(int(chain.ID))]; ok && present(v) {
			return v, true
		}
	}
	return nil, false
}

// defaultFor returns the literal used when a field has no value.
func defaultFor(f Field) string {
	return fallbackChains[f].Default
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return cleanString(val) != ""
	case time.Time:
		return !val.IsZero()
	default:
		f, ok := toFloat(v)
		if !ok {
			return true
		}
		return f != 0 && !math.IsNaN(f)
	}
}

// toFloat converts numeric tag values (and numeric strings) to float64.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(cleanString(val), 64)
		return f, err == nil
	}
	return 0, false
}

// toText renders a tag value for display.
func toText(v any) string {
	if s, ok := v.(string); ok {
		return cleanString(s)
	}
	if f, ok := toFloat(v); ok {
		return formatNumber(f)
	}
	return ""
}

func cleanString(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

// formatNumber prints the shortest representation, "4.25" or "200".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
