// Package watermark builds the watermark text lines and computes where the
// text block and the map thumbnail go on the base image.
package watermark

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Adilonapsh/exif-watermark-app/internal/exifdata"
)

// Layout constants, in pixels or as fractions of the base image.
const (
	MinFontSize      = 14.0
	FontScale        = 0.015
	PitchScale       = 1.3
	Padding          = 20.0
	PrimaryScale     = 1.2
	SecondaryScale   = 0.9
	FirstLineAdvance = 1.2
	MapScale         = 0.2
)

// Emphasis selects the font variant of a line.
type Emphasis int

const (
	Normal Emphasis = iota
	Primary
	Secondary
)

func (e Emphasis) String() string {
	switch e {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "normal"
	}
}

// Line is a single watermark text line.
type Line struct {
	Text     string
	FontSize float64
	Emphasis Emphasis
}

// Point is a position in base image pixels.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in base image pixels.
type Rect struct {
	X, Y, W, H float64
}

// Plan is the computed geometry for one image.
type Plan struct {
	Width  int
	Height int

	FontSize float64
	Pitch    float64
	Padding  float64

	// TextBlock is anchored to the bottom-right corner and may extend past
	// the left or top edge on small images.
	TextBlock Rect

	// Baselines holds the left baseline origin of each line, in line order.
	Baselines []Point

	MapSquare Rect
}

// Measurer reports the rendered width of a line in pixels.
type Measurer interface {
	Measure(line Line) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(line Line) float64

// Measure calls f(line).
func (f MeasureFunc) Measure(line Line) float64 { return f(line) }

// Approximate estimates width as 0.6 em per rune.
var Approximate = MeasureFunc(func(line Line) float64 {
	return float64(utf8.RuneCountInString(line.Text)) * line.FontSize * 0.6
})

// Config holds layout engine configuration.
type Config struct {
	Measurer Measurer

	// FallbackAddress replaces an empty or unavailable address. Empty keeps
	// the record's address as is.
	FallbackAddress string
}

// DefaultConfig returns the approximate measurer and the placeholder fallback address.
func DefaultConfig() Config {
	return Config{
		Measurer:        Approximate,
		FallbackAddress: exifdata.PlaceholderAddress,
	}
}

// Engine lays out watermark lines.
type Engine struct {
	measurer        Measurer
	fallbackAddress string
}

// NewEngine creates a new layout engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Measurer == nil {
		cfg.Measurer = Approximate
	}
	return &Engine{
		measurer:        cfg.Measurer,
		fallbackAddress: cfg.FallbackAddress,
	}
}

// BaseFontSize returns max(14, width*0.015).
func BaseFontSize(width int) float64 {
	return math.Max(MinFontSize, float64(width)*FontScale)
}

// Lines builds the ordered watermark lines for rec.
func (e *Engine) Lines(rec exifdata.Record, fontSize float64) []Line {
	lines := []Line{{Text: rec.CaptureDisplay, FontSize: fontSize * PrimaryScale, Emphasis: Primary}}

	if rec.Camera.Make != exifdata.Unknown {
		lines = append(lines, Line{
			Text:     rec.Camera.Make + " " + rec.Camera.Model,
			FontSize: fontSize,
		})
	}

	if rec.Camera.FocalLength != exifdata.NotAvailable {
		lines = append(lines, Line{
			Text: strings.Join([]string{
				rec.Camera.FocalLength,
				rec.Camera.Aperture,
				rec.Camera.ShutterSpeed,
				rec.Camera.ISO,
			}, " "),
			FontSize: fontSize,
		})
	}

	for _, part := range strings.Split(e.address(rec.Address), "\n") {
		lines = append(lines, Line{Text: strings.TrimSpace(part), FontSize: fontSize})
	}

	var extra []string
	if rec.Coordinates.Valid {
		extra = append(extra, fmt.Sprintf("%.6f, %.6f", rec.Coordinates.Lat, rec.Coordinates.Lng))
	}
	if rec.HasAltitude() {
		extra = append(extra, "• Alt: "+rec.Altitude)
	}
	if len(extra) > 0 {
		lines = append(lines, Line{
			Text:     strings.Join(extra, " "),
			FontSize: fontSize * SecondaryScale,
			Emphasis: Secondary,
		})
	}

	return lines
}

func (e *Engine) address(address string) string {
	if e.fallbackAddress != "" && (address == "" || address == exifdata.AddressUnavailable) {
		return e.fallbackAddress
	}
	return address
}

// Layout builds the lines for rec and places them on a width x height image.
func (e *Engine) Layout(rec exifdata.Record, width, height int) ([]Line, Plan) {
	fontSize := BaseFontSize(width)
	pitch := fontSize * PitchScale
	lines := e.Lines(rec, fontSize)

	var maxWidth float64
	for _, line := range lines {
		maxWidth = math.Max(maxWidth, e.measurer.Measure(line))
	}

	blockW := maxWidth + 2*Padding
	blockH := float64(len(lines))*pitch + 2*Padding
	block := Rect{
		X: float64(width) - blockW,
		Y: float64(height) - blockH,
		W: blockW,
		H: blockH,
	}

	baselines := make([]Point, len(lines))
	y := block.Y + Padding + fontSize
	for i := range lines {
		baselines[i] = Point{X: block.X + Padding, Y: y}
		if i == 0 {
			y += pitch * FirstLineAdvance
		} else {
			y += pitch
		}
	}

	side := math.Min(float64(width), float64(height)) * MapScale

	return lines, Plan{
		Width:     width,
		Height:    height,
		FontSize:  fontSize,
		Pitch:     pitch,
		Padding:   Padding,
		TextBlock: block,
		Baselines: baselines,
		MapSquare: Rect{X: Padding, Y: float64(height) - side - Padding, W: side, H: side},
	}
}
