// Package render composites watermark text and a map thumbnail onto a photo
// and encodes the result as JPEG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/bbrks/go-blurhash"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/Adilonapsh/exif-watermark-app/internal/exifdata"
	"github.com/Adilonapsh/exif-watermark-app/internal/maptile"
	"github.com/Adilonapsh/exif-watermark-app/internal/watermark"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// BlurhashComponents defines the number of components for blurhash encoding.
const (
	BlurhashXComponents = 4
	BlurhashYComponents = 3
)

const (
	// Canvas shadowBlur 2 corresponds to a gaussian sigma of 1.
	shadowSigma  = 1.0
	shadowMargin = 4

	markerScale = 0.08
	outerRadius = 0.5
	innerRadius = 0.2
)

var (
	textColor   = color.White
	shadowColor = color.NRGBA{A: 204}
	backing     = color.White
	outerColor  = color.NRGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}
	innerColor  = color.NRGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}

	shadowOffset = image.Pt(1, 1)
)

// MapFetcher supplies static map rasters.
type MapFetcher interface {
	Fetch(ctx context.Context, req maptile.Request) (image.Image, error)
}

// Decoder is a fallback decoder for formats the native decoders miss.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// Config holds renderer configuration.
type Config struct {
	// JPEG quality (1-100)
	Quality int

	// Largest accepted canvas in pixels (0 = unlimited)
	MaxPixels int

	// Map thumbnail settings
	Maps          MapFetcher
	MapEnabled    bool
	MapBestEffort bool
	MapZoom       int
	MapWidth      int
	MapHeight     int

	// Optional fallback decoder
	Fallback Decoder

	// Optional map fetch observer, called with "success" or "failed"
	OnMapFetch func(status string)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	req := maptile.DefaultRequest(0, 0)
	return Config{
		Quality:    90,
		MapEnabled: true,
		MapZoom:    req.Zoom,
		MapWidth:   req.Width,
		MapHeight:  req.Height,
	}
}

// Output is an encoded watermarked image.
type Output struct {
	JPEG     []byte
	Width    int
	Height   int
	Blurhash string
}

// Renderer draws watermarks. It reuses one surface across calls and is not
// safe for concurrent use.
type Renderer struct {
	config Config
	fonts  *fontSet
	logger *logger.Logger

	surface *image.NRGBA
}

// NewRenderer creates a new renderer.
func NewRenderer(cfg Config, log *logger.Logger) (*Renderer, error) {
	fonts, err := newFontSet()
	if err != nil {
		return nil, err
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 90
	}
	def := DefaultConfig()
	if cfg.MapZoom == 0 {
		cfg.MapZoom = def.MapZoom
	}
	if cfg.MapWidth == 0 || cfg.MapHeight == 0 {
		cfg.MapWidth, cfg.MapHeight = def.MapWidth, def.MapHeight
	}
	if cfg.OnMapFetch == nil {
		cfg.OnMapFetch = func(string) {}
	}
	return &Renderer{
		config: cfg,
		fonts:  fonts,
		logger: log.WithField("component", "renderer"),
	}, nil
}

// Close releases cached font faces and the surface.
func (r *Renderer) Close() {
	r.fonts.close()
	r.surface = nil
}

// Measure reports the advance width of line in pixels.
func (r *Renderer) Measure(line watermark.Line) float64 {
	face, err := r.fonts.face(line)
	if err != nil {
		return watermark.Approximate.Measure(line)
	}
	return float64(font.MeasureString(face, line.Text)) / 64
}

// Decode decodes a base image, applying EXIF orientation.
func (r *Renderer) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if r.config.Fallback != nil {
		fb, fbErr := r.config.Fallback.Decode(data)
		if fbErr == nil {
			return fb, nil
		}
		r.logger.WithError(fbErr).Debug("fallback decoder failed")
	}
	return nil, decodeError(err)
}

// Render draws lines and the map thumbnail over base and encodes the result.
// The canvas keeps the native size of base.
func (r *Renderer) Render(ctx context.Context, base image.Image, lines []watermark.Line, plan watermark.Plan, coords exifdata.Coordinates) (*Output, error) {
	start := time.Now()

	surface, err := r.prepare(base)
	if err != nil {
		return nil, err
	}

	if err := r.drawText(surface, lines, plan); err != nil {
		return nil, surfaceError(err)
	}

	if r.config.MapEnabled && r.config.Maps != nil {
		if err := r.drawMap(ctx, surface, plan.MapSquare, coords); err != nil {
			if !r.config.MapBestEffort {
				return nil, err
			}
			r.logger.WithError(err).Warn("map thumbnail skipped")
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, surface, imaging.JPEG, imaging.JPEGQuality(r.config.Quality)); err != nil {
		return nil, encodeError(err)
	}

	b := surface.Bounds()
	out := &Output{
		JPEG:   buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
	}

	hash, err := generateBlurhash(surface)
	if err != nil {
		r.logger.WithError(err).Warn("failed to generate blurhash")
	} else {
		out.Blurhash = hash
	}

	r.logger.WithFields(map[string]interface{}{
		"width":    out.Width,
		"height":   out.Height,
		"bytes":    len(out.JPEG),
		"duration": time.Since(start).String(),
	}).Debug("watermark rendered")

	return out, nil
}

// prepare copies base onto the shared surface, reallocating it only when the
// size changes.
func (r *Renderer) prepare(base image.Image) (*image.NRGBA, error) {
	if base == nil {
		return nil, surfaceError(fmt.Errorf("no base image"))
	}
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, surfaceError(fmt.Errorf("empty canvas %dx%d", w, h))
	}
	if r.config.MaxPixels > 0 && w*h > r.config.MaxPixels {
		return nil, surfaceError(fmt.Errorf("canvas %dx%d exceeds %d pixels", w, h, r.config.MaxPixels))
	}

	rect := image.Rect(0, 0, w, h)
	if r.surface == nil || r.surface.Bounds() != rect {
		r.surface = image.NewNRGBA(rect)
	}
	draw.Draw(r.surface, rect, base, b.Min, draw.Src)
	return r.surface, nil
}

func (r *Renderer) drawText(dst *image.NRGBA, lines []watermark.Line, plan watermark.Plan) error {
	if len(lines) == 0 {
		return nil
	}
	if len(plan.Baselines) < len(lines) {
		return fmt.Errorf("plan has %d baselines for %d lines", len(plan.Baselines), len(lines))
	}

	faces := make([]font.Face, len(lines))
	for i, line := range lines {
		f, err := r.fonts.face(line)
		if err != nil {
			return err
		}
		faces[i] = f
	}

	paint := func(target draw.Image, c color.Color) {
		d := &font.Drawer{Dst: target, Src: image.NewUniform(c)}
		for i, line := range lines {
			d.Face = faces[i]
			d.Dot = point(plan.Baselines[i])
			d.DrawString(line.Text)
		}
	}

	block := rect(plan.TextBlock)
	dropShadow(dst, block, func(layer *image.NRGBA) { paint(layer, shadowColor) })
	paint(dst, textColor)
	return nil
}

func (r *Renderer) drawMap(ctx context.Context, dst *image.NRGBA, square watermark.Rect, coords exifdata.Coordinates) error {
	area := rect(square)
	if area.Empty() {
		return nil
	}

	// Unknown coordinates still request a map, centred on 0,0.
	req := maptile.Request{
		Lng:    coords.Lng,
		Lat:    coords.Lat,
		Zoom:   r.config.MapZoom,
		Width:  r.config.MapWidth,
		Height: r.config.MapHeight,
	}
	if !coords.Valid {
		req.Lat, req.Lng = 0, 0
	}

	tile, err := r.config.Maps.Fetch(ctx, req)
	if err != nil {
		r.config.OnMapFetch("failed")
		return mapError(err)
	}
	r.config.OnMapFetch("success")

	dropShadow(dst, area, func(layer *image.NRGBA) {
		draw.Draw(layer, area, image.NewUniform(shadowColor), image.Point{}, draw.Src)
	})
	draw.Draw(dst, area, image.NewUniform(backing), image.Point{}, draw.Src)

	scaled := imaging.Resize(tile, area.Dx(), area.Dy(), imaging.Lanczos)
	draw.Draw(dst, area, scaled, image.Point{}, draw.Over)

	cx := square.X + square.W/2
	cy := square.Y + square.H/2
	marker := square.W * markerScale
	fillDisc(dst, cx, cy, marker*outerRadius, outerColor)
	fillDisc(dst, cx, cy, marker*innerRadius, innerColor)
	return nil
}

// dropShadow paints into a transparent layer covering area, blurs it and
// composites it onto dst shifted by shadowOffset.
func dropShadow(dst *image.NRGBA, area image.Rectangle, paint func(layer *image.NRGBA)) {
	area = area.Inset(-shadowMargin).Intersect(dst.Bounds())
	if area.Empty() {
		return
	}
	layer := image.NewNRGBA(area)
	paint(layer)
	blurred := imaging.Blur(layer, shadowSigma)
	draw.Draw(dst, area.Add(shadowOffset), blurred, image.Point{}, draw.Over)
}

// disc is an antialiasing-free circular mask.
type disc struct {
	cx, cy, r float64
}

func (d *disc) ColorModel() color.Model { return color.AlphaModel }

func (d *disc) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(d.cx-d.r)), int(math.Floor(d.cy-d.r)),
		int(math.Ceil(d.cx+d.r))+1, int(math.Ceil(d.cy+d.r))+1,
	)
}

func (d *disc) At(x, y int) color.Color {
	dx := float64(x) + 0.5 - d.cx
	dy := float64(y) + 0.5 - d.cy
	if dx*dx+dy*dy <= d.r*d.r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

func fillDisc(dst draw.Image, cx, cy, radius float64, c color.Color) {
	if radius <= 0 {
		return
	}
	mask := &disc{cx: cx, cy: cy, r: radius}
	b := mask.Bounds()
	draw.DrawMask(dst, b, image.NewUniform(c), image.Point{}, mask, b.Min, draw.Over)
}

func point(p watermark.Point) fixed.Point26_6 {
	return fixed.Point26_6{
		X: fixed.Int26_6(math.Round(p.X * 64)),
		Y: fixed.Int26_6(math.Round(p.Y * 64)),
	}
}

func rect(r watermark.Rect) image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.W)), y0+int(math.Round(r.H)))
}

// generateBlurhash encodes a small copy of img.
func generateBlurhash(img image.Image) (string, error) {
	const maxSize = 64
	small := imaging.Fit(img, maxSize, maxSize, imaging.NearestNeighbor)

	hash, err := blurhash.Encode(BlurhashXComponents, BlurhashYComponents, small)
	if err != nil {
		return "", fmt.Errorf("failed to encode blurhash: %w", err)
	}
	return hash, nil
}
