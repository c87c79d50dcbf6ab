// Package vips decodes formats the native decoders lack (HEIC, WebP, TIFF,
// AVIF) using libvips.
package vips

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Initialize initializes the vips library.
// Must be called before decoding any images.
func Initialize() {
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(&vips.Config{ConcurrencyLevel: 1})
}

// Shutdown shuts down the vips library.
// Should be called when the application exits.
func Shutdown() {
	vips.Shutdown()
}

// Decoder converts image bytes into an image.Image through libvips.
type Decoder struct {
	logger *logger.Logger
}

// NewDecoder creates a new libvips decoder. Initialize must have been called.
func NewDecoder(log *logger.Logger) *Decoder {
	return &Decoder{logger: log.WithField("component", "vips-decoder")}
}

// Decode loads data, applies EXIF orientation and returns the pixels.
func (d *Decoder) Decode(data []byte) (image.Image, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		d.logger.WithError(err).Warn("failed to auto-rotate image")
	}

	// PNG keeps the pixels lossless on the way to Go's image package
	params := vips.NewPngExportParams()
	params.Compression = 1
	pngBytes, _, err := img.ExportPng(params)
	if err != nil {
		return nil, fmt.Errorf("failed to export image: %w", err)
	}

	decoded, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode exported image: %w", err)
	}

	d.logger.WithFields(map[string]interface{}{
		"width":  decoded.Bounds().Dx(),
		"height": decoded.Bounds().Dy(),
	}).Debug("decoded with libvips")

	return decoded, nil
}
