package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/Adilonapsh/exif-watermark-app/internal/watermark"
)

type faceKey struct {
	bold bool
	// size in 1/64 px
	size int
}

// fontSet caches faces per weight and size. Primary lines use Go Bold.
type fontSet struct {
	regular *opentype.Font
	bold    *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

func newFontSet() (*fontSet, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &fontSet{
		regular: regular,
		bold:    bold,
		faces:   make(map[faceKey]font.Face),
	}, nil
}

func (fs *fontSet) face(line watermark.Line) (font.Face, error) {
	key := faceKey{bold: line.Emphasis == watermark.Primary, size: int(line.FontSize * 64)}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.faces[key]; ok {
		return f, nil
	}

	src := fs.regular
	if key.bold {
		src = fs.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    line.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	fs.faces[key] = f
	return f, nil
}

func (fs *fontSet) close() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for k, f := range fs.faces {
		f.Close()
		delete(fs.faces, k)
	}
}
