package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Source is one input image.
type Source interface {
	// Name identifies the source in results and logs.
	Name() string

	// Open returns the image bytes and the file's modification time.
	Open() ([]byte, time.Time, error)
}

// FileSource reads an image from disk.
type FileSource struct {
	Path string

	// Label overrides the reported name, e.g. with an inbox-relative path.
	Label string
}

// Name returns Label, or the base name of the file.
func (s FileSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return filepath.Base(s.Path)
}

// Open reads the file.
func (s FileSource) Open() ([]byte, time.Time, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat %s: %w", s.Path, err)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return data, info.ModTime(), nil
}

// MemorySource is an image already held in memory, e.g. an upload.
type MemorySource struct {
	Filename string
	Data     []byte
	ModTime  time.Time
}

// Name returns the filename.
func (s MemorySource) Name() string { return s.Filename }

// Open returns the data. A zero ModTime is reported as the current time.
func (s MemorySource) Open() ([]byte, time.Time, error) {
	if len(s.Data) == 0 {
		return nil, time.Time{}, fmt.Errorf("%s: empty file", s.Filename)
	}
	mod := s.ModTime
	if mod.IsZero() {
		mod = time.Now()
	}
	return s.Data, mod, nil
}
