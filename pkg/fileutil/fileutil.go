// Package fileutil provides file helpers shared by the watermark service:
// photo type detection, output naming, inbox path confinement and atomic writes.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPrefix is prepended to the base name of every watermarked output.
const OutputPrefix = "watermarked-"

// NativeExtensions are photo formats decoded without libvips.
var NativeExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".tiff": true,
	".tif":  true,
	".bmp":  true,
}

// VipsExtensions are photo formats that need the libvips fallback decoder.
var VipsExtensions = map[string]bool{
	".heic": true,
	".heif": true,
	".webp": true,
	".avif": true,
}

// OS-generated junk filenames that should always be ignored (case-insensitive).
var ignoredNames = map[string]bool{
	".ds_store":   true,
	"thumbs.db":   true,
	".thumbs.db":  true,
	"desktop.ini": true,
	".directory":  true,
	".localized":  true,
}

// IsIgnoredFile reports OS junk, resource forks, hidden files and partial downloads.
func IsIgnoredFile(filename string) bool {
	base := filepath.Base(filename)
	lower := strings.ToLower(base)

	if ignoredNames[lower] {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(lower, ".tmp") || strings.HasSuffix(lower, ".part") ||
		strings.HasSuffix(lower, ".crdownload") || strings.HasSuffix(lower, ".download") {
		return true
	}
	if strings.HasPrefix(base, "~") || strings.HasSuffix(base, "~") {
		return true
	}
	return false
}

// IsPhotoFile checks if a file has a supported photo extension and is not OS junk.
// Outputs written by the service itself are never treated as inputs.
func IsPhotoFile(filename string) bool {
	if IsIgnoredFile(filename) {
		return false
	}
	if strings.HasPrefix(filepath.Base(filename), OutputPrefix) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return NativeExtensions[ext] || VipsExtensions[ext]
}

// OutputName returns the file name used for the watermarked copy of source.
// The output is always JPEG, so the extension is replaced.
func OutputName(source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return OutputPrefix + strings.TrimSuffix(base, ext) + ".jpg"
}

// ResolveInside joins rel onto root and rejects paths escaping root.
func ResolveInside(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path not allowed: %s", rel)
	}
	full := filepath.Join(root, rel)
	back, err := filepath.Rel(root, full)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %s", rel)
	}
	return full, nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// WriteFileAtomic writes data through a temp file in the destination directory
// and renames it into place, so watchers never observe a half-written output.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".stamp-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
