package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsPhotoFile(t *testing.T) {
	tests := []struct {
		filename string
		expected bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"image.png", true},
		{"photo.heic", true},
		{"image.webp", true},
		{"scan.tif", true},

		{"video.mp4", false},
		{"notes.txt", false},
		{"noextension", false},
		{".DS_Store", false},
		{"._photo.jpg", false},
		{"photo.jpg.part", false},
		{"~photo.jpg", false},
		{"watermarked-photo.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := IsPhotoFile(tt.filename); got != tt.expected {
				t.Errorf("IsPhotoFile(%q) = %v, want %v", tt.filename, got, tt.expected)
			}
		})
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"IMG_0001.JPG", "watermarked-IMG_0001.jpg"},
		{"/inbox/trip/beach.heic", "watermarked-beach.jpg"},
		{"archive.tar.png", "watermarked-archive.tar.jpg"},
	}

	for _, tt := range tests {
		if got := OutputName(tt.source); got != tt.expected {
			t.Errorf("OutputName(%q) = %q, want %q", tt.source, got, tt.expected)
		}
	}
}

func TestResolveInside(t *testing.T) {
	root := "/data/inbox"

	got, err := ResolveInside(root, "trip/a.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join(root, "trip", "a.jpg") {
		t.Errorf("got %q", got)
	}

	for _, bad := range []string{"", "../etc/passwd", "/etc/passwd", "trip/../../x.jpg"} {
		if _, err := ResolveInside(root, bad); err == nil {
			t.Errorf("ResolveInside(%q) should fail", bad)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.jpg")

	if err := WriteFileAtomic(path, []byte("jpeg")); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != "jpeg" {
		t.Errorf("content = %q, want %q", data, "jpeg")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the output file, found %d entries", len(entries))
	}

	if !FileExists(path) {
		t.Error("FileExists should report the written file")
	}
	if FileExists(dir) {
		t.Error("FileExists should be false for directories")
	}
}
