package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

func write(t *testing.T, path, content string) os.FileInfo {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func TestFlushSettledFiles(t *testing.T) {
	dir := t.TempDir()

	var got [][]string
	w, err := New(Config{
		Dir:    dir,
		Settle: time.Second,
		Handler: func(ctx context.Context, files []string) error {
			got = append(got, files)
			return nil
		},
		Logger: logger.Nop(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.fsw.Close()

	t0 := time.Now()
	a := filepath.Join(dir, "trip", "b.jpg")
	b := filepath.Join(dir, "a.jpg")
	w.observe(a, write(t, a, "one"), t0)
	w.observe(b, write(t, b, "two"), t0.Add(100*time.Millisecond))

	ignored := []string{"notes.txt", "watermarked-a.jpg", ".hidden.jpg"}
	for _, name := range ignored {
		p := filepath.Join(dir, name)
		w.observe(p, write(t, p, "x"), t0)
	}

	// Not quiet long enough yet.
	w.flush(context.Background(), t0.Add(500*time.Millisecond))
	if len(got) != 0 {
		t.Fatalf("flushed too early: %v", got)
	}

	w.flush(context.Background(), t0.Add(2*time.Second))
	if len(got) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(got))
	}
	want := []string{filepath.Join("trip", "b.jpg"), "a.jpg"}
	if len(got[0]) != 2 || got[0][0] != want[0] || got[0][1] != want[1] {
		t.Errorf("files = %v, want %v", got[0], want)
	}

	if s := w.Stats(); s.Pending != 0 || s.FilesQueued != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestFlushWaitsForGrowingFile(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	w, err := New(Config{
		Dir:     dir,
		Settle:  time.Second,
		Handler: func(ctx context.Context, files []string) error { calls++; return nil },
		Logger:  logger.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsw.Close()

	path := filepath.Join(dir, "big.jpg")
	t0 := time.Now()
	w.observe(path, write(t, path, "part"), t0)

	// The copy continues without further events reaching us.
	write(t, path, "partial and more")

	w.flush(context.Background(), t0.Add(2*time.Second))
	if calls != 0 {
		t.Fatal("growing file must not be handed over")
	}
	w.flush(context.Background(), t0.Add(4*time.Second))
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestFlushHandlerFailureRetries(t *testing.T) {
	dir := t.TempDir()
	failing := true
	var got [][]string
	w, err := New(Config{
		Dir:    dir,
		Settle: time.Second,
		Handler: func(ctx context.Context, files []string) error {
			if failing {
				return errors.New("redis down")
			}
			got = append(got, files)
			return nil
		},
		Logger: logger.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsw.Close()

	t0 := time.Now()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	w.observe(a, write(t, a, "x"), t0)
	w.observe(b, write(t, b, "y"), t0.Add(10*time.Millisecond))

	w.flush(context.Background(), t0.Add(2*time.Second))
	if s := w.Stats(); s.HandlerFails != 1 || s.FilesQueued != 0 || s.Pending != 2 {
		t.Fatalf("stats after failure = %+v", s)
	}

	failing = false

	// The rejected files wait out another settle period.
	w.flush(context.Background(), t0.Add(2500*time.Millisecond))
	if len(got) != 0 {
		t.Fatalf("retried too early: %v", got)
	}

	w.flush(context.Background(), t0.Add(3*time.Second))
	if len(got) != 1 || len(got[0]) != 2 || got[0][0] != "a.jpg" || got[0][1] != "b.jpg" {
		t.Fatalf("handed over %v, want [[a.jpg b.jpg]]", got)
	}
	if s := w.Stats(); s.Pending != 0 || s.FilesQueued != 2 {
		t.Errorf("stats after retry = %+v", s)
	}
}

func TestInitialScan(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "old.jpg"), "a")
	write(t, filepath.Join(dir, "trip", "older.png"), "b")
	write(t, filepath.Join(dir, "done.jpg"), "c")
	write(t, filepath.Join(dir, "notes.txt"), "d")

	var got [][]string
	w, err := New(Config{
		Dir:    dir,
		Settle: time.Second,
		Handler: func(ctx context.Context, files []string) error {
			got = append(got, files)
			return nil
		},
		Skip:   func(rel string) bool { return rel == "done.jpg" },
		Logger: logger.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsw.Close()

	t0 := time.Now()
	w.initialScan(t0)
	if s := w.Stats(); s.Pending != 2 {
		t.Fatalf("pending = %d, want 2", s.Pending)
	}

	w.flush(context.Background(), t0.Add(2*time.Second))
	want := []string{"old.jpg", filepath.Join("trip", "older.png")}
	if len(got) != 1 || len(got[0]) != 2 || got[0][0] != want[0] || got[0][1] != want[1] {
		t.Errorf("handed over %v, want [%v]", got, want)
	}
}

func TestStartHandsOverExistingFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "old.jpg"), "jpeg")

	batches := make(chan []string, 1)
	w, err := New(Config{
		Dir:    dir,
		Settle: 100 * time.Millisecond,
		Handler: func(ctx context.Context, files []string) error {
			batches <- files
			return nil
		},
		Logger: logger.Nop(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	select {
	case files := <-batches:
		if len(files) != 1 || files[0] != "old.jpg" {
			t.Errorf("files = %v", files)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("existing file was not handed over")
	}
}

func TestStartDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	batches := make(chan []string, 1)

	w, err := New(Config{
		Dir:    dir,
		Settle: 50 * time.Millisecond,
		Handler: func(ctx context.Context, files []string) error {
			batches <- files
			return nil
		},
		Logger: logger.Nop(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	write(t, filepath.Join(dir, "photo.jpg"), "jpeg")

	select {
	case files := <-batches:
		if len(files) != 1 || files[0] != "photo.jpg" {
			t.Errorf("files = %v", files)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no batch handed over")
	}
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(Config{Dir: filepath.Join(t.TempDir(), "nope"), Logger: logger.Nop()})
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
