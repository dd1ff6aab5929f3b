package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherEnqueuesStableFile(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, []string{"mp4"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "segment_001.mp4")
	if err := os.WriteFile(path, []byte("finished segment bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got, ok := <-w.Segments():
		if !ok {
			t.Fatal("segment channel closed early")
		}
		if got != path {
			t.Errorf("enqueued %q, want %q", got, path)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for segment")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error: %v", err)
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, []string{"mp4"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got, ok := <-w.Segments():
		if ok {
			t.Errorf("unexpected segment %q", got)
		}
	case <-time.After(800 * time.Millisecond):
		// Nothing enqueued, as expected.
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), []string{"mp4"}, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Error("missing directory should error")
	}
}
