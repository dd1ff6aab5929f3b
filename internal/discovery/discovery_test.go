package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindSegments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.mp4", "notes.txt", ".hidden.mp4", "c.mov"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp4"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := FindSegments(dir, []string{"mp4", "mov"})
	if err != nil {
		t.Fatalf("FindSegments() error: %v", err)
	}

	want := []string{"a.mp4", "b.mp4", "c.mov"}
	if len(files) != len(want) {
		t.Fatalf("found %d files, want %d: %v", len(files), len(want), files)
	}
	for i, w := range want {
		if filepath.Base(files[i]) != w {
			t.Errorf("files[%d] = %s, want %s", i, filepath.Base(files[i]), w)
		}
	}
}

func TestFindSegmentsMissingDir(t *testing.T) {
	if _, err := FindSegments(filepath.Join(t.TempDir(), "absent"), []string{"mp4"}); err == nil {
		t.Error("missing directory should error")
	}
}
