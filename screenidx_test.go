package screenidx

import (
	"testing"
)

func TestNewWithDefaults(t *testing.T) {
	ix, err := New(
		WithOutputDir(t.TempDir()),
		WithEncryptionDisabled(),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if ix == nil {
		t.Fatal("New() returned nil indexer")
	}
	if err := ix.Finalize(); err != nil {
		t.Errorf("Finalize() on idle indexer: %v", err)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(WithOutputDir(t.TempDir()), WithExtractionFPS(0)); err == nil {
		t.Error("fps 0 should be rejected")
	}
	if _, err := New(WithOutputDir(t.TempDir()), WithExtractionFPS(60)); err == nil {
		t.Error("fps 60 should be rejected")
	}
	if _, err := New(WithOutputDir("")); err == nil {
		t.Error("empty output dir should be rejected")
	}
}

func TestReaderAvailable(t *testing.T) {
	ix, err := New(WithOutputDir(t.TempDir()), WithEncryptionDisabled())
	if err != nil {
		t.Fatal(err)
	}
	if ix.Reader() == nil {
		t.Error("Reader() returned nil")
	}
}
