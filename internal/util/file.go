package util

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// VideoExtensions is the default set of segment file extensions.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".m4v":  true,
	".webm": true,
	".ts":   true,
}

// IsVideoFile checks if the given path is an existing file with a known
// segment extension.
func IsVideoFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	ext := strings.ToLower(filepath.Ext(path))
	return VideoExtensions[ext]
}

// HasVideoExtension checks a path against an explicit extension list.
// Extensions are compared without the leading dot, case-insensitively.
func HasVideoExtension(path string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if ext == strings.ToLower(strings.TrimPrefix(e, ".")) {
			return true
		}
	}
	return false
}

// GetFilename returns the filename from a path.
func GetFilename(path string) string {
	return filepath.Base(path)
}

// GetFileStem returns the filename without extension.
func GetFileStem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// EnsureDirectory creates a directory if it doesn't exist.
func EnsureDirectory(path string) error {
	return os.MkdirAll(path, 0755)
}

// DirectoryExists checks if a directory exists.
func DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsFileStable reports whether a file's size is nonzero and unchanged across
// the sampling gap. Used to avoid enqueueing segments still being written.
func IsFileStable(path string, gap time.Duration) bool {
	first, err := GetFileSize(path)
	if err != nil || first == 0 {
		return false
	}
	time.Sleep(gap)
	second, err := GetFileSize(path)
	if err != nil {
		return false
	}
	return first == second
}

// RemoveStaleSidecars deletes any half-written *.tmp.parquet files left in
// dir by an interrupted run.
func RemoveStaleSidecars(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp.parquet"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
