// Package discovery provides segment file discovery for batch indexing.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/util"
)

// FindSegments finds video segment files in the given directory.
// Returns files sorted alphabetically by filename.
func FindSegments(inputDir string, extensions []string) ([]string, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, errors.NewIOError("directory does not exist: "+inputDir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewIOError(inputDir+" is not a directory", nil)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, errors.NewIOError("cannot read directory "+inputDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if util.HasVideoExtension(name, extensions) {
			files = append(files, filepath.Join(inputDir, name))
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})
	return files, nil
}
