package store

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/halward/screenidx/internal/errors"
)

// ExportFramesCSV writes frame metadata as plain CSV. Debug surface: the
// columnar files remain the canonical store.
func ExportFramesCSV(path string, rows []FrameMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("creating "+path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := []string{"ts_ns", "monitor_id", "segment_id", "path", "phash16", "entropy", "app_name", "win_title", "width", "height"}
	if err := w.Write(header); err != nil {
		return errors.NewIOError("writing CSV header", err)
	}

	for _, m := range rows {
		record := []string{
			strconv.FormatInt(m.TsNs, 10),
			strconv.FormatInt(int64(m.MonitorID), 10),
			m.SegmentID,
			m.Path,
			strconv.FormatInt(m.PHash16, 10),
			strconv.FormatFloat(float64(m.Entropy), 'f', 6, 32),
			m.AppName,
			m.WinTitle,
			strconv.FormatUint(uint64(m.Width), 10),
			strconv.FormatUint(uint64(m.Height), 10),
		}
		if err := w.Write(record); err != nil {
			return errors.NewIOError("writing CSV record", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewIOError("flushing CSV", err)
	}
	return nil
}
