package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/crypt"
	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/ocr"
)

// maxRowsPerRowGroup favors large sequential scans.
const maxRowsPerRowGroup = 50_000

// codecFor maps the config compression name to a Parquet codec.
func codecFor(name string) compress.Codec {
	switch name {
	case "gzip":
		return &parquet.Gzip
	case "lz4":
		return &parquet.Lz4Raw
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Snappy
	}
}

// batchWriter buffers rows and writes one Parquet file per flush. When
// multiple segments share a writer, the mutex serializes batch access and
// file rotation.
type batchWriter[T any] struct {
	mu        sync.Mutex
	dir       string
	prefix    string
	batchSize int
	codec     compress.Codec
	enc       *crypt.Manager
	batch     []T
	log       *logging.Logger
	now       func() time.Time
}

func newBatchWriter[T any](dir, prefix string, batchSize int, codec compress.Codec, enc *crypt.Manager, log *logging.Logger) *batchWriter[T] {
	if log == nil {
		log = logging.Global()
	}
	return &batchWriter[T]{
		dir:       dir,
		prefix:    prefix,
		batchSize: batchSize,
		codec:     codec,
		enc:       enc,
		log:       log,
		now:       time.Now,
	}
}

// add buffers rows, flushing when the batch threshold is reached.
func (w *batchWriter[T]) add(rows ...T) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, rows...)
	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes the current batch, if any. A failed write retries once; on
// persistent failure the batch is retained for a later attempt.
func (w *batchWriter[T]) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *batchWriter[T]) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	err := w.writeFile()
	if err != nil {
		w.log.Warn("flush failed, retrying once", "prefix", w.prefix, "error", err)
		err = w.writeFile()
	}
	if err != nil {
		return err
	}

	w.log.Debug("batch flushed", "prefix", w.prefix, "rows", len(w.batch))
	w.batch = w.batch[:0]
	return nil
}

// writeFile persists the batch through a tmp sidecar so readers only ever
// see fully-written files.
func (w *batchWriter[T]) writeFile() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return errors.NewIOError("creating output directory", err)
	}

	final := w.nextFilePath()
	tmp := final + ".tmp.parquet"

	f, err := os.Create(tmp)
	if err != nil {
		return errors.NewIOError("creating "+tmp, err)
	}

	pw := parquet.NewGenericWriter[T](f,
		parquet.Compression(w.codec),
		parquet.MaxRowsPerRowGroup(maxRowsPerRowGroup),
	)
	if _, err := pw.Write(w.batch); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.NewParquetError("writing "+w.prefix+" batch", err)
	}
	if err := pw.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.NewParquetError("closing "+w.prefix+" file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.NewIOError("closing "+tmp, err)
	}

	if w.enc != nil {
		if err := w.enc.EncryptFileTo(tmp, final); err != nil {
			_ = os.Remove(tmp)
			return err
		}
		if err := os.Remove(tmp); err != nil {
			return errors.NewIOError("removing sidecar "+tmp, err)
		}
		return nil
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return errors.NewIOError("renaming "+tmp, err)
	}
	return nil
}

// nextFilePath embeds a second-resolution timestamp, disambiguating
// same-second flushes with a numeric suffix.
func (w *batchWriter[T]) nextFilePath() string {
	stamp := w.now().Format("20060102_150405")
	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.parquet", w.prefix, stamp))
	for n := 1; fileExists(path); n++ {
		path = filepath.Join(w.dir, fmt.Sprintf("%s_%s_%d.parquet", w.prefix, stamp, n))
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Pending returns the number of buffered rows.
func (w *batchWriter[T]) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batch)
}

// FrameWriter persists frame metadata rows.
type FrameWriter struct {
	inner *batchWriter[frameRow]
}

// NewFrameWriter creates a frame metadata writer. Frame metadata is not
// encrypted; pass enc anyway to enable at-rest encryption for it too.
func NewFrameWriter(dir string, cfg config.StorageConfig, enc *crypt.Manager, log *logging.Logger) *FrameWriter {
	return &FrameWriter{
		inner: newBatchWriter[frameRow](dir, "frames", cfg.FrameBatchSize, codecFor(cfg.Compression), enc, log),
	}
}

// Write buffers frame metadata rows.
func (w *FrameWriter) Write(rows ...FrameMetadata) error {
	converted := make([]frameRow, len(rows))
	for i, r := range rows {
		converted[i] = toFrameRow(r)
	}
	return w.inner.add(converted...)
}

// Flush persists the pending batch.
func (w *FrameWriter) Flush() error { return w.inner.Flush() }

// Pending returns the buffered row count.
func (w *FrameWriter) Pending() int { return w.inner.Pending() }

// OCRWriter persists OCR result rows.
type OCRWriter struct {
	inner *batchWriter[ocrRow]
}

// NewOCRWriter creates an OCR writer.
func NewOCRWriter(dir string, cfg config.StorageConfig, enc *crypt.Manager, log *logging.Logger) *OCRWriter {
	return &OCRWriter{
		inner: newBatchWriter[ocrRow](dir, "ocr", cfg.OCRBatchSize, codecFor(cfg.Compression), enc, log),
	}
}

// Write buffers OCR rows.
func (w *OCRWriter) Write(rows ...ocr.Result) error {
	converted := make([]ocrRow, len(rows))
	for i, r := range rows {
		converted[i] = toOCRRow(r)
	}
	return w.inner.add(converted...)
}

// Flush persists the pending batch.
func (w *OCRWriter) Flush() error { return w.inner.Flush() }

// Pending returns the buffered row count.
func (w *OCRWriter) Pending() int { return w.inner.Pending() }

// EventWriter persists detected events.
type EventWriter struct {
	inner *batchWriter[eventRow]
}

// NewEventWriter creates an event writer.
func NewEventWriter(dir string, cfg config.StorageConfig, enc *crypt.Manager, log *logging.Logger) *EventWriter {
	return &EventWriter{
		inner: newBatchWriter[eventRow](dir, "events", cfg.EventBatchSize, codecFor(cfg.Compression), enc, log),
	}
}

// Write buffers events. Events violating the store invariants are rejected.
func (w *EventWriter) Write(events ...event.Detected) error {
	converted := make([]eventRow, 0, len(events))
	for _, ev := range events {
		if !ev.Valid() {
			return errors.NewParquetError(fmt.Sprintf("event %s violates store invariants", ev.ID), nil)
		}
		row, err := toEventRow(ev)
		if err != nil {
			return errors.NewParquetError("serializing event metadata", err)
		}
		converted = append(converted, row)
	}
	return w.inner.add(converted...)
}

// Flush persists the pending batch.
func (w *EventWriter) Flush() error { return w.inner.Flush() }

// Pending returns the buffered row count.
func (w *EventWriter) Pending() int { return w.inner.Pending() }
