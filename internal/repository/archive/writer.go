package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"go.uber.org/multierr"

	domain "github.com/oshokin/jpl-packager/internal/domain/archive"
)

// ErrWriterClosed is returned when an entry is added after Close.
var ErrWriterClosed = errors.New("archive writer is closed")

// WrittenEntry reports one entry stored by Writer.
type WrittenEntry struct {
	// Name is the archive-internal name.
	Name string
	// Source is the file the content was read from.
	Source string
	// Size is the number of uncompressed bytes copied.
	Size int64
}

// Writer stores files into a deflate-compressed zip container.
// It is not safe for concurrent use.
type Writer struct {
	// zw is the container writer.
	zw *zip.Writer
	// file is the output file when the writer owns it, nil otherwise.
	file *os.File
	// closed guards against double finalization.
	closed bool
}

// NewWriter returns a Writer emitting the container into w.
// Closing the Writer finalizes the container but does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		zw: zip.NewWriter(w),
	}
}

// Create creates (or truncates) the file at path and returns a Writer owning it.
func Create(path string) (*Writer, error) {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	writer := NewWriter(file)
	writer.file = file

	return writer, nil
}

// AddFile copies entry.Source byte for byte into the container under entry.Name.
// The stored header keeps the source modification time and mode.
func (w *Writer) AddFile(entry domain.Entry) (*WrittenEntry, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}

	source, err := os.Open(filepath.Clean(entry.Source))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Source, err)
	}

	// Read-only handle.
	defer func() {
		_ = source.Close()
	}()

	info, err := source.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", entry.Source, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return nil, fmt.Errorf("header for %s: %w", entry.Source, err)
	}

	header.Name = entry.Name
	header.Method = zip.Deflate

	target, err := w.zw.CreateHeader(header)
	if err != nil {
		return nil, fmt.Errorf("create entry %s: %w", entry.Name, err)
	}

	size, err := io.Copy(target, source)
	if err != nil {
		return nil, fmt.Errorf("write entry %s: %w", entry.Name, err)
	}

	return &WrittenEntry{
		Name:   entry.Name,
		Source: entry.Source,
		Size:   size,
	}, nil
}

// Close finalizes the container and closes the owned file, if any.
// It is safe to call more than once; only the first call has an effect.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	err := w.zw.Close()
	if w.file != nil {
		err = multierr.Append(err, w.file.Close())
	}

	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}

// Abort releases the owned file, if any, without finalizing the container.
// The table of contents is never written, so an aborted file is not a
// readable archive. Abort after Close does nothing.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}

	w.closed = true

	if w.file == nil {
		return nil
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("abort archive: %w", err)
	}

	return nil
}
