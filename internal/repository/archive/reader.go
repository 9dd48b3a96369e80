package archive

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ErrEntryNotFound is returned by Open for an unknown entry name.
var ErrEntryNotFound = errors.New("entry not found in archive")

// StoredEntry describes one entry of an existing archive.
type StoredEntry struct {
	// Name is the archive-internal name.
	Name string
	// Method is the compression method, zip.Deflate for packager output.
	Method uint16
	// Size is the uncompressed size in bytes.
	Size uint64
	// CompressedSize is the stored size in bytes.
	CompressedSize uint64
}

// Reader gives read access to an archive file.
type Reader struct {
	rc     *zip.ReadCloser
	byName map[string]*zip.File
}

// Open opens the archive at path.
func Open(path string) (*Reader, error) {
	rc, err := zip.OpenReader(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	byName := make(map[string]*zip.File, len(rc.File))
	for _, file := range rc.File {
		byName[file.Name] = file
	}

	return &Reader{
		rc:     rc,
		byName: byName,
	}, nil
}

// Entries lists the stored entries in container order.
func (r *Reader) Entries() []StoredEntry {
	entries := make([]StoredEntry, 0, len(r.rc.File))
	for _, file := range r.rc.File {
		entries = append(entries, StoredEntry{
			Name:           file.Name,
			Method:         file.Method,
			Size:           file.UncompressedSize64,
			CompressedSize: file.CompressedSize64,
		})
	}

	return entries
}

// OpenEntry returns the decompressed content of the named entry.
// The reader verifies the stored CRC-32 when it reaches EOF.
func (r *Reader) OpenEntry(name string) (io.ReadCloser, error) {
	file, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrEntryNotFound)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", name, err)
	}

	return rc, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.rc.Close()
}
