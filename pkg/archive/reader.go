package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrNotArchive is returned when a file cannot be read as a zip archive
var ErrNotArchive = errors.New("not a plugin archive")

// ErrStop can be returned from a WalkFunc to end a walk early without error
var ErrStop = errors.New("stop walking archive")

// Entry is a single archive entry. It is only valid while its Reader is open.
type Entry struct {
	Name  string
	Size  int64
	Index int

	file *zip.File
}

// IsDir reports whether the entry is a directory marker
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Open returns a reader for the entry contents
func (e Entry) Open() (io.ReadCloser, error) {
	if e.file == nil {
		return nil, fmt.Errorf("entry %s has no backing file", e.Name)
	}
	return e.file.Open()
}

// ReadAll reads the entry contents into memory
func (e Entry) ReadAll() ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", e.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", e.Name, err)
	}
	return data, nil
}

// WalkFunc is called for every entry in archive order
type WalkFunc func(e Entry) error

// Reader gives ordered access to the entries of one archive file
type Reader struct {
	path string
	file *os.File
	zr   *zip.Reader
}

// Open opens an archive file for reading
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat archive %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotArchive, path)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNotArchive, path, err)
	}

	return &Reader{path: path, file: f, zr: zr}, nil
}

// Path returns the archive file path
func (r *Reader) Path() string {
	return r.path
}

// Len returns the number of entries, directories included
func (r *Reader) Len() int {
	return len(r.zr.File)
}

// Walk visits every non-directory entry in archive order. Walking stops at the
// first error returned by fn; ErrStop ends the walk and Walk returns nil.
func (r *Reader) Walk(fn WalkFunc) error {
	for i, f := range r.zr.File {
		entry := Entry{
			Name:  f.Name,
			Size:  int64(f.UncompressedSize64),
			Index: i,
			file:  f,
		}
		if entry.IsDir() {
			continue
		}
		if err := fn(entry); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Names returns all non-directory entry names in archive order
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.zr.File))
	_ = r.Walk(func(e Entry) error {
		names = append(names, e.Name)
		return nil
	})
	return names
}

// Lookup finds an entry by exact name
func (r *Reader) Lookup(name string) (Entry, bool) {
	for i, f := range r.zr.File {
		if f.Name == name {
			return Entry{Name: f.Name, Size: int64(f.UncompressedSize64), Index: i, file: f}, true
		}
	}
	return Entry{}, false
}

// Close releases the underlying file
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadEntry opens an archive, reads a single entry and closes the archive again
func ReadEntry(path, name string) ([]byte, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	entry, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("entry %s not found in %s: %w", name, path, os.ErrNotExist)
	}
	return entry.ReadAll()
}
