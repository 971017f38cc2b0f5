package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Writer builds an archive with entries in the order they are added
type Writer struct {
	zw  *zip.Writer
	err error
}

// NewWriter creates a writer on top of w
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// Add appends an entry. The first error is sticky and reported by Close.
func (w *Writer) Add(name string, data []byte) *Writer {
	if w.err != nil {
		return w
	}

	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		w.err = fmt.Errorf("failed to create entry %s: %w", name, err)
		return w
	}
	if _, err := fw.Write(data); err != nil {
		w.err = fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return w
}

// Close finishes the archive
func (w *Writer) Close() error {
	closeErr := w.zw.Close()
	if w.err != nil {
		return w.err
	}
	return closeErr
}

// File is a named entry payload used by WriteFile
type File struct {
	Name string
	Data []byte
}

// WriteFile creates an archive at path containing files in the given order
func WriteFile(path string, files ...File) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", path, err)
	}
	defer f.Close()

	w := NewWriter(f)
	for _, file := range files {
		w.Add(file.Name, file.Data)
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// PackDir archives every regular file under dir, using slash-separated paths
// relative to dir as entry names. Entries are written in lexical path order.
func PackDir(dir, out string) (int, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, File{Name: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.Compare(files[i].Name, files[j].Name) < 0
	})

	if err := WriteFile(out, files...); err != nil {
		return 0, err
	}
	return len(files), nil
}
