package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// File is a single named entry of an archive.
type File struct {
	Name     string
	Data     []byte
	Modified time.Time
}

var (
	// ErrNoFiles is returned when Build is called without entries.
	ErrNoFiles = errors.New("bundle: no files to archive")
	// ErrInvalidName reports an entry name that is empty, absolute or escapes the archive root.
	ErrInvalidName = errors.New("bundle: invalid file name")
	// ErrDuplicateName reports two entries sharing a path.
	ErrDuplicateName = errors.New("bundle: duplicate file name")
)

// Build writes files into an in-memory ZIP in the order given.
func Build(files []File) ([]byte, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := validName(f.Name); err != nil {
			return nil, err
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, f := range files {
		modified := f.Modified
		if modified.IsZero() {
			modified = time.Now().UTC()
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Names lists the entry names of a ZIP payload.
func Names(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	clean := path.Clean(name)
	if clean != name || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
