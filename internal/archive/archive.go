// Package archive reads and writes the zip files exchanged with clients.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrUnsafePath is returned for entries that would be written outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// ErrTooLarge is returned when an archive exceeds the entry count or the
// decompressed size allowed by its Limits.
var ErrTooLarge = errors.New("archive exceeds extraction limits")

// Limits bounds what a single archive may expand to. Zero fields are
// unlimited.
type Limits struct {
	// MaxBytes is the total decompressed size of all entries.
	MaxBytes int64
	// MaxEntries is the number of entries, directories included.
	MaxEntries int
}

// DefaultLimits applies to Expand and ExpandReader.
var DefaultLimits = Limits{
	MaxBytes:   2 << 30,
	MaxEntries: 10000,
}

// Entry is an in-memory file to be zipped.
type Entry struct {
	Name string
	Data []byte
}

// Expand extracts the zip file at src into dest within DefaultLimits and
// returns the extracted file paths in archive order.
func Expand(src, dest string) ([]string, error) {
	return DefaultLimits.Expand(src, dest)
}

// ExpandReader is Expand for an archive held in memory or a temp file.
func ExpandReader(ra io.ReaderAt, size int64, dest string) ([]string, error) {
	return DefaultLimits.ExpandReader(ra, size, dest)
}

// Expand extracts the zip file at src into dest, failing with ErrTooLarge
// once the archive goes over l.
func (l Limits) Expand(src, dest string) ([]string, error) {
	// An insecure entry name comes back as an error next to a usable
	// reader; safeJoin rejects such entries itself.
	r, err := zip.OpenReader(src)
	if r == nil {
		return nil, fmt.Errorf("archive: open %s: %w", src, err)
	}
	defer r.Close()

	return l.expand(&r.Reader, dest)
}

// ExpandReader is Limits.Expand for an archive held in memory or a temp file.
func (l Limits) ExpandReader(ra io.ReaderAt, size int64, dest string) ([]string, error) {
	r, err := zip.NewReader(ra, size)
	if r == nil {
		return nil, fmt.Errorf("archive: read: %w", err)
	}
	return l.expand(r, dest)
}

func (l Limits) expand(r *zip.Reader, dest string) ([]string, error) {
	if l.MaxEntries > 0 && len(r.File) > l.MaxEntries {
		return nil, fmt.Errorf("%w: %d entries, limit is %d", ErrTooLarge, len(r.File), l.MaxEntries)
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	budget := l.MaxBytes
	if budget <= 0 {
		budget = math.MaxInt64
	}

	var written []string
	for _, f := range r.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return written, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, fmt.Errorf("archive: %w", err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			// symlinks and devices are not extracted
			continue
		}

		n, err := extractFile(f, target, budget)
		if err != nil {
			return written, err
		}
		budget -= n
		written = append(written, target)
	}
	return written, nil
}

// extractFile writes f to target, reading at most budget bytes. A file that
// goes over the budget is removed.
func extractFile(f *zip.File, target string, budget int64) (int64, error) {
	if f.UncompressedSize64 > uint64(budget) {
		return 0, fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("archive: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("archive: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("archive: %w", err)
	}

	// Header sizes are not trusted; the stream is bounded as well.
	limit := budget
	if limit < math.MaxInt64 {
		limit++
	}
	n, err := io.Copy(out, io.LimitReader(rc, limit))
	if err == nil && n > budget {
		err = fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
	} else if err != nil {
		err = fmt.Errorf("archive: extract %s: %w", f.Name, err)
	}
	if err != nil {
		out.Close()
		os.Remove(target)
		return 0, err
	}
	return n, out.Close()
}

// safeJoin resolves name under root and rejects absolute names and ".."
// traversal.
func safeJoin(root, name string) (string, error) {
	clean := filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, clean)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// PackDir writes every regular file under root into a zip on w. Entry names
// are relative to root and use forward slashes.
func PackDir(w io.Writer, root string) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return addFile(zw, filepath.ToSlash(rel), path)
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("archive: pack %s: %w", root, err)
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, name, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, in)
	return err
}

// WriteEntries writes entries into a zip on w in the given order.
func WriteEntries(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		dst, err := zw.Create(e.Name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("archive: create %s: %w", e.Name, err)
		}
		if _, err := dst.Write(e.Data); err != nil {
			zw.Close()
			return fmt.Errorf("archive: write %s: %w", e.Name, err)
		}
	}
	return zw.Close()
}
