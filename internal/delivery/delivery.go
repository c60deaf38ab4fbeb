// Package delivery lays out extraction results for the people who review them.
//
// A delivery holds one JSON file listing every record, plus the original text
// of each record without a total under no_total/ so it can be checked by hand.
package delivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ocrtools/internal/archive"
	"ocrtools/internal/extract"
)

const (
	// RecordsFile holds the JSON array of all records.
	RecordsFile = "filtrado_resultados.json"

	// UnmatchedDir holds the texts of records without a total.
	UnmatchedDir = extract.UnmatchedDir
)

// Entries returns the files of a delivery in write order. Unmatched texts keep
// their relative name, cleaned so it cannot leave no_total/, and a later
// duplicate gets a numeric suffix so no text is lost.
func Entries(result extract.Result) ([]archive.Entry, error) {
	records, err := json.MarshalIndent(result.Records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("delivery: encode records: %w", err)
	}

	entries := make([]archive.Entry, 0, len(result.Unmatched)+1)
	entries = append(entries, archive.Entry{Name: RecordsFile, Data: records})

	taken := make(map[string]bool, len(result.Unmatched))
	for _, u := range result.Unmatched {
		name := uniqueName(taken, cleanName(u.Name))
		entries = append(entries, archive.Entry{
			Name: UnmatchedDir + "/" + name,
			Data: []byte(u.Text),
		})
	}
	return entries, nil
}

// WritePackage writes the delivery as a zip archive to w.
func WritePackage(w io.Writer, result extract.Result) error {
	entries, err := Entries(result)
	if err != nil {
		return err
	}
	if err := archive.WriteEntries(w, entries); err != nil {
		return fmt.Errorf("delivery: %w", err)
	}
	return nil
}

// WriteDir writes the delivery into dir, creating it when needed.
func WriteDir(dir string, result extract.Result) error {
	entries, err := Entries(result)
	if err != nil {
		return err
	}
	for _, e := range entries {
		target := filepath.Join(dir, filepath.FromSlash(e.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("delivery: %w", err)
		}
		if err := os.WriteFile(target, e.Data, 0o644); err != nil {
			return fmt.Errorf("delivery: %w", err)
		}
	}
	return nil
}

// SummaryHeader renders the summary as compact JSON for a response header.
func SummaryHeader(result extract.Result) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(result.Summary); err != nil {
		return "", fmt.Errorf("delivery: encode summary: %w", err)
	}
	return asciiJSON(bytes.TrimSpace(buf.Bytes())), nil
}

// asciiJSON escapes every non-ASCII rune as \uXXXX so the JSON can travel in
// an HTTP header.
func asciiJSON(data []byte) string {
	var out bytes.Buffer
	for _, r := range string(data) {
		switch {
		case r < 0x80:
			out.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&out, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&out, `\u%04x`, r)
		}
	}
	return out.String()
}

func cleanName(name string) string {
	clean := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
	if clean == "" {
		return "unnamed.txt"
	}
	return clean
}

func uniqueName(taken map[string]bool, name string) string {
	ext := path.Ext(name)
	stem := name[:len(name)-len(ext)]
	candidate := name
	for n := 1; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	taken[candidate] = true
	return candidate
}
