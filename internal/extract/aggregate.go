package extract

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ocrtools/pkg/models"
)

// UnmatchedDir is the folder of a delivery holding texts without a total.
// ReadArtifacts skips it so a delivery written next to artifacts is not read
// back as input.
const UnmatchedDir = "no_total"

// Artifact is a named OCR text, usually one .txt file written by a batch run.
type Artifact struct {
	Name string
	Text string
}

// UnmatchedText keeps the original text of a record without a total.
type UnmatchedText struct {
	Name string
	Text string
}

// Summary is the response-level digest of an aggregation.
type Summary struct {
	UnmatchedCount int      `json:"unmatched_count"`
	UnmatchedNames []string `json:"unmatched_names"`
}

// Result groups the records of a collection of artifacts.
type Result struct {
	Records   []models.ExtractedRecord
	Unmatched []UnmatchedText
	Summary   Summary
}

// MatchedCount returns how many records carry a total.
func (r Result) MatchedCount() int {
	return len(r.Records) - len(r.Unmatched)
}

// Aggregate extracts every artifact in order. Each artifact yields exactly one
// record; those without a total are also listed in Unmatched.
func (e *Extractor) Aggregate(artifacts []Artifact) Result {
	result := Result{
		Records: make([]models.ExtractedRecord, 0, len(artifacts)),
		Summary: Summary{UnmatchedNames: []string{}},
	}
	for _, artifact := range artifacts {
		record := e.Extract(artifact.Name, artifact.Text)
		result.Records = append(result.Records, record)
		if !record.Matched() {
			result.Unmatched = append(result.Unmatched, UnmatchedText{Name: artifact.Name, Text: artifact.Text})
			result.Summary.UnmatchedNames = append(result.Summary.UnmatchedNames, artifact.Name)
		}
	}
	result.Summary.UnmatchedCount = len(result.Unmatched)
	return result
}

// NewArtifact decodes raw bytes as UTF-8, dropping invalid sequences.
func NewArtifact(name string, data []byte) Artifact {
	return Artifact{Name: name, Text: strings.ToValidUTF8(string(data), "")}
}

// ReadArtifacts loads .txt files from the given paths. Directories are walked
// recursively and their files are named relative to the directory, with
// forward slashes, so that "Gastos/a.txt" stays distinguishable from
// "Ganancias/a.txt".
func ReadArtifacts(paths ...string) ([]Artifact, error) {
	var artifacts []Artifact
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		if !info.IsDir() {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("extract: %w", err)
			}
			artifacts = append(artifacts, NewArtifact(filepath.Base(path), data))
			continue
		}

		var found []Artifact
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if p != path && d.Name() == UnmatchedDir {
					return fs.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(p), ".txt") {
				return nil
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(path, p)
			if err != nil {
				return err
			}
			found = append(found, NewArtifact(filepath.ToSlash(rel), data))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("extract: walk %s: %w", path, err)
		}
		artifacts = append(artifacts, found...)
	}
	return artifacts, nil
}
