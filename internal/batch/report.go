package batch

import (
	"time"
)

// Status is the outcome of one image.
type Status string

const (
	// StatusProcessed means text was recognized and written.
	StatusProcessed Status = "processed"
	// StatusEmpty means recognition returned blank text; the empty artifact
	// was still written.
	StatusEmpty Status = "empty"
	// StatusFailed means no artifact was produced for this run.
	StatusFailed Status = "failed"
)

// FailureKind says which stage a failed file stopped at.
type FailureKind string

const (
	KindDecode FailureKind = "decode"
	KindOCR    FailureKind = "ocr"
	KindWrite  FailureKind = "write"
)

// WarningKind classifies category-level conditions.
type WarningKind string

const (
	// WarnCategoryMissing means the category folder is absent from the input root.
	WarnCategoryMissing WarningKind = "category-missing"
	// WarnNoImages means the category folder holds no supported image.
	WarnNoImages WarningKind = "no-images"
	// WarnOutputUnavailable means the output folder for the category could not be created.
	WarnOutputUnavailable WarningKind = "output-unavailable"
)

// FileOutcome records what happened to one image.
type FileOutcome struct {
	Category string        `json:"category"`
	Source   string        `json:"source"`
	Artifact string        `json:"artifact,omitempty"`
	Status   Status        `json:"status"`
	Kind     FailureKind   `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Chars    int           `json:"chars"`
	Duration time.Duration `json:"duration"`

	err error
}

// Err returns the failure cause for failed outcomes.
func (o FileOutcome) Err() error {
	return o.err
}

// Warning is a non-fatal category-level condition.
type Warning struct {
	Category string      `json:"category"`
	Kind     WarningKind `json:"kind"`
	Path     string      `json:"path"`
	Message  string      `json:"message,omitempty"`
}

// CategoryReport holds the outcomes of one category.
type CategoryReport struct {
	Name     string        `json:"name"`
	InputDir string        `json:"input_dir"`
	Images   int           `json:"images"`
	Files    []FileOutcome `json:"files"`
	Warnings []Warning     `json:"warnings,omitempty"`
}

// Counts tallies outcomes.
type Counts struct {
	Images    int `json:"images"`
	Processed int `json:"processed"`
	Empty     int `json:"empty"`
	Failed    int `json:"failed"`
	Warnings  int `json:"warnings"`
}

// Report is the aggregate outcome of a run. It is complete even when every
// file failed, and is not modified once Run returns it.
type Report struct {
	InputRoot  string           `json:"input_root"`
	OutputRoot string           `json:"output_root"`
	Engine     string           `json:"engine"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Categories []CategoryReport `json:"categories"`
}

// Counts tallies the whole run.
func (r *Report) Counts() Counts {
	var c Counts
	for _, cat := range r.Categories {
		cc := cat.Counts()
		c.Images += cc.Images
		c.Processed += cc.Processed
		c.Empty += cc.Empty
		c.Failed += cc.Failed
		c.Warnings += cc.Warnings
	}
	return c
}

// Counts tallies one category.
func (c *CategoryReport) Counts() Counts {
	counts := Counts{Images: c.Images, Warnings: len(c.Warnings)}
	for _, f := range c.Files {
		switch f.Status {
		case StatusProcessed:
			counts.Processed++
		case StatusEmpty:
			counts.Empty++
		case StatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// Warnings lists every category warning in category order.
func (r *Report) Warnings() []Warning {
	var out []Warning
	for _, cat := range r.Categories {
		out = append(out, cat.Warnings...)
	}
	return out
}

// Outcomes lists every file outcome with the given status, in run order.
func (r *Report) Outcomes(status Status) []FileOutcome {
	var out []FileOutcome
	for _, cat := range r.Categories {
		for _, f := range cat.Files {
			if f.Status == status {
				out = append(out, f)
			}
		}
	}
	return out
}

// Category returns the report for name, or nil.
func (r *Report) Category(name string) *CategoryReport {
	for i := range r.Categories {
		if r.Categories[i].Name == name {
			return &r.Categories[i]
		}
	}
	return nil
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
