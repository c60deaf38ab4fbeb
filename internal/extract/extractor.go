// Package extract turns OCR text into structured financial records.
//
// Extraction is driven by a table of Rules (see DefaultRules). Each rule is a
// set of label alternatives followed by a separator and a capture shape, and
// the first match in the text wins. A label that does not occur leaves the
// corresponding field nil; that is a normal outcome and never an error.
//
// Records are classified as matched when they carry a total. Unmatched texts
// are kept verbatim so they can be routed to manual review.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"ocrtools/pkg/models"
)

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Extractor applies a fixed rule table. It holds no mutable state and is
// safe for concurrent use.
type Extractor struct {
	rules []compiledRule
}

// New compiles rules in the given priority order.
func New(rules []Rule) (*Extractor, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		switch rule.Field {
		case FieldTotal, FieldTax, FieldIdentifier:
		default:
			return nil, fmt.Errorf("extract: rule has unknown field %q", rule.Field)
		}
		if len(rule.Labels) == 0 {
			return nil, fmt.Errorf("extract: rule for %s has no labels", rule.Field)
		}
		re, err := rule.Compile()
		if err != nil {
			return nil, fmt.Errorf("extract: compile rule for %s: %w", rule.Field, err)
		}
		compiled = append(compiled, compiledRule{Rule: rule, re: re})
	}
	return &Extractor{rules: compiled}, nil
}

var (
	defaultOnce      sync.Once
	defaultExtractor *Extractor
)

// Default returns the extractor built from DefaultRules.
func Default() *Extractor {
	defaultOnce.Do(func() {
		e, err := New(DefaultRules)
		if err != nil {
			panic(err)
		}
		defaultExtractor = e
	})
	return defaultExtractor
}

// Extract builds the record for one text. The same input always yields the
// same record.
func (e *Extractor) Extract(name, text string) models.ExtractedRecord {
	record := models.ExtractedRecord{SourceName: name}
	for _, rule := range e.rules {
		slot := fieldSlot(&record, rule.Field)
		if *slot != nil {
			continue
		}
		if value, ok := rule.find(text); ok {
			*slot = &value
		}
	}
	return record
}

// Find applies a single field's rules to text. It is mainly useful for
// checking a rule table entry in isolation.
func (e *Extractor) Find(field Field, text string) (string, bool) {
	for _, rule := range e.rules {
		if rule.Field != field {
			continue
		}
		if value, ok := rule.find(text); ok {
			return value, true
		}
	}
	return "", false
}

func fieldSlot(record *models.ExtractedRecord, field Field) **string {
	switch field {
	case FieldTotal:
		return &record.Total
	case FieldTax:
		return &record.Tax
	default:
		return &record.Identifier
	}
}

func (r compiledRule) find(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	value := m[1]
	if r.Capture == CaptureAmount {
		// "Total: 1.250.000." keeps the sentence period out of the amount.
		value = strings.TrimRight(value, ".,")
	}
	if value == "" {
		return "", false
	}
	return value, true
}
