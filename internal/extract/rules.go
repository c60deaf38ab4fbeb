package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Field names a slot of models.ExtractedRecord filled by a rule.
type Field string

const (
	FieldTotal      Field = "total"
	FieldTax        Field = "tax"
	FieldIdentifier Field = "identifier"
)

// Capture shapes shared by the default rules.
const (
	// CaptureAmount is a run of digits with "." or "," grouping.
	CaptureAmount = `\d[\d.,]*`
	// CaptureToken is a word made of letters, digits, underscores or hyphens.
	CaptureToken = `[\p{L}\p{N}_-]+`

	// SeparatorAmount allows "Total: $ 123", "Total=123" or "Total 123".
	SeparatorAmount = `\s*[:=]?\s*\$?\s*`
	// SeparatorToken allows "Factura No. 12", "NIT: 9001" or "NIT 9001".
	SeparatorToken = `\.?\s*[:=]?\s*`
)

// Rule describes how to find one field: any of Labels, then Separator, then a
// capture group of shape Capture. Labels are matched case-insensitively and
// the spaces between their words match any run of whitespace.
type Rule struct {
	Field     Field
	Labels    []string
	Separator string
	Capture   string
}

// DefaultRules is the rule table for Spanish-language invoices and receipts.
var DefaultRules = []Rule{
	{
		Field:     FieldTotal,
		Labels:    []string{"total a pagar", "total de la factura", "total factura", "total importe", "total final", "total"},
		Separator: SeparatorAmount,
		Capture:   CaptureAmount,
	},
	{
		Field:     FieldTax,
		Labels:    []string{"iva incluido", "iva"},
		Separator: SeparatorAmount,
		Capture:   CaptureAmount,
	},
	{
		Field:     FieldIdentifier,
		Labels:    []string{"nit", "n.i.t.", "numero de factura", "número de factura", "factura nro", "factura no", "factura #"},
		Separator: SeparatorToken,
		Capture:   CaptureToken,
	},
}

// Pattern builds the regular expression source for the rule.
func (r Rule) Pattern() string {
	labels := make([]string, len(r.Labels))
	copy(labels, r.Labels)
	// Longer labels first so "total a pagar" wins over "total" at the same offset.
	sort.SliceStable(labels, func(i, j int) bool {
		return len(labels[i]) > len(labels[j])
	})

	alternatives := make([]string, 0, len(labels))
	for _, label := range labels {
		words := strings.Fields(label)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alternatives = append(alternatives, strings.Join(words, `\s*`))
	}

	return `(?i)(?:` + strings.Join(alternatives, "|") + `)` + r.Separator + `(` + r.Capture + `)`
}

// Compile builds the matcher for the rule.
func (r Rule) Compile() (*regexp.Regexp, error) {
	return regexp.Compile(r.Pattern())
}
