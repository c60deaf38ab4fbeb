package models

// ExtractedRecord holds the fields recovered from one OCR text artifact.
// A nil field means its label was not found in the text.
type ExtractedRecord struct {
	SourceName string  `json:"source_name"` // Artifact file name the text came from
	Total      *string `json:"total"`       // Amount following a "total" label, as written
	Tax        *string `json:"tax"`         // Amount following an "IVA" label, as written
	Identifier *string `json:"identifier"`  // NIT or invoice number
}

// Matched reports whether the record carries a total. Total is the only field
// that decides classification; tax and identifier are informational.
func (r ExtractedRecord) Matched() bool {
	return r.Total != nil
}

// FieldValue returns the value of a field or "" when it is absent.
func FieldValue(field *string) string {
	if field == nil {
		return ""
	}
	return *field
}
