package extract_test

import (
	"fmt"

	"ocrtools/internal/extract"
	"ocrtools/pkg/models"
)

// Example shows extraction of a single OCR text.
func Example() {
	record := extract.Default().Extract("recibo.txt", "IVA incluido: 19,00 NIT: 900123456-7 Total a pagar = 1.250.000")

	fmt.Println("total:", models.FieldValue(record.Total))
	fmt.Println("tax:", models.FieldValue(record.Tax))
	fmt.Println("identifier:", models.FieldValue(record.Identifier))
	fmt.Println("matched:", record.Matched())
	// Output:
	// total: 1.250.000
	// tax: 19,00
	// identifier: 900123456-7
	// matched: true
}

// ExampleExtractor_Aggregate groups texts into matched and unmatched.
func ExampleExtractor_Aggregate() {
	result := extract.Default().Aggregate([]extract.Artifact{
		{Name: "Gastos/luz.txt", Text: "Total: $54.300"},
		{Name: "Gastos/foto.txt", Text: "ilegible"},
	})

	fmt.Println("matched:", result.MatchedCount())
	fmt.Println("unmatched:", result.Summary.UnmatchedNames)
	// Output:
	// matched: 1
	// unmatched: [Gastos/foto.txt]
}
