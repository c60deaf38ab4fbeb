package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ocrtools/pkg/models"
)

func TestExtractCombinedReceipt(t *testing.T) {
	record := Default().Extract("factura.txt", "IVA incluido: 19,00 NIT: 900123456-7 Total a pagar = 1.250.000")

	require.NotNil(t, record.Total)
	require.NotNil(t, record.Tax)
	require.NotNil(t, record.Identifier)
	assert.Equal(t, "1.250.000", *record.Total)
	assert.Equal(t, "19,00", *record.Tax)
	assert.Equal(t, "900123456-7", *record.Identifier)
	assert.Equal(t, "factura.txt", record.SourceName)
	assert.True(t, record.Matched())
}

func TestExtractTotalWithCurrency(t *testing.T) {
	for _, text := range []string{
		"Total: $123.45",
		"Supermercado\nTotal: $123.45\nGracias",
		"TOTAL: $123.45.",
		"total:$ 123.45",
	} {
		record := Default().Extract("r.txt", text)
		require.NotNil(t, record.Total, text)
		assert.Equal(t, "123.45", *record.Total, text)
	}
}

func TestExtractNoTotalIsUnmatched(t *testing.T) {
	record := Default().Extract("blank.txt", "Recibo de caja\nIVA: 1.900\nGracias por su compra")

	assert.Nil(t, record.Total)
	assert.False(t, record.Matched())
	require.NotNil(t, record.Tax)
	assert.Equal(t, "1.900", *record.Tax)
	assert.Nil(t, record.Identifier)
}

func TestExtractMalformedInput(t *testing.T) {
	for _, text := range []string{"", "   \n\t", "\x00\xff\xfe", "total", "Total: $", "NIT:"} {
		record := Default().Extract("x.txt", text)
		assert.Nil(t, record.Total, "%q", text)
		assert.False(t, record.Matched())
	}
}

// Amounts must start with a digit, so a bare fraction leaves the record
// without a total.
func TestExtractAmountNeedsLeadingDigit(t *testing.T) {
	for _, text := range []string{"Total: .50", "Total: ,50", "Total = $.50"} {
		record := Default().Extract("r.txt", text)
		assert.Nil(t, record.Total, "%q", text)
		assert.False(t, record.Matched(), "%q", text)
	}

	record := Default().Extract("r.txt", "Total: 0.50")
	require.NotNil(t, record.Total)
	assert.Equal(t, "0.50", *record.Total)
}

func TestExtractIsIdempotent(t *testing.T) {
	text := "Factura No. FE-1029\nSubtotal 10.000\nIVA 1.900\nTotal final: 11.900"
	first := Default().Extract("a.txt", text)
	second := Default().Extract("a.txt", text)
	assert.Equal(t, first, second)
}

func TestRulesIndividually(t *testing.T) {
	e := Default()

	tests := []struct {
		name  string
		field Field
		text  string
		want  string
		found bool
	}{
		{"total de la factura", FieldTotal, "TOTAL DE LA FACTURA: 45.600", "45.600", true},
		{"total importe", FieldTotal, "Total   importe = $ 9,99", "9,99", true},
		{"total across newline", FieldTotal, "Total\na pagar\n88.000", "88.000", true},
		{"total missing", FieldTotal, "Valor neto 88.000", "", false},
		{"iva", FieldTax, "iva: $2.000", "2.000", true},
		{"iva incluido", FieldTax, "Precio IVA incluido 3.500", "3.500", true},
		{"nit dotted", FieldIdentifier, "N.I.T. 800197268-4", "800197268-4", true},
		{"numero de factura", FieldIdentifier, "Numero de factura: A-77", "A-77", true},
		{"numero con tilde", FieldIdentifier, "Número de factura: B12", "B12", true},
		{"factura no", FieldIdentifier, "Factura No. 000123", "000123", true},
		{"factura nro", FieldIdentifier, "FACTURA NRO 55-B", "55-B", true},
		{"factura hash", FieldIdentifier, "Factura # XY_9", "XY_9", true},
		{"identifier missing", FieldIdentifier, "Caja 3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Find(tt.field, tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsBadRules(t *testing.T) {
	_, err := New([]Rule{{Field: "date", Labels: []string{"fecha"}, Capture: CaptureToken}})
	assert.Error(t, err)

	_, err = New([]Rule{{Field: FieldTotal, Capture: CaptureAmount}})
	assert.Error(t, err)

	_, err = New([]Rule{{Field: FieldTotal, Labels: []string{"total"}, Capture: "("}})
	assert.Error(t, err)
}

func TestCustomRuleTable(t *testing.T) {
	e, err := New([]Rule{{
		Field:     FieldTotal,
		Labels:    []string{"importe"},
		Separator: SeparatorAmount,
		Capture:   CaptureAmount,
	}})
	require.NoError(t, err)

	record := e.Extract("x.txt", "Total: 10 Importe: 20")
	require.NotNil(t, record.Total)
	assert.Equal(t, "20", *record.Total)
	assert.Nil(t, record.Tax)
}

func TestAggregate(t *testing.T) {
	result := Default().Aggregate([]Artifact{
		{Name: "a.txt", Text: "Total: 100"},
		{Name: "b.txt", Text: "sin datos"},
		{Name: "c.txt", Text: "IVA 19 Total a pagar 119"},
		{Name: "d.txt", Text: ""},
	})

	require.Len(t, result.Records, 4)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "d.txt"}, []string{
		result.Records[0].SourceName, result.Records[1].SourceName,
		result.Records[2].SourceName, result.Records[3].SourceName,
	})
	assert.Equal(t, 2, result.MatchedCount())
	assert.Equal(t, 2, result.Summary.UnmatchedCount)
	assert.Equal(t, []string{"b.txt", "d.txt"}, result.Summary.UnmatchedNames)
	require.Len(t, result.Unmatched, 2)
	assert.Equal(t, "sin datos", result.Unmatched[0].Text)
	assert.Equal(t, "119", models.FieldValue(result.Records[2].Total))
}

func TestAggregateEmpty(t *testing.T) {
	result := Default().Aggregate(nil)
	assert.Empty(t, result.Records)
	assert.Equal(t, 0, result.Summary.UnmatchedCount)
	assert.NotNil(t, result.Summary.UnmatchedNames)
}

func TestReadArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Gastos"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Ganancias"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Gastos", "a.txt"), []byte("Total: 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Ganancias", "a.TXT"), []byte("bad \xff byte"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Gastos", "photo.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, UnmatchedDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, UnmatchedDir, "old.txt"), []byte("skipped"), 0o644))

	single := filepath.Join(t.TempDir(), "single.txt")
	require.NoError(t, os.WriteFile(single, []byte("IVA 5"), 0o644))

	artifacts, err := ReadArtifacts(dir, single)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	assert.Equal(t, "Ganancias/a.TXT", artifacts[0].Name)
	assert.Equal(t, "bad  byte", artifacts[0].Text)
	assert.Equal(t, "Gastos/a.txt", artifacts[1].Name)
	assert.Equal(t, "single.txt", artifacts[2].Name)

	_, err = ReadArtifacts(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
