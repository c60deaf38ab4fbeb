package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ocrtools/internal/batch"
	"ocrtools/internal/extract"
)

func TestObserveReport(t *testing.T) {
	started := time.Now()
	report := &batch.Report{
		Engine:     "fake",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Categories: []batch.CategoryReport{
			{Name: "Gastos", Warnings: []batch.Warning{{Category: "Gastos", Kind: batch.WarnCategoryMissing}}},
			{
				Name:   "Ganancias",
				Images: 3,
				Files: []batch.FileOutcome{
					{Status: batch.StatusProcessed},
					{Status: batch.StatusProcessed},
					{Status: batch.StatusFailed, Kind: batch.KindDecode},
				},
			},
		},
	}

	runs := testutil.ToFloat64(runsTotal.WithLabelValues("fake"))
	processed := testutil.ToFloat64(imagesTotal.WithLabelValues("Ganancias", "processed"))
	decode := testutil.ToFloat64(failuresTotal.WithLabelValues("decode"))
	missing := testutil.ToFloat64(warningsTotal.WithLabelValues("category-missing"))

	ObserveReport(report)

	assert.Equal(t, runs+1, testutil.ToFloat64(runsTotal.WithLabelValues("fake")))
	assert.Equal(t, processed+2, testutil.ToFloat64(imagesTotal.WithLabelValues("Ganancias", "processed")))
	assert.Equal(t, decode+1, testutil.ToFloat64(failuresTotal.WithLabelValues("decode")))
	assert.Equal(t, missing+1, testutil.ToFloat64(warningsTotal.WithLabelValues("category-missing")))

	ObserveReport(nil)
}

func TestObserveExtraction(t *testing.T) {
	result := extract.Default().Aggregate([]extract.Artifact{
		{Name: "a.txt", Text: "Total: 10"},
		{Name: "b.txt", Text: "nada"},
		{Name: "c.txt", Text: "nada"},
	})

	matched := testutil.ToFloat64(recordsTotal.WithLabelValues("matched"))
	unmatched := testutil.ToFloat64(recordsTotal.WithLabelValues("unmatched"))

	ObserveExtraction(result)

	assert.Equal(t, matched+1, testutil.ToFloat64(recordsTotal.WithLabelValues("matched")))
	assert.Equal(t, unmatched+2, testutil.ToFloat64(recordsTotal.WithLabelValues("unmatched")))
}

func TestHandler(t *testing.T) {
	RecordRequestDuration("/healthz", "200", 0.01)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ocrtools_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
