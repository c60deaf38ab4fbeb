// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"ocrtools/internal/batch"
	"ocrtools/internal/extract"
)

// Registry holds every collector of this process. It is separate from the
// default registry so that tests and embedders get a predictable set.
var Registry = prometheus.NewRegistry()

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrtools",
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "The total number of batch runs.",
		},
		[]string{"engine"},
	)
	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrtools",
			Subsystem: "batch",
			Name:      "images_total",
			Help:      "The total number of images by outcome.",
		},
		[]string{"category", "status"},
	)
	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrtools",
			Subsystem: "batch",
			Name:      "failures_total",
			Help:      "The total number of failed images by stage.",
		},
		[]string{"kind"},
	)
	warningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrtools",
			Subsystem: "batch",
			Name:      "warnings_total",
			Help:      "The total number of category warnings.",
		},
		[]string{"kind"},
	)
	imageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocrtools",
			Subsystem: "batch",
			Name:      "image_duration_seconds",
			Help:      "Time taken to decode, recognize and write one image.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"engine"},
	)
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ocrtools",
			Subsystem: "batch",
			Name:      "run_duration_seconds",
			Help:      "Time taken by a whole batch run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrtools",
			Subsystem: "extract",
			Name:      "records_total",
			Help:      "The total number of extracted records, matched or not.",
		},
		[]string{"result"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocrtools",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time taken to process a request.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"route", "status"},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(runsTotal)
	Registry.MustRegister(imagesTotal)
	Registry.MustRegister(failuresTotal)
	Registry.MustRegister(warningsTotal)
	Registry.MustRegister(imageDuration)
	Registry.MustRegister(runDuration)
	Registry.MustRegister(recordsTotal)
	Registry.MustRegister(requestDuration)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ObserveReport records the outcomes of a finished batch run.
func ObserveReport(report *batch.Report) {
	if report == nil {
		return
	}
	runsTotal.WithLabelValues(report.Engine).Inc()
	runDuration.Observe(report.Duration().Seconds())

	for _, cat := range report.Categories {
		for _, w := range cat.Warnings {
			warningsTotal.WithLabelValues(string(w.Kind)).Inc()
		}
		for _, f := range cat.Files {
			imagesTotal.WithLabelValues(cat.Name, string(f.Status)).Inc()
			imageDuration.WithLabelValues(report.Engine).Observe(f.Duration.Seconds())
			if f.Status == batch.StatusFailed {
				failuresTotal.WithLabelValues(string(f.Kind)).Inc()
			}
		}
	}
}

// ObserveExtraction records the matched and unmatched record counts.
func ObserveExtraction(result extract.Result) {
	recordsTotal.WithLabelValues("matched").Add(float64(result.MatchedCount()))
	recordsTotal.WithLabelValues("unmatched").Add(float64(len(result.Unmatched)))
}

// RecordRequestDuration records how long a request took
func RecordRequestDuration(route, status string, seconds float64) {
	requestDuration.WithLabelValues(route, status).Observe(seconds)
}
