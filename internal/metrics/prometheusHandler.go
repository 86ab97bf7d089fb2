package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of documents waiting for a worker",
})

var dispatcherSignalCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var pagesExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pages_extracted_total",
	Help: "Pages processed labelled by the extraction method that produced the text",
}, []string{"method"})

var ocrFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ocr_fallbacks_total",
	Help: "Pages where native text was below threshold or failed and OCR was attempted",
})

var tableRegions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "table_regions_total",
	Help: "Table regions returned, labelled by whether the grid was extracted",
}, []string{"grid"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func CapturePageMethod(method string) {
	pagesExtracted.WithLabelValues(method).Inc()
}

func CaptureOCRFallback() {
	ocrFallbacks.Inc()
}

func CaptureTableRegion(gridOK bool) {
	label := "ok"
	if !gridOK {
		label = "failed"
	}
	tableRegions.WithLabelValues(label).Inc()
}

var documentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "document_processing_duration_seconds",
	Help:    "Total time spent processing one document, by final status.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureDocumentMetrics(status string, timeElapsed time.Duration) {
	documentDuration.WithLabelValues(status).Observe(timeElapsed.Seconds())
}

var jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "job_duration_seconds",
	Help:    "Time from a worker picking up a job to its end, by final job status.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
}, []string{"status"})

func CaptureJobMetrics(status string, timeElapsed time.Duration) {
	jobDuration.WithLabelValues(status).Observe(timeElapsed.Seconds())
}
