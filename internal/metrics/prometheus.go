package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videoprobe_analyses_total",
		Help: "Total number of top-level analyses run, by analysis and status",
	}, []string{"analysis", "status"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "videoprobe_analysis_duration_seconds",
		Help:    "Duration of top-level analyses",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"analysis"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videoprobe_requests_total",
		Help: "Total number of analysis requests, by status",
	}, []string{"status"})

	FramesAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videoprobe_frames_analyzed_total",
		Help: "Total number of frames analyzed across all requests",
	})

	RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "videoprobe_requests_in_flight",
		Help: "Number of analysis requests currently running",
	})

	MonitorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videoprobe_monitor_runs_total",
		Help: "Total number of scheduled monitor runs, by job and status",
	}, []string{"job", "status"})
)

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
