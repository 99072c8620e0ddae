package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(uploadsFinalizedTotal, uploadBytesTotal, uploadsAbortedTotal) }

var uploadsFinalizedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "uploads_finalized_total",
		Help: "Uploads verified durable, labeled by mode.",
	},
	[]string{"mode"}, // 'single', 'chunked'
)

var uploadBytesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "upload_bytes_total",
		Help: "Total bytes of finalized uploads.",
	},
)

var uploadsAbortedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "uploads_aborted_total",
		Help: "Uploads explicitly aborted.",
	},
)

func ObserveUploadFinalized(chunked bool, size int64) {
	mode := "single"
	if chunked {
		mode = "chunked"
	}
	uploadsFinalizedTotal.WithLabelValues(mode).Inc()
	uploadBytesTotal.Add(float64(size))
}

func IncUploadAborted() { uploadsAbortedTotal.Inc() }
