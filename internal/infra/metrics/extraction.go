package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		extractionTokensIn,
		extractionTokensOut,
		extractionLatencyMs,
	)
}

var (
	extractionTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_tokens_in",
			Help: "Sum of prompt (input) tokens per vision provider.",
		},
		[]string{"provider", "estimated"},
	)

	extractionTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_tokens_out",
			Help: "Sum of completion (output) tokens per vision provider.",
		},
		[]string{"provider", "estimated"},
	)

	extractionLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_latency_ms",
			Help:    "Vision extraction call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		},
		[]string{"provider", "success"},
	)
)

func ObserveExtraction(provider string, tokensIn, tokensOut int, estimated bool, latencyMs int, success bool) {
	est := strconv.FormatBool(estimated)
	extractionTokensIn.WithLabelValues(norm(provider), est).Add(float64(tokensIn))
	extractionTokensOut.WithLabelValues(norm(provider), est).Add(float64(tokensOut))
	extractionLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
