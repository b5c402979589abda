package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registry is the engine's own registry, so the exporter never picks up
// collectors that third-party libraries register globally.
var registry = prometheus.NewRegistry()

var (
	once  sync.Once
	queue []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	queue = append(queue, cs...)
}

// MustRegister registers all enqueued collectors, plus the standard Go
// runtime and process collectors, exactly once.
func MustRegister() {
	once.Do(func() {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registry.MustRegister(queue...)
	})
}

// Handler exposes the registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
