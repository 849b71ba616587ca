package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SetupPrometheus creates the registry served on /metrics, with go runtime, process and build info
// collectors, plus any extra ones (e.g. the db pool stats collector)
func SetupPrometheus(extraCollectors ...prometheus.Collector) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range extraCollectors {
		promRegistry.MustRegister(c)
	}
	return promRegistry
}

// Handler exposes the registry, scrape failures are counted in promhttp_metric_handler_errors_total
func Handler(reg *prometheus.Registry) http.Handler {
	return otelhttp.NewHandler(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:      reg,
			ErrorHandling: promhttp.ContinueOnError,
		}),
		"metrics",
	)
}
