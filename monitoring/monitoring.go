package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	log "github.com/sirupsen/logrus"
)

var (
	// Mutations counts every mutation by operation and result state.
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "impromptu",
			Subsystem: "api",
			Name:      "mutations_total",
			Help:      "Total number of mutations by operation and state",
		},
		[]string{"operation", "state"},
	)

	// LiveSubscriptions tracks open realtime feeds by kind.
	LiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "impromptu",
			Subsystem: "api",
			Name:      "live_subscriptions",
			Help:      "Number of open realtime subscriptions by kind",
		},
		[]string{"kind"},
	)
)

// Serve exposes /metrics on its own listener. Blocks, call in a goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics, err=%v", err)
	}
}
