package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsAccepted  = promauto.NewCounter(prometheus.CounterOpts{Name: "tcp2np_connections_accepted_total", Help: "TCP connections accepted"})
	ConnectionsRejected  = promauto.NewCounter(prometheus.CounterOpts{Name: "tcp2np_connections_rejected_total", Help: "TCP connections closed by the admission limit"})
	ActiveRelays         = promauto.NewGauge(prometheus.GaugeOpts{Name: "tcp2np_active_relays", Help: "Relays currently pumping (0 or 1)"})
	RelaysCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "tcp2np_relays_completed_total", Help: "Relays that reached teardown"})
	BytesRelayed         = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcp2np_bytes_relayed_total", Help: "Bytes forwarded by direction"}, []string{"direction"})
	ErrorsTotal          = promauto.NewCounterVec(prometheus.CounterOpts{Name: "tcp2np_errors_total", Help: "Errors by type"}, []string{"type"})
	PipeConnectSeconds   = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tcp2np_pipe_connect_seconds", Help: "Pipe connect latency", Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16)})
	RelayDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "tcp2np_relay_duration_seconds", Help: "Relay lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 16)})
)
