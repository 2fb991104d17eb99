package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message directions and results used as label values.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"

	ResultOK           = "ok"
	ResultDecodeError  = "decode_error"
	ResultEncodeError  = "encode_error"
	ResultPublishError = "publish_error"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	bridgeMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirbridge",
			Subsystem: "bridge",
			Name:      "messages_total",
			Help:      "Messages handled by bridge channels.",
		},
		[]string{"topic", "direction", "result"},
	)
	bridgeChannels = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mirbridge",
			Subsystem: "bridge",
			Name:      "channels_active",
			Help:      "Channels with a live remote side.",
		},
		[]string{"direction"},
	)
	serviceCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirbridge",
			Subsystem: "rosapi",
			Name:      "call_duration_seconds",
			Help:      "Remote catalog service call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bridgeMessages, bridgeChannels, serviceCalls)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordBridgeMessage(topic, direction, result string) {
	RegisterMetrics()
	bridgeMessages.WithLabelValues(topic, direction, result).Inc()
}

func AddActiveChannel(direction string) {
	RegisterMetrics()
	bridgeChannels.WithLabelValues(direction).Inc()
}

func RemoveActiveChannel(direction string) {
	RegisterMetrics()
	bridgeChannels.WithLabelValues(direction).Dec()
}

func RecordServiceCall(service string, duration time.Duration, success bool) {
	RegisterMetrics()
	serviceCalls.WithLabelValues(service, strconv.FormatBool(success)).Observe(duration.Seconds())
}
