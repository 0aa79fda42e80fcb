// Package metrics holds the Prometheus collectors of the bridge.
//
// A nil *Metrics is valid and records nothing, so components can run
// without metrics in tests.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bthome"

// Advertisement outcomes.
const (
	ResultDecoded     = "decoded"
	ResultDecodeError = "decode_error"
	ResultSkipped     = "skipped"
	ResultThrottled   = "throttled"
	ResultPublishFail = "publish_error"
)

// Topology operations.
const (
	OpRegister = "register"
	OpNode     = "node"
	OpProperty = "property"
)

// Metrics groups every collector the bridge exports.
type Metrics struct {
	advertisements *prometheus.CounterVec // By source and result
	readings       *prometheus.CounterVec // By source and property
	topology       *prometheus.CounterVec // By operation and result
	bringUp        prometheus.Histogram
	devices        *prometheus.GaugeVec // By source
	inspectorTopic prometheus.Gauge
	wsClients      prometheus.Gauge
	telemetryErrs  *prometheus.CounterVec // By source
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		advertisements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advertisements_total",
			Help:      "Advertisements and state messages received, by outcome",
		}, []string{"source", "result"}),

		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_published_total",
			Help:      "Property values published to the Homie bus",
		}, []string{"source", "property"}),

		topology: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      "topology_changes_total",
			Help:      "Device bring-ups and node/property insertions, by result",
		}, []string{"operation", "result"}),

		bringUp: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      "bring_up_duration_seconds",
			Help:      "Time to dial and advertise a device",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      "devices",
			Help:      "Devices currently registered",
		}, []string{"source"}),

		inspectorTopic: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inspector",
			Name:      "topics",
			Help:      "Topics held in the inspector tree",
		}),

		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}),

		telemetryErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "write_errors_total",
			Help:      "InfluxDB batch writes that failed, by the source of the points",
		}, []string{"source"}),
	}

	collectors := []prometheus.Collector{
		m.advertisements, m.readings, m.topology, m.bringUp,
		m.devices, m.inspectorTopic, m.wsClients, m.telemetryErrs,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}

	return m, nil
}

// Handler serves the metrics gathered by g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Advertisement counts one received advertisement or state message.
func (m *Metrics) Advertisement(source, result string) {
	if m == nil {
		return
	}
	m.advertisements.WithLabelValues(source, result).Inc()
}

// Reading counts one published property value.
func (m *Metrics) Reading(source, property string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(source, property).Inc()
}

// Topology records the outcome of a bring-up or insertion.
func (m *Metrics) Topology(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.topology.WithLabelValues(op, result).Inc()
}

// BringUp observes how long a device bring-up took.
func (m *Metrics) BringUp(d time.Duration) {
	if m == nil {
		return
	}
	m.bringUp.Observe(d.Seconds())
}

// SetDevices sets the number of registered devices for source.
func (m *Metrics) SetDevices(source string, n int) {
	if m == nil {
		return
	}
	m.devices.WithLabelValues(source).Set(float64(n))
}

// SetInspectorTopics sets the size of the inspector tree.
func (m *Metrics) SetInspectorTopics(n int) {
	if m == nil {
		return
	}
	m.inspectorTopic.Set(float64(n))
}

// SetWebSocketClients sets the number of connected websocket clients.
func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// TelemetryWriteError counts one failed InfluxDB batch carrying points of source.
func (m *Metrics) TelemetryWriteError(source string) {
	if m == nil {
		return
	}
	m.telemetryErrs.WithLabelValues(source).Inc()
}
