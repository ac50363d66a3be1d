package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/estensen/streamflow-pipeline/internal/schema"
)

const namespace = "streamflow"

// Metrics holds the pipeline's prometheus collectors. It implements both
// schema.Recorder and activity.Recorder.
type Metrics struct {
	decodes       *prometheus.CounterVec
	events        *prometheus.CounterVec
	rowsLoaded    *prometheus.CounterVec
	snapshots     *prometheus.CounterVec
	streamsParsed prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instruction_decodes_total",
			Help:      "Instructions run through the versioned decoder, by schema version and outcome.",
		}, []string{"version", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity events reconstructed, by feed and action.",
		}, []string{"purpose", "action"}),
		rowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clickhouse_rows_loaded_total",
			Help:      "Rows sent to ClickHouse, by table.",
		}, []string{"table"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_snapshots_total",
			Help:      "Stream snapshot archive operations, by operation and result.",
		}, []string{"operation", "result"}),
		streamsParsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_parsed",
			Help:      "Streams derived by the last pipeline run.",
		}),
	}
	reg.MustRegister(m.decodes, m.events, m.rowsLoaded, m.snapshots, m.streamsParsed)
	return m
}

func (m *Metrics) ObserveDecode(v schema.Version, outcome schema.Outcome) {
	m.decodes.WithLabelValues(v.String(), string(outcome)).Inc()
}

func (m *Metrics) ObserveEvent(purpose schema.Purpose, action string) {
	m.events.WithLabelValues(purpose.String(), action).Inc()
}

func (m *Metrics) ObserveLoaded(table string, rows int) {
	m.rowsLoaded.WithLabelValues(table).Add(float64(rows))
}

func (m *Metrics) ObserveSnapshot(operation string, err error) {
	m.snapshots.WithLabelValues(operation, strconv.FormatBool(err == nil)).Inc()
}

func (m *Metrics) SetStreamsParsed(n int) {
	m.streamsParsed.Set(float64(n))
}
