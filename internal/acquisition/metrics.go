package acquisition

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/airquality.report/internal/store"
)

// Metrics are the acquisition counters and gauges. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Outcomes         *prometheus.CounterVec // labels: outcome
	Cycles           prometheus.Counter
	BusFaults        prometheus.Counter
	Published        prometheus.Counter
	DiscardedRetries prometheus.Counter
	LastPublish      prometheus.Gauge
	Concentration    *prometheus.GaugeVec // labels: size
}

// NewMetrics registers and returns the acquisition metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pms_decode_outcomes_total",
			Help: "Frame decoder outcomes per bus read.",
		}, []string{"outcome"}),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pms_cycles_total",
			Help: "Duty cycles started.",
		}),
		BusFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pms_bus_faults_total",
			Help: "Serial bus failures during init or steady read.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pms_samples_published_total",
			Help: "Samples published to the store.",
		}),
		DiscardedRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pms_discarded_retries_total",
			Help: "Steady-read retries whose result was not published.",
		}),
		LastPublish: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pms_last_publish_timestamp_seconds",
			Help: "Unix time of the last published sample.",
		}),
		Concentration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pms_concentration",
			Help: "Last published environmental PM concentration in ug/m3.",
		}, []string{"size"}),
	}
	reg.MustRegister(m.Outcomes, m.Cycles, m.BusFaults, m.Published, m.DiscardedRetries, m.LastPublish, m.Concentration)
	return m
}

func (m *Metrics) outcome(label string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(label).Inc()
}

func (m *Metrics) cycle() {
	if m == nil {
		return
	}
	m.Cycles.Inc()
}

func (m *Metrics) busFault() {
	if m == nil {
		return
	}
	m.BusFaults.Inc()
}

func (m *Metrics) discardedRetry() {
	if m == nil {
		return
	}
	m.DiscardedRetries.Inc()
}

func (m *Metrics) published(snap store.Snapshot) {
	if m == nil {
		return
	}
	m.Published.Inc()
	m.LastPublish.Set(float64(snap.PublishedAt.Unix()))
	m.Concentration.WithLabelValues("pm1_0").Set(float64(snap.Sample.PM1_0))
	m.Concentration.WithLabelValues("pm2_5").Set(float64(snap.Sample.PM2_5))
	m.Concentration.WithLabelValues("pm10").Set(float64(snap.Sample.PM10))
}
