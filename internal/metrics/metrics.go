// Package metrics exposes Prometheus metrics for stations and respawns.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles NewU metrics. It satisfies station.Recorder and
// respawn.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	Stations      prometheus.Gauge
	Discoveries   prometheus.Counter
	Saves         *prometheus.CounterVec
	SaveDurations prometheus.Histogram
	Respawns      *prometheus.CounterVec
	Fees          prometheus.Counter
	FeesCharged   prometheus.Counter
	Events        *prometheus.CounterVec
}

// NewCollector registers metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	stations, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "newu_stations",
		Help: "Current number of respawn stations.",
	}), "newu_stations")
	if err != nil {
		return nil, err
	}
	discoveries, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newu_discoveries_total",
		Help: "Station discoveries recorded.",
	}), "newu_discoveries_total")
	if err != nil {
		return nil, err
	}
	saves, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newu_saves_total",
		Help: "Station file saves, labeled by result.",
	}, []string{"result"}), "newu_saves_total")
	if err != nil {
		return nil, err
	}
	saveDurations, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "newu_save_duration_seconds",
		Help:    "Station file save latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "newu_save_duration_seconds")
	if err != nil {
		return nil, err
	}
	respawns, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newu_respawns_total",
		Help: "Handled respawns, labeled by outcome.",
	}, []string{"outcome"}), "newu_respawns_total")
	if err != nil {
		return nil, err
	}
	fees, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newu_fees_total",
		Help: "Respawn fees charged.",
	}), "newu_fees_total")
	if err != nil {
		return nil, err
	}
	feesCharged, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newu_fee_amount_total",
		Help: "Sum of respawn fees charged.",
	}), "newu_fee_amount_total")
	if err != nil {
		return nil, err
	}
	events, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newu_host_events_total",
		Help: "Host events received over the bridge, labeled by type.",
	}, []string{"type"}), "newu_host_events_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		Stations:      stations,
		Discoveries:   discoveries,
		Saves:         saves,
		SaveDurations: saveDurations,
		Respawns:      respawns,
		Fees:          fees,
		FeesCharged:   feesCharged,
		Events:        events,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// SetStations sets the station gauge.
func (c *Collector) SetStations(n int) {
	c.Stations.Set(float64(n))
}

// IncDiscoveries counts one discovery.
func (c *Collector) IncDiscoveries() {
	c.Discoveries.Inc()
}

// ObserveSave records one save attempt.
func (c *Collector) ObserveSave(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Saves.WithLabelValues(result).Inc()
	c.SaveDurations.Observe(d.Seconds())
}

// ObserveRespawn counts one respawn by outcome.
func (c *Collector) ObserveRespawn(outcome string) {
	c.Respawns.WithLabelValues(outcome).Inc()
}

// ObserveFee records one charged fee.
func (c *Collector) ObserveFee(amount float64) {
	c.Fees.Inc()
	c.FeesCharged.Add(amount)
}

// ObserveEvent counts one host event.
func (c *Collector) ObserveEvent(kind string) {
	c.Events.WithLabelValues(kind).Inc()
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
