// Package metrics exports canvas activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/nexus-canvas/internal/core/domain"
	"github.com/custodia-labs/nexus-canvas/internal/core/ports/driven"
)

// Ensure Collector implements the interface.
var _ driven.CanvasObserver = (*Collector)(nil)

// Collector counts canvas events. Each Collector owns its registry, so
// several can coexist in one process (tests, multiple canvases).
type Collector struct {
	registry *prometheus.Registry

	Events       *prometheus.CounterVec
	Saves        prometheus.Counter
	SaveFailures prometheus.Counter
	Compactions  prometheus.Counter
	Loads        prometheus.Counter
	Toggles      prometheus.Counter
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "canvas_events_total",
				Help:      "Canvas events by kind",
			},
			[]string{"kind"},
		),
		Saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_saves_total",
			Help:      "Snapshots written to the project store",
		}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_save_failures_total",
			Help:      "Failed snapshot writes",
		}),
		Compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_history_compactions_total",
			Help:      "History compaction passes that compressed at least one entry",
		}),
		Loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_project_loads_total",
			Help:      "Projects loaded into a canvas",
		}),
		Toggles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canvas_visibility_toggles_total",
			Help:      "Times culling suppression was switched on or off",
		}),
	}

	c.registry.MustRegister(c.Events, c.Saves, c.SaveFailures, c.Compactions, c.Loads, c.Toggles)
	return c
}

// OnCanvasEvent records ev. It never blocks.
func (c *Collector) OnCanvasEvent(ev domain.Event) {
	c.Events.WithLabelValues(string(ev.Kind)).Inc()

	switch ev.Kind {
	case domain.EventProjectSaved:
		c.Saves.Inc()
	case domain.EventSaveFailed:
		c.SaveFailures.Inc()
	case domain.EventHistoryCompacted:
		c.Compactions.Inc()
	case domain.EventProjectLoaded:
		c.Loads.Inc()
	case domain.EventVisibilityChanged:
		c.Toggles.Inc()
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
