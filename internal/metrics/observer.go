package metrics

import (
	"context"

	"chatrouter/internal/dispatch"
)

var (
	cycleBuckets   = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}
	handlerBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30}
)

// Observer records dispatch cycles into a collector.
type Observer struct {
	c *MetricsCollector
}

// NewObserver returns an observer writing to c, or to Collector when c is nil.
func NewObserver(c *MetricsCollector) *Observer {
	if c == nil {
		c = Collector
	}
	return &Observer{c: c}
}

func (o *Observer) ObserveCycle(_ context.Context, cycle dispatch.Cycle) {
	component := cycle.Event.Component()
	o.c.Counter("chatrouter_events_total", "Events dispatched", Labels("component", component)).Inc()
	o.c.Histogram("chatrouter_cycle_seconds", "Dispatch cycle duration in seconds", "", cycleBuckets).
		Observe(cycle.Duration.Seconds())

	for _, out := range cycle.Outcomes {
		name := out.Listener.Name
		o.c.Counter("chatrouter_listener_outcomes_total", "Listener outcomes by status",
			Labels("listener", name, "status", out.Status.String())).Inc()
		if out.Status.Matched() && out.Duration > 0 {
			o.c.Histogram("chatrouter_handler_seconds", "Handler run time in seconds",
				Labels("listener", name), handlerBuckets).Observe(out.Duration.Seconds())
		}
	}
}

// QueueSource exposes message bus statistics.
type QueueSource interface {
	Len() int
	Dropped() int64
}

// TrackQueue copies the bus statistics into gauges. It is meant to be called
// before each scrape.
func (c *MetricsCollector) TrackQueue(q QueueSource) {
	c.Gauge("chatrouter_bus_queued", "Events waiting in the bus", "").Set(int64(q.Len()))
	c.Gauge("chatrouter_bus_dropped", "Events dropped because the bus was full", "").Set(q.Dropped())
}
