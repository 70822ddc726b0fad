// Package metrics provides Prometheus collectors for POSNET sends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/posnet/pkg/posnet"
)

const namespace = "posnet"

// ResultOK labels sends that returned a body.
const ResultOK = "ok"

// Collector records send outcomes. It satisfies posnet.Observer.
type Collector struct {
	sends    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Collector and registers it on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "send_total",
				Help:      "Total number of XML requests sent to the gateway, by result",
			},
			[]string{"method", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "send_duration_seconds",
				Help:      "Duration of a full send, connect to last body byte",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method"},
		),
	}

	for _, col := range []prometheus.Collector{c.sends, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveSend implements posnet.Observer.
func (c *Collector) ObserveSend(method posnet.Method, kind posnet.ErrorKind, took time.Duration) {
	result := ResultOK
	if kind != posnet.KindNone {
		result = kind.String()
	}
	c.sends.WithLabelValues(string(method), result).Inc()
	c.duration.WithLabelValues(string(method)).Observe(took.Seconds())
}
