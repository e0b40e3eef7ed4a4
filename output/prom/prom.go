// Package prom exposes a meter to a prometheus registry.
package prom

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector pulls the meter on every scrape. It is an unchecked collector:
// the instrument set is only known once the meter has been gathered.
type Collector struct {
	meter     *instrument.Meter
	namespace string
	timeout   time.Duration
	log       *slog.Logger
}

var _ prometheus.Collector = (*Collector)(nil)

type Option func(*Collector)

func WithNamespace(ns string) Option {
	return func(c *Collector) { c.namespace = ns }
}

// WithTimeout bounds a single pull of the meter.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) { c.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.log = l }
}

func NewCollector(meter *instrument.Meter, opts ...Option) *Collector {
	c := &Collector{meter: meter, timeout: 10 * time.Second, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Collector) Describe(chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	samples, err := c.meter.Gather(ctx)
	if err != nil {
		c.log.Warn("prometheus scrape", "meter", c.meter.Name(), "error", err)
	}
	descs := make(map[string]*prometheus.Desc)
	for _, s := range samples {
		keys := make([]string, len(s.Tags))
		values := make([]string, len(s.Tags))
		for i, t := range s.Tags {
			keys[i] = MetricName(t.Key)
			values[i] = t.Value
		}
		fq := prometheus.BuildFQName(MetricName(c.namespace), "", MetricName(s.Name))
		key := fq + "{" + strings.Join(keys, ",") + "}"
		desc, ok := descs[key]
		if !ok {
			help := s.Description
			if help == "" {
				help = s.Name
			}
			desc = prometheus.NewDesc(fq, help, keys, nil)
			descs[key] = desc
		}
		m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, s.Float64(), values...)
		if err != nil {
			c.log.Warn("prometheus metric", "name", s.Name, "error", err)
			continue
		}
		ch <- m
	}
}

// MetricName maps an instrument name onto the prometheus name charset.
func MetricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}
