// Package timeseries feeds meter samples into a metric.Collector so they can
// be kept as rolling time series and charted on its dashboard.
package timeseries

import (
	"context"
	"strings"
	"time"

	"github.com/OutOfBedlam/metric"
	"github.com/OutOfBedlam/sysmetrics/instrument"
)

var _ metric.Input = (*Input)(nil)

// Input is pulled by the collector on its own sampling interval.
type Input struct {
	meter   *instrument.Meter
	timeout time.Duration
}

func NewInput(meter *instrument.Meter) *Input {
	return &Input{meter: meter, timeout: 10 * time.Second}
}

type Point struct {
	Name  string
	Value float64
	Type  metric.Type
}

func (in *Input) Gather(g *metric.Gather) error {
	ctx, cancel := context.WithTimeout(context.Background(), in.timeout)
	defer cancel()
	points, err := in.Points(ctx)
	for _, p := range points {
		g.Add(p.Name, p.Value, p.Type)
	}
	return err
}

// Points pulls the meter once and names every sample
// "<instrument>:<tag values joined by _>".
func (in *Input) Points(ctx context.Context) ([]Point, error) {
	samples, err := in.meter.Gather(ctx)
	ret := make([]Point, 0, len(samples))
	for _, s := range samples {
		ret = append(ret, Point{
			Name:  SeriesName(s),
			Value: s.Float64(),
			Type:  metric.GaugeType(unitOf(s.Unit)),
		})
	}
	return ret, err
}

func SeriesName(s instrument.Sample) string {
	if len(s.Tags) == 0 {
		return s.Name + ":value"
	}
	values := make([]string, len(s.Tags))
	for i, t := range s.Tags {
		values[i] = strings.ReplaceAll(t.Value, ":", "_")
	}
	return s.Name + ":" + strings.Join(values, "_")
}

func unitOf(u string) metric.Unit {
	switch u {
	case "By":
		return metric.UnitBytes
	case "%":
		return metric.UnitPercent
	default:
		return metric.UnitShort
	}
}
