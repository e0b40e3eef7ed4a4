// Package otel bridges a meter into an OpenTelemetry MeterProvider.
package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/OutOfBedlam/sysmetrics/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Bridge re-registers every instrument of a meter as an OpenTelemetry
// observable gauge. Instruments added to the meter after NewBridge are not seen.
type Bridge struct {
	meter *instrument.Meter
	reg   metric.Registration
}

func NewBridge(src *instrument.Meter, dst metric.Meter) (*Bridge, error) {
	descs := src.Descriptors()
	ints := make(map[string]metric.Int64ObservableGauge)
	floats := make(map[string]metric.Float64ObservableGauge)
	observables := make([]metric.Observable, 0, len(descs))
	for _, d := range descs {
		if d.Kind == instrument.Int64 {
			g, err := dst.Int64ObservableGauge(d.Name,
				metric.WithDescription(d.Description), metric.WithUnit(d.Unit))
			if err != nil {
				return nil, fmt.Errorf("otel gauge %q: %w", d.Name, err)
			}
			ints[d.Name] = g
			observables = append(observables, g)
		} else {
			g, err := dst.Float64ObservableGauge(d.Name,
				metric.WithDescription(d.Description), metric.WithUnit(d.Unit))
			if err != nil {
				return nil, fmt.Errorf("otel gauge %q: %w", d.Name, err)
			}
			floats[d.Name] = g
			observables = append(observables, g)
		}
	}

	reg, err := dst.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			samples, err := src.Gather(ctx)
			for _, s := range samples {
				opt := metric.WithAttributes(attributes(s.Tags)...)
				if g, ok := ints[s.Name]; ok {
					o.ObserveInt64(g, s.Int, opt)
				} else if g, ok := floats[s.Name]; ok {
					o.ObserveFloat64(g, s.Float, opt)
				}
			}
			return err
		},
		observables...,
	)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return &Bridge{meter: src, reg: reg}, nil
}

func (b *Bridge) Unregister() error {
	if b.reg == nil {
		return errors.New("bridge not registered")
	}
	return b.reg.Unregister()
}

func attributes(tags []instrument.Tag) []attribute.KeyValue {
	ret := make([]attribute.KeyValue, len(tags))
	for i, t := range tags {
		ret[i] = attribute.String(t.Key, t.Value)
	}
	return ret
}
