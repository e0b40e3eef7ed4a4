package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OutOfBedlam/metric"
	"github.com/OutOfBedlam/sysmetrics/instrument"
)

// Output receives the samples of one pull.
type Output interface {
	Export(ctx context.Context, samples []instrument.Sample) error
}

type OutputFunc func(ctx context.Context, samples []instrument.Sample) error

func (f OutputFunc) Export(ctx context.Context, samples []instrument.Sample) error {
	return f(ctx, samples)
}

type OutputWrapper struct {
	output Output
	filter func(string) bool
}

// Exporter pulls a meter every interval and hands the samples to its outputs.
type Exporter struct {
	sync.Mutex
	meter     *instrument.Meter
	ows       []OutputWrapper
	interval  time.Duration
	closeCh   chan struct{}
	doneCh    chan struct{}
	latestErr error
	log       *slog.Logger
}

// NewExporter pulls every interval, or every minute when interval <= 0.
func NewExporter(meter *instrument.Meter, interval time.Duration) *Exporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Exporter{
		meter:    meter,
		interval: interval,
		log:      slog.Default(),
	}
}

func (s *Exporter) SetLogger(l *slog.Logger) {
	s.log = l
}

// AddOutput registers an output. With patterns, only instruments whose name
// matches one of them are passed to it.
func (s *Exporter) AddOutput(output Output, patterns ...string) error {
	ow := OutputWrapper{
		output: output,
		filter: func(string) bool { return true }, // Default filter allows all metrics
	}
	if len(patterns) > 0 {
		f, err := metric.Compile(patterns)
		if err != nil {
			return fmt.Errorf("error compiling output filter %v: %w", patterns, err)
		}
		ow.filter = f.Match
	}
	s.Lock()
	s.ows = append(s.ows, ow)
	s.Unlock()
	return nil
}

func (s *Exporter) Start() {
	s.Lock()
	defer s.Unlock()
	if s.closeCh != nil {
		return
	}
	s.closeCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	closeCh, doneCh := s.closeCh, s.doneCh
	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(doneCh)
		for {
			select {
			case <-closeCh:
				ticker.Stop()
				return
			case <-ticker.C:
				s.ExportOnce(context.Background())
			}
		}
	}()
}

// Stop ends the loop and waits for an export in progress to finish.
func (s *Exporter) Stop() {
	s.Lock()
	if s.closeCh == nil {
		s.Unlock()
		return
	}
	close(s.closeCh)
	doneCh := s.doneCh
	s.closeCh, s.doneCh = nil, nil
	s.Unlock()
	<-doneCh
}

// LatestError returns the latest error encountered during export.
// If no error has occurred, it returns nil.
func (s *Exporter) LatestError() error {
	s.Lock()
	defer s.Unlock()
	return s.latestErr
}

// ExportOnce pulls the meter once and passes the samples to every output.
func (s *Exporter) ExportOnce(ctx context.Context) error {
	samples, err := s.meter.Gather(ctx)
	if err != nil {
		s.log.Warn("[export] gather", "meter", s.meter.Name(), "error", err)
	}
	s.Lock()
	ows := append([]OutputWrapper(nil), s.ows...)
	s.Unlock()

	var errs []error
	for _, ow := range ows {
		selected := make([]instrument.Sample, 0, len(samples))
		for _, sm := range samples {
			if ow.filter(sm.Name) {
				selected = append(selected, sm)
			}
		}
		if len(selected) == 0 {
			continue
		}
		if err := ow.output.Export(ctx, selected); err != nil {
			s.log.Warn("[export] output", "output", fmt.Sprintf("%T", ow.output), "error", err)
			errs = append(errs, err)
		}
	}
	errs = append(errs, err)
	if joined := errors.Join(errs...); joined != nil {
		s.Lock()
		s.latestErr = joined
		s.Unlock()
		return joined
	}
	return nil
}
