// Package sampler publishes host resource usage as observable gauges.
//
// Every Create*Metric call registers one instrument on the meter. The
// instrument reads the OS only when it is pulled, and only for the trackers
// enabled at construction time. Readings that fail or that the platform does
// not offer are left out of the pull instead of being reported as errors.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/OutOfBedlam/sysmetrics/provider"
	"github.com/OutOfBedlam/sysmetrics/tracker"
	"k8s.io/utils/clock"
)

const (
	TagPeriod = "period"
	TagKind   = "kind"
	TagDisk   = "disk"

	// UnknownVolume is the disk tag value when neither the mount point nor
	// the absolute path of a disk metric can be resolved.
	UnknownVolume = "unknown"
)

var ErrInvalidDescriptor = errors.New("invalid tag descriptor")

type SystemMetrics struct {
	meter    *instrument.Meter
	interval time.Duration
	enabled  tracker.Enablement
	provider provider.Provider
	clock    clock.PassiveClock
	policy   FailurePolicy
	log      *slog.Logger

	cpu *reading[float64]
}

type Option func(*SystemMetrics)

func WithProvider(p provider.Provider) Option {
	return func(s *SystemMetrics) { s.provider = p }
}

func WithClock(c clock.PassiveClock) Option {
	return func(s *SystemMetrics) { s.clock = c }
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(s *SystemMetrics) { s.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *SystemMetrics) { s.log = l }
}

// New creates a sampler publishing into meter. The CPU reading is cached for
// interval; interval <= 0 reads it on every pull.
func New(meter *instrument.Meter, interval time.Duration, enabled tracker.Enablement, opts ...Option) *SystemMetrics {
	s := &SystemMetrics{
		meter:    meter,
		interval: interval,
		enabled:  enabled.Clone(),
		clock:    clock.RealClock{},
		policy:   FailureOmit,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.provider == nil {
		s.provider = provider.NewHost()
	}
	s.cpu = newReading(s, "cpu", s.interval, s.provider.CPUPercent)
	return s
}

func (s *SystemMetrics) Interval() time.Duration {
	return s.interval
}

func (s *SystemMetrics) Enabled(t tracker.Tracker) bool {
	return s.enabled.Enabled(t)
}

func (s *SystemMetrics) CreateLoadAverageMetric(name string, tags tracker.Descriptor) error {
	tags, err := s.descriptor(name, tags, tracker.LoadAverage1m, tracker.LoadAverage5m, tracker.LoadAverage15m)
	if err != nil {
		return err
	}
	loads := newReading(s, name, 0, s.provider.LoadAverages)
	_, err = instrument.ObservableGauge[float64](s.meter, name,
		func(ctx context.Context, o instrument.Observer[float64]) error {
			if !s.enabled.AnyEnabled(tags) {
				return nil
			}
			la, ok := loads.get(ctx)
			if !ok {
				return nil
			}
			for _, l := range tags {
				if !s.enabled.Enabled(l.Tracker) {
					continue
				}
				var v float64
				switch l.Tracker {
				case tracker.LoadAverage1m:
					v = la.Load1
				case tracker.LoadAverage5m:
					v = la.Load5
				case tracker.LoadAverage15m:
					v = la.Load15
				}
				o.Observe(v, instrument.Tag{Key: TagPeriod, Value: l.Value})
			}
			return nil
		},
		instrument.WithDescription("System load average"),
	)
	return err
}

func (s *SystemMetrics) CreateCPUMetric(name string) error {
	_, err := instrument.ObservableGauge[float32](s.meter, name,
		func(ctx context.Context, o instrument.Observer[float32]) error {
			if !s.enabled.Enabled(tracker.Cpu) {
				return nil
			}
			if pct, ok := s.cpu.get(ctx); ok {
				o.Observe(float32(pct))
			}
			return nil
		},
		instrument.WithDescription("System CPU utilization"),
		instrument.WithUnit("%"),
	)
	return err
}

func (s *SystemMetrics) CreateMemoryMetric(name string, tags tracker.Descriptor) error {
	tags, err := s.descriptor(name, tags, tracker.FreeMem, tracker.TotalMem)
	if err != nil {
		return err
	}
	memory := newReading(s, name, 0, s.provider.Memory)
	_, err = instrument.ObservableGauge[int64](s.meter, name+"-bytes",
		func(ctx context.Context, o instrument.Observer[int64]) error {
			if !s.enabled.AnyEnabled(tags) {
				return nil
			}
			m, ok := memory.get(ctx)
			if !ok {
				return nil
			}
			for _, l := range tags {
				if !s.enabled.Enabled(l.Tracker) {
					continue
				}
				v := m.Total
				if l.Tracker == tracker.FreeMem {
					v = m.Free
				}
				o.Observe(clampInt64(v), instrument.Tag{Key: TagKind, Value: l.Value})
			}
			return nil
		},
		instrument.WithDescription("System memory"),
		instrument.WithUnit("By"),
	)
	return err
}

func (s *SystemMetrics) CreateDiskMetric(name string, path string, tags tracker.Descriptor) error {
	tags, err := s.descriptor(name, tags, tracker.DriveTotalBytes, tracker.DriveUsedBytes)
	if err != nil {
		return err
	}
	volume := s.volume(path)
	usage := newReading(s, name+":"+path, 0, func(ctx context.Context) (provider.DiskUsage, error) {
		return s.provider.DiskUsage(ctx, path)
	})
	_, err = instrument.ObservableGauge[int64](s.meter, name+"-bytes",
		func(ctx context.Context, o instrument.Observer[int64]) error {
			if !s.enabled.AnyEnabled(tags) {
				return nil
			}
			du, ok := usage.get(ctx)
			if !ok {
				return nil
			}
			for _, l := range tags {
				if !s.enabled.Enabled(l.Tracker) {
					continue
				}
				v := du.Total
				if l.Tracker == tracker.DriveUsedBytes {
					v = du.Used
				}
				o.Observe(clampInt64(v),
					instrument.Tag{Key: TagKind, Value: l.Value},
					instrument.Tag{Key: TagDisk, Value: volume})
			}
			return nil
		},
		instrument.WithDescription("Disk space of the volume holding "+path),
		instrument.WithUnit("By"),
	)
	return err
}

func (s *SystemMetrics) descriptor(name string, tags tracker.Descriptor, allowed ...tracker.Tracker) (tracker.Descriptor, error) {
	if err := tags.Validate(allowed...); err != nil {
		return nil, fmt.Errorf("%w for %q: %w", ErrInvalidDescriptor, name, err)
	}
	return tags.Clone(), nil
}

// volume names the disk tag. It is resolved once so every pull carries the
// same tag set.
func (s *SystemMetrics) volume(path string) string {
	vol, err := s.provider.Volume(context.Background(), path)
	if err == nil && vol != "" {
		return vol
	}
	s.log.Debug("[sampler] unable to resolve volume", "path", path, "error", err)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return UnknownVolume
}

func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}
