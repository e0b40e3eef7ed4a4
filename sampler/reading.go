package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

// FailurePolicy decides what a pull reports when a provider read fails.
type FailurePolicy int

const (
	// FailureOmit drops the trackers fed by the failed read.
	FailureOmit FailurePolicy = iota
	// FailureStale reports the last successful reading, if any.
	FailureStale
	// FailureRetry reads once more before omitting.
	FailureRetry
)

func (p FailurePolicy) String() string {
	switch p {
	case FailureOmit:
		return "omit"
	case FailureStale:
		return "stale"
	case FailureRetry:
		return "retry"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "omit":
		return FailureOmit, nil
	case "stale":
		return FailureStale, nil
	case "retry":
		return FailureRetry, nil
	}
	return 0, fmt.Errorf("unknown failure policy %q", s)
}

// reading wraps one provider call. It keeps the last good value for
// FailureStale and, when ttl > 0, serves it until ttl elapses.
type reading[T any] struct {
	name   string
	read   func(ctx context.Context) (T, error)
	ttl    time.Duration
	clock  clock.PassiveClock
	policy FailurePolicy
	log    *slog.Logger

	group singleflight.Group
	warn  rate.Sometimes

	mu   sync.Mutex
	last T
	at   time.Time
	ok   bool
}

func newReading[T any](s *SystemMetrics, name string, ttl time.Duration, read func(ctx context.Context) (T, error)) *reading[T] {
	return &reading[T]{
		name:   name,
		read:   read,
		ttl:    ttl,
		clock:  s.clock,
		policy: s.policy,
		log:    s.log,
		warn:   rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

func (r *reading[T]) fresh(now time.Time) bool {
	if r.ttl <= 0 || !r.ok {
		return false
	}
	// a clock moved backwards invalidates the cache
	if now.Before(r.at) {
		return false
	}
	return now.Sub(r.at) < r.ttl
}

// get returns the value to report and false when nothing should be emitted.
func (r *reading[T]) get(ctx context.Context) (T, bool) {
	r.mu.Lock()
	if r.fresh(r.clock.Now()) {
		v := r.last
		r.mu.Unlock()
		return v, true
	}
	r.mu.Unlock()

	// The shared read outlives any single caller; each caller only waits on
	// its own ctx.
	ch := r.group.DoChan(r.name, func() (any, error) {
		return r.load(context.WithoutCancel(ctx))
	})
	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(T), true
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	var zero T
	if errors.Is(err, errors.ErrUnsupported) {
		return zero, false
	}
	r.warn.Do(func() {
		r.log.Warn("[sampler] provider read failed", "reading", r.name, "policy", r.policy.String(), "error", err)
	})
	if r.policy == FailureStale {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.ok {
			return r.last, true
		}
	}
	return zero, false
}

func (r *reading[T]) load(ctx context.Context) (T, error) {
	v, err := r.read(ctx)
	if err != nil && r.policy == FailureRetry && !errors.Is(err, errors.ErrUnsupported) {
		r.log.Debug("[sampler] retrying provider read", "reading", r.name, "error", err)
		v, err = r.read(ctx)
	}
	if err != nil {
		return v, err
	}
	r.mu.Lock()
	r.last, r.at, r.ok = v, r.clock.Now(), true
	r.mu.Unlock()
	return v, nil
}
