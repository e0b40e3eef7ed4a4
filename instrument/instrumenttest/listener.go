// Package instrumenttest provides helpers to observe instruments
// synchronously from tests.
package instrumenttest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OutOfBedlam/sysmetrics/instrument"
	clocktesting "k8s.io/utils/clock/testing"
)

var ErrClosed = errors.New("listener closed")

// Listener captures the measurements of every instrument of kind T
// on each Observe call.
type Listener[T instrument.Number] struct {
	sub *instrument.Subscription

	mu       sync.Mutex
	captured map[string][]instrument.Measurement[T]
}

func NewListener[T instrument.Number](meter *instrument.Meter) *Listener[T] {
	return &Listener[T]{
		sub:      meter.Subscribe(),
		captured: make(map[string][]instrument.Measurement[T]),
	}
}

// Observe pulls all instruments of kind T once, replacing what the previous
// call captured. Callback errors are returned after the capture completes.
func (l *Listener[T]) Observe(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	captured := make(map[string][]instrument.Measurement[T])
	err := instrument.CollectSubscribed(ctx, l.sub, func(name string, ms []instrument.Measurement[T]) {
		captured[name] = append(captured[name], ms...)
	})
	if errors.Is(err, instrument.ErrUnsubscribed) {
		return ErrClosed
	}
	l.captured = captured
	return err
}

// RetrieveMeasurements returns what the latest Observe captured for the
// named instrument, in emission order.
func (l *Listener[T]) RetrieveMeasurements(name string) []instrument.Measurement[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]instrument.Measurement[T](nil), l.captured[name]...)
}

// Close releases the listener's subscription; later Observe calls fail with
// ErrClosed.
func (l *Listener[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.captured = nil
	l.sub.Unsubscribe()
	return nil
}

// NewFakeClock returns a settable clock starting at a fixed instant.
func NewFakeClock() *clocktesting.FakePassiveClock {
	return clocktesting.NewFakePassiveClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}
