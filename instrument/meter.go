package instrument

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrDuplicateInstrument = errors.New("instrument already registered")
	ErrInvalidName         = errors.New("invalid instrument name")
	ErrUnsubscribed        = errors.New("subscription released")
)

type entry struct {
	desc Descriptor
	// callback holds a Callback[T] matching desc.Kind
	callback any
	gather   func(ctx context.Context) ([]Sample, error)
}

// Meter is a named set of observable instruments.
// Instruments only produce values when something pulls them.
type Meter struct {
	name string

	mu          sync.RWMutex
	instruments []*entry
	byName      map[string]*entry
	subs        map[uint64]struct{}
	nextSub     uint64
}

func NewMeter(name string) *Meter {
	return &Meter{
		name:   name,
		byName: make(map[string]*entry),
		subs:   make(map[uint64]struct{}),
	}
}

func (m *Meter) Name() string {
	return m.name
}

// ObservableGauge registers a pull-based gauge on the meter.
func ObservableGauge[T Number](m *Meter, name string, cb Callback[T], opts ...Option) (Descriptor, error) {
	if strings.TrimSpace(name) == "" {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if cb == nil {
		return Descriptor{}, fmt.Errorf("instrument %q: nil callback", name)
	}
	desc := Descriptor{Name: name, Kind: KindOf[T]()}
	for _, o := range opts {
		o(&desc)
	}
	e := &entry{desc: desc, callback: cb}
	e.gather = func(ctx context.Context) ([]Sample, error) {
		rec := &recorder[T]{}
		err := cb(ctx, rec)
		ret := make([]Sample, 0, len(rec.ms))
		for _, ms := range rec.ms {
			s := Sample{Descriptor: desc, Tags: ms.Tags}
			if desc.Kind == Int64 {
				s.Int = int64(ms.Value)
			} else {
				s.Float = float64(ms.Value)
			}
			ret = append(ret, s)
		}
		return ret, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[name]; exists {
		return Descriptor{}, fmt.Errorf("%w: %q in meter %q", ErrDuplicateInstrument, name, m.name)
	}
	m.byName[name] = e
	m.instruments = append(m.instruments, e)
	return desc, nil
}

// Descriptors lists the registered instruments in registration order.
func (m *Meter) Descriptors() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]Descriptor, len(m.instruments))
	for i, e := range m.instruments {
		ret[i] = e.desc
	}
	return ret
}

func (m *Meter) snapshot() []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*entry(nil), m.instruments...)
}

// Collect pulls every instrument of kind T and passes its measurements,
// in emission order, to fn. Instruments are visited in registration order.
func Collect[T Number](ctx context.Context, m *Meter, fn func(name string, ms []Measurement[T])) error {
	var errs []error
	for _, e := range m.snapshot() {
		cb, ok := e.callback.(Callback[T])
		if !ok {
			continue
		}
		rec := &recorder[T]{}
		if err := cb(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("instrument %q: %w", e.desc.Name, err))
		}
		fn(e.desc.Name, rec.ms)
	}
	return errors.Join(errs...)
}

// Gather pulls every instrument regardless of its kind.
// Callback errors are joined; samples observed before an error are kept.
func (m *Meter) Gather(ctx context.Context) ([]Sample, error) {
	var ret []Sample
	var errs []error
	for _, e := range m.snapshot() {
		ss, err := e.gather(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("instrument %q: %w", e.desc.Name, err))
		}
		ret = append(ret, ss...)
	}
	return ret, errors.Join(errs...)
}

// Subscription is a registered observer of a meter. Pulls made through it
// with CollectSubscribed fail with ErrUnsubscribed once it is released.
type Subscription struct {
	m    *Meter
	id   uint64
	once sync.Once
}

// Subscribe registers an observer of the meter.
func (m *Meter) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	m.subs[m.nextSub] = struct{}{}
	return &Subscription{m: m, id: m.nextSub}
}

func (s *Subscription) Active() bool {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	_, ok := s.m.subs[s.id]
	return ok
}

// Unsubscribe releases the subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.m.mu.Lock()
		delete(s.m.subs, s.id)
		s.m.mu.Unlock()
	})
}

// CollectSubscribed is Collect on behalf of a subscriber.
func CollectSubscribed[T Number](ctx context.Context, sub *Subscription, fn func(name string, ms []Measurement[T])) error {
	if !sub.Active() {
		return ErrUnsubscribed
	}
	return Collect(ctx, sub.m, fn)
}

func (m *Meter) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}
