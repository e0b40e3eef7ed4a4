package instrument

import (
	"context"
	"fmt"
)

// Kind is the numeric type carried by an instrument.
type Kind uint8

const (
	Float32 Kind = iota + 1
	Float64
	Int64
)

func (k Kind) String() string {
	switch k {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

type Number interface {
	float32 | float64 | int64
}

// KindOf returns the Kind that matches the type parameter.
func KindOf[T Number]() Kind {
	var v T
	switch any(v).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		return Int64
	}
}

// Tag is a single key/value label attached to a measurement.
type Tag struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Measurement is one value observed by one pull of one instrument.
type Measurement[T Number] struct {
	Value T
	Tags  []Tag
}

type Observer[T Number] interface {
	Observe(value T, tags ...Tag)
}

// Callback produces the current measurements of an observable instrument.
type Callback[T Number] func(ctx context.Context, o Observer[T]) error

type Descriptor struct {
	Name        string `json:"name" yaml:"name"`
	Kind        Kind   `json:"-" yaml:"-"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

type Option func(*Descriptor)

func WithDescription(desc string) Option {
	return func(d *Descriptor) { d.Description = desc }
}

func WithUnit(unit string) Option {
	return func(d *Descriptor) { d.Unit = unit }
}

// Sample is a measurement with its numeric type erased, as handed to exporters.
type Sample struct {
	Descriptor
	Float float64
	Int   int64
	Tags  []Tag
}

// Float64 returns the value as float64 regardless of the instrument kind.
func (s Sample) Float64() float64 {
	if s.Kind == Int64 {
		return float64(s.Int)
	}
	return s.Float
}

type recorder[T Number] struct {
	ms []Measurement[T]
}

func (r *recorder[T]) Observe(value T, tags ...Tag) {
	var cp []Tag
	if len(tags) > 0 {
		cp = make([]Tag, len(tags))
		copy(cp, tags)
	}
	r.ms = append(r.ms, Measurement[T]{Value: value, Tags: cp})
}
