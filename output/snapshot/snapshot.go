// Package snapshot renders the result of a single pull.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/OutOfBedlam/sysmetrics/export"
	"github.com/OutOfBedlam/sysmetrics/instrument"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format: %q", s)
}

type Snapshot struct {
	Meter       string        `json:"meter" yaml:"meter"`
	Time        time.Time     `json:"time" yaml:"time"`
	Instruments []*Instrument `json:"instruments" yaml:"instruments"`
}

type Instrument struct {
	Name         string        `json:"name" yaml:"name"`
	Kind         string        `json:"kind" yaml:"kind"`
	Unit         string        `json:"unit,omitempty" yaml:"unit,omitempty"`
	Measurements []Measurement `json:"measurements" yaml:"measurements"`
}

type Measurement struct {
	Value any              `json:"value" yaml:"value"`
	Tags  []instrument.Tag `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// New groups samples by instrument, keeping the order they were pulled in.
func New(meter string, ts time.Time, samples []instrument.Sample) *Snapshot {
	ss := &Snapshot{Meter: meter, Time: ts, Instruments: []*Instrument{}}
	byName := make(map[string]*Instrument)
	for _, s := range samples {
		in, ok := byName[s.Name]
		if !ok {
			in = &Instrument{Name: s.Name, Kind: s.Kind.String(), Unit: s.Unit, Measurements: []Measurement{}}
			byName[s.Name] = in
			ss.Instruments = append(ss.Instruments, in)
		}
		var v any = s.Float
		if s.Kind == instrument.Int64 {
			v = s.Int
		}
		in.Measurements = append(in.Measurements, Measurement{Value: v, Tags: s.Tags})
	}
	return ss
}

// Writer serializes snapshots to w in the chosen format.
type Writer struct {
	format Format
	w      io.Writer
	meter  string
	now    func() time.Time
}

var _ export.Output = (*Writer)(nil)

func NewWriter(format Format, w io.Writer, meter string) *Writer {
	return &Writer{format: format, w: w, meter: meter, now: time.Now}
}

func (w *Writer) Serialize(ss *Snapshot) error {
	switch w.format {
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(ss); err != nil {
			return fmt.Errorf("failed to serialize to yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ss); err != nil {
			return fmt.Errorf("failed to serialize to json: %w", err)
		}
		return nil
	}
}

func (w *Writer) Export(_ context.Context, samples []instrument.Sample) error {
	return w.Serialize(New(w.meter, w.now(), samples))
}
