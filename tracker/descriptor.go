package tracker

import (
	"fmt"
	"maps"
)

// Enablement tells which trackers are sampled.
// A tracker missing from the map is disabled.
type Enablement map[Tracker]bool

func (e Enablement) Enabled(t Tracker) bool {
	return e[t]
}

// AnyEnabled reports whether at least one tracker of the descriptor is enabled.
func (e Enablement) AnyEnabled(d Descriptor) bool {
	for _, l := range d {
		if e[l.Tracker] {
			return true
		}
	}
	return false
}

func (e Enablement) Clone() Enablement {
	if e == nil {
		return Enablement{}
	}
	return maps.Clone(e)
}

func AllEnabled() Enablement {
	ret := make(Enablement, len(names))
	for _, t := range All() {
		ret[t] = true
	}
	return ret
}

// ParseEnablement converts configuration keys into an Enablement.
func ParseEnablement(m map[string]bool) (Enablement, error) {
	ret := make(Enablement, len(m))
	for k, v := range m {
		t, err := Parse(k)
		if err != nil {
			return nil, err
		}
		ret[t] = v
	}
	return ret, nil
}

// Label attaches a tag value to a tracker.
type Label struct {
	Tracker Tracker `toml:"tracker" yaml:"tracker" json:"tracker"`
	Value   string  `toml:"value" yaml:"value" json:"value"`
}

// Descriptor is the ordered list of trackers of one metric group
// with their tag values. Measurements are emitted in this order.
type Descriptor []Label

var (
	DefaultLoadAverageTags = Descriptor{
		{LoadAverage1m, "1m"},
		{LoadAverage5m, "5m"},
		{LoadAverage15m, "15m"},
	}
	DefaultMemoryTags = Descriptor{
		{FreeMem, "free"},
		{TotalMem, "total"},
	}
	DefaultDiskTags = Descriptor{
		{DriveUsedBytes, "used"},
		{DriveTotalBytes, "total"},
	}
)

// Validate checks that every label refers to one of the allowed trackers
// and that no tracker appears twice.
func (d Descriptor) Validate(allowed ...Tracker) error {
	seen := make(map[Tracker]struct{}, len(d))
	for _, l := range d {
		if !l.Tracker.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownTracker, int(l.Tracker))
		}
		if _, dup := seen[l.Tracker]; dup {
			return fmt.Errorf("tracker %s listed twice", l.Tracker)
		}
		seen[l.Tracker] = struct{}{}
		ok := false
		for _, a := range allowed {
			if a == l.Tracker {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("tracker %s does not belong to this metric", l.Tracker)
		}
	}
	return nil
}

func (d Descriptor) Clone() Descriptor {
	return append(Descriptor(nil), d...)
}
