package tracker

import (
	"errors"
	"fmt"
	"strings"
)

// Tracker identifies one independently measured system quantity.
type Tracker int

const (
	LoadAverage1m Tracker = iota + 1
	LoadAverage5m
	LoadAverage15m
	Cpu
	FreeMem
	TotalMem
	DriveTotalBytes
	DriveUsedBytes
)

var names = map[Tracker]string{
	LoadAverage1m:   "LoadAverage1m",
	LoadAverage5m:   "LoadAverage5m",
	LoadAverage15m:  "LoadAverage15m",
	Cpu:             "Cpu",
	FreeMem:         "FreeMem",
	TotalMem:        "TotalMem",
	DriveTotalBytes: "DriveTotalBytes",
	DriveUsedBytes:  "DriveUsedBytes",
}

// All returns every tracker in declaration order.
func All() []Tracker {
	return []Tracker{
		LoadAverage1m, LoadAverage5m, LoadAverage15m,
		Cpu,
		FreeMem, TotalMem,
		DriveTotalBytes, DriveUsedBytes,
	}
}

var ErrUnknownTracker = errors.New("unknown tracker")

func (t Tracker) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("Tracker(%d)", int(t))
}

func (t Tracker) Valid() bool {
	_, ok := names[t]
	return ok
}

// Parse accepts the tracker name in any letter case, with or without
// underscores, e.g. "LoadAverage1m", "load_average_1m", "drive_used_bytes".
func Parse(s string) (Tracker, error) {
	key := normalize(s)
	for t, n := range names {
		if normalize(n) == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTracker, s)
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToLower(strings.TrimSpace(s))
}

func (t Tracker) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTracker, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tracker) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
