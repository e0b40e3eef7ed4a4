package system

import (
	_ "embed"

	"github.com/OutOfBedlam/sysmetrics/registry"
	"github.com/OutOfBedlam/sysmetrics/sampler"
	"github.com/OutOfBedlam/sysmetrics/tracker"
)

func init() {
	registry.Register("load", (*Load)(nil))
}

//go:embed "load.toml"
var loadSampleConfig string

func (l *Load) SampleConfig() string {
	return loadSampleConfig
}

var _ registry.Group = (*Load)(nil)

type Load struct {
	Name string          `toml:"name" yaml:"name"`
	Tags []tracker.Label `toml:"tags" yaml:"tags"` // empty for 1m, 5m, 15m
}

func (l *Load) Init() error {
	if l.Name == "" {
		l.Name = "sys-load-avg"
	}
	if len(l.Tags) == 0 {
		l.Tags = tracker.DefaultLoadAverageTags.Clone()
	}
	return nil
}

func (l *Load) Create(s *sampler.SystemMetrics) error {
	return s.CreateLoadAverageMetric(l.Name, l.Tags)
}
