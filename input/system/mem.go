package system

import (
	_ "embed"

	"github.com/OutOfBedlam/sysmetrics/registry"
	"github.com/OutOfBedlam/sysmetrics/sampler"
	"github.com/OutOfBedlam/sysmetrics/tracker"
)

func init() {
	registry.Register("mem", (*Memory)(nil))
}

//go:embed "mem.toml"
var memSampleConfig string

func (ms *Memory) SampleConfig() string {
	return memSampleConfig
}

var _ registry.Group = (*Memory)(nil)

type Memory struct {
	Name string          `toml:"name" yaml:"name"` // published as "<name>-bytes"
	Tags []tracker.Label `toml:"tags" yaml:"tags"`
}

func (ms *Memory) Init() error {
	if ms.Name == "" {
		ms.Name = "sys-mem"
	}
	if len(ms.Tags) == 0 {
		ms.Tags = tracker.DefaultMemoryTags.Clone()
	}
	return nil
}

func (ms *Memory) Create(s *sampler.SystemMetrics) error {
	return s.CreateMemoryMetric(ms.Name, ms.Tags)
}
