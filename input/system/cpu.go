package system

import (
	_ "embed"

	"github.com/OutOfBedlam/sysmetrics/registry"
	"github.com/OutOfBedlam/sysmetrics/sampler"
)

func init() {
	registry.Register("cpu", (*CPU)(nil))
}

//go:embed "cpu.toml"
var cpuSampleConfig string

func (c *CPU) SampleConfig() string {
	return cpuSampleConfig
}

var _ registry.Group = (*CPU)(nil)

type CPU struct {
	Name string `toml:"name" yaml:"name"`
}

func (c *CPU) Init() error {
	if c.Name == "" {
		c.Name = "sys-cpu"
	}
	return nil
}

func (c *CPU) Create(s *sampler.SystemMetrics) error {
	return s.CreateCPUMetric(c.Name)
}
