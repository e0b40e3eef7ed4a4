package system

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OutOfBedlam/sysmetrics/registry"
	"github.com/OutOfBedlam/sysmetrics/sampler"
	"github.com/OutOfBedlam/sysmetrics/tracker"
)

func init() {
	registry.Register("disk", (*Disk)(nil))
}

//go:embed "disk.toml"
var diskSampleConfig string

func (d *Disk) SampleConfig() string {
	return diskSampleConfig
}

var _ registry.Group = (*Disk)(nil)

type Disk struct {
	Name string          `toml:"name" yaml:"name"` // published as "<name>-bytes"
	Path string          `toml:"path" yaml:"path"`
	Tags []tracker.Label `toml:"tags" yaml:"tags"`
}

func (d *Disk) Init() error {
	if d.Name == "" {
		d.Name = "sys-disk"
	}
	if d.Path == "" {
		d.Path = "."
	}
	// If there's a host mount prefix, the host disks are mounted below it
	// when running in a container.
	if prefix := os.Getenv("HOST_MOUNT_PREFIX"); prefix != "" && filepath.IsAbs(d.Path) && !strings.HasPrefix(d.Path, prefix) {
		d.Path = filepath.Join(prefix, d.Path)
	}
	if len(d.Tags) == 0 {
		d.Tags = tracker.DefaultDiskTags.Clone()
	}
	if _, err := os.Stat(d.Path); err != nil {
		return fmt.Errorf("disk path %q: %w", d.Path, err)
	}
	return nil
}

func (d *Disk) Create(s *sampler.SystemMetrics) error {
	return s.CreateDiskMetric(d.Name, d.Path, d.Tags)
}
