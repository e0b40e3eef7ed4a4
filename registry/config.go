package registry

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/OutOfBedlam/sysmetrics/sampler"
	"github.com/OutOfBedlam/sysmetrics/tracker"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the config format from a file name; TOML unless it ends
// with .yaml or .yml.
func FormatOf(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Telemetry is the [telemetry] section of the config file.
type Telemetry struct {
	SamplingInterval time.Duration   `toml:"sampling_interval" yaml:"sampling_interval"`
	FailurePolicy    string          `toml:"failure_policy" yaml:"failure_policy"`
	Trackers         map[string]bool `toml:"trackers" yaml:"trackers"`
}

func DefaultTelemetry() Telemetry {
	trackers := make(map[string]bool)
	for _, t := range tracker.All() {
		trackers[t.String()] = true
	}
	return Telemetry{
		SamplingInterval: 30 * time.Second,
		FailurePolicy:    sampler.FailureOmit.String(),
		Trackers:         trackers,
	}
}

// NewSampler builds the sampler described by the section.
func (t Telemetry) NewSampler(meter *instrument.Meter, opts ...sampler.Option) (*sampler.SystemMetrics, error) {
	enabled, err := tracker.ParseEnablement(t.Trackers)
	if err != nil {
		return nil, fmt.Errorf("telemetry.trackers: %w", err)
	}
	policy, err := sampler.ParseFailurePolicy(t.FailurePolicy)
	if err != nil {
		return nil, fmt.Errorf("telemetry.failure_policy: %w", err)
	}
	opts = append([]sampler.Option{sampler.WithFailurePolicy(policy)}, opts...)
	return sampler.New(meter, t.SamplingInterval, enabled, opts...), nil
}

// Decode reads a whole config document into v.
func Decode(content string, format Format, v any) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal([]byte(content), v)
	default:
		_, err := toml.Decode(content, v)
		return err
	}
}

// Load registers the metric groups of a config document on the sampler.
func Load(s *sampler.SystemMetrics, content string, format Format) error {
	if format == FormatYAML {
		return LoadConfigYAML(s, content)
	}
	return LoadConfig(s, content)
}
