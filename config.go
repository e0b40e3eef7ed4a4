package main

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/OutOfBedlam/metric"
	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/OutOfBedlam/sysmetrics/registry"
	"github.com/OutOfBedlam/sysmetrics/sampler"
)

//go:generate go run . gen-config ./sysmetrics-default.conf

//go:embed "sysmetrics-default.conf"
var defaultConfigContent string

type Config struct {
	Telemetry registry.Telemetry `toml:"telemetry" yaml:"telemetry"`
	Http      HttpConfig         `toml:"http" yaml:"http"`
	Data      DataConfig         `toml:"data" yaml:"data"`
	Export    ExportConfig       `toml:"export" yaml:"export"`

	content string
	format  registry.Format
}

type HttpConfig struct {
	Listen        string `toml:"listen" yaml:"listen"`
	AdvAddr       string `toml:"adv_addr" yaml:"adv_addr"`
	MetricsPath   string `toml:"metrics" yaml:"metrics"`
	DashboardPath string `toml:"dashboard" yaml:"dashboard"`
	Namespace     string `toml:"namespace" yaml:"namespace"`
}

// DataConfig drives the dashboard collector, which keeps rolling series of
// every sample in memory.
type DataConfig struct {
	SamplingInterval time.Duration      `toml:"sampling_interval" yaml:"sampling_interval"`
	InputBuffer      int                `toml:"input_buffer" yaml:"input_buffer"`
	Prefix           string             `toml:"prefix" yaml:"prefix"`
	Timeseries       []TimeseriesConfig `toml:"timeseries" yaml:"timeseries"`
}

type TimeseriesConfig struct {
	Name     string        `toml:"name" yaml:"name"`
	Interval time.Duration `toml:"interval" yaml:"interval"`
	MaxCount int           `toml:"length" yaml:"length"`
}

// ExportConfig pushes NDJSON lines to DestUrl when it is set.
type ExportConfig struct {
	Interval time.Duration `toml:"interval" yaml:"interval"`
	DestUrl  string        `toml:"dest_url" yaml:"dest_url"`
	Includes []string      `toml:"includes" yaml:"includes"`
}

func DefaultConfig() Config {
	return Config{
		Telemetry: registry.DefaultTelemetry(),
		Http: HttpConfig{
			Listen:        ":3000",
			AdvAddr:       "http://localhost:3000",
			MetricsPath:   "/metrics",
			DashboardPath: "/dashboard",
		},
		Data: DataConfig{
			SamplingInterval: 10 * time.Second,
			InputBuffer:      100,
			Timeseries: []TimeseriesConfig{
				{Name: "15m", Interval: 10 * time.Second, MaxCount: 90},
				{Name: "1h30m", Interval: time.Minute, MaxCount: 90},
				{Name: "2d", Interval: 30 * time.Minute, MaxCount: 96},
			},
		},
		Export: ExportConfig{
			Interval: time.Minute,
			Includes: []string{},
		},
	}
}

// LoadConfig reads filename, or the embedded default config when it is empty.
func LoadConfig(filename string) (*Config, error) {
	content := defaultConfigContent
	format := registry.FormatTOML
	if filename != "" {
		b, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		content = string(b)
		format = registry.FormatOf(filename)
	}
	return ParseConfig(content, format)
}

func ParseConfig(content string, format registry.Format) (*Config, error) {
	cfg := DefaultConfig()
	// Both decoders merge into an existing map. A trackers table replaces the
	// defaults, so a tracker it leaves out stays disabled.
	cfg.Telemetry.Trackers = nil
	if err := registry.Decode(content, format, &cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if cfg.Telemetry.Trackers == nil {
		cfg.Telemetry.Trackers = registry.DefaultTelemetry().Trackers
	}
	cfg.content = content
	cfg.format = format
	if cfg.Data.SamplingInterval < time.Second {
		cfg.Data.SamplingInterval = time.Second
	}
	return &cfg, nil
}

// NewSampler builds the sampler and registers every configured metric group
// on meter.
func (cfg *Config) NewSampler(meter *instrument.Meter) (*sampler.SystemMetrics, error) {
	s, err := cfg.Telemetry.NewSampler(meter)
	if err != nil {
		return nil, err
	}
	if err := registry.Load(s, cfg.content, cfg.format); err != nil {
		return nil, err
	}
	return s, nil
}

func (cfg *Config) CollectorOptions() []metric.CollectorOption {
	options := []metric.CollectorOption{
		metric.WithSamplingInterval(cfg.Data.SamplingInterval),
		metric.WithInputBuffer(cfg.Data.InputBuffer),
		metric.WithPrefix(cfg.Data.Prefix),
	}
	for _, ts := range cfg.Data.Timeseries {
		if ts.Interval < time.Second || ts.MaxCount <= 1 {
			continue
		}
		options = append(options, metric.WithSeries(ts.Name, ts.Interval, ts.MaxCount))
	}
	return options
}

func genConfig(w io.Writer) error {
	cfg := DefaultConfig()
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return err
	}
	fmt.Fprintln(w)
	registry.GenerateSampleConfig(w)
	return nil
}
