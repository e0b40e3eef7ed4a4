package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/OutOfBedlam/sysmetrics/output/ndjson"
	"github.com/OutOfBedlam/sysmetrics/registry"
	"github.com/OutOfBedlam/sysmetrics/sampler"
	"github.com/OutOfBedlam/sysmetrics/tracker"
	"github.com/stretchr/testify/require"
)

const memOnlyConfig = `
[telemetry]
  sampling_interval = "1s"
  failure_policy = "stale"

[data]
  sampling_interval = "100ms"

[[metric.mem]]
  name = "test-mem"
`

func TestDefaultConfig(t *testing.T) {
	cfg, err := ParseConfig(defaultConfigContent, registry.FormatTOML)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.Telemetry.SamplingInterval)
	require.Equal(t, ":3000", cfg.Http.Listen)
	require.Len(t, cfg.Data.Timeseries, 3)

	meter := instrument.NewMeter(t.Name())
	s, err := cfg.NewSampler(meter)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, s.Interval())

	names := []string{}
	for _, d := range meter.Descriptors() {
		names = append(names, d.Name)
	}
	require.ElementsMatch(t, []string{"sys-cpu", "sys-disk-bytes", "sys-load-avg", "sys-mem-bytes"}, names)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(memOnlyConfig, registry.FormatTOML)
	require.NoError(t, err)
	require.Equal(t, "stale", cfg.Telemetry.FailurePolicy)
	// the dashboard collector never samples faster than once a second
	require.Equal(t, time.Second, cfg.Data.SamplingInterval)

	yamlConfig := `
telemetry:
  sampling_interval: 5s
  trackers:
    FreeMem: true
    TotalMem: false
http:
  listen: "127.0.0.1:0"
metric:
  mem:
    - name: yaml-mem
`
	cfg, err = ParseConfig(yamlConfig, registry.FormatYAML)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.Telemetry.SamplingInterval)
	require.Equal(t, "127.0.0.1:0", cfg.Http.Listen)
	require.Equal(t, "/metrics", cfg.Http.MetricsPath)

	meter := instrument.NewMeter(t.Name())
	_, err = cfg.NewSampler(meter)
	require.NoError(t, err)
	require.Len(t, meter.Descriptors(), 1)
	require.Equal(t, "yaml-mem-bytes", meter.Descriptors()[0].Name)

	_, err = ParseConfig("[telemetry\n", registry.FormatTOML)
	require.Error(t, err)
}

func TestTrackersTableReplacesDefaults(t *testing.T) {
	tests := []struct {
		name    string
		format  registry.Format
		content string
	}{
		{"toml", registry.FormatTOML, `
[telemetry.trackers]
  FreeMem = true

[[metric.mem]]
  name = "only-free"
`},
		{"yaml", registry.FormatYAML, `
telemetry:
  trackers:
    FreeMem: true
metric:
  mem:
    - name: only-free
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(tt.content, tt.format)
			require.NoError(t, err)
			require.Equal(t, map[string]bool{"FreeMem": true}, cfg.Telemetry.Trackers)

			meter := instrument.NewMeter(t.Name())
			s, err := cfg.NewSampler(meter)
			require.NoError(t, err)
			require.True(t, s.Enabled(tracker.FreeMem))
			require.False(t, s.Enabled(tracker.TotalMem))
			require.False(t, s.Enabled(tracker.Cpu))
			require.False(t, s.Enabled(tracker.LoadAverage1m))
			require.False(t, s.Enabled(tracker.DriveUsedBytes))

			var kinds []string
			err = instrument.Collect(context.Background(), meter, func(name string, ms []instrument.Measurement[int64]) {
				for _, m := range ms {
					kinds = append(kinds, m.Tags[0].Value)
				}
			})
			require.NoError(t, err)
			require.Equal(t, []string{"free"}, kinds)
		})
	}

	// without a trackers table every tracker stays enabled
	cfg, err := ParseConfig(memOnlyConfig, registry.FormatTOML)
	require.NoError(t, err)
	require.Len(t, cfg.Telemetry.Trackers, len(tracker.All()))
}

func TestObserveFormats(t *testing.T) {
	cfg, err := ParseConfig(memOnlyConfig, registry.FormatTOML)
	require.NoError(t, err)
	meter := instrument.NewMeter(t.Name())
	_, err = cfg.NewSampler(meter)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, observe(context.Background(), meter, "json", buf))
	var ss struct {
		Instruments []struct {
			Name         string `json:"name"`
			Measurements []struct {
				Value int64 `json:"value"`
			} `json:"measurements"`
		} `json:"instruments"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ss))
	require.Len(t, ss.Instruments, 1)
	require.Equal(t, "test-mem-bytes", ss.Instruments[0].Name)
	require.Len(t, ss.Instruments[0].Measurements, 2)
	require.Positive(t, ss.Instruments[0].Measurements[1].Value)

	buf.Reset()
	require.NoError(t, observe(context.Background(), meter, "ndjson", buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var rec ndjson.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "test-mem-bytes", rec.Name)
	require.Equal(t, []instrument.Tag{{Key: "kind", Value: "free"}}, rec.Tags)

	buf.Reset()
	require.NoError(t, observe(context.Background(), meter, "otlp", buf))
	require.Contains(t, buf.String(), "test-mem-bytes")

	require.Error(t, observe(context.Background(), meter, "table", buf))
}

func TestGenConfigCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, newRootCmd(buf).Run(context.Background(), []string{name, "gen-config", "-"}))
	require.Contains(t, buf.String(), "[[metric.load]]")
	require.Contains(t, buf.String(), "[telemetry]")

	cfg, err := ParseConfig(buf.String(), registry.FormatTOML)
	require.NoError(t, err)
	require.Equal(t, sampler.FailureOmit.String(), cfg.Telemetry.FailurePolicy)
	meter := instrument.NewMeter(t.Name())
	_, err = cfg.NewSampler(meter)
	require.NoError(t, err)
	require.Len(t, meter.Descriptors(), 4)
}

func TestObserveCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	err := newRootCmd(buf).Run(context.Background(), []string{name, "--log-level", "error", "observe", "--format", "yaml"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "sys-mem-bytes")

	err = newRootCmd(buf).Run(context.Background(), []string{name, "--log-level", "loud", "observe"})
	require.Error(t, err)
}
