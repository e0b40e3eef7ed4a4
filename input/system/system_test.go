package system

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/OutOfBedlam/sysmetrics/registry"
	"github.com/OutOfBedlam/sysmetrics/sampler"
	"github.com/OutOfBedlam/sysmetrics/tracker"
	"github.com/stretchr/testify/require"
)

func TestSampleConfigLoads(t *testing.T) {
	w := &bytes.Buffer{}
	registry.GenerateSampleConfig(w)

	meter := instrument.NewMeter(t.Name())
	s := sampler.New(meter, time.Second, tracker.AllEnabled())
	require.NoError(t, registry.LoadConfig(s, w.String()))

	got := map[string]instrument.Kind{}
	for _, d := range meter.Descriptors() {
		got[d.Name] = d.Kind
	}
	require.Equal(t, map[string]instrument.Kind{
		"sys-cpu":        instrument.Float32,
		"sys-disk-bytes": instrument.Int64,
		"sys-load-avg":   instrument.Float64,
		"sys-mem-bytes":  instrument.Int64,
	}, got)
}

func TestDefaults(t *testing.T) {
	l := &Load{}
	require.NoError(t, l.Init())
	require.Equal(t, "sys-load-avg", l.Name)
	require.Equal(t, tracker.DefaultLoadAverageTags, tracker.Descriptor(l.Tags))

	m := &Memory{Name: "mem", Tags: []tracker.Label{{Tracker: tracker.TotalMem, Value: "all"}}}
	require.NoError(t, m.Init())
	require.Len(t, m.Tags, 1)

	t.Setenv("HOST_MOUNT_PREFIX", "")
	d := &Disk{}
	require.NoError(t, d.Init())
	require.Equal(t, ".", d.Path)
	require.Equal(t, tracker.DefaultDiskTags, tracker.Descriptor(d.Tags))

	missing := &Disk{Path: filepath.Join(t.TempDir(), "missing")}
	require.Error(t, missing.Init())
}

func TestHostMountPrefix(t *testing.T) {
	prefix := t.TempDir()
	t.Setenv("HOST_MOUNT_PREFIX", prefix)
	d := &Disk{Path: "/"}
	require.NoError(t, d.Init())
	require.Equal(t, prefix, d.Path)
}

func TestDiskEmitsUsedThenTotal(t *testing.T) {
	meter := instrument.NewMeter(t.Name())
	s := sampler.New(meter, time.Second, tracker.AllEnabled())
	content := `
		[[metric.disk]]
			name = "data"
			path = "."
	`
	require.NoError(t, registry.LoadConfig(s, content))

	var got []instrument.Measurement[int64]
	err := instrument.Collect(context.Background(), meter, func(name string, ms []instrument.Measurement[int64]) {
		if name == "data-bytes" {
			got = ms
		}
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, instrument.Tag{Key: "kind", Value: "used"}, got[0].Tags[0])
	require.Equal(t, instrument.Tag{Key: "kind", Value: "total"}, got[1].Tags[0])
	require.LessOrEqual(t, got[0].Value, got[1].Value)
}
