package provider

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostCapabilities(t *testing.T) {
	caps := NewHost().Capabilities()
	if runtime.GOOS == "windows" {
		require.Equal(t, Capabilities{CPU: true}, caps)
	} else {
		require.Equal(t, Capabilities{LoadAverage: true}, caps)
	}
}

func TestHostReadings(t *testing.T) {
	ctx := context.Background()
	h := NewHost()

	la, err := h.LoadAverages(ctx)
	if h.Capabilities().LoadAverage {
		require.NoError(t, err)
		require.GreaterOrEqual(t, la.Load1, 0.0)
		require.GreaterOrEqual(t, la.Load15, 0.0)
	} else {
		require.ErrorIs(t, err, errors.ErrUnsupported)
	}

	pct, err := h.CPUPercent(ctx)
	if h.Capabilities().CPU {
		require.NoError(t, err)
		require.GreaterOrEqual(t, pct, 0.0)
	} else {
		require.ErrorIs(t, err, errors.ErrUnsupported)
	}

	m, err := h.Memory(ctx)
	require.NoError(t, err)
	require.Greater(t, m.Total, uint64(0))
	require.Greater(t, m.Free, uint64(0))
	require.LessOrEqual(t, m.Free, m.Total)

	du, err := h.DiskUsage(ctx, ".")
	require.NoError(t, err)
	require.LessOrEqual(t, du.Used, du.Total)

	_, err = h.DiskUsage(ctx, filepath.Join(t.TempDir(), "missing", "dir"))
	require.Error(t, err)
}

func TestHostVolume(t *testing.T) {
	vol, err := NewHost().Volume(context.Background(), ".")
	if err != nil {
		// containers may hide the mount table
		t.Skipf("mount table unavailable: %v", err)
	}
	require.NotEmpty(t, vol)
}

func TestWithinMount(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	tests := []struct {
		path, mount string
		expect      bool
	}{
		{"/home/user", "/", true},
		{"/home/user", "/home", true},
		{"/home", "/home", true},
		{"/homework", "/home", false},
		{"/var/lib", "/home/", false},
		{"/var", "", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expect, withinMount(tt.path, tt.mount), "%s in %s", tt.path, tt.mount)
	}
}
