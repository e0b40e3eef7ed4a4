// Package provider reads raw host metrics from the operating system.
package provider

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

type LoadAverages struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

type Memory struct {
	Free  uint64
	Total uint64
}

type DiskUsage struct {
	Total uint64
	Used  uint64
}

// Capabilities tells which facilities the platform offers.
type Capabilities struct {
	LoadAverage bool
	CPU         bool
}

// Provider is the set of OS readings the sampler depends on.
// Readings the platform cannot offer return errors.ErrUnsupported.
type Provider interface {
	Capabilities() Capabilities
	LoadAverages(ctx context.Context) (LoadAverages, error)
	CPUPercent(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (Memory, error)
	DiskUsage(ctx context.Context, path string) (DiskUsage, error)
	Volume(ctx context.Context, path string) (string, error)
}

// Host reads the local machine through gopsutil.
type Host struct {
	caps Capabilities
}

var _ Provider = (*Host)(nil)

func NewHost() *Host {
	return &Host{caps: platformCapabilities}
}

func (h *Host) Capabilities() Capabilities {
	return h.caps
}

func (h *Host) LoadAverages(ctx context.Context) (LoadAverages, error) {
	if !h.caps.LoadAverage {
		return LoadAverages{}, errors.ErrUnsupported
	}
	stat, err := load.AvgWithContext(ctx)
	if err != nil {
		return LoadAverages{}, err
	}
	return LoadAverages{Load1: stat.Load1, Load5: stat.Load5, Load15: stat.Load15}, nil
}

// CPUPercent returns the system-wide utilization since the previous call.
func (h *Host) CPUPercent(ctx context.Context) (float64, error) {
	if !h.caps.CPU {
		return 0, errors.ErrUnsupported
	}
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, errors.New("no cpu percent reported")
	}
	return pct[0], nil
}

func (h *Host) Memory(ctx context.Context) (Memory, error) {
	stat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, err
	}
	free := stat.Available
	if free == 0 {
		free = stat.Free
	}
	return Memory{Free: free, Total: stat.Total}, nil
}

func (h *Host) DiskUsage(ctx context.Context, path string) (DiskUsage, error) {
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return DiskUsage{}, err
	}
	return DiskUsage{Total: du.Total, Used: du.Used}, nil
}

// Volume resolves the mount point holding path.
func (h *Host) Volume(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return "", err
	}
	best := ""
	for _, p := range parts {
		if p.Fstype == "autofs" {
			continue
		}
		if !withinMount(abs, p.Mountpoint) {
			continue
		}
		if len(p.Mountpoint) > len(best) {
			best = p.Mountpoint
		}
	}
	if best == "" {
		slog.Debug("[provider] no mount point found", "path", abs)
		return "", os.ErrNotExist
	}
	return best, nil
}

func withinMount(path, mount string) bool {
	if mount == "" {
		return false
	}
	if runtime.GOOS == "windows" {
		path, mount = strings.ToLower(path), strings.ToLower(mount)
	}
	if path == mount {
		return true
	}
	if !strings.HasSuffix(mount, string(filepath.Separator)) {
		mount += string(filepath.Separator)
	}
	return strings.HasPrefix(path, mount)
}
