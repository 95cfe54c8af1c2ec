package monitor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

type SystemStats struct {
	CPUPercent    float64     `json:"cpu_percent"`
	MemoryPercent float64     `json:"memory_percent"`
	DiskPercent   float64     `json:"disk_percent"`
	LoadAverage   *[3]float64 `json:"load_average"`
}

type SystemSampler interface {
	Sample(ctx context.Context) (SystemStats, error)
}

// HostSampler reads host utilisation through gopsutil.
type HostSampler struct {
	DiskPath    string
	CPUInterval time.Duration
}

func NewHostSampler(diskPath string) *HostSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostSampler{DiskPath: diskPath, CPUInterval: time.Second}
}

func (h *HostSampler) Sample(ctx context.Context) (SystemStats, error) {
	var s SystemStats

	pct, err := cpu.PercentWithContext(ctx, h.CPUInterval, false)
	if err != nil {
		return s, errors.Wrap(err, "sample cpu")
	}
	if len(pct) > 0 {
		s.CPUPercent = pct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, errors.Wrap(err, "sample memory")
	}
	s.MemoryPercent = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, h.DiskPath)
	if err != nil {
		return s, errors.Wrapf(err, "sample disk %s", h.DiskPath)
	}
	s.DiskPercent = du.UsedPercent

	// not every platform reports load
	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.LoadAverage = &[3]float64{avg.Load1, avg.Load5, avg.Load15}
	}
	return s, nil
}
