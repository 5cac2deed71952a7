// Package metrics logs periodic system resource snapshots during long
// conversion runs, so stalls can be attributed to CPU or memory.
package metrics

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot is one observation of system state.
type Snapshot struct {
	CPUPercent        float64 // system-wide, 0-100
	ProcessCPUPercent float64 // this process, per-core (can exceed 100)
	MemoryUsedGB      float64
	MemoryPercent     float64
	ProcessRSSGB      float64
	Timestamp         time.Time
}

// Collector periodically samples and logs system metrics.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process
}

// NewCollector creates a collector; intervals under a second fall back to
// 30 seconds.
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{interval: interval, logger: logger, proc: proc}
}

// Start samples until the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect() // initialize CPU counters
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("metrics collection stopped")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	snap := Snapshot{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			snap.ProcessCPUPercent = pct
		}
		if memInfo, err := c.proc.MemoryInfo(); err == nil && memInfo != nil {
			snap.ProcessRSSGB = float64(memInfo.RSS) / (1 << 30)
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryUsedGB = float64(vm.Used) / (1 << 30)
		snap.MemoryPercent = vm.UsedPercent
	}

	c.logger.Info("system metrics",
		zap.Float64("cpu_pct", snap.CPUPercent),
		zap.Float64("proc_cpu_pct", snap.ProcessCPUPercent),
		zap.Float64("mem_used_gb", snap.MemoryUsedGB),
		zap.Float64("mem_pct", snap.MemoryPercent),
		zap.Float64("proc_rss_gb", snap.ProcessRSSGB),
	)
}
