package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

const gib = 1 << 30

// HostSample is one reading of host usage. Rates cover the time since the
// previous reading and are zero on the first one.
type HostSample struct {
	SystemCPU     float64
	ProcessCPU    float64
	IOWait        float64
	MemoryPercent float64
	MemoryUsed    uint64
	DiskReadBps   float64
	DiskWriteBps  float64
	DiskBusy      float64
}

var (
	systemCPUDesc  = prometheus.NewDesc("osm2voxel_system_cpu_percent", "System-wide CPU usage", nil, nil)
	processCPUDesc = prometheus.NewDesc("osm2voxel_process_cpu_percent", "CPU usage of this process", nil, nil)
	iowaitDesc     = prometheus.NewDesc("osm2voxel_iowait_percent", "CPU time spent waiting for I/O", nil, nil)
	memPercentDesc = prometheus.NewDesc("osm2voxel_memory_used_percent", "System memory in use", nil, nil)
	memBytesDesc   = prometheus.NewDesc("osm2voxel_memory_used_bytes", "System memory in use", nil, nil)
	diskReadDesc   = prometheus.NewDesc("osm2voxel_disk_read_bytes_per_second", "Disk read throughput", nil, nil)
	diskWriteDesc  = prometheus.NewDesc("osm2voxel_disk_write_bytes_per_second", "Disk write throughput", nil, nil)
	diskBusyDesc   = prometheus.NewDesc("osm2voxel_disk_busy_percent", "Share of time the disks were busy", nil, nil)
)

// HostCollector samples host usage on demand. It is a prometheus.Collector,
// so every scrape takes a fresh sample, and Report logs the same sample
// together with the progress of the run.
type HostCollector struct {
	run  *RunProgress
	proc *process.Process

	mu       sync.Mutex
	cpuPrev  *cpu.TimesStat
	diskPrev map[string]disk.IOCountersStat
	diskAt   time.Time
}

// NewHostCollector creates a collector reporting alongside run
func NewHostCollector(run *RunProgress) *HostCollector {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &HostCollector{run: run, proc: proc}
}

// Describe implements prometheus.Collector
func (c *HostCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		systemCPUDesc, processCPUDesc, iowaitDesc, memPercentDesc,
		memBytesDesc, diskReadDesc, diskWriteDesc, diskBusyDesc,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *HostCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.Sample()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	gauge(systemCPUDesc, s.SystemCPU)
	gauge(processCPUDesc, s.ProcessCPU)
	gauge(iowaitDesc, s.IOWait)
	gauge(memPercentDesc, s.MemoryPercent)
	gauge(memBytesDesc, float64(s.MemoryUsed))
	gauge(diskReadDesc, s.DiskReadBps)
	gauge(diskWriteDesc, s.DiskWriteBps)
	gauge(diskBusyDesc, s.DiskBusy)
}

// Sample reads host usage. Failed reads leave their fields at zero.
func (c *HostCollector) Sample() HostSample {
	var s HostSample
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.SystemCPU = pct[0]
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			s.ProcessCPU = pct
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vm.UsedPercent
		s.MemoryUsed = vm.Used
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if times, err := cpu.Times(false); err == nil && len(times) > 0 {
		s.IOWait = iowaitShare(c.cpuPrev, times[0])
		c.cpuPrev = &times[0]
	}
	if counters, err := disk.IOCounters(); err == nil {
		now := time.Now()
		if c.diskPrev != nil {
			s.DiskReadBps, s.DiskWriteBps, s.DiskBusy = diskRates(c.diskPrev, counters, now.Sub(c.diskAt))
		}
		c.diskPrev, c.diskAt = counters, now
	}
	return s
}

// Report logs a status line every interval until ctx is cancelled
func (c *HostCollector) Report(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// baseline for the rate fields
	c.Sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logStatus(logger, c.Sample())
		}
	}
}

func (c *HostCollector) logStatus(logger *zap.Logger, s HostSample) {
	run := c.run.Snapshot()
	logger.Info("Status",
		zap.String("chunks", fmt.Sprintf("%d/%d", run.Chunks, run.TotalChunks)),
		zap.String("regions", fmt.Sprintf("%d/%d", run.RegionsOK+run.RegionsFailed, run.TotalRegions)),
		zap.Int64("failed", run.RegionsFailed),
		zap.Float64("sys_cpu", s.SystemCPU),
		zap.Float64("proc_cpu", s.ProcessCPU),
		zap.Float64("iowait", s.IOWait),
		zap.String("mem_used", formatGB(float64(s.MemoryUsed)/gib)),
		zap.String("disk_w", formatMBps(s.DiskWriteBps/(1<<20))),
		zap.Float64("disk_busy", s.DiskBusy))
}

// iowaitShare is the percentage of CPU time spent in iowait between prev and cur
func iowaitShare(prev *cpu.TimesStat, cur cpu.TimesStat) float64 {
	if prev == nil {
		return 0
	}
	busy := func(t cpu.TimesStat) float64 {
		return t.User + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	}
	total := busy(cur) - busy(*prev)
	if total <= 0 {
		return 0
	}
	return (cur.Iowait - prev.Iowait) / total * 100
}

// diskRates sums per-device deltas into read and write bytes per second and
// a busy percentage capped at 100. Devices whose counters went backwards
// are skipped.
func diskRates(prev, cur map[string]disk.IOCountersStat, elapsed time.Duration) (readBps, writeBps, busy float64) {
	secs := elapsed.Seconds()
	if secs < 0.1 {
		return 0, 0, 0
	}
	var read, write, ioMs uint64
	for name, now := range cur {
		was, ok := prev[name]
		if !ok {
			continue
		}
		if now.ReadBytes >= was.ReadBytes {
			read += now.ReadBytes - was.ReadBytes
		}
		if now.WriteBytes >= was.WriteBytes {
			write += now.WriteBytes - was.WriteBytes
		}
		if now.IoTime >= was.IoTime {
			ioMs += now.IoTime - was.IoTime
		}
	}
	busy = min(float64(ioMs)/(secs*1000)*100, 100)
	return float64(read) / secs, float64(write) / secs, busy
}

func formatGB(gb float64) string {
	return fmt.Sprintf("%.1f GB", gb)
}

func formatMBps(mbps float64) string {
	return fmt.Sprintf("%.1f MB/s", mbps)
}
