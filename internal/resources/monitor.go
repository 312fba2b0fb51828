package resources

import (
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"gonum.org/v1/gonum/stat"

	"github.com/chronicle-lab/tsreport/internal/config"
	"github.com/chronicle-lab/tsreport/internal/models"
)

const bytesPerMB = 1024 * 1024

// Monitor samples process and system memory, reclaims memory when the
// process crosses the configured threshold, and keeps a short history for
// trend estimation.
type Monitor struct {
	cfg    config.ResourcesConfig
	logger *slog.Logger
	proc   *process.Process

	mu      sync.Mutex
	history []models.ResourceSnapshot
	peakMB  float64
}

// historyCap bounds the trend window.
const historyCap = 120

func NewMonitor(cfg config.ResourcesConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process handle unavailable, snapshots will be partial", slog.Any("error", err))
	}
	return &Monitor{cfg: cfg, logger: logger, proc: proc}
}

// Snapshot captures current process and system memory usage. Collection
// failures degrade to zero fields rather than errors.
func (m *Monitor) Snapshot() models.ResourceSnapshot {
	snap := models.ResourceSnapshot{Taken: time.Now()}

	if m.proc != nil {
		if info, err := m.proc.MemoryInfo(); err == nil && info != nil {
			snap.RSSMB = float64(info.RSS) / bytesPerMB
			snap.VMSMB = float64(info.VMS) / bytesPerMB
		}
		if pct, err := m.proc.MemoryPercent(); err == nil {
			snap.MemoryPercent = float64(pct)
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			snap.CPUPercent = cpu
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		snap.AvailableMB = float64(vm.Available) / bytesPerMB
		snap.TotalMB = float64(vm.Total) / bytesPerMB
	}

	m.mu.Lock()
	m.history = append(m.history, snap)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
	if snap.RSSMB > m.peakMB {
		m.peakMB = snap.RSSMB
	}
	m.mu.Unlock()
	return snap
}

// CheckAndReclaim forces a garbage collection cycle and returns memory to
// the OS when RSS exceeds the GC threshold. Returns the snapshot taken
// after any reclamation.
func (m *Monitor) CheckAndReclaim() models.ResourceSnapshot {
	before := m.Snapshot()
	if m.cfg.GCThresholdMB <= 0 || before.RSSMB < m.cfg.GCThresholdMB {
		return before
	}

	runtime.GC()
	debug.FreeOSMemory()
	after := m.Snapshot()
	m.logger.Info("memory reclaimed",
		slog.Float64("before_mb", before.RSSMB),
		slog.Float64("after_mb", after.RSSMB),
		slog.Float64("threshold_mb", m.cfg.GCThresholdMB))
	return after
}

// OverBudget reports whether the last snapshot exceeds the hard memory cap.
func (m *Monitor) OverBudget() bool {
	if m.cfg.MaxMemoryMB <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return false
	}
	return m.history[len(m.history)-1].RSSMB > m.cfg.MaxMemoryMB
}

// PeakMB is the highest RSS observed across all snapshots.
func (m *Monitor) PeakMB() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakMB
}

// TrendMBPerSecond estimates RSS growth from the recorded history via
// linear regression. Returns false with fewer than three samples.
func (m *Monitor) TrendMBPerSecond() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) < 3 {
		return 0, false
	}

	xs := make([]float64, len(m.history))
	ys := make([]float64, len(m.history))
	t0 := m.history[0].Taken
	for i, snap := range m.history {
		xs[i] = snap.Taken.Sub(t0).Seconds()
		ys[i] = snap.RSSMB
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope, true
}
