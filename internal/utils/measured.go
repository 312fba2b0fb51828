package utils

import (
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// CallMetrics describes one measured unit of work.
type CallMetrics struct {
	Op            string
	Duration      time.Duration
	MemoryDeltaMB float64
}

// Measured runs fn and returns its result together with duration and
// resident-memory delta. It replaces ambient instrumentation: callers decide
// what to wrap, nothing is mutated globally.
func Measured[T any](logger *slog.Logger, op string, fn func() (T, error)) (T, CallMetrics, error) {
	if logger == nil {
		logger = slog.Default()
	}

	before := rssMB()
	start := time.Now()
	result, err := fn()
	metrics := CallMetrics{
		Op:            op,
		Duration:      time.Since(start),
		MemoryDeltaMB: rssMB() - before,
	}

	if err != nil {
		logger.Warn("measured call failed",
			slog.String("op", op),
			slog.Duration("duration", metrics.Duration),
			slog.Any("error", err))
		return result, metrics, err
	}

	logger.Debug("measured call",
		slog.String("op", op),
		slog.Duration("duration", metrics.Duration),
		slog.Float64("memory_delta_mb", metrics.MemoryDeltaMB))
	return result, metrics, nil
}

func rssMB() float64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return float64(info.RSS) / 1024 / 1024
}
