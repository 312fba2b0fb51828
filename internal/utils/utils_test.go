package utils

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for _, d := range durations {
		tracker.Observe(d)
	}

	if tracker.Count() != len(durations) {
		t.Fatalf("expected count %d, got %d", len(durations), tracker.Count())
	}

	p95 := tracker.Percentile(95)
	if p95 < 40*time.Millisecond {
		t.Fatalf("expected percentile >= 40ms, got %v", p95)
	}
	if mean := tracker.Mean(); mean != 30*time.Millisecond {
		t.Fatalf("expected mean 30ms, got %v", mean)
	}
}

func TestLatencyTrackerBoundedSize(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 0; i < 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected tracker size 3, got %d", tracker.Count())
	}
}

func TestAppErrorCode(t *testing.T) {
	err := NewAppError("loader.Load", CodeFileNotFound, "missing file", errors.New("open: no such file"))
	if code := ErrorCode(err); code != CodeFileNotFound {
		t.Fatalf("expected code %q, got %q", CodeFileNotFound, code)
	}
	if code := ErrorCode(errors.New("plain")); code != CodeInternal {
		t.Fatalf("expected internal code for plain error, got %q", code)
	}
}

func TestTimeFormatsRoundTrip(t *testing.T) {
	ref := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, layout := range TimeFormats {
		rendered := ref.Format(layout)
		if _, err := time.Parse(layout, rendered); err != nil {
			t.Fatalf("layout %q cannot parse its own rendering %q: %v", layout, rendered, err)
		}
	}
}

func TestMeasuredReturnsResultAndMetrics(t *testing.T) {
	result, metrics, err := Measured(slog.Default(), "test_op", func() (int, error) {
		time.Sleep(5 * time.Millisecond)
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if metrics.Duration < 5*time.Millisecond {
		t.Fatalf("expected duration >= 5ms, got %v", metrics.Duration)
	}
	if metrics.Op != "test_op" {
		t.Fatalf("unexpected op %q", metrics.Op)
	}
}
