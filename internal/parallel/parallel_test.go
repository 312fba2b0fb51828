package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestProcessColumnsIsolatesFailures(t *testing.T) {
	columns := []string{"a", "b", "c", "d", "bad"}
	fn := func(_ context.Context, column string) (*float64, error) {
		if column == "bad" {
			return nil, errors.New("synthetic failure")
		}
		v := float64(len(column))
		return &v, nil
	}

	results := ProcessColumns(context.Background(), columns, fn, Options{MaxWorkers: 3})
	if len(results) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(results))
	}
	if results["bad"] != nil {
		t.Fatalf("failed column should map to nil")
	}
	for _, col := range []string{"a", "b", "c", "d"} {
		if results[col] == nil || *results[col] != 1 {
			t.Fatalf("column %s lost its result", col)
		}
	}
}

func TestProcessColumnsSequentialForSmallBatches(t *testing.T) {
	var concurrent, peak int32
	fn := func(_ context.Context, column string) (*string, error) {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
		out := column + "!"
		return &out, nil
	}

	results := ProcessColumns(context.Background(), []string{"x", "y"}, fn, Options{MaxWorkers: 8})
	if atomic.LoadInt32(&peak) != 1 {
		t.Fatalf("two-column batch ran concurrently (peak=%d)", peak)
	}
	if *results["x"] != "x!" || *results["y"] != "y!" {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestProcessColumnsRecoversPanic(t *testing.T) {
	fn := func(_ context.Context, column string) (*int, error) {
		if column == "boom" {
			panic("kaboom")
		}
		v := 1
		return &v, nil
	}

	results := ProcessColumns(context.Background(), []string{"a", "b", "boom", "c"}, fn, Options{MaxWorkers: 2})
	if results["boom"] != nil {
		t.Fatalf("panicking column should map to nil")
	}
	if results["a"] == nil || results["b"] == nil || results["c"] == nil {
		t.Fatalf("panic leaked into sibling columns: %v", results)
	}
}

func TestProcessColumnsTimeout(t *testing.T) {
	fn := func(ctx context.Context, column string) (*int, error) {
		if column == "slow" {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
		v := 1
		return &v, nil
	}

	results := ProcessColumns(context.Background(), []string{"slow", "fast", "fast2"}, fn, Options{
		MaxWorkers: 3,
		Timeout:    20 * time.Millisecond,
	})
	if results["slow"] != nil {
		t.Fatalf("timed-out column should map to nil")
	}
	if results["fast"] == nil || results["fast2"] == nil {
		t.Fatalf("fast columns should complete")
	}
}

func TestProcessColumnsRespectsWorkerCap(t *testing.T) {
	var concurrent, peak int32
	fn := func(_ context.Context, column string) (*int, error) {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
		v := 0
		return &v, nil
	}

	columns := make([]string, 12)
	for i := range columns {
		columns[i] = fmt.Sprintf("c%d", i)
	}
	ProcessColumns(context.Background(), columns, fn, Options{MaxWorkers: 2})
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Fatalf("worker cap exceeded: peak concurrency %d", p)
	}
}

func TestProcessColumnsEmpty(t *testing.T) {
	results := ProcessColumns(context.Background(), nil, func(context.Context, string) (*int, error) {
		t.Fatal("fn called for empty batch")
		return nil, nil
	}, Options{})
	if len(results) != 0 {
		t.Fatalf("expected empty map")
	}
}
