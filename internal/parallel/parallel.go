package parallel

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	// At or below this many columns a pool costs more than it saves.
	sequentialThreshold = 2

	defaultTimeout = 30 * time.Second
)

// Options bounds a column-processing run.
type Options struct {
	MaxWorkers int
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (o Options) withDefaults(columns int) Options {
	if o.MaxWorkers < 1 {
		o.MaxWorkers = 1
	}
	if o.MaxWorkers > columns {
		o.MaxWorkers = columns
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// ProcessColumns runs fn once per column and collects results by column
// name. A failed, timed-out or panicking column maps to nil; one bad column
// never sinks the batch. Small batches run sequentially on the calling
// goroutine.
func ProcessColumns[T any](ctx context.Context, columns []string, fn func(ctx context.Context, column string) (*T, error), opts Options) map[string]*T {
	results := make(map[string]*T, len(columns))
	if len(columns) == 0 {
		return results
	}
	opts = opts.withDefaults(len(columns))

	if len(columns) <= sequentialThreshold || opts.MaxWorkers == 1 {
		for _, col := range columns {
			results[col] = runOne(ctx, col, fn, opts)
		}
		return results
	}

	type outcome struct {
		column string
		value  *T
	}

	jobs := make(chan string)
	out := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < opts.MaxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for col := range jobs {
				out <- outcome{column: col, value: runOne(ctx, col, fn, opts)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, col := range columns {
			select {
			case jobs <- col:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	for o := range out {
		results[o.column] = o.value
	}
	// Columns never dispatched (context cancelled) still get an entry.
	for _, col := range columns {
		if _, ok := results[col]; !ok {
			results[col] = nil
		}
	}
	return results
}

// runOne executes fn for a single column under its own timeout, converting
// errors and panics into a nil result.
func runOne[T any](ctx context.Context, column string, fn func(ctx context.Context, column string) (*T, error), opts Options) (result *T) {
	taskCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			opts.Logger.Error("column processing panicked",
				slog.String("column", column),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			result = nil
		}
	}()

	value, err := fn(taskCtx, column)
	if err != nil {
		opts.Logger.Warn("column processing failed",
			slog.String("column", column),
			slog.Any("error", fmt.Errorf("process %s: %w", column, err)))
		return nil
	}
	if err := taskCtx.Err(); err != nil {
		opts.Logger.Warn("column processing timed out",
			slog.String("column", column),
			slog.Any("error", err))
		return nil
	}
	return value
}
