package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chronicle-lab/tsreport/internal/dataset"
	"github.com/chronicle-lab/tsreport/internal/utils"
)

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, "data.csv", "timestamp,value,label\n2024-03-01 00:00:00,1.5,a\n2024-03-01 01:00:00,2.5,b\n2024-03-01 02:00:00,,c\n")

	ds, warnings, err := New(nil).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if ds.Rows() != 3 {
		t.Fatalf("expected 3 rows, got %d", ds.Rows())
	}

	value, ok := ds.Column("value")
	if !ok || value.Type != dataset.Numeric {
		t.Fatalf("expected numeric value column")
	}
	if value.Valid[2] {
		t.Fatalf("expected third value to be null")
	}

	ts, ok := ds.Column("timestamp")
	if !ok {
		t.Fatalf("expected timestamp column")
	}
	if ts.Type != dataset.Temporal {
		t.Fatalf("expected timestamp coerced to temporal, got %s", ts.Type)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := New(nil).Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if utils.ErrorCode(err) != utils.CodeFileNotFound {
		t.Fatalf("expected file_not_found, got %s", utils.ErrorCode(err))
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError")
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeCSV(t, "data.xlsx", "not a real workbook")
	_, _, err := New(nil).Load(context.Background(), path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if utils.ErrorCode(err) != utils.CodeUnsupportedFormat {
		t.Fatalf("expected unsupported_format, got %s", utils.ErrorCode(err))
	}
}

func TestDetectTimeColumn(t *testing.T) {
	path := writeCSV(t, "data.csv", "id,tagTime,reading\n1,2024-03-01,10\n2,2024-03-02,11\n")
	ds, _, err := New(nil).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if col := DetectTimeColumn(ds, ""); col != "tagTime" {
		t.Fatalf("expected tagTime detected, got %q", col)
	}
	// A hint naming a non-temporal column falls back to detection.
	if col := DetectTimeColumn(ds, "reading"); col != "tagTime" {
		t.Fatalf("expected fallback to tagTime, got %q", col)
	}
}

func TestDetectTimeColumnNone(t *testing.T) {
	path := writeCSV(t, "data.csv", "a,b\n1,2\n3,4\n")
	ds, _, err := New(nil).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if col := DetectTimeColumn(ds, ""); col != "" {
		t.Fatalf("expected no time column, got %q", col)
	}
}
