package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chronicle-lab/tsreport/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(name string, createdAt time.Time) *models.Report {
	mean := 4.5
	return &models.Report{
		ID:       uuid.NewString(),
		FileInfo: models.FileInfo{Name: name, Rows: 10, Columns: 2, NumericColumns: 1},
		Statistics: map[string]models.ColumnStats{
			"v": {Count: 10, Mean: &mean},
		},
		Warnings:  []string{},
		CreatedAt: createdAt,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	report := sampleReport("data.csv", time.Now().UTC().Truncate(time.Second))
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.GetReport(ctx, report.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.ID != report.ID || loaded.FileInfo.Name != "data.csv" {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.Statistics["v"].Mean == nil || *loaded.Statistics["v"].Mean != 4.5 {
		t.Fatalf("statistics lost in round trip")
	}
}

func TestGetMissingReport(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetReport(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListReportsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	older := sampleReport("old.csv", base.Add(-time.Hour))
	newer := sampleReport("new.csv", base)
	for _, r := range []*models.Report{older, newer} {
		if err := store.SaveReport(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	list, err := store.ListReports(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(list))
	}
	if list[0].FileName != "new.csv" || list[1].FileName != "old.csv" {
		t.Fatalf("wrong order: %+v", list)
	}

	capped, err := store.ListReports(ctx, 1)
	if err != nil {
		t.Fatalf("list capped: %v", err)
	}
	if len(capped) != 1 || capped[0].FileName != "new.csv" {
		t.Fatalf("cap not applied: %+v", capped)
	}
}

func TestSaveDuplicateIDFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	report := sampleReport("dup.csv", time.Now().UTC())
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveReport(ctx, report); err == nil {
		t.Fatalf("duplicate id must be rejected")
	}
}
