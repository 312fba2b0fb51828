package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chronicle-lab/tsreport/internal/models"
)

// ErrNotFound is returned when no report exists under the requested ID.
var ErrNotFound = errors.New("report not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL,
	rows       INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports (created_at DESC);
`

// Summary is the list-view projection of a stored report.
type Summary struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists full analysis reports in SQLite. Payloads are stored as
// JSON so schema evolution never needs a migration.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (or opens) the store at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport stores one report under its own ID.
func (s *Store) SaveReport(ctx context.Context, report *models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, file_name, rows, created_at, payload) VALUES (?, ?, ?, ?, ?)`,
		report.ID, report.FileInfo.Name, report.FileInfo.Rows, report.CreatedAt.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.ID, err)
	}
	s.logger.Debug("report persisted", slog.String("report_id", report.ID))
	return nil
}

// GetReport loads the full report stored under id.
func (s *Store) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", id, err)
	}
	var report models.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &report, nil
}

// ListReports returns the newest reports first, capped at limit.
func (s *Store) ListReports(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, rows, created_at FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.FileName, &s.Rows, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
