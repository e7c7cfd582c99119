package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PostgresReportRepository implements ReportRepository using PostgreSQL.
type PostgresReportRepository struct {
	db DBTX
}

// NewPostgresReportRepository creates a new PostgreSQL report repository.
func NewPostgresReportRepository(db DBTX) *PostgresReportRepository {
	return &PostgresReportRepository{db: db}
}

// Insert appends a new report. It never updates an existing record.
func (r *PostgresReportRepository) Insert(ctx context.Context, report parser.PriceReport, archiveID *uuid.UUID) (*Report, error) {
	query := `
		INSERT INTO price_reports (id, report_date, source_url, tables, raw_text, table_count, archive_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if report.Tables == nil {
		report.Tables = []parser.Table{}
	}
	tables, err := json.Marshal(report.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tables: %w", err)
	}

	rec := &Report{
		ID:          uuid.New(),
		PriceReport: report,
		TableCount:  len(report.Tables),
		ArchiveID:   archiveID,
	}

	err = r.db.QueryRow(ctx, query,
		rec.ID,
		report.Date.Time,
		report.SourceURL,
		tables,
		report.RawText,
		rec.TableCount,
		archiveID,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	return rec, nil
}

const reportColumns = `id, report_date, source_url, tables, raw_text, table_count, archive_id, created_at`

// Latest returns the most recently inserted report.
func (r *PostgresReportRepository) Latest(ctx context.Context) (*Report, error) {
	query := `SELECT ` + reportColumns + ` FROM price_reports ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, query)
}

// GetByID retrieves a report by ID.
func (r *PostgresReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	query := `SELECT ` + reportColumns + ` FROM price_reports WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresReportRepository) getOne(ctx context.Context, query string, args ...any) (*Report, error) {
	var (
		rec    Report
		date   time.Time
		tables []byte
	)
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&rec.ID,
		&date,
		&rec.SourceURL,
		&tables,
		&rec.RawText,
		&rec.TableCount,
		&rec.ArchiveID,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	rec.Date = parser.NewDate(date)
	if err := json.Unmarshal(tables, &rec.Tables); err != nil {
		return nil, fmt.Errorf("failed to decode tables of report %s: %w", rec.ID, err)
	}
	if rec.Tables == nil {
		rec.Tables = []parser.Table{}
	}
	return &rec, nil
}

// List returns report metadata, newest first.
func (r *PostgresReportRepository) List(ctx context.Context, limit, offset int) ([]Summary, error) {
	query := `
		SELECT id, report_date, source_url, table_count, archive_id, created_at
		FROM price_reports
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, pageSize(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var (
			s    Summary
			date time.Time
		)
		if err := rows.Scan(&s.ID, &date, &s.SourceURL, &s.TableCount, &s.ArchiveID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		s.Date = parser.NewDate(date)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return summaries, nil
}

// InsertRun records an ingest attempt.
func (r *PostgresReportRepository) InsertRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO ingest_runs (id, trigger, outcome, source_url, report_id, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, query,
		run.ID,
		string(run.Trigger),
		string(run.Outcome),
		run.SourceURL,
		run.ReportID,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent ingest runs.
func (r *PostgresReportRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, trigger, outcome, source_url, report_id, error, started_at, finished_at
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, pageSize(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run              Run
			trigger, outcome string
		)
		if err := rows.Scan(&run.ID, &trigger, &outcome, &run.SourceURL, &run.ReportID, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		run.Trigger = Trigger(trigger)
		run.Outcome = Outcome(outcome)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingest runs: %w", err)
	}

	return runs, nil
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
