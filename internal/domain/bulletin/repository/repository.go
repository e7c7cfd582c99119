// Package repository provides database operations for price reports and ingest runs.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// DBTX is the subset of pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Report is a stored PriceReport. Records are immutable once inserted.
type Report struct {
	ID uuid.UUID `json:"id"`
	parser.PriceReport
	TableCount int        `json:"tableCount"`
	ArchiveID  *uuid.UUID `json:"archiveId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Summary is a report without its tables and raw text.
type Summary struct {
	ID         uuid.UUID   `json:"id"`
	Date       parser.Date `json:"date"`
	SourceURL  string      `json:"sourceUrl"`
	TableCount int         `json:"tableCount"`
	ArchiveID  *uuid.UUID  `json:"archiveId,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Trigger identifies what started an ingest run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerCLI      Trigger = "cli"
)

// Outcome is the result of an ingest run.
type Outcome string

const (
	OutcomeStored     Outcome = "stored"
	OutcomeEmpty      Outcome = "empty"
	OutcomeNoBulletin Outcome = "no_bulletin"
	OutcomeFailed     Outcome = "failed"
)

// Run records one ingest attempt.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Trigger    Trigger    `json:"trigger"`
	Outcome    Outcome    `json:"outcome"`
	SourceURL  string     `json:"sourceUrl,omitempty"`
	ReportID   *uuid.UUID `json:"reportId,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
}

// ReportRepository is an append-only store of price reports.
type ReportRepository interface {
	Insert(ctx context.Context, report parser.PriceReport, archiveID *uuid.UUID) (*Report, error)
	Latest(ctx context.Context) (*Report, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	List(ctx context.Context, limit, offset int) ([]Summary, error)

	InsertRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
