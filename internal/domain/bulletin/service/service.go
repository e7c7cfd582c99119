// Package service orchestrates bulletin ingestion: locate, download, archive,
// extract, parse, store and index.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/discovery"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/repository"
	"github.com/FACorreiaa/da-price-monitor/pkg/metrics"
	"github.com/FACorreiaa/da-price-monitor/pkg/notify"
	"github.com/FACorreiaa/da-price-monitor/pkg/storage"
)

// ErrEmptyReport is returned when a submitted report has neither tables nor text.
var ErrEmptyReport = errors.New("report has no tables and no raw text")

// Locator finds the most recent bulletin.
type Locator interface {
	Locate(ctx context.Context) (*discovery.Bulletin, error)
}

// Fetcher downloads a document.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Indexer keeps a search index in sync with the latest report.
type Indexer interface {
	IndexReport(report *repository.Report) error
}

// Result is the outcome of one ingest.
type Result struct {
	Run      repository.Run      `json:"run"`
	Bulletin *discovery.Bulletin `json:"bulletin,omitempty"`
	Report   *repository.Report  `json:"report,omitempty"`
	Archive  *storage.FileInfo   `json:"archive,omitempty"`
}

// Service handles bulletin ingestion and report retrieval.
type Service struct {
	repo      repository.ReportRepository
	locator   Locator
	fetcher   Fetcher
	extractor *Extractor
	archive   storage.Archive
	index     Indexer
	metrics   *metrics.Metrics
	notifier  notify.Notifier
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithArchive stores every downloaded document.
func WithArchive(a storage.Archive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// WithIndex refreshes idx after every stored report.
func WithIndex(idx Indexer) Option {
	return func(s *Service) {
		s.index = idx
	}
}

// WithMetrics records ingest metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithNotifier alerts on failed or empty ingests.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new ingest service.
func NewService(
	repo repository.ReportRepository,
	locator Locator,
	fetcher Fetcher,
	extractor *Extractor,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		locator:   locator,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
		tracer:    otel.Tracer("github.com/FACorreiaa/da-price-monitor/bulletin"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest locates the newest bulletin, downloads it and stores a new report.
// A bulletin that yields zero tables is still stored.
func (s *Service) Ingest(ctx context.Context, trigger repository.Trigger) (*Result, error) {
	return s.track(ctx, trigger, func(ctx context.Context, res *Result) error {
		b, err := s.locate(ctx)
		if err != nil {
			return err
		}
		res.Bulletin = b
		res.Run.SourceURL = b.URL

		data, err := s.download(ctx, b.URL)
		if err != nil {
			return err
		}
		return s.store(ctx, res, data, b.URL, b.Date)
	})
}

// IngestDocument stores a report built from an already downloaded document.
func (s *Service) IngestDocument(ctx context.Context, trigger repository.Trigger, data []byte, sourceURL string, date time.Time) (*Result, error) {
	return s.track(ctx, trigger, func(ctx context.Context, res *Result) error {
		res.Run.SourceURL = sourceURL
		return s.store(ctx, res, data, sourceURL, date)
	})
}

func (s *Service) track(ctx context.Context, trigger repository.Trigger, fn func(context.Context, *Result) error) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "bulletin.ingest",
		trace.WithAttributes(attribute.String("ingest.trigger", string(trigger))))
	defer span.End()

	res := &Result{Run: repository.Run{Trigger: trigger, StartedAt: s.now()}}
	err := fn(ctx, res)
	res.Run.FinishedAt = s.now()
	res.Run.Outcome = outcome(res, err)
	if res.Report != nil {
		res.Run.ReportID = &res.Report.ID
	}
	if err != nil {
		res.Run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("ingest.outcome", string(res.Run.Outcome)))

	s.finish(ctx, res, err)
	return res, err
}

func (s *Service) locate(ctx context.Context) (*discovery.Bulletin, error) {
	ctx, span := s.tracer.Start(ctx, "bulletin.locate")
	defer span.End()

	b, err := s.locator.Locate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to locate bulletin: %w", err)
	}
	span.SetAttributes(attribute.String("bulletin.url", b.URL), attribute.String("bulletin.strategy", b.Strategy))
	s.logger.Info("bulletin located",
		slog.String("url", b.URL),
		slog.String("date", b.Date.Format(parser.DateLayout)),
		slog.String("strategy", b.Strategy),
	)
	return b, nil
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "bulletin.download")
	defer span.End()

	data, err := s.fetcher.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download bulletin: %w", err)
	}
	span.SetAttributes(attribute.Int("bulletin.bytes", len(data)))
	if !parser.IsPDF(data) {
		return nil, fmt.Errorf("%s: %w", url, parser.ErrNotPDF)
	}
	return data, nil
}

func (s *Service) store(ctx context.Context, res *Result, data []byte, sourceURL string, date time.Time) error {
	var archiveID *uuid.UUID
	if info := s.archiveDocument(ctx, data, sourceURL, date); info != nil {
		res.Archive = info
		archiveID = &info.ID
	}

	_, span := s.tracer.Start(ctx, "bulletin.parse")
	report, err := s.extractor.Report(data, sourceURL, date)
	if err != nil {
		span.End()
		return err
	}
	span.SetAttributes(attribute.Int("bulletin.tables", len(report.Tables)))
	span.End()

	for _, t := range report.Tables {
		s.metrics.ObserveTable(string(t.Type), t.Len())
	}

	rec, err := s.repo.Insert(ctx, report, archiveID)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	res.Report = rec

	s.refreshIndex(rec)
	return nil
}

func (s *Service) archiveDocument(ctx context.Context, data []byte, sourceURL string, date time.Time) *storage.FileInfo {
	if s.archive == nil {
		return nil
	}

	name := path.Base(sourceURL)
	if name == "." || name == "/" {
		name = "bulletin"
	}
	contentType := "text/plain"
	if parser.IsPDF(data) {
		contentType = "application/pdf"
	}

	info, err := s.archive.Put(ctx, date.Format("2006-01"), name, contentType, bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("failed to archive bulletin", slog.String("url", sourceURL), slog.Any("error", err))
		return nil
	}
	return info
}

func (s *Service) refreshIndex(rec *repository.Report) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexReport(rec); err != nil {
		s.logger.Warn("failed to index report", slog.String("report_id", rec.ID.String()), slog.Any("error", err))
	}
}

func (s *Service) finish(ctx context.Context, res *Result, err error) {
	run := &res.Run
	s.metrics.ObserveIngest(string(run.Outcome), run.FinishedAt.Sub(run.StartedAt), res.Report != nil)

	// The run is recorded even when the request context is gone.
	recordCtx := context.WithoutCancel(ctx)
	if rerr := s.repo.InsertRun(recordCtx, run); rerr != nil {
		s.logger.Error("failed to record ingest run", slog.Any("error", rerr))
	}

	attrs := []any{
		slog.String("trigger", string(run.Trigger)),
		slog.String("outcome", string(run.Outcome)),
		slog.String("url", run.SourceURL),
		slog.Duration("duration", run.FinishedAt.Sub(run.StartedAt)),
	}
	switch run.Outcome {
	case repository.OutcomeStored:
		s.logger.Info("ingest completed", append(attrs,
			slog.String("report_id", res.Report.ID.String()),
			slog.Int("tables", res.Report.TableCount),
		)...)
		return
	case repository.OutcomeEmpty:
		s.logger.Warn("ingest stored a report with no tables", attrs...)
	case repository.OutcomeNoBulletin:
		s.logger.Warn("no bulletin available", attrs...)
	default:
		s.logger.Error("ingest failed", append(attrs, slog.Any("error", err))...)
	}

	if s.notifier == nil {
		return
	}
	alert := notify.Alert{
		Subject:   fmt.Sprintf("Price bulletin ingest: %s", run.Outcome),
		Reason:    reason(run.Outcome),
		SourceURL: run.SourceURL,
		Err:       err,
		At:        run.FinishedAt,
	}
	if res.Report != nil {
		alert.ReportID = res.Report.ID.String()
	}
	if nerr := s.notifier.Notify(recordCtx, alert); nerr != nil {
		s.logger.Error("failed to send ingest alert", slog.Any("error", nerr))
	}
}

func outcome(res *Result, err error) repository.Outcome {
	switch {
	case errors.Is(err, discovery.ErrNoBulletin):
		return repository.OutcomeNoBulletin
	case err != nil:
		return repository.OutcomeFailed
	case res.Report == nil || res.Report.TableCount == 0:
		return repository.OutcomeEmpty
	default:
		return repository.OutcomeStored
	}
}

func reason(o repository.Outcome) string {
	switch o {
	case repository.OutcomeEmpty:
		return "The bulletin was downloaded and stored, but no price tables could be reconstructed from its text."
	case repository.OutcomeNoBulletin:
		return "No bulletin was published within the lookback window."
	default:
		return "The ingest run failed before a report could be stored."
	}
}

// Submit stores a caller-supplied report as a new record.
func (s *Service) Submit(ctx context.Context, report parser.PriceReport) (*repository.Report, error) {
	if len(report.Tables) == 0 && report.RawText == "" {
		return nil, ErrEmptyReport
	}
	if report.Date.IsZero() {
		report.Date = parser.NewDate(s.now().In(discovery.Manila))
	}

	rec, err := s.repo.Insert(ctx, report, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	s.refreshIndex(rec)

	s.logger.Info("report submitted",
		slog.String("report_id", rec.ID.String()),
		slog.Int("tables", rec.TableCount),
	)
	return rec, nil
}

// Latest returns the most recently stored report.
func (s *Service) Latest(ctx context.Context) (*repository.Report, error) {
	return s.repo.Latest(ctx)
}

// Get returns a stored report.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.Report, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns report summaries, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]repository.Summary, error) {
	return s.repo.List(ctx, limit, offset)
}

// Runs returns recent ingest runs.
func (s *Service) Runs(ctx context.Context, limit int) ([]repository.Run, error) {
	return s.repo.ListRuns(ctx, limit)
}

// FetchRawText downloads url and returns its extracted text.
func (s *Service) FetchRawText(ctx context.Context, url string) (string, error) {
	data, err := s.fetcher.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to download document: %w", err)
	}
	return s.extractor.Text(data)
}

// WarmIndex loads the latest stored report into the search index.
func (s *Service) WarmIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	rec, err := s.repo.Latest(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.index.IndexReport(rec)
}
