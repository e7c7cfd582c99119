// Package handler exposes price reports over HTTP and Connect RPC.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	authsvc "github.com/FACorreiaa/da-price-monitor/internal/domain/auth/service"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/discovery"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/export"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/markets"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/repository"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/search"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/service"
	"github.com/FACorreiaa/da-price-monitor/pkg/cron"
	"github.com/FACorreiaa/da-price-monitor/pkg/metrics"
	"github.com/FACorreiaa/da-price-monitor/pkg/storage"
)

const maxSubmitBytes = 10 << 20

// PriceService is the subset of the ingest service the handlers use.
type PriceService interface {
	Latest(ctx context.Context) (*repository.Report, error)
	Get(ctx context.Context, id uuid.UUID) (*repository.Report, error)
	List(ctx context.Context, limit, offset int) ([]repository.Summary, error)
	Runs(ctx context.Context, limit int) ([]repository.Run, error)
	Submit(ctx context.Context, report parser.PriceReport) (*repository.Report, error)
	Ingest(ctx context.Context, trigger repository.Trigger) (*service.Result, error)
	FetchRawText(ctx context.Context, url string) (string, error)
}

// Searcher finds price rows of the latest report.
type Searcher interface {
	Search(q string, limit int) ([]search.Hit, error)
	ReportID() string
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentStore opens archived bulletin documents.
type DocumentStore interface {
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *storage.FileInfo, error)
}

// IngestTrigger starts background ingests.
type IngestTrigger interface {
	RunNow() error
	Running() bool
	Next() time.Time
}

// Config holds handler settings.
type Config struct {
	AllowedOrigins     []string
	RateLimitPerSecond int
	RateLimitBurst     int
}

// PriceHandler serves the price API.
type PriceHandler struct {
	svc     PriceService
	catalog *markets.Catalog
	index   Searcher
	db      Pinger
	sched   IngestTrigger
	docs    DocumentStore
	tokens  authsvc.TokenManager
	metrics *metrics.Metrics
	cfg     Config
	logger  *slog.Logger
}

// NewPriceHandler creates a new price handler.
func NewPriceHandler(svc PriceService, catalog *markets.Catalog, tokens authsvc.TokenManager, cfg Config, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		svc:     svc,
		catalog: catalog,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger,
	}
}

// WithSearch enables /prices/search.
func (h *PriceHandler) WithSearch(s Searcher) *PriceHandler {
	h.index = s
	return h
}

// WithMetrics records request metrics and serves /metrics.
func (h *PriceHandler) WithMetrics(m *metrics.Metrics) *PriceHandler {
	h.metrics = m
	return h
}

// WithHealthCheck reports the database state in /health.
func (h *PriceHandler) WithHealthCheck(p Pinger) *PriceHandler {
	h.db = p
	return h
}

// WithScheduler enables /ingest-runs/trigger and reports the next run in /health.
func (h *PriceHandler) WithScheduler(t IngestTrigger) *PriceHandler {
	h.sched = t
	return h
}

// WithDocuments enables /reports/{id}/document.
func (h *PriceHandler) WithDocuments(d DocumentStore) *PriceHandler {
	h.docs = d
	return h
}

// Routes builds the HTTP handler with all middleware applied.
func (h *PriceHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(h.observe)
	r.Use(newRateLimiter(h.cfg.RateLimitPerSecond, h.cfg.RateLimitBurst).middleware)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Get("/getLatestPrices", h.GetLatestPrices)
	r.Get("/reports", h.ListReports)
	r.Get("/reports/{id}", h.GetReport)
	r.Get("/reports/{id}/document", h.GetReportDocument)
	r.Get("/prices/latest.csv", h.ExportCSV)
	r.Get("/prices/latest.xlsx", h.ExportXLSX)
	r.Get("/prices/search", h.SearchPrices)
	r.Get("/markets", h.LookupMarkets)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/updatePrices", h.UpdatePrices)
		r.Post("/update-latest-daily-prices", h.UpdateLatestDailyPrices)
		r.Get("/parse-sample-pdf", h.ParseSamplePDF)
		r.Get("/ingest-runs", h.ListRuns)
		r.Post("/ingest-runs/trigger", h.TriggerIngest)
	})

	procedure, rpc := h.rpcHandler()
	r.Handle(procedure, rpc)

	return withCORS(r, h.cfg.AllowedOrigins)
}

// Health reports service liveness and database reachability.
func (h *PriceHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	dbStatus := "unknown"
	if h.db != nil {
		dbStatus = "ok"
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Warn("health check database ping failed", slog.Any("error", err))
			status, code, dbStatus = "degraded", http.StatusServiceUnavailable, "unreachable"
		}
	}
	body := map[string]any{"status": status, "database": dbStatus}
	if h.sched != nil {
		body["ingestRunning"] = h.sched.Running()
		if next := h.sched.Next(); !next.IsZero() {
			body["nextIngest"] = next
		}
	}
	writeJSON(w, code, body)
}

// GetLatestPrices returns the most recently stored report.
func (h *PriceHandler) GetLatestPrices(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Latest(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No price data found")
		return
	}
	if err != nil {
		h.internalError(w, "failed to fetch latest prices", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetReport returns one stored report.
func (h *PriceHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.internalError(w, "failed to fetch report", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListReports returns report metadata, newest first.
func (h *PriceHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	reports, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		h.internalError(w, "failed to list reports", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "limit": limit, "offset": offset})
}

// GetReportDocument streams the archived source document of a report.
func (h *PriceHandler) GetReportDocument(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		writeError(w, http.StatusNotFound, "document archive is disabled")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.internalError(w, "failed to fetch report", err)
		return
	}
	if rec.ArchiveID == nil {
		writeError(w, http.StatusNotFound, "report has no archived document")
		return
	}

	body, info, err := h.docs.Open(r.Context(), *rec.ArchiveID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "archived document not found")
		return
	}
	if err != nil {
		h.internalError(w, "failed to open archived document", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(info.Name, `"`, "")+`"`)
	w.Header().Set("ETag", `"`+info.SHA256+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("failed to stream archived document", slog.String("report_id", id.String()), slog.Any("error", err))
	}
}

// ListRuns returns recent ingest runs.
func (h *PriceHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.Runs(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		h.internalError(w, "failed to list ingest runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// TriggerIngest starts an ingest in the background and returns immediately.
func (h *PriceHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is disabled")
		return
	}
	if err := h.sched.RunNow(); err != nil {
		if errors.Is(err, cron.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.internalError(w, "failed to trigger ingest", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "message": "Ingest started."})
}

// UpdatePrices stores a caller-supplied report as a new record.
func (h *PriceHandler) UpdatePrices(w http.ResponseWriter, r *http.Request) {
	var report parser.PriceReport
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSubmitBytes))
	if err := dec.Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "invalid report: "+err.Error())
		return
	}

	rec, err := h.svc.Submit(r.Context(), report)
	if errors.Is(err, service.ErrEmptyReport) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "failed to store report", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": rec.ID})
}

// UpdateLatestDailyPrices runs a full ingest and returns the stored report.
func (h *PriceHandler) UpdateLatestDailyPrices(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Ingest(r.Context(), repository.TriggerManual)
	if errors.Is(err, discovery.ErrNoBulletin) {
		writeError(w, http.StatusNotFound, "No recent Daily Retail Price PDF found.")
		return
	}
	if err != nil {
		h.internalError(w, "ingest failed", err)
		return
	}

	message := "Latest daily price PDF parsed and stored."
	if res.Run.Outcome == repository.OutcomeEmpty {
		message = "Latest daily price PDF stored, but no price tables were found."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   message,
		"priceData": res.Report,
		"run":       res.Run,
	})
}

// ParseSamplePDF downloads a document and returns its extracted text.
func (h *PriceHandler) ParseSamplePDF(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	u, err := url.Parse(raw)
	if raw == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	text, err := h.svc.FetchRawText(r.Context(), raw)
	if err != nil {
		h.logger.Error("failed to parse sample pdf", slog.String("url", raw), slog.Any("error", err))
		http.Error(w, "Error parsing PDF: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, text)
}

// ExportCSV streams the latest report as CSV.
func (h *PriceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", export.ContentTypeCSV, export.WriteCSV)
}

// ExportXLSX streams the latest report as an Excel workbook.
func (h *PriceHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", export.ContentTypeXLSX, export.WriteXLSX)
}

func (h *PriceHandler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, parser.PriceReport) error) {
	rec, err := h.svc.Latest(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No price data found")
		return
	}
	if err != nil {
		h.internalError(w, "failed to fetch latest prices", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="prices-`+rec.Date.String()+`.`+ext+`"`)
	if err := write(w, rec.PriceReport); err != nil {
		h.logger.Error("failed to write export", slog.String("format", ext), slog.Any("error", err))
	}
}

// SearchPrices runs a full-text search over the latest report.
func (h *PriceHandler) SearchPrices(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	hits, err := h.index.Search(q, queryInt(r, "limit", 20))
	if err != nil {
		h.internalError(w, "search failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "reportId": h.index.ReportID(), "hits": hits})
}

// LookupMarkets lists catalog markets, optionally fuzzy-filtered by q.
func (h *PriceHandler) LookupMarkets(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"version": h.catalog.Version,
			"region":  h.catalog.Region,
			"markets": h.catalog.Markets,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": h.catalog.Version,
		"query":   q,
		"matches": h.catalog.Lookup(q, queryInt(r, "limit", 10)),
	})
}

func (h *PriceHandler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return fallback
}
