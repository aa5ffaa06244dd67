// Package server exposes the localhost control API the desktop UI drives:
// status, processed/error listings, manual cycle triggers and runtime
// configuration changes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"vnexim/mavach/internal/adapters/tracking"
	"vnexim/mavach/internal/application/retrieval"
	"vnexim/mavach/internal/application/scheduler"
	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/asyncdb"
	"vnexim/mavach/internal/infrastructure/config"
	httputil "vnexim/mavach/internal/infrastructure/http"
	"vnexim/mavach/internal/infrastructure/http/middleware"
	"vnexim/mavach/internal/infrastructure/telemetry"
)

// Workflow is the scheduler surface the API exposes.
type Workflow interface {
	RunOnce(ctx context.Context) (scheduler.Summary, error)
	Redownload(ctx context.Context, ds []declaration.Declaration) scheduler.Summary
	IsRunning() bool
	SetOperationMode(m config.OperationMode)
	GetOperationMode() config.OperationMode
}

// Retriever is the orchestrator surface the API exposes.
type Retriever interface {
	SetMethod(m config.RetrievalMethod)
	GetMethod() config.RetrievalMethod
	Failures() map[retrieval.Method]int
}

// TrackingReader serves the listing endpoints. Reads go through the async
// pool so a slow tracking database never stalls the request workers for the
// rest of the API.
type TrackingReader interface {
	GetAllProcessedDetails() ([]tracking.ProcessedEntry, error)
	GetErrorHistory(days int) ([]tracking.ErrorEntry, error)
	GetErrorCount(days int) (int64, error)
}

// SourceProbe checks declaration-database connectivity for /status.
type SourceProbe interface {
	Test(ctx context.Context) bool
}

// OutputControl lets the API redirect where documents are written.
type OutputControl interface {
	SetOutputDir(dir string)
}

// Options carries the server's collaborators.
type Options struct {
	Addr      string
	Version   string
	Logger    *slog.Logger
	Workflow  Workflow
	Retriever Retriever
	Tracking  TrackingReader
	Source    SourceProbe
	Output    OutputControl
	Pool      *asyncdb.Pool
	Telemetry *telemetry.Collector
}

// Server is the control API host.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
	opts       Options
}

// New wires the router. The API is meant to listen on loopback only.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Workflow == nil || opts.Retriever == nil || opts.Tracking == nil {
		return nil, errors.New("workflow, retriever and tracking are required")
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8246"
	}

	s := &Server{log: opts.Logger, opts: opts}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/status", s.handleStatus)
	r.Get("/processed", s.handleProcessed)
	r.Get("/errors", s.handleErrors)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CycleTimeout(30 * time.Minute))
		r.Post("/run", s.handleRun)
		r.Post("/redownload", s.handleRedownload)
	})

	r.Put("/config/method", s.handleSetMethod)
	r.Put("/config/mode", s.handleSetMode)
	r.Put("/config/output", s.handleSetOutput)

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 31 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control API started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	failures := make(map[string]int)
	for m, n := range s.opts.Retriever.Failures() {
		failures[string(m)] = n
	}

	sourceOK := false
	if s.opts.Source != nil {
		probeCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		sourceOK = s.opts.Source.Test(probeCtx)
		cancel()
	}

	errorCount, err := s.opts.Tracking.GetErrorCount(30)
	if err != nil {
		s.log.Error("error count lookup failed", "error", err)
	}

	payload := map[string]any{
		"version":          s.opts.Version,
		"running":          s.opts.Workflow.IsRunning(),
		"operation_mode":   s.opts.Workflow.GetOperationMode(),
		"retrieval_method": s.opts.Retriever.GetMethod(),
		"method_failures":  failures,
		"source_db_ok":     sourceOK,
		"errors_30d":       errorCount,
	}
	if s.opts.Telemetry != nil {
		payload["metrics"] = s.opts.Telemetry.Snapshot()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	entries, err := s.offload(r.Context(), func() (any, error) {
		return s.opts.Tracking.GetAllProcessedDetails()
	})
	if err != nil {
		s.log.Error("processed listing failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list processed declarations", nil, s.log)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "days must be a positive integer", nil, s.log)
			return
		}
		days = n
	}

	entries, err := s.offload(r.Context(), func() (any, error) {
		return s.opts.Tracking.GetErrorHistory(days)
	})
	if err != nil {
		s.log.Error("error listing failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list error history", nil, s.log)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// offload runs a tracking read on the async pool when one is configured.
func (s *Server) offload(ctx context.Context, op asyncdb.Operation) (any, error) {
	if s.opts.Pool == nil {
		return op()
	}
	results, err := s.opts.Pool.Submit(op)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-results:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.opts.Workflow.RunOnce(r.Context())
	if err != nil {
		s.log.Error("manual cycle failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "cycle failed", []string{err.Error()}, s.log)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type redownloadItem struct {
	DeclarationNumber string `json:"declaration_number"`
	TaxCode           string `json:"tax_code"`
	Date              string `json:"date"`
	CustomsOfficeCode string `json:"customs_office_code"`
}

func (s *Server) handleRedownload(w http.ResponseWriter, r *http.Request) {
	var items []redownloadItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid json", nil, s.log)
		return
	}
	if len(items) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "at least one declaration is required", nil, s.log)
		return
	}

	ds := make([]declaration.Declaration, 0, len(items))
	for i, item := range items {
		if item.DeclarationNumber == "" || item.TaxCode == "" {
			httputil.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("item %d: declaration_number and tax_code are required", i), nil, s.log)
			return
		}
		d := declaration.Declaration{
			Number:            item.DeclarationNumber,
			TaxCode:           item.TaxCode,
			CustomsOfficeCode: item.CustomsOfficeCode,
		}
		if item.Date != "" {
			date, err := time.ParseInLocation("2006-01-02", item.Date, time.Local)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest,
					fmt.Sprintf("item %d: date must be YYYY-MM-DD", i), nil, s.log)
				return
			}
			d.Date = date
		}
		ds = append(ds, d)
	}

	writeJSON(w, http.StatusOK, s.opts.Workflow.Redownload(r.Context(), ds))
}

func (s *Server) handleSetMethod(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid json", nil, s.log)
		return
	}
	method := config.RetrievalMethod(strings.ToLower(strings.TrimSpace(body.Method)))
	switch method {
	case config.RetrievalAPI, config.RetrievalWeb, config.RetrievalAuto:
	default:
		httputil.WriteError(w, http.StatusBadRequest, "method must be one of api, web, auto", nil, s.log)
		return
	}
	s.opts.Retriever.SetMethod(method)
	writeJSON(w, http.StatusOK, map[string]any{"retrieval_method": method})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid json", nil, s.log)
		return
	}
	mode := config.OperationMode(strings.ToLower(strings.TrimSpace(body.Mode)))
	switch mode {
	case config.ModeAutomatic, config.ModeManual:
	default:
		httputil.WriteError(w, http.StatusBadRequest, "mode must be automatic or manual", nil, s.log)
		return
	}
	s.opts.Workflow.SetOperationMode(mode)
	writeJSON(w, http.StatusOK, map[string]any{"operation_mode": mode})
}

func (s *Server) handleSetOutput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OutputDir string `json:"output_dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid json", nil, s.log)
		return
	}
	dir := strings.TrimSpace(body.OutputDir)
	if dir == "" {
		httputil.WriteError(w, http.StatusBadRequest, "output_dir is required", nil, s.log)
		return
	}
	if s.opts.Output == nil {
		httputil.WriteError(w, http.StatusConflict, "output directory is not adjustable", nil, s.log)
		return
	}
	s.opts.Output.SetOutputDir(dir)
	writeJSON(w, http.StatusOK, map[string]any{"output_dir": dir})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
