package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vnexim/mavach/internal/adapters/tracking"
	"vnexim/mavach/internal/application/retrieval"
	"vnexim/mavach/internal/application/scheduler"
	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/asyncdb"
	"vnexim/mavach/internal/infrastructure/config"
	"vnexim/mavach/internal/infrastructure/telemetry"
	"vnexim/mavach/internal/testutil"
)

type stubWorkflow struct {
	mu         sync.Mutex
	running    bool
	mode       config.OperationMode
	runCalls   int
	redownload []declaration.Declaration
	summary    scheduler.Summary
	runErr     error
}

func (s *stubWorkflow) RunOnce(_ context.Context) (scheduler.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCalls++
	return s.summary, s.runErr
}

func (s *stubWorkflow) Redownload(_ context.Context, ds []declaration.Declaration) scheduler.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redownload = ds
	return s.summary
}

func (s *stubWorkflow) IsRunning() bool { return s.running }

func (s *stubWorkflow) SetOperationMode(m config.OperationMode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *stubWorkflow) GetOperationMode() config.OperationMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

type stubRetriever struct {
	mu     sync.Mutex
	method config.RetrievalMethod
}

func (s *stubRetriever) SetMethod(m config.RetrievalMethod) {
	s.mu.Lock()
	s.method = m
	s.mu.Unlock()
}

func (s *stubRetriever) GetMethod() config.RetrievalMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

func (s *stubRetriever) Failures() map[retrieval.Method]int {
	return map[retrieval.Method]int{retrieval.MethodAPI: 1, retrieval.MethodPrimaryWeb: 0}
}

type stubTracking struct{}

func (stubTracking) GetAllProcessedDetails() ([]tracking.ProcessedEntry, error) {
	return []tracking.ProcessedEntry{{
		DeclarationID:     "0101234567_103000000001",
		TaxCode:           "0101234567",
		DeclarationNumber: "103000000001",
		FilePath:          "/out/MV_0101234567_103000000001.pdf",
		ProcessedAt:       time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}}, nil
}

func (stubTracking) GetErrorHistory(days int) ([]tracking.ErrorEntry, error) {
	return []tracking.ErrorEntry{{ID: 1, DeclarationNumber: "103000000002", ErrorType: "network"}}, nil
}

func (stubTracking) GetErrorCount(int) (int64, error) { return 1, nil }

func newTestServer(t *testing.T, wf *stubWorkflow, ret *stubRetriever) *Server {
	t.Helper()
	pool := asyncdb.NewPool(1, testutil.NewNullLogger())
	t.Cleanup(func() { pool.Shutdown(true) })

	srv, err := New(Options{
		Version:   "test",
		Logger:    testutil.NewNullLogger(),
		Workflow:  wf,
		Retriever: ret,
		Tracking:  stubTracking{},
		Pool:      pool,
		Telemetry: telemetry.New(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubWorkflow{}, &stubRetriever{})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	wf := &stubWorkflow{running: true, mode: config.ModeAutomatic}
	ret := &stubRetriever{method: config.RetrievalAuto}
	srv := newTestServer(t, wf, ret)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	var payload map[string]any
	testutil.ReadJSONResponse(t, w, &payload)
	if payload["running"] != true {
		t.Errorf("running = %v, want true", payload["running"])
	}
	if payload["retrieval_method"] != "auto" {
		t.Errorf("retrieval_method = %v, want auto", payload["retrieval_method"])
	}
	failures, ok := payload["method_failures"].(map[string]any)
	if !ok || failures["api"] != float64(1) {
		t.Errorf("method_failures = %v, want api=1", payload["method_failures"])
	}
}

func TestProcessedListing(t *testing.T) {
	srv := newTestServer(t, &stubWorkflow{}, &stubRetriever{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/processed", nil))

	var entries []map[string]any
	testutil.ReadJSONResponse(t, w, &entries)
	if len(entries) != 1 || entries[0]["declaration_number"] != "103000000001" {
		t.Errorf("entries = %v, want one row for 103000000001", entries)
	}
}

func TestErrorsListingValidatesDays(t *testing.T) {
	srv := newTestServer(t, &stubWorkflow{}, &stubRetriever{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/errors?days=zero", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-numeric days", w.Code)
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/errors?days=7", nil))
	var entries []map[string]any
	testutil.ReadJSONResponse(t, w, &entries)
	if len(entries) != 1 {
		t.Errorf("entries = %v, want one row", entries)
	}
}

func TestRunTriggersCycle(t *testing.T) {
	wf := &stubWorkflow{summary: scheduler.Summary{TotalFetched: 5, TotalEligible: 2, SuccessCount: 2}}
	srv := newTestServer(t, wf, &stubRetriever{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/run", nil))

	var summary scheduler.Summary
	testutil.ReadJSONResponse(t, w, &summary)
	if summary.SuccessCount != 2 {
		t.Errorf("summary = %+v, want 2 successes", summary)
	}
	if wf.runCalls != 1 {
		t.Errorf("runCalls = %d, want 1", wf.runCalls)
	}
}

func TestRedownload(t *testing.T) {
	wf := &stubWorkflow{summary: scheduler.Summary{TotalFetched: 1, TotalEligible: 1, SuccessCount: 1}}
	srv := newTestServer(t, wf, &stubRetriever{})

	body := `[{"declaration_number":"103000000001","tax_code":"0101234567","date":"2025-03-10","customs_office_code":"01B1"}]`
	req := httptest.NewRequest(http.MethodPost, "/redownload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var summary scheduler.Summary
	testutil.ReadJSONResponse(t, w, &summary)
	if len(wf.redownload) != 1 || wf.redownload[0].Number != "103000000001" {
		t.Errorf("redownload received %v, want one declaration", wf.redownload)
	}
	if wf.redownload[0].Date.Day() != 10 {
		t.Errorf("date parsed as %v, want day 10", wf.redownload[0].Date)
	}
}

func TestRedownloadRejectsEmptyBody(t *testing.T) {
	srv := newTestServer(t, &stubWorkflow{}, &stubRetriever{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, testutil.CreateRequest(http.MethodPost, "/redownload", []any{}, nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for empty list", w.Code)
	}
}

func TestSetMethod(t *testing.T) {
	ret := &stubRetriever{method: config.RetrievalAuto}
	srv := newTestServer(t, &stubWorkflow{}, ret)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, testutil.CreateRequest(http.MethodPut, "/config/method",
		map[string]string{"method": "web"}, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ret.GetMethod() != config.RetrievalWeb {
		t.Errorf("method = %v, want web", ret.GetMethod())
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, testutil.CreateRequest(http.MethodPut, "/config/method",
		map[string]string{"method": "carrier-pigeon"}, nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown method", w.Code)
	}
}

func TestSetMode(t *testing.T) {
	wf := &stubWorkflow{mode: config.ModeManual}
	srv := newTestServer(t, wf, &stubRetriever{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, testutil.CreateRequest(http.MethodPut, "/config/mode",
		map[string]string{"mode": "automatic"}, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if wf.GetOperationMode() != config.ModeAutomatic {
		t.Errorf("mode = %v, want automatic", wf.GetOperationMode())
	}
}

func TestSetOutputRequiresTarget(t *testing.T) {
	srv := newTestServer(t, &stubWorkflow{}, &stubRetriever{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, testutil.CreateRequest(http.MethodPut, "/config/output",
		map[string]string{"output_dir": "/tmp/out"}, nil))
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when no output control is wired", w.Code)
	}
}
