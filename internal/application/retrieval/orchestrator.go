// Package retrieval chooses how each declaration's barcode document is
// obtained: the SOAP service with local rendering, or one of the scraping
// fallbacks, guarded per method by a circuit breaker.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vnexim/mavach/internal/adapters/customs/soap"
	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/config"
	"vnexim/mavach/internal/infrastructure/resilience"
	"vnexim/mavach/internal/infrastructure/telemetry"
)

// Method identifies one retrieval channel.
type Method string

const (
	MethodAPI        Method = "api"
	MethodPrimaryWeb Method = "primary_web"
	MethodBackupWeb  Method = "backup_web"
)

// Per-method breaker tuning: three consecutive failures open a method, one
// trial is allowed a minute later.
const (
	breakerThreshold = 3
	breakerRecovery  = 60 * time.Second
)

// APIClient is the SOAP query surface the orchestrator needs.
type APIClient interface {
	Query(ctx context.Context, req soap.QueryRequest) (*declaration.Record, error)
}

// Renderer turns a service record into document bytes.
type Renderer interface {
	Render(rec *declaration.Record) ([]byte, error)
}

// WebFetcher is the scraping surface, one per lookup URL.
type WebFetcher interface {
	Fetch(ctx context.Context, d declaration.Declaration) ([]byte, error)
}

// networkOnly marks which failure kinds are worth retrying within a method.
var networkOnly = map[resilience.Kind]bool{resilience.KindNetwork: true}

// Orchestrator tries retrieval methods in the order the configured strategy
// dictates, retrying transient failures within a method and tripping that
// method's breaker when it keeps failing.
type Orchestrator struct {
	api      APIClient
	renderer Renderer
	primary  WebFetcher
	backup   WebFetcher

	maxRetries int
	retryDelay time.Duration

	breakers map[Method]*CircuitBreaker
	tel      *telemetry.Collector
	log      *slog.Logger

	mu     sync.Mutex
	method config.RetrievalMethod
}

// New builds an orchestrator. backup may be nil when no backup URL is
// configured.
func New(method config.RetrievalMethod, api APIClient, renderer Renderer, primary, backup WebFetcher,
	maxRetries int, retryDelay time.Duration, tel *telemetry.Collector, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		api:        api,
		renderer:   renderer,
		primary:    primary,
		backup:     backup,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		breakers: map[Method]*CircuitBreaker{
			MethodAPI:        NewCircuitBreaker(breakerThreshold, breakerRecovery),
			MethodPrimaryWeb: NewCircuitBreaker(breakerThreshold, breakerRecovery),
			MethodBackupWeb:  NewCircuitBreaker(breakerThreshold, breakerRecovery),
		},
		tel:    tel,
		log:    log,
		method: method,
	}
}

// order lists the methods the current strategy allows, in try order.
func (o *Orchestrator) order() []Method {
	o.mu.Lock()
	method := o.method
	o.mu.Unlock()

	var methods []Method
	switch method {
	case config.RetrievalAPI:
		methods = []Method{MethodAPI}
	case config.RetrievalWeb:
		methods = []Method{MethodPrimaryWeb, MethodBackupWeb}
	default:
		methods = []Method{MethodAPI, MethodPrimaryWeb, MethodBackupWeb}
	}

	// Unconfigured fetchers never enter the rotation.
	allowed := methods[:0]
	for _, m := range methods {
		if (m == MethodPrimaryWeb && o.primary == nil) || (m == MethodBackupWeb && o.backup == nil) {
			continue
		}
		allowed = append(allowed, m)
	}
	return allowed
}

// ShouldTry reports whether a method's breaker currently allows a call.
func (o *Orchestrator) ShouldTry(m Method) bool {
	return !o.breakers[m].IsOpen()
}

// Retrieve returns the barcode document for a declaration, or the last
// method's failure when every allowed method fails or is skipped.
func (o *Orchestrator) Retrieve(ctx context.Context, d declaration.Declaration) ([]byte, error) {
	var lastErr error
	for _, m := range o.order() {
		if !o.ShouldTry(m) {
			o.log.Warn("skipping retrieval method, circuit open", "method", m, "declaration", d.Number)
			o.tel.Add(fmt.Sprintf("retrieve.%s.skipped", m), 1)
			continue
		}

		done := o.tel.Timer(fmt.Sprintf("retrieve.%s", m))
		pdf, err := resilience.Retry(ctx, o.log, string(m), func() ([]byte, error) {
			return o.try(ctx, m, d)
		}, networkOnly, o.maxRetries, o.retryDelay)
		done(err)

		if err == nil && len(pdf) > 0 {
			o.breakers[m].RecordSuccess()
			o.log.Info("document retrieved", "method", m, "declaration", d.Number, "bytes", len(pdf))
			return pdf, nil
		}
		if err == nil {
			err = resilience.NewError(resilience.KindData,
				fmt.Errorf("method %s returned an empty document", m))
		}
		o.breakers[m].RecordFailure()
		lastErr = err
		o.log.Warn("retrieval method failed", "method", m, "declaration", d.Number,
			"kind", resilience.Classify(err), "error", err)
	}

	if lastErr == nil {
		lastErr = resilience.NewError(resilience.KindNetwork,
			fmt.Errorf("all retrieval methods skipped for %s: %w", d.Number, ErrCircuitOpen))
	}
	return nil, lastErr
}

func (o *Orchestrator) try(ctx context.Context, m Method, d declaration.Declaration) ([]byte, error) {
	switch m {
	case MethodAPI:
		rec, err := o.api.Query(ctx, soap.QueryRequest{
			TaxCode:           d.TaxCode,
			DeclarationNumber: d.Number,
			CustomsOfficeCode: d.CustomsOfficeCode,
			RegistrationDate:  d.Date,
		})
		if err != nil {
			return nil, err
		}
		return o.renderer.Render(rec)
	case MethodPrimaryWeb:
		return o.primary.Fetch(ctx, d)
	case MethodBackupWeb:
		return o.backup.Fetch(ctx, d)
	default:
		return nil, fmt.Errorf("unknown retrieval method %q", m)
	}
}

// ResetBatch clears every method's failure count. The scheduler calls it at
// the start of each cycle.
func (o *Orchestrator) ResetBatch() {
	for _, br := range o.breakers {
		br.Reset()
	}
}

// SetMethod swaps the strategy at runtime and resets the breakers.
func (o *Orchestrator) SetMethod(m config.RetrievalMethod) {
	o.mu.Lock()
	o.method = m
	o.mu.Unlock()
	o.ResetBatch()
	o.log.Info("retrieval method changed", "method", m)
}

// GetMethod returns the current strategy.
func (o *Orchestrator) GetMethod() config.RetrievalMethod {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.method
}

// Failures reports the current consecutive-failure count per method.
func (o *Orchestrator) Failures() map[Method]int {
	out := make(map[Method]int, len(o.breakers))
	for m, br := range o.breakers {
		out[m] = br.Failures()
	}
	return out
}
