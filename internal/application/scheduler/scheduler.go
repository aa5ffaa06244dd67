// Package scheduler drives the retrieval workflow: periodically in automatic
// mode, or only on demand in manual mode.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/config"
	appcontext "vnexim/mavach/internal/infrastructure/context"
	"vnexim/mavach/internal/infrastructure/resilience"
	"vnexim/mavach/internal/infrastructure/telemetry"
)

// Source yields candidate declarations from the declaration database.
type Source interface {
	GetDeclarations(ctx context.Context, from, to time.Time, taxCodes []string) ([]declaration.Declaration, error)
}

// Tracker records outcomes in the tracking store.
type Tracker interface {
	GetAllProcessed() (map[string]struct{}, error)
	AddProcessed(d declaration.Declaration, filePath string) error
	UpdateProcessedTimestamp(d declaration.Declaration) error
	RecordError(declarationNumber, errorType, message string, at time.Time) error
}

// Retriever obtains document bytes for one declaration.
type Retriever interface {
	Retrieve(ctx context.Context, d declaration.Declaration) ([]byte, error)
	ResetBatch()
}

// Saver writes a document to the output directory.
type Saver interface {
	Save(d declaration.Declaration, pdf []byte, overwrite bool) (string, error)
}

// Filter applies the business eligibility rules.
type Filter interface {
	Filter(candidates []declaration.Declaration, processed map[string]struct{}) []declaration.Declaration
}

// Summary reports the outcome of one workflow cycle.
type Summary struct {
	TotalFetched  int `json:"total_fetched"`
	TotalEligible int `json:"total_eligible"`
	SuccessCount  int `json:"success_count"`
	ErrorCount    int `json:"error_count"`
}

// Scheduler owns the cycle loop and the last-cycle watermark. Declarations
// within a cycle are processed sequentially, in source order.
type Scheduler struct {
	source    Source
	tracker   Tracker
	retriever Retriever
	saver     Saver
	filter    Filter
	taxCodes  []string
	interval  time.Duration
	tel       *telemetry.Collector
	log       *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	mode      config.OperationMode
	running   bool
	stop      chan struct{}
	done      chan struct{}
	lastCycle time.Time
	cycleMu   sync.Mutex
}

// New builds a scheduler. The first cycle looks back from the given
// lookback duration; subsequent cycles start where the previous one ended.
func New(source Source, tracker Tracker, retriever Retriever, saver Saver, filter Filter,
	taxCodes []string, interval, lookback time.Duration, mode config.OperationMode,
	tel *telemetry.Collector, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		source:    source,
		tracker:   tracker,
		retriever: retriever,
		saver:     saver,
		filter:    filter,
		taxCodes:  taxCodes,
		interval:  interval,
		mode:      mode,
		tel:       tel,
		log:       log,
		now:       time.Now,
	}
	s.lastCycle = s.now().Add(-lookback)
	return s
}

// Start launches the automatic loop. Calling Start while running is a no-op.
// In manual mode the loop sleeps and cycles run only via RunOnce.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
	s.log.Info("scheduler started", "mode", s.mode, "interval", s.interval)
}

// Stop signals the loop and waits for it to exit. An in-flight cycle
// completes naturally. Calling Stop while stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.log.Info("scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetOperationMode switches between automatic and manual without restarting
// the loop.
func (s *Scheduler) SetOperationMode(m config.OperationMode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	s.log.Info("operation mode changed", "mode", m)
}

// GetOperationMode returns the current mode.
func (s *Scheduler) GetOperationMode() config.OperationMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		if s.GetOperationMode() == config.ModeAutomatic {
			if _, err := s.RunOnce(context.Background()); err != nil {
				// Cycle errors never terminate the loop.
				s.log.Error("cycle failed", "error", err)
			}
		}
		select {
		case <-stop:
			return
		case <-time.After(s.interval):
		}
	}
}

// RunOnce executes one workflow cycle synchronously. Concurrent callers are
// serialized; the loop and a manual trigger never interleave mid-cycle.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	ctx, cycleID := appcontext.WithNewCorrelationID(ctx)
	log := s.log.With("cycle_id", cycleID)
	start := s.now()
	done := s.tel.Timer("scheduler.cycle")

	summary, err := s.runCycle(ctx, log, s.lastCycle, start)
	done(err)
	if err != nil {
		return summary, err
	}
	s.lastCycle = start

	s.tel.Add("scheduler.cycles", 1)
	s.tel.SetGauge("scheduler.last_cycle_errors", float64(summary.ErrorCount))
	log.Info("cycle finished",
		"fetched", summary.TotalFetched, "eligible", summary.TotalEligible,
		"succeeded", summary.SuccessCount, "failed", summary.ErrorCount,
		"elapsed", s.now().Sub(start))
	return summary, nil
}

func (s *Scheduler) runCycle(ctx context.Context, log *slog.Logger, from, to time.Time) (Summary, error) {
	var summary Summary

	processed, err := s.tracker.GetAllProcessed()
	if err != nil {
		return summary, fmt.Errorf("load processed set: %w", err)
	}

	candidates, err := s.source.GetDeclarations(ctx, from, to, s.taxCodes)
	if err != nil {
		return summary, fmt.Errorf("fetch declarations: %w", err)
	}
	summary.TotalFetched = len(candidates)

	eligible := s.filter.Filter(candidates, processed)
	summary.TotalEligible = len(eligible)
	if len(eligible) == 0 {
		return summary, nil
	}
	log.Info("cycle starting", "fetched", summary.TotalFetched, "eligible", summary.TotalEligible)

	s.retriever.ResetBatch()
	for _, d := range eligible {
		if s.processOne(ctx, log, d, false) {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
		}
	}
	return summary, nil
}

// processOne retrieves, saves and records one declaration. It returns false
// after writing an error_history row when any step fails.
func (s *Scheduler) processOne(ctx context.Context, log *slog.Logger, d declaration.Declaration, overwrite bool) bool {
	pdf, err := s.retriever.Retrieve(ctx, d)
	if err != nil {
		s.recordFailure(log, d, err)
		return false
	}

	path, err := s.saver.Save(d, pdf, overwrite)
	if err != nil {
		s.recordFailure(log, d, err)
		return false
	}
	if path == "" {
		// The target already existed and the conflict policy declined to
		// write. Without a file there is nothing to mark processed.
		s.recordFailure(log, d, resilience.NewError(resilience.KindFileSystem,
			fmt.Errorf("output for %s already exists and was not overwritten", d.Number)))
		return false
	}
	if err := s.tracker.AddProcessed(d, path); err != nil {
		s.recordFailure(log, d, err)
		return false
	}
	s.tel.Add("scheduler.documents", 1)
	log.Info("declaration processed", "declaration", d.Number, "path", path)
	return true
}

func (s *Scheduler) recordFailure(log *slog.Logger, d declaration.Declaration, cause error) {
	kind := resilience.Classify(cause)
	log.Error("declaration failed", "declaration", d.Number, "kind", kind, "error", cause)
	s.tel.Add("scheduler.failures", 1)
	if err := s.tracker.RecordError(d.Number, string(kind), cause.Error(), s.now()); err != nil {
		log.Error("recording failure also failed", "declaration", d.Number, "error", err)
	}
}

// Redownload forces retrieval for the given declarations, overwriting any
// existing files and refreshing their processed timestamps.
func (s *Scheduler) Redownload(ctx context.Context, ds []declaration.Declaration) Summary {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	ctx, cycleID := appcontext.WithNewCorrelationID(ctx)
	log := s.log.With("cycle_id", cycleID, "redownload", true)

	summary := Summary{TotalFetched: len(ds), TotalEligible: len(ds)}
	s.retriever.ResetBatch()
	for _, d := range ds {
		if !s.processOne(ctx, log, d, true) {
			summary.ErrorCount++
			continue
		}
		if err := s.tracker.UpdateProcessedTimestamp(d); err != nil {
			log.Error("refresh processed timestamp failed", "declaration", d.Number, "error", err)
		}
		summary.SuccessCount++
	}
	log.Info("redownload finished", "requested", len(ds),
		"succeeded", summary.SuccessCount, "failed", summary.ErrorCount)
	return summary
}
