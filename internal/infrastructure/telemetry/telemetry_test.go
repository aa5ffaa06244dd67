package telemetry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCounters(t *testing.T) {
	c := New()
	c.Add("declarations.processed", 1)
	c.Add("declarations.processed", 2)
	if got := c.Counter("declarations.processed"); got != 3 {
		t.Errorf("counter = %d, want 3", got)
	}
	if got := c.Counter("never.touched"); got != 0 {
		t.Errorf("untouched counter = %d, want 0", got)
	}
}

func TestGauges(t *testing.T) {
	c := New()
	c.SetGauge("queue.depth", 5)
	c.SetGauge("queue.depth", 2)
	if got := c.Gauge("queue.depth"); got != 2 {
		t.Errorf("gauge = %v, want 2", got)
	}
}

func TestTimerRecordsOutcome(t *testing.T) {
	c := New()
	// Deterministic clock: each call advances 100ms.
	var ticks int
	base := time.Unix(0, 0)
	c.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * 100 * time.Millisecond)
	}

	stop := c.Timer("retrieve")
	stop(nil)
	stop = c.Timer("retrieve")
	stop(errors.New("boom"))

	if got := c.Counter("retrieve.success"); got != 1 {
		t.Errorf("success counter = %d, want 1", got)
	}
	if got := c.Counter("retrieve.errors"); got != 1 {
		t.Errorf("error counter = %d, want 1", got)
	}

	s := c.TimingSummary("retrieve")
	if s.Count != 2 {
		t.Fatalf("summary count = %d, want 2", s.Count)
	}
	if s.Min != 0.1 || s.Max != 0.1 || s.Avg != 0.1 {
		t.Errorf("summary = %+v, want all 0.1", s)
	}
}

func TestTimingSummaryEmpty(t *testing.T) {
	c := New()
	if s := c.TimingSummary("nothing"); s.Count != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestPersistWritesJSON(t *testing.T) {
	c := New()
	c.Add("cycles", 4)
	c.SetGauge("eligible", 7)

	path := filepath.Join(t.TempDir(), "telemetry.json")
	if err := c.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted file: %v", err)
	}

	var snapshot struct {
		Counters map[string]int64   `json:"counters"`
		Gauges   map[string]float64 `json:"gauges"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snapshot.Counters["cycles"] != 4 {
		t.Errorf("persisted counter = %d, want 4", snapshot.Counters["cycles"])
	}
	if snapshot.Gauges["eligible"] != 7 {
		t.Errorf("persisted gauge = %v, want 7", snapshot.Gauges["eligible"])
	}
}
