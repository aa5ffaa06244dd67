package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Summary aggregates recorded timings for one operation name.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// Collector keeps in-memory counters, gauges and operation timings.
// All methods are safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string][]float64

	now func() time.Time
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string][]float64),
		now:      time.Now,
	}
}

// Add increments a counter by n.
func (c *Collector) Add(name string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += n
}

// Counter returns the current value of a counter.
func (c *Collector) Counter(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// SetGauge records the current value of a gauge.
func (c *Collector) SetGauge(name string, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] = v
}

// Gauge returns the current value of a gauge.
func (c *Collector) Gauge(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gauges[name]
}

// Timer starts timing an operation. The returned stop function records the
// elapsed seconds and increments "<name>.success" or "<name>.errors"
// depending on the outcome it is given.
func (c *Collector) Timer(name string) func(err error) {
	start := c.now()
	return func(err error) {
		elapsed := c.now().Sub(start).Seconds()
		c.mu.Lock()
		defer c.mu.Unlock()
		c.timings[name] = append(c.timings[name], elapsed)
		if err != nil {
			c.counters[name+".errors"]++
		} else {
			c.counters[name+".success"]++
		}
	}
}

// TimingSummary returns count/min/max/avg for a timed operation, or a zero
// Summary when nothing was recorded.
func (c *Collector) TimingSummary(name string) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	series := c.timings[name]
	if len(series) == 0 {
		return Summary{}
	}

	s := Summary{Count: len(series), Min: series[0], Max: series[0]}
	var total float64
	for _, v := range series {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		total += v
	}
	s.Avg = total / float64(len(series))
	return s
}

// Snapshot returns counters, gauges and per-operation summaries. Raw timing
// series are not exported.
func (c *Collector) Snapshot() map[string]any {
	c.mu.Lock()
	counters := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(c.gauges))
	for k, v := range c.gauges {
		gauges[k] = v
	}
	names := make([]string, 0, len(c.timings))
	for k := range c.timings {
		names = append(names, k)
	}
	c.mu.Unlock()

	summaries := make(map[string]Summary, len(names))
	for _, name := range names {
		summaries[name] = c.TimingSummary(name)
	}

	return map[string]any{
		"counters": counters,
		"gauges":   gauges,
		"timings":  summaries,
	}
}

// Persist writes the current snapshot as JSON to path.
func (c *Collector) Persist(path string) error {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}
	return nil
}
