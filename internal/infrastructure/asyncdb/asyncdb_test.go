package asyncdb

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestPool(workers int) *Pool {
	return NewPool(workers, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmitDeliversResult(t *testing.T) {
	p := newTestPool(2)
	defer p.Shutdown(true)

	ch, err := p.Submit(func() (any, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case res := <-ch:
		if res.Err != nil || res.Value != 42 {
			t.Errorf("result = %+v, want value 42", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestSubmitWithCallbacks(t *testing.T) {
	p := newTestPool(1)
	defer p.Shutdown(true)

	success := make(chan any, 1)
	failure := make(chan error, 1)

	err := p.SubmitWithCallbacks(
		func() (any, error) { return "rows", nil },
		func(v any) { success <- v },
		func(e error) { failure <- e },
	)
	if err != nil {
		t.Fatalf("SubmitWithCallbacks: %v", err)
	}

	select {
	case v := <-success:
		if v != "rows" {
			t.Errorf("success value = %v", v)
		}
	case e := <-failure:
		t.Fatalf("unexpected error callback: %v", e)
	case <-time.After(time.Second):
		t.Fatal("no callback fired")
	}

	boom := errors.New("query failed")
	p.SubmitWithCallbacks(
		func() (any, error) { return nil, boom },
		func(any) { t.Error("success callback must not fire") },
		func(e error) { failure <- e },
	)
	select {
	case e := <-failure:
		if !errors.Is(e, boom) {
			t.Errorf("error callback got %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("error callback never fired")
	}
}

func TestEveryOperationRunsToCompletion(t *testing.T) {
	p := newTestPool(2)

	const n = 20
	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		err := p.SubmitWithCallbacks(
			func() (any, error) { return i, nil },
			func(v any) {
				mu.Lock()
				seen[v.(int)] = true
				mu.Unlock()
				wg.Done()
			},
			func(error) { wg.Done() },
		)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("operations did not complete")
	}

	p.Shutdown(true)
	if len(seen) != n {
		t.Errorf("completed = %d, want %d", len(seen), n)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := newTestPool(1)
	p.Shutdown(true)

	if _, err := p.Submit(func() (any, error) { return nil, nil }); !errors.Is(err, ErrShutDown) {
		t.Errorf("Submit after Shutdown = %v, want ErrShutDown", err)
	}
	// Shutdown is idempotent.
	p.Shutdown(true)
}
