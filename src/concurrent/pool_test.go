package concurrent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateRejectsAtCapWithoutIncrement(t *testing.T) {
	g := NewGate(2)
	if !g.TryAcquire() || !g.TryAcquire() {
		t.Fatalf("expected two acquisitions to succeed")
	}
	if g.TryAcquire() {
		t.Fatalf("expected third acquisition to be refused")
	}
	if got := g.InFlight(); got != 2 {
		t.Fatalf("in flight = %d, want 2", got)
	}
	g.Release()
	if !g.TryAcquire() {
		t.Fatalf("expected acquisition after release")
	}
}

func TestGateReleaseNeverGoesNegative(t *testing.T) {
	g := NewGate(0)
	if g.Cap() != DefaultGateCap {
		t.Fatalf("cap = %d, want default %d", g.Cap(), DefaultGateCap)
	}
	g.Release()
	if got := g.InFlight(); got != 0 {
		t.Fatalf("in flight = %d, want 0", got)
	}
}

func TestGateConcurrentAcquireHonoursCap(t *testing.T) {
	g := NewGate(2)
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	if admitted.Load() != 2 {
		t.Fatalf("admitted %d, want 2", admitted.Load())
	}
}

func TestSettleKeepsSubmissionOrder(t *testing.T) {
	results := Settle(context.Background(), 4, func(_ context.Context, i int) (int, error) {
		// later indices finish first
		time.Sleep(time.Duration(4-i) * 5 * time.Millisecond)
		if i == 1 {
			return 0, errors.New("boom")
		}
		return i * 10, nil
	})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if i == 1 {
			if r.OK() {
				t.Fatalf("expected index 1 to fail")
			}
			continue
		}
		if !r.OK() || r.Value != i*10 {
			t.Fatalf("result %d = %+v", i, r)
		}
	}
}

func TestSettleWaitsForSlowSiblingAfterFailure(t *testing.T) {
	release := make(chan struct{})
	done := make(chan []Result[string])
	go func() {
		done <- Settle(context.Background(), 2, func(_ context.Context, i int) (string, error) {
			if i == 0 {
				return "", errors.New("fast failure")
			}
			<-release
			return "slow", nil
		})
	}()

	select {
	case <-done:
		t.Fatalf("Settle returned before the slow call finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	results := <-done
	if results[1].Value != "slow" {
		t.Fatalf("expected slow call to complete, got %+v", results[1])
	}
}

func TestParallelMapPreservesOrder(t *testing.T) {
	items := []string{"a", "b", "c"}
	out, err := ParallelMap(context.Background(), items, func(_ context.Context, s string) (string, error) {
		return s + s, nil
	}, 2)
	if err != nil {
		t.Fatalf("ParallelMap returned error: %v", err)
	}
	want := []string{"aa", "bb", "cc"}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
}

func TestParallelMapReturnsFirstErrorByIndex(t *testing.T) {
	items := []int{1, 2, 3}
	_, err := ParallelMap(context.Background(), items, func(_ context.Context, n int) (int, error) {
		if n >= 2 {
			return 0, errors.New("bad item")
		}
		return n, nil
	}, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
}
