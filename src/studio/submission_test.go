package studio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/Protocol-Lattice/backdrop/src/models"
)

// closableService fails every request that runs after Close, like a client whose
// connection has been torn down.
type closableService struct {
	*fakeService
	closed     atomic.Bool
	closeCalls atomic.Int32
}

func (c *closableService) GenerateBackground(ctx context.Context, req models.BackgroundRequest) (models.BackgroundResult, error) {
	res, err := c.fakeService.GenerateBackground(ctx, req)
	if c.closed.Load() {
		return models.BackgroundResult{}, errors.New("client connection is closing")
	}
	return res, err
}

func (c *closableService) RefineImage(ctx context.Context, req models.RefineRequest) (models.Image, error) {
	if c.closed.Load() {
		return models.Image{}, errors.New("client connection is closing")
	}
	return c.fakeService.RefineImage(ctx, req)
}

func (c *closableService) Close() error {
	c.closeCalls.Add(1)
	c.closed.Store(true)
	return nil
}

func newKeyedStudio(t *testing.T, services map[string]*closableService) *Studio {
	t.Helper()
	s, err := New(func(_ context.Context, key string) (models.ImageService, error) {
		svc, ok := services[key]
		if !ok {
			return nil, fmt.Errorf("no service for %q", key)
		}
		return svc, nil
	}, WithAPIKey("k1"), WithLimiter(newCountingLimiter(2)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

type generateResult struct {
	outcome BatchOutcome
	err     error
}

func generateAsync(ws *Workspace, in GenerateInput) <-chan generateResult {
	done := make(chan generateResult, 1)
	go func() {
		outcome, err := ws.Generate(context.Background(), in)
		done <- generateResult{outcome, err}
	}()
	return done
}

func TestKeySwitchKeepsInFlightBatchService(t *testing.T) {
	first := &closableService{fakeService: &fakeService{started: make(chan struct{}, 1), block: make(chan struct{})}}
	second := &closableService{fakeService: &fakeService{}}
	s := newKeyedStudio(t, map[string]*closableService{"k1": first, "k2": second})
	ctx := context.Background()

	tabA, _ := s.OpenTab(ctx, "", ModeProduct)
	tabB, _ := s.OpenTab(ctx, "", ModeProduct)

	done := generateAsync(tabA, generateInput(1))
	<-first.started

	if err := s.SelectKey(ctx, "k2"); err != nil {
		t.Fatalf("SelectKey: %v", err)
	}
	if _, err := tabB.Generate(ctx, generateInput(1)); err != nil {
		t.Fatalf("Generate with new key: %v", err)
	}
	if first.closeCalls.Load() != 0 {
		t.Fatal("service closed while a batch was still using it")
	}

	close(first.block)
	res := <-done
	if res.err != nil || res.outcome.Phase != PhaseAllSucceeded {
		t.Fatalf("in-flight batch: phase=%s err=%v", res.outcome.Phase, res.err)
	}
	if got := first.closeCalls.Load(); got != 1 {
		t.Fatalf("expected old service closed once after the batch settled, got %d", got)
	}
	if second.closeCalls.Load() != 0 {
		t.Fatal("current service must stay open")
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if second.closeCalls.Load() != 1 || first.closeCalls.Load() != 1 {
		t.Fatalf("unexpected close counts: first=%d second=%d", first.closeCalls.Load(), second.closeCalls.Load())
	}
}

func TestCredentialResetKeepsInFlightBatchService(t *testing.T) {
	svc := &closableService{fakeService: &fakeService{
		started:   make(chan struct{}, 1),
		block:     make(chan struct{}),
		refineErr: errors.New("rpc error: Requested entity was not found."),
	}}
	s := newKeyedStudio(t, map[string]*closableService{"k1": svc})
	ctx := context.Background()

	tabA, _ := s.OpenTab(ctx, "", ModeProduct)
	tabB, _ := s.OpenTab(ctx, "", ModeProduct)
	if _, err := tabB.Import(ctx, "shot.png", models.Image{MIME: "image/png", Data: []byte("png")}); err != nil {
		t.Fatalf("Import: %v", err)
	}

	done := generateAsync(tabA, generateInput(1))
	<-svc.started

	if _, err := tabB.Refine(ctx, RefineInput{Instruction: "warmer"}); KindOf(err) != KindCredential {
		t.Fatalf("expected credential error, got %v", err)
	}
	if s.Ready(ctx) {
		t.Fatal("expected key to be cleared")
	}
	if svc.closeCalls.Load() != 0 {
		t.Fatal("service closed while a batch was still using it")
	}

	close(svc.block)
	res := <-done
	if res.err != nil || res.outcome.Phase != PhaseAllSucceeded {
		t.Fatalf("in-flight batch: phase=%s err=%v", res.outcome.Phase, res.err)
	}
	if got := svc.closeCalls.Load(); got != 1 {
		t.Fatalf("expected service closed once after the batch settled, got %d", got)
	}
}

func TestSetModeDuringBatchKeepsSubmittedMode(t *testing.T) {
	svc := &fakeService{started: make(chan struct{}, 1), block: make(chan struct{})}
	h := newHarness(t, svc)
	ws := h.openTab(t)

	done := generateAsync(ws, generateInput(1))
	<-svc.started
	if err := ws.SetMode(ModePortrait); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	close(svc.block)

	res := <-done
	if res.err != nil {
		t.Fatalf("Generate: %v", res.err)
	}
	if got := res.outcome.Items[0].Mode; got != ModeProduct {
		t.Fatalf("item mode = %s, want %s", got, ModeProduct)
	}
	if got := ws.Tab().Mode; got != ModePortrait {
		t.Fatalf("tab mode = %s, want %s", got, ModePortrait)
	}
}

func TestPhaseTracksEverySubmissionOnTab(t *testing.T) {
	svc := &fakeService{started: make(chan struct{}, 2), block: make(chan struct{})}
	h := newHarness(t, svc)
	ws := h.openTab(t)

	first := generateAsync(ws, generateInput(1))
	second := generateAsync(ws, generateInput(1))
	<-svc.started
	<-svc.started
	if got := ws.Phase(); got != PhaseAwaitingResults {
		t.Fatalf("phase = %s, want %s", got, PhaseAwaitingResults)
	}

	if _, err := ws.Generate(context.Background(), GenerateInput{BatchSize: 1}); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
	if got := ws.Phase(); got != PhaseAwaitingResults {
		t.Fatalf("rejection changed phase to %s while batches are in flight", got)
	}

	svc.block <- struct{}{}
	select {
	case res := <-first:
		if res.err != nil {
			t.Fatalf("Generate: %v", res.err)
		}
	case res := <-second:
		if res.err != nil {
			t.Fatalf("Generate: %v", res.err)
		}
		second = first
	}
	if got := ws.Phase(); got != PhaseAwaitingResults {
		t.Fatalf("phase = %s after one of two batches settled, want %s", got, PhaseAwaitingResults)
	}

	svc.block <- struct{}{}
	if res := <-second; res.err != nil {
		t.Fatalf("Generate: %v", res.err)
	}
	if got := ws.Phase(); got != PhaseIdle {
		t.Fatalf("phase = %s, want %s", got, PhaseIdle)
	}
}

func TestTargetHeightIsBounded(t *testing.T) {
	svc := &fakeService{}
	h := newHarness(t, svc)
	ws := h.openTab(t)
	ctx := context.Background()

	in := generateInput(1)
	in.TargetHeight = math.MaxInt
	if _, err := ws.Generate(ctx, in); !errors.Is(err, ErrInvalidHeight) || KindOf(err) != KindValidation {
		t.Fatalf("expected ErrInvalidHeight, got %v", err)
	}

	in.TargetHeight = maxTargetHeight
	if _, err := ws.Generate(ctx, in); err != nil {
		t.Fatalf("Generate at the height limit: %v", err)
	}
	if _, err := ws.Reframe(ctx, ReframeInput{TargetHeight: maxTargetHeight + 1}); !errors.Is(err, ErrInvalidHeight) {
		t.Fatalf("expected ErrInvalidHeight, got %v", err)
	}
	if svc.calls.Load() != 1 {
		t.Fatalf("expected only the in-range request, got %d", svc.calls.Load())
	}
}

func TestLineageWithoutGraphStoreIsCapped(t *testing.T) {
	h := newHarness(t, &fakeService{})
	ws := h.openTab(t)
	ctx := context.Background()

	item, err := ws.Import(ctx, "shot.png", models.Image{MIME: "image/png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	last := item.ID
	for i := 0; i < 40; i++ {
		outcome, err := ws.Refine(ctx, RefineInput{Instruction: fmt.Sprintf("pass %d", i)})
		if err != nil {
			t.Fatalf("Refine %d: %v", i, err)
		}
		last = outcome.Items[0].ID
	}

	ids, err := h.studio.Lineage(ctx, last, 100)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if len(ids) != 32 {
		t.Fatalf("expected lineage capped at 32, got %d", len(ids))
	}
	ids, _ = h.studio.Lineage(ctx, last, 3)
	if len(ids) != 3 {
		t.Fatalf("expected 3 ancestors, got %d", len(ids))
	}
}
