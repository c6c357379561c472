package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/pslog"

	"github.com/Protocol-Lattice/backdrop/src/concurrent"
	"github.com/Protocol-Lattice/backdrop/src/models"
)

// Workspace is the state behind one project tab: the displayed image, the current error,
// the tab-local history and the reference list.
type Workspace struct {
	studio *Studio

	mu        sync.RWMutex
	tab       ProjectTab
	phase     Phase
	inflight  int
	displayed *HistoryItem
	lastErr   *Error
	history   []HistoryItem
	refs      []ReferenceItem
}

func newWorkspace(s *Studio, tab ProjectTab) *Workspace {
	return &Workspace{studio: s, tab: tab, phase: PhaseIdle}
}

func (w *Workspace) Tab() ProjectTab {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tab
}

func (w *Workspace) ID() string { return w.Tab().ID }

// SetMode changes the mode used by later submissions.
func (w *Workspace) SetMode(mode Mode) error {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return newError(KindValidation, err)
	}
	w.mu.Lock()
	w.tab.Mode = mode
	w.mu.Unlock()
	return nil
}

// Phase reports the workspace phase. While any submission on the tab is still in flight it
// stays AwaitingResults; it returns to Idle once the last one settles.
func (w *Workspace) Phase() Phase {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phase
}

// Displayed returns the image currently shown, if any.
func (w *Workspace) Displayed() (HistoryItem, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.displayed == nil {
		return HistoryItem{}, false
	}
	return *w.displayed, true
}

// Err returns the error currently shown, or nil.
func (w *Workspace) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.lastErr == nil {
		return nil
	}
	return w.lastErr
}

// History returns the tab-local history, oldest first.
func (w *Workspace) History() []HistoryItem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]HistoryItem(nil), w.history...)
}

// setPhase records a pre-submission phase. Submissions already in flight keep the
// workspace in AwaitingResults.
func (w *Workspace) setPhase(p Phase) {
	w.mu.Lock()
	if w.inflight == 0 {
		w.phase = p
	}
	w.mu.Unlock()
}

// accept clears the previous error once a submission holds the gate.
func (w *Workspace) accept() {
	w.mu.Lock()
	w.lastErr = nil
	if w.inflight == 0 {
		w.phase = PhaseSubmitting
	}
	w.inflight++
	w.mu.Unlock()
}

func (w *Workspace) awaitResults() {
	w.mu.Lock()
	w.phase = PhaseAwaitingResults
	w.mu.Unlock()
}

// settleLocked releases one in-flight submission. w.mu must be held.
func (w *Workspace) settleLocked() {
	w.inflight--
	if w.inflight == 0 {
		w.phase = PhaseIdle
	}
}

func (w *Workspace) reject(log pslog.Logger, err *Error) (BatchOutcome, error) {
	w.mu.Lock()
	w.lastErr = err
	if w.inflight == 0 {
		w.phase = PhaseIdle
	}
	w.mu.Unlock()
	log.Info("studio submission rejected", "kind", err.Kind, "err", err.Message)
	return BatchOutcome{Phase: PhaseRejected, Message: err.Message, Err: err}, err
}

// attempt is one settled request of a submission.
type attempt struct {
	image  models.Image
	prompt string
	err    error
}

// batchSpec describes a submission. tab is captured when the submission starts so a
// later SetMode does not change the items it produces.
type batchSpec struct {
	tab      ProjectTab
	op       Operation
	label    string
	parentID string
}

// submit runs n requests under a single gate slot and settles them.
func (w *Workspace) submit(ctx context.Context, log pslog.Logger, batch batchSpec, n int, call func(ctx context.Context, svc models.ImageService, i int) attempt) (BatchOutcome, error) {
	svc, release, err := w.studio.service(ctx)
	if err != nil {
		return w.reject(log, asError(err))
	}
	defer release()

	limiter := w.studio.cfg.limiter
	if !limiter.TryAcquire() {
		return w.reject(log, newError(KindCapacity, ErrCapacity))
	}
	defer limiter.Release()

	w.accept()
	log.Info("studio batch accepted", "batch", n, "in_flight", limiter.InFlight())

	w.awaitResults()
	results := concurrent.Settle(ctx, n, func(ctx context.Context, i int) (attempt, error) {
		a := call(ctx, svc, i)
		return a, a.err
	})
	attempts := make([]attempt, len(results))
	for i, r := range results {
		attempts[i] = r.Value
		attempts[i].err = r.Err
	}
	return w.finish(ctx, log, batch, attempts)
}

// finish applies the aggregation policy: every success becomes a history item, the first
// success by submission order is displayed, and the first failure decides the message.
func (w *Workspace) finish(ctx context.Context, log pslog.Logger, batch batchSpec, attempts []attempt) (BatchOutcome, error) {
	tab := batch.tab
	now := w.studio.cfg.now()

	var (
		items    []HistoryItem
		firstErr error
		failed   int
	)
	for i, a := range attempts {
		if a.err != nil {
			failed++
			if firstErr == nil {
				firstErr = a.err
			}
			log.Warn("studio variant failed", "variant", i+1, "err", a.err)
			continue
		}
		item := HistoryItem{
			ID:        w.studio.cfg.newID(),
			TabID:     tab.ID,
			Kind:      batch.op,
			Mode:      tab.Mode,
			Prompt:    a.prompt,
			Image:     a.image,
			ParentID:  batch.parentID,
			CreatedAt: now,
		}
		if len(attempts) > 1 {
			item.Variant = i + 1
		}
		items = append(items, item)
	}

	outcome := BatchOutcome{Items: items, Failed: failed}
	var surfaced *Error
	if firstErr != nil {
		surfaced = failureError(batch.label, len(items), len(attempts), firstErr)
		outcome.Message = surfaced.Message
		outcome.Err = surfaced
	}
	switch {
	case len(items) == 0:
		outcome.Phase = PhaseAllFailed
	case failed > 0:
		outcome.Phase = PhasePartialSuccess
	default:
		outcome.Phase = PhaseAllSucceeded
	}

	w.mu.Lock()
	if len(items) > 0 {
		displayed := items[0]
		w.displayed = &displayed
		w.history = append(w.history, items...)
	}
	if surfaced != nil {
		w.lastErr = surfaced
	}
	w.settleLocked()
	w.mu.Unlock()

	w.studio.appendHistory(ctx, log, items)
	if surfaced != nil && surfaced.Kind == KindCredential {
		w.studio.resetCredential(ctx, log)
	}
	if len(items) > 0 {
		displayed := items[0]
		outcome.Displayed = &displayed
	}

	log.Info("studio batch settled", "succeeded", len(items), "failed", failed, "phase", outcome.Phase)
	if outcome.Phase == PhaseAllFailed {
		return outcome, surfaced
	}
	return outcome, nil
}

func failureError(label string, succeeded, total int, cause error) *Error {
	if IsCredentialFailure(cause) {
		return &Error{Kind: KindCredential, Message: CredentialMessage, Err: fmt.Errorf("%w: %w", ErrCredentialRequired, cause)}
	}
	text := strings.TrimSpace(cause.Error())
	if succeeded > 0 {
		return &Error{Kind: KindRequest, Message: fmt.Sprintf("%d of %d variations failed: %s", total-succeeded, total, text), Err: cause}
	}
	return &Error{Kind: KindRequest, Message: fmt.Sprintf("%s failed: %s", label, text), Err: cause}
}

func asError(err error) *Error {
	var se *Error
	if errors.As(err, &se) && se != nil {
		return se
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}
