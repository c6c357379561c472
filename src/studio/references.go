package studio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Protocol-Lattice/backdrop/src/concurrent"
	"github.com/Protocol-Lattice/backdrop/src/models"
)

// ReferenceSource is a style reference waiting to be read.
type ReferenceSource struct {
	Name        string
	MIME        string
	Description string
	Open        func() (io.ReadCloser, error)
}

// FileSource reads a reference from disk.
func FileSource(path string) ReferenceSource {
	return ReferenceSource{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesSource wraps an in-memory upload.
func BytesSource(name, mime string, data []byte) ReferenceSource {
	return ReferenceSource{
		Name: name,
		MIME: mime,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// AddReferences reads every source concurrently and appends the new items, in input order,
// after the existing ones. If any source fails nothing is appended.
func (w *Workspace) AddReferences(ctx context.Context, sources []ReferenceSource) ([]ReferenceItem, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	log := w.studio.logger(ctx, w.ID(), "references")

	items, err := concurrent.ParallelMap(ctx, sources, w.readReference, defaultReadConcurrency)
	if err != nil {
		log.Warn("studio references read failed", "count", len(sources), "err", err)
		return nil, asError(err)
	}

	w.mu.Lock()
	w.refs = append(w.refs, items...)
	total := len(w.refs)
	w.mu.Unlock()

	log.Info("studio references added", "added", len(items), "total", total)
	return append([]ReferenceItem(nil), items...), nil
}

func (w *Workspace) readReference(ctx context.Context, src ReferenceSource) (ReferenceItem, error) {
	if err := ctx.Err(); err != nil {
		return ReferenceItem{}, err
	}
	if src.Open == nil {
		return ReferenceItem{}, &Error{Kind: KindValidation, Message: fmt.Sprintf("Reference %q has no content", src.Name)}
	}
	rc, err := src.Open()
	if err != nil {
		return ReferenceItem{}, &Error{Kind: KindValidation, Message: fmt.Sprintf("Could not read reference %q: %v", src.Name, err), Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return ReferenceItem{}, &Error{Kind: KindValidation, Message: fmt.Sprintf("Could not read reference %q: %v", src.Name, err), Err: err}
	}
	img := models.DetectImage(src.Name, src.MIME, data)
	if img.Empty() || !models.IsImage(img) {
		return ReferenceItem{}, &Error{Kind: KindValidation, Message: fmt.Sprintf("Reference %q is not an image", src.Name)}
	}
	return ReferenceItem{
		ID:          w.studio.cfg.newID(),
		Name:        src.Name,
		Image:       img,
		Description: strings.TrimSpace(src.Description),
	}, nil
}

// References returns the reference list in order.
func (w *Workspace) References() []ReferenceItem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]ReferenceItem(nil), w.refs...)
}

// UpdateReference replaces the description of one reference.
func (w *Workspace) UpdateReference(id, description string) (ReferenceItem, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.referenceIndexLocked(id)
	if idx < 0 {
		return ReferenceItem{}, newError(KindNotFound, fmt.Errorf("%w: %s", ErrReferenceNotFound, id))
	}
	w.refs[idx].Description = strings.TrimSpace(description)
	return w.refs[idx], nil
}

// RemoveReference drops one reference, keeping the order of the rest.
func (w *Workspace) RemoveReference(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.referenceIndexLocked(id)
	if idx < 0 {
		return newError(KindNotFound, fmt.Errorf("%w: %s", ErrReferenceNotFound, id))
	}
	w.refs = append(w.refs[:idx], w.refs[idx+1:]...)
	return nil
}

// DescribeReference asks the configured describer what the reference contributes and
// stores the suggestion as its description.
func (w *Workspace) DescribeReference(ctx context.Context, id string) (ReferenceItem, error) {
	describer := w.studio.cfg.describer
	if describer == nil {
		return ReferenceItem{}, newError(KindValidation, ErrNoDescriber)
	}

	w.mu.RLock()
	idx := w.referenceIndexLocked(id)
	var img models.Image
	if idx >= 0 {
		img = w.refs[idx].Image
	}
	w.mu.RUnlock()
	if idx < 0 {
		return ReferenceItem{}, newError(KindNotFound, fmt.Errorf("%w: %s", ErrReferenceNotFound, id))
	}

	suggestion, err := describer.DescribeReference(ctx, img)
	if err != nil {
		w.studio.logger(ctx, w.ID(), "describe").Warn("studio reference describe failed", "reference", id, "err", err)
		return ReferenceItem{}, &Error{Kind: KindRequest, Message: fmt.Sprintf("Describe failed: %v", err), Err: err}
	}
	// The list may have changed while the describer ran.
	return w.UpdateReference(id, suggestion)
}

func (w *Workspace) referenceIndexLocked(id string) int {
	for i, ref := range w.refs {
		if ref.ID == id {
			return i
		}
	}
	return -1
}
