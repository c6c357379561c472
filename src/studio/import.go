package studio

import (
	"context"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/backdrop/src/models"
)

// Import displays an existing image so it can be refined or reframed. The image becomes a
// history item like any generated result. No request is made and the gate is not taken.
func (w *Workspace) Import(ctx context.Context, name string, img models.Image) (HistoryItem, error) {
	tab := w.Tab()
	log := w.studio.logger(ctx, tab.ID, string(OpImport))
	if img.Empty() || !models.IsImage(img) {
		err := newError(KindValidation, fmt.Errorf("%s is not an image", displayName(name)))
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return HistoryItem{}, err
	}

	item := HistoryItem{
		ID:        w.studio.cfg.newID(),
		TabID:     tab.ID,
		Kind:      OpImport,
		Mode:      tab.Mode,
		Prompt:    strings.TrimSpace(name),
		Image:     img,
		CreatedAt: w.studio.cfg.now(),
	}
	w.mu.Lock()
	displayed := item
	w.displayed = &displayed
	w.lastErr = nil
	w.history = append(w.history, item)
	w.mu.Unlock()

	w.studio.appendHistory(ctx, log, []HistoryItem{item})
	log.Info("studio image imported", "item", item.ID, "mime", img.MIME, "bytes", len(img.Data))
	return item, nil
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "upload"
}
