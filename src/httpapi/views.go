package httpapi

import (
	"fmt"
	"time"

	"github.com/Protocol-Lattice/backdrop/src/models"
	"github.com/Protocol-Lattice/backdrop/src/store"
	"github.com/Protocol-Lattice/backdrop/src/studio"
)

type historyView struct {
	ID        string           `json:"id"`
	TabID     string           `json:"tab_id"`
	Kind      studio.Operation `json:"kind"`
	Mode      studio.Mode      `json:"mode"`
	Prompt    string           `json:"prompt"`
	ParentID  string           `json:"parent_id,omitempty"`
	Variant   int              `json:"variant,omitempty"`
	MIME      string           `json:"mime"`
	Image     string           `json:"image,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func newHistoryView(item studio.HistoryItem, withImage bool) historyView {
	view := historyView{
		ID:        item.ID,
		TabID:     item.TabID,
		Kind:      item.Kind,
		Mode:      item.Mode,
		Prompt:    item.Prompt,
		ParentID:  item.ParentID,
		Variant:   item.Variant,
		MIME:      item.Image.MIME,
		CreatedAt: item.CreatedAt,
	}
	if withImage {
		view.Image = item.Image.DataURL()
	}
	return view
}

func historyViews(items []studio.HistoryItem, withImage bool) []historyView {
	views := make([]historyView, 0, len(items))
	for _, item := range items {
		views = append(views, newHistoryView(item, withImage))
	}
	return views
}

type referenceView struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	MIME        string `json:"mime"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

func newReferenceView(ref studio.ReferenceItem, withImage bool) referenceView {
	view := referenceView{ID: ref.ID, Name: ref.Name, MIME: ref.Image.MIME, Description: ref.Description}
	if withImage {
		view.Image = ref.Image.DataURL()
	}
	return view
}

func referenceViews(refs []studio.ReferenceItem, withImage bool) []referenceView {
	views := make([]referenceView, 0, len(refs))
	for _, ref := range refs {
		views = append(views, newReferenceView(ref, withImage))
	}
	return views
}

type outcomeView struct {
	Phase     studio.Phase  `json:"phase"`
	Displayed *historyView  `json:"displayed,omitempty"`
	Items     []historyView `json:"items"`
	Failed    int           `json:"failed"`
	Message   string        `json:"message,omitempty"`
	Kind      studio.Kind   `json:"kind,omitempty"`
}

func newOutcomeView(outcome studio.BatchOutcome) outcomeView {
	view := outcomeView{
		Phase:   outcome.Phase,
		Items:   historyViews(outcome.Items, false),
		Failed:  outcome.Failed,
		Message: outcome.Message,
	}
	if outcome.Displayed != nil {
		displayed := newHistoryView(*outcome.Displayed, false)
		view.Displayed = &displayed
	}
	if outcome.Err != nil {
		view.Kind = studio.KindOf(outcome.Err)
	}
	return view
}

type tabStateView struct {
	Tab          studio.ProjectTab `json:"tab"`
	Phase        studio.Phase      `json:"phase"`
	Displayed    *historyView      `json:"displayed,omitempty"`
	Error        string            `json:"error,omitempty"`
	HistoryCount int               `json:"history_count"`
	References   []referenceView   `json:"references"`
}

func newTabStateView(ws *studio.Workspace) tabStateView {
	view := tabStateView{
		Tab:          ws.Tab(),
		Phase:        ws.Phase(),
		HistoryCount: len(ws.History()),
		References:   referenceViews(ws.References(), false),
	}
	if item, ok := ws.Displayed(); ok {
		displayed := newHistoryView(item, false)
		view.Displayed = &displayed
	}
	if err := ws.Err(); err != nil {
		view.Error = err.Error()
	}
	return view
}

type archiveView struct {
	ID        string    `json:"id"`
	TabID     string    `json:"tab_id"`
	Kind      string    `json:"kind"`
	Mode      string    `json:"mode"`
	Prompt    string    `json:"prompt"`
	ParentID  string    `json:"parent_id,omitempty"`
	Variant   int       `json:"variant,omitempty"`
	MIME      string    `json:"mime"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func archiveViews(records []store.Record) []archiveView {
	views := make([]archiveView, 0, len(records))
	for _, rec := range records {
		views = append(views, archiveView{
			ID:        rec.ID,
			TabID:     rec.TabID,
			Kind:      rec.Kind,
			Mode:      rec.Mode,
			Prompt:    rec.Prompt,
			ParentID:  rec.ParentID,
			Variant:   rec.Variant,
			MIME:      rec.MIME,
			Bytes:     len(rec.Image),
			CreatedAt: rec.CreatedAt,
		})
	}
	return views
}

// decodeImages parses data: URLs from a request body.
func decodeImages(field string, urls []string) ([]models.Image, error) {
	images := make([]models.Image, 0, len(urls))
	for i, raw := range urls {
		img, err := models.ParseDataURL(raw)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %v", field, i, err)
		}
		images = append(images, img)
	}
	return images, nil
}
