package studio

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

type tabRegistry struct {
	studio *Studio

	counter atomic.Uint64
	mu      sync.RWMutex
	tabs    map[string]*Workspace
	order   []string
}

func newTabRegistry(s *Studio) *tabRegistry {
	return &tabRegistry{
		studio: s,
		tabs:   make(map[string]*Workspace),
	}
}

func (r *tabRegistry) open(title string, mode Mode) *Workspace {
	n := r.counter.Add(1)
	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf("%s %d", defaultTabTitlePrefix, n)
	}
	tab := ProjectTab{
		ID:        r.studio.cfg.newID(),
		Title:     title,
		Mode:      mode,
		CreatedAt: r.studio.cfg.now(),
	}
	ws := newWorkspace(r.studio, tab)

	r.mu.Lock()
	r.tabs[tab.ID] = ws
	r.order = append(r.order, tab.ID)
	r.mu.Unlock()
	return ws
}

func (r *tabRegistry) get(id string) (*Workspace, error) {
	r.mu.RLock()
	ws, ok := r.tabs[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok {
		return nil, newError(KindNotFound, fmt.Errorf("%w: %s", ErrTabNotFound, id))
	}
	return ws, nil
}

func (r *tabRegistry) close(id string) error {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tabs[id]; !ok {
		return newError(KindNotFound, fmt.Errorf("%w: %s", ErrTabNotFound, id))
	}
	delete(r.tabs, id)
	for i, candidate := range r.order {
		if candidate == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *tabRegistry) list() []ProjectTab {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tabs := make([]ProjectTab, 0, len(r.order))
	for _, id := range r.order {
		tabs = append(tabs, r.tabs[id].Tab())
	}
	return tabs
}
