package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"pkt.systems/pslog"

	"github.com/Protocol-Lattice/backdrop/src/concurrent"
	"github.com/Protocol-Lattice/backdrop/src/logx"
	"github.com/Protocol-Lattice/backdrop/src/models"
	"github.com/Protocol-Lattice/backdrop/src/store"
)

// ServiceLoader constructs the image service for an API key.
type ServiceLoader func(ctx context.Context, apiKey string) (models.ImageService, error)

// Studio owns the open tabs, the global history and the in-flight gate they share.
type Studio struct {
	cfg    *config
	loader ServiceLoader
	tabs   *tabRegistry

	svcMu sync.Mutex
	svc   *serviceHandle

	histMu  sync.RWMutex
	history []HistoryItem
}

// New builds a studio. The image service is loaded lazily once a key is available.
func New(loader ServiceLoader, opts ...Option) (*Studio, error) {
	if loader == nil {
		return nil, errors.New("studio requires a service loader")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.keys == nil {
		cfg.keys = NewMemoryKeyStore("")
	}
	if cfg.limiter == nil {
		cfg.limiter = concurrent.NewGate(concurrent.DefaultGateCap)
	}
	if cfg.history == nil {
		cfg.history = store.NewMemoryStore()
	}
	s := &Studio{cfg: cfg, loader: loader}
	s.tabs = newTabRegistry(s)
	return s, nil
}

// OpenTab creates a project tab and its workspace. An empty title gets "Project N".
func (s *Studio) OpenTab(ctx context.Context, title string, mode Mode) (*Workspace, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, newError(KindValidation, err)
	}
	ws := s.tabs.open(title, mode)
	tab := ws.Tab()
	s.logger(ctx, tab.ID, "tab").Info("studio tab opened", "title", tab.Title, "mode", tab.Mode)
	return ws, nil
}

// CloseTab destroys a tab. Its items stay in the global history.
func (s *Studio) CloseTab(ctx context.Context, id string) error {
	if err := s.tabs.close(id); err != nil {
		return err
	}
	s.logger(ctx, id, "tab").Info("studio tab closed")
	return nil
}

// Tabs lists open tabs in creation order.
func (s *Studio) Tabs() []ProjectTab {
	return s.tabs.list()
}

func (s *Studio) Workspace(id string) (*Workspace, error) {
	return s.tabs.get(id)
}

// GlobalHistory returns every item produced this session, oldest first.
func (s *Studio) GlobalHistory() []HistoryItem {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	return append([]HistoryItem(nil), s.history...)
}

// HistoryItem finds an item in the global history.
func (s *Studio) HistoryItem(id string) (HistoryItem, bool) {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	for _, item := range s.history {
		if item.ID == id {
			return item, true
		}
	}
	return HistoryItem{}, false
}

// ArchivedHistory reads the persistent mirror, newest first.
func (s *Studio) ArchivedHistory(ctx context.Context, q store.Query) ([]store.Record, error) {
	return s.cfg.history.List(ctx, q)
}

type lineageStore interface {
	Lineage(ctx context.Context, id string, depth int) ([]store.Record, error)
}

// Lineage returns the ids of the items id was derived from, nearest first. The graph
// store answers when configured; otherwise ParentID links in the session history are walked.
func (s *Studio) Lineage(ctx context.Context, id string, depth int) ([]string, error) {
	if graph, ok := s.cfg.history.(lineageStore); ok {
		records, err := graph.Lineage(ctx, id, depth)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.ID)
		}
		return ids, nil
	}

	depth = min(depth, store.MaxLineageDepth)
	var ids []string
	current, ok := s.HistoryItem(id)
	for ok && current.ParentID != "" && len(ids) < depth {
		ids = append(ids, current.ParentID)
		current, ok = s.HistoryItem(current.ParentID)
	}
	return ids, nil
}

// Ready reports whether a key is available.
func (s *Studio) Ready(ctx context.Context) bool {
	_, ok := s.cfg.keys.Key(ctx)
	return ok
}

// SelectKey installs a new key; the image service is rebuilt on next use. The old service
// is closed once batches still using it settle.
func (s *Studio) SelectKey(ctx context.Context, key string) error {
	if err := s.cfg.keys.Select(ctx, key); err != nil {
		return newError(KindValidation, err)
	}
	s.logger(ctx, "", "auth").Info("studio key selected")
	return nil
}

// InFlight returns the number of submissions currently holding the gate.
func (s *Studio) InFlight() int {
	return s.cfg.limiter.InFlight()
}

func (s *Studio) MaxBatch() int {
	return s.cfg.maxBatch
}

// Close releases the image service and the history store.
func (s *Studio) Close(ctx context.Context) error {
	s.svcMu.Lock()
	retired := s.retireServiceLocked()
	s.svcMu.Unlock()
	return errors.Join(closeService(retired), s.cfg.history.Close(ctx))
}

// serviceHandle counts the batches still using a loaded service. A retired service is
// closed once its last lease is released.
type serviceHandle struct {
	svc     models.ImageService
	key     string
	leases  int
	retired bool
}

// service leases the image service for the current key, loading it on first use. The
// caller must call release once it no longer uses the service.
func (s *Studio) service(ctx context.Context) (svc models.ImageService, release func(), err error) {
	key, ok := s.cfg.keys.Key(ctx)
	if !ok {
		return nil, nil, newError(KindCredential, ErrCredentialRequired)
	}

	s.svcMu.Lock()
	h := s.svc
	var retired models.ImageService
	if h == nil || h.key != key {
		retired = s.retireServiceLocked()
		loaded, err := s.loader(ctx, key)
		if err != nil {
			s.svcMu.Unlock()
			s.closeRetired(ctx, retired)
			return nil, nil, &Error{Kind: KindRequest, Message: fmt.Sprintf("Could not start the image service: %v", err), Err: err}
		}
		h = &serviceHandle{svc: loaded, key: key}
		s.svc = h
	}
	h.leases++
	s.svcMu.Unlock()
	s.closeRetired(ctx, retired)

	release = sync.OnceFunc(func() {
		s.svcMu.Lock()
		h.leases--
		var idle models.ImageService
		if h.retired && h.leases == 0 {
			idle = h.svc
		}
		s.svcMu.Unlock()
		s.closeRetired(ctx, idle)
	})
	return h.svc, release, nil
}

// resetCredential clears the key and retires the service built with it.
func (s *Studio) resetCredential(ctx context.Context, log pslog.Logger) {
	s.cfg.keys.Reset(ctx)
	s.svcMu.Lock()
	retired := s.retireServiceLocked()
	s.svcMu.Unlock()
	if err := closeService(retired); err != nil {
		log.Warn("studio service close failed", "err", err)
	}
	log.Warn("studio credential reset")
}

// retireServiceLocked forgets the current service. It returns the service when nothing
// holds a lease on it and it can be closed now; otherwise the last release closes it.
func (s *Studio) retireServiceLocked() models.ImageService {
	h := s.svc
	s.svc = nil
	if h == nil {
		return nil
	}
	h.retired = true
	if h.leases > 0 {
		return nil
	}
	return h.svc
}

func (s *Studio) closeRetired(ctx context.Context, svc models.ImageService) {
	if err := closeService(svc); err != nil {
		s.logger(ctx, "", "service").Warn("studio service close failed", "err", err)
	}
}

func closeService(svc models.ImageService) error {
	if closer, ok := svc.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// appendHistory adds items to the global list and mirrors them to the history store.
// Mirror failures are logged and never reach the caller.
func (s *Studio) appendHistory(ctx context.Context, log pslog.Logger, items []HistoryItem) {
	if len(items) == 0 {
		return
	}
	s.histMu.Lock()
	s.history = append(s.history, items...)
	s.histMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	for _, item := range items {
		if err := s.cfg.history.Append(ctx, toRecord(item)); err != nil {
			log.Warn("studio history mirror failed", "item", item.ID, "err", err)
		}
	}
}

func toRecord(item HistoryItem) store.Record {
	return store.Record{
		ID:        item.ID,
		TabID:     item.TabID,
		Kind:      string(item.Kind),
		Mode:      string(item.Mode),
		Prompt:    item.Prompt,
		ParentID:  item.ParentID,
		Variant:   item.Variant,
		MIME:      item.Image.MIME,
		Image:     item.Image.Data,
		CreatedAt: item.CreatedAt,
	}
}

// logger prefers the configured logger over the one carried by ctx.
func (s *Studio) logger(ctx context.Context, tabID, op string) pslog.Logger {
	if s.cfg.logger != nil {
		log := s.cfg.logger
		if tabID != "" {
			log = log.With("tab", tabID)
		}
		return logx.WithOperation(log, op)
	}
	return logx.WithOperation(logx.WithTab(ctx, tabID), op)
}
