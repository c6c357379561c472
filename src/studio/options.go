package studio

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/Protocol-Lattice/backdrop/src/concurrent"
	"github.com/Protocol-Lattice/backdrop/src/models"
	"github.com/Protocol-Lattice/backdrop/src/store"
)

const (
	defaultMaxBatch         = 4
	defaultReadConcurrency  = 4
	defaultTabTitlePrefix   = "Project"
	maxTargetHeight         = 8192
	variationSuffixTemplate = " (Variation %d: slightly vary lighting and micro-details)"
)

// Limiter is the global in-flight cap shared by every workspace.
type Limiter interface {
	TryAcquire() bool
	Release()
	InFlight() int
}

var _ Limiter = (*concurrent.Gate)(nil)

// Option configures studio construction.
type Option func(*config)

type config struct {
	keys      KeyStore
	limiter   Limiter
	maxBatch  int
	describer models.Describer
	history   store.HistoryStore
	logger    pslog.Logger
	now       func() time.Time
	newID     func() string
}

func defaultConfig() *config {
	return &config{
		maxBatch: defaultMaxBatch,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithKeyStore replaces the in-memory key store.
func WithKeyStore(keys KeyStore) Option {
	return func(c *config) {
		if keys != nil {
			c.keys = keys
		}
	}
}

// WithAPIKey seeds the default key store.
func WithAPIKey(key string) Option {
	return func(c *config) {
		if strings.TrimSpace(key) != "" {
			c.keys = NewMemoryKeyStore(key)
		}
	}
}

// WithLimiter replaces the default gate of concurrent.DefaultGateCap.
func WithLimiter(l Limiter) Option {
	return func(c *config) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithMaxInFlight sets the global cap on concurrently running submissions.
func WithMaxInFlight(n int) Option {
	return func(c *config) {
		c.limiter = concurrent.NewGate(n)
	}
}

// WithMaxBatch bounds the variations a single submission may request.
func WithMaxBatch(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBatch = n
		}
	}
}

// WithDescriber enables reference description suggestions.
func WithDescriber(d models.Describer) Option {
	return func(c *config) {
		c.describer = d
	}
}

// WithHistoryStore mirrors every history item into hs.
func WithHistoryStore(hs store.HistoryStore) Option {
	return func(c *config) {
		if hs != nil {
			c.history = hs
		}
	}
}

func WithLogger(log pslog.Logger) Option {
	return func(c *config) {
		c.logger = log
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.newID = fn
		}
	}
}
