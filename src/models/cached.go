package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Protocol-Lattice/backdrop/src/cache"
)

type cachedResult struct {
	Image  Image  `json:"image"`
	Prompt string `json:"prompt,omitempty"`
}

// CachedImager wraps an ImageService and caches identical requests.
type CachedImager struct {
	Service  ImageService
	Cache    *cache.LRU[cachedResult]
	FilePath string
}

// NewCachedImager creates a new CachedImager wrapper.
func NewCachedImager(svc ImageService, size int, ttl time.Duration, filePath string) *CachedImager {
	c := &CachedImager{
		Service:  svc,
		Cache:    cache.NewLRU[cachedResult](size, ttl),
		FilePath: filePath,
	}
	if filePath != "" {
		_ = c.Cache.Load(filePath) // a corrupt or missing cache file starts empty
	}
	return c
}

func (c *CachedImager) save() {
	if c.FilePath == "" {
		return
	}
	_ = c.Cache.Save(c.FilePath)
}

func requestKey(op string, req any) string {
	raw, _ := json.Marshal(req)
	return cache.HashKey([]byte(op), raw)
}

func (c *CachedImager) GenerateBackground(ctx context.Context, req BackgroundRequest) (BackgroundResult, error) {
	key := requestKey("generate", req)
	if hit, ok := c.Cache.Get(key); ok {
		return BackgroundResult{Image: hit.Image, Prompt: hit.Prompt}, nil
	}

	res, err := c.Service.GenerateBackground(ctx, req)
	if err != nil {
		return BackgroundResult{}, err
	}

	c.Cache.Set(key, cachedResult{Image: res.Image, Prompt: res.Prompt})
	c.save()
	return res, nil
}

func (c *CachedImager) RefineImage(ctx context.Context, req RefineRequest) (Image, error) {
	key := requestKey("refine", req)
	if hit, ok := c.Cache.Get(key); ok {
		return hit.Image, nil
	}

	img, err := c.Service.RefineImage(ctx, req)
	if err != nil {
		return Image{}, err
	}

	c.Cache.Set(key, cachedResult{Image: img})
	c.save()
	return img, nil
}

func (c *CachedImager) ReframeImage(ctx context.Context, req ReframeRequest) (Image, error) {
	key := requestKey("reframe", req)
	if hit, ok := c.Cache.Get(key); ok {
		return hit.Image, nil
	}

	img, err := c.Service.ReframeImage(ctx, req)
	if err != nil {
		return Image{}, err
	}

	c.Cache.Set(key, cachedResult{Image: img})
	c.save()
	return img, nil
}

// Close closes the wrapped service when it holds resources.
func (c *CachedImager) Close() error {
	if closer, ok := c.Service.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// WrapWithCache wraps svc in a CachedImager when size is positive; otherwise svc is returned.
func WrapWithCache(svc ImageService, size int, ttl time.Duration, path string) ImageService {
	if size <= 0 {
		return svc
	}
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return NewCachedImager(svc, size, ttl, path)
}

var _ ImageService = (*CachedImager)(nil)
