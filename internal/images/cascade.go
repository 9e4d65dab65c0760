package images

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/gitmatrixmax/google-dictionary/internal/logger"
)

// Cascade resolves images for a term: cache first, then each provider in
// order until one returns results, then placeholders. Whatever it settles on
// is cached under the lowercased term.
type Cascade struct {
	providers []Provider
	cache     Cache
	ttl       time.Duration
	now       func() time.Time
	dedupe    bool
	group     singleflight.Group
	onFault   func(term string, fault error)
	metrics   *Metrics
	log       *zap.Logger
}

type Option func(*Cascade)

// WithTTL sets how long cached result sets stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cascade) { c.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cascade) { c.now = now }
}

// WithDedupe makes concurrent misses for the same term share one provider
// pass instead of each querying the providers.
func WithDedupe(enabled bool) Option {
	return func(c *Cascade) { c.dedupe = enabled }
}

// WithFaultHook is called with every unexpected fault the cascade recovers from.
func WithFaultHook(hook func(term string, fault error)) Option {
	return func(c *Cascade) { c.onFault = hook }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Cascade) { c.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cascade) { c.log = l }
}

// NewCascade tries providers in the given order.
func NewCascade(cache Cache, providers []Provider, opts ...Option) *Cascade {
	c := &Cascade{
		providers: providers,
		cache:     cache,
		ttl:       DefaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.Named(c.log, "images.cascade")
	return c
}

// GetWordImages wraps Resolve in the payload served to clients.
func (c *Cascade) GetWordImages(ctx context.Context, word string) WordImages {
	return WordImages{Images: c.Resolve(ctx, word)}
}

// Resolve returns between one and MaxResults images for term. It never fails.
func (c *Cascade) Resolve(ctx context.Context, term string) []ImageResult {
	key := strings.ToLower(term)
	if entry, ok := c.cache.Get(key); ok && entry.Valid(c.now(), c.ttl) {
		c.metrics.cacheLookup(true)
		c.log.Debug("Image cache hit", zap.String("term", key))
		return slices.Clone(entry.Data)
	}
	c.metrics.cacheLookup(false)

	if !c.dedupe {
		return c.resolveUncached(ctx, key, term)
	}
	v, _, _ := c.group.Do(key, func() (any, error) {
		return c.resolveUncached(ctx, key, term), nil
	})
	return slices.Clone(v.([]ImageResult))
}

func (c *Cascade) resolveUncached(ctx context.Context, key, term string) (images []ImageResult) {
	defer func() {
		if r := recover(); r != nil {
			fault := fmt.Errorf("image cascade panic: %v", r)
			c.log.Error("Image search failed", zap.String("term", term), zap.Error(fault))
			c.metrics.fault()
			if c.onFault != nil {
				c.onFault(term, fault)
			}
			c.metrics.placeholderFallback()
			images = c.store(key, GeneratePlaceholders(term))
		}
	}()

	for _, p := range c.providers {
		res := p.Search(ctx, term)
		res.Images = sanitize(res.Images)
		c.metrics.providerAttempt(p.Name(), res)
		if len(res.Images) > 0 {
			c.log.Debug("Provider returned images",
				zap.String("term", term),
				zap.String("provider", p.Name()),
				zap.Int("count", len(res.Images)))
			return c.store(key, res.Images)
		}
		c.log.Debug("Provider returned nothing",
			zap.String("term", term),
			zap.String("provider", p.Name()),
			zap.Error(res.Err))
	}

	c.metrics.placeholderFallback()
	return c.store(key, GeneratePlaceholders(term))
}

// store caches data and returns it. A failing cache only costs the write.
func (c *Cascade) store(key string, data []ImageResult) (stored []ImageResult) {
	stored = data
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Image cache write failed", zap.String("term", key), zap.Any("panic", r))
		}
	}()
	c.cache.Set(key, Entry{Data: data, StoredAt: c.now()})
	return data
}

// sanitize drops results without an id or with a repeated id and caps the set at MaxResults.
func sanitize(in []ImageResult) []ImageResult {
	out := make([]ImageResult, 0, MaxResults)
	seen := make(map[string]bool, len(in))
	for _, img := range in {
		if img.ID == "" || seen[img.ID] {
			continue
		}
		seen[img.ID] = true
		out = append(out, img)
		if len(out) == MaxResults {
			break
		}
	}
	return out
}
