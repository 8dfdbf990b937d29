package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/sakif/soundscape/internal/cache"
	"github.com/sakif/soundscape/internal/metrics"
)

// Cached memoises provider pages. Cache failures are logged and otherwise
// ignored; the upstream is always the source of truth.
type Cached struct {
	next   Provider
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Provider, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl, logger: logger}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) SearchEvents(ctx context.Context, params SearchParams) (*Page, error) {
	key := cacheKey(c.next.Name(), params)

	if !params.Fresh {
		if b, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn("provider cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		} else if ok {
			var page Page
			if err := json.Unmarshal(b, &page); err == nil {
				metrics.RecordCache("provider", true)
				return &page, nil
			}
		}
		metrics.RecordCache("provider", false)
	}

	page, err := c.next.SearchEvents(ctx, params)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(page); err == nil {
		if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
			c.logger.Warn("provider cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return page, nil
}

func cacheKey(name string, p SearchParams) string {
	return fmt.Sprintf("soundscape:provider:%s:%s|%s|%d|%d",
		name,
		strings.ToLower(strings.TrimSpace(p.Keyword)),
		strings.ToLower(strings.TrimSpace(p.City)),
		p.Page, p.Size,
	)
}
