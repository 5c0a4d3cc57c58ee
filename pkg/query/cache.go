package query

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Zerofisher/megatable/pkg/model"
)

// CachedService memoizes detail lookups in a fixed-size LRU. Records only
// change through re-ingestion, so entries can go stale until evicted or
// until Purge is called. Search is never cached.
type CachedService struct {
	Service
	details *lru.Cache[string, model.Record]
}

// NewCached wraps svc with a detail cache of size entries.
func NewCached(svc Service, size int) (*CachedService, error) {
	c, err := lru.New[string, model.Record](size)
	if err != nil {
		return nil, fmt.Errorf("create detail cache: %w", err)
	}
	return &CachedService{Service: svc, details: c}, nil
}

// GetDetail implements Service. A cache hit reports zero latency.
func (c *CachedService) GetDetail(ctx context.Context, id string) (*Detail, error) {
	if rec, ok := c.details.Get(id); ok {
		return &Detail{Record: &rec}, nil
	}
	d, err := c.Service.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	c.details.Add(id, *d.Record)
	return d, nil
}

// Purge drops every cached record.
func (c *CachedService) Purge() {
	c.details.Purge()
}

// Len returns the number of cached records.
func (c *CachedService) Len() int {
	return c.details.Len()
}
