package auditlog

import (
	"context"
	"sync"

	pkgerrors "gatelog/pkg/errors"
)

// ErrResourceUnknown is returned by catalogs for IDs they cannot resolve.
var ErrResourceUnknown = pkgerrors.New(pkgerrors.CodeNotFound, "resource not found")

// ResourceCatalog resolves resource IDs to display names. The catalog itself
// lives outside this core; the query engine only uses it to enrich rows and
// the resource facet. Enrichment is best-effort: unresolvable IDs keep an
// empty name.
type ResourceCatalog interface {
	ResolveResource(ctx context.Context, id int64) (ResourceRef, error)
}

// StaticCatalog is an in-memory ResourceCatalog for tests and deployments
// where the catalog is seeded at startup.
type StaticCatalog struct {
	mu        sync.RWMutex
	resources map[int64]ResourceRef
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{resources: make(map[int64]ResourceRef)}
}

// Add registers or replaces a resource entry.
func (c *StaticCatalog) Add(ref ResourceRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[ref.ID] = ref
}

func (c *StaticCatalog) ResolveResource(_ context.Context, id int64) (ResourceRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ref, ok := c.resources[id]; ok {
		return ref, nil
	}
	return ResourceRef{}, ErrResourceUnknown
}
