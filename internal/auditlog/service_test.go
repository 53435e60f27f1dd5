package auditlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatelog/internal/auditlog"
	"gatelog/internal/auditlog/store/memory"
	pkgerrors "gatelog/pkg/errors"
	"gatelog/pkg/requestcontext"
)

// stubFacetCache records cache traffic for assertions.
type stubFacetCache struct {
	entries map[string]auditlog.Facets
	gets    int
	sets    int
}

func newStubFacetCache() *stubFacetCache {
	return &stubFacetCache{entries: map[string]auditlog.Facets{}}
}

func (c *stubFacetCache) Get(_ context.Context, key string) (auditlog.Facets, bool) {
	c.gets++
	facets, ok := c.entries[key]
	return facets, ok
}

func (c *stubFacetCache) Set(_ context.Context, key string, facets auditlog.Facets) {
	c.sets++
	c.entries[key] = facets
}

var serviceBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// seedStore loads a deterministic set of events spanning two orgs, two
// actors, and both outcomes. Timestamps step one minute apart from base.
func seedStore(t *testing.T) *memory.InMemoryStore {
	t.Helper()
	store := memory.NewInMemoryStore()

	resourceWeb := int64(7)
	resourceAPI := int64(9)
	events := []auditlog.Event{
		{Timestamp: serviceBase.Unix(), OrgID: "org1", Action: true, Reason: auditlog.ReasonValidPassword,
			AuthMethod: auditlog.AuthMethodPassword, ActorType: auditlog.ActorTypeUser, Actor: "alice", ActorID: "u1",
			ResourceID: &resourceWeb, Location: "de-fra", Host: "web.example.com"},
		{Timestamp: serviceBase.Add(1 * time.Minute).Unix(), OrgID: "org1", Action: false, Reason: auditlog.ReasonDroppedByRule,
			ActorType: auditlog.ActorTypeUser, Actor: "bob", ActorID: "u2",
			ResourceID: &resourceAPI, Location: "us-nyc", Host: "api.example.com"},
		{Timestamp: serviceBase.Add(2 * time.Minute).Unix(), OrgID: "org1", Action: true, Reason: auditlog.ReasonValidAccessToken,
			ActorType: auditlog.ActorTypeAPIKey, Actor: "ci-key", ActorID: "k1",
			ResourceID: &resourceWeb, Location: "de-fra", Host: "web.example.com"},
		{Timestamp: serviceBase.Add(3 * time.Minute).Unix(), OrgID: "org2", Action: true, Reason: auditlog.ReasonAllowedByRule,
			ActorType: auditlog.ActorTypeUser, Actor: "carol", ActorID: "u3",
			Location: "eu-ams", Host: "other.example.com"},
	}
	for _, event := range events {
		require.NoError(t, store.Append(context.Background(), event))
	}
	return store
}

func queryCtx() context.Context {
	// Freeze "now" past every seeded event so open-ended ranges see them all.
	return requestcontext.WithTime(context.Background(), serviceBase.Add(time.Hour))
}

func TestServiceQueryValidation(t *testing.T) {
	service := auditlog.NewService(seedStore(t))
	ctx := queryCtx()

	tests := []struct {
		name string
		req  auditlog.QueryRequest
	}{
		{name: "unknown auth method", req: auditlog.QueryRequest{Filter: auditlog.Filter{AuthMethod: "certificate"}}},
		{name: "unknown sort field", req: auditlog.QueryRequest{Sort: auditlog.Sort{Field: "reason"}}},
		{name: "negative offset", req: auditlog.QueryRequest{Offset: -1}},
		{name: "negative limit", req: auditlog.QueryRequest{Limit: -5}},
		{name: "start after end", req: auditlog.QueryRequest{Time: auditlog.TimeRange{
			Start: serviceBase.Add(time.Hour), End: serviceBase}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Query(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestServiceQueryDefaults(t *testing.T) {
	service := auditlog.NewService(seedStore(t))
	ctx := queryCtx()

	result, err := service.Query(ctx, auditlog.QueryRequest{Filter: auditlog.Filter{OrgID: "org1"}})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalCount)
	require.Len(t, result.Rows, 3)
	// Default ordering is ascending by timestamp.
	assert.Equal(t, "alice", result.Rows[0].Actor)
	assert.Equal(t, "bob", result.Rows[1].Actor)
	assert.Equal(t, "ci-key", result.Rows[2].Actor)
}

func TestServiceQueryClampsLimit(t *testing.T) {
	service := auditlog.NewService(seedStore(t), auditlog.WithMaxPageSize(2))

	result, err := service.Query(queryCtx(), auditlog.QueryRequest{
		Filter: auditlog.Filter{OrgID: "org1"},
		Limit:  50,
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2, "page size is clamped to the configured maximum")
	assert.Equal(t, 3, result.TotalCount, "total count is unaffected by the clamp")
}

func TestServiceQueryOpenEndedRangeStopsAtNow(t *testing.T) {
	store := seedStore(t)
	service := auditlog.NewService(store)

	// "Now" sits between the second and third seeded events.
	ctx := requestcontext.WithTime(context.Background(), serviceBase.Add(90*time.Second))

	result, err := service.Query(ctx, auditlog.QueryRequest{Filter: auditlog.Filter{OrgID: "org1"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount, "events after the request time are out of range")
}

func TestServiceQueryPaginationLaw(t *testing.T) {
	service := auditlog.NewService(seedStore(t))
	ctx := queryCtx()
	filter := auditlog.Filter{OrgID: "org1"}

	full, err := service.Query(ctx, auditlog.QueryRequest{Filter: filter, Limit: 100})
	require.NoError(t, err)

	var paged []auditlog.Event
	for offset := 0; ; offset += 2 {
		page, err := service.Query(ctx, auditlog.QueryRequest{Filter: filter, Limit: 2, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, full.TotalCount, page.TotalCount, "total count is stable across pages")
		if len(page.Rows) == 0 {
			break
		}
		paged = append(paged, page.Rows...)
	}

	assert.Equal(t, full.Rows, paged, "concatenated pages reproduce the unpaginated order")
}

func TestServiceQueryFacetsIgnoreRowFilters(t *testing.T) {
	service := auditlog.NewService(seedStore(t))
	ctx := queryCtx()

	// The auth method filter matches only alice's event, yet every actor and
	// location in the range must remain selectable.
	result, err := service.Query(ctx, auditlog.QueryRequest{
		Filter: auditlog.Filter{OrgID: "org1", AuthMethod: auditlog.AuthMethodPassword},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalCount)
	assert.ElementsMatch(t, []string{"alice", "bob", "ci-key"}, result.Facets.Actors)
	assert.ElementsMatch(t, []string{"de-fra", "us-nyc"}, result.Facets.Locations)
	require.Len(t, result.Facets.Resources, 2)
}

func TestServiceQueryFacetsScopedToOrg(t *testing.T) {
	service := auditlog.NewService(seedStore(t))

	result, err := service.Query(queryCtx(), auditlog.QueryRequest{Filter: auditlog.Filter{OrgID: "org2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"carol"}, result.Facets.Actors)
	assert.Equal(t, []string{"eu-ams"}, result.Facets.Locations)
	assert.Empty(t, result.Facets.Resources)
}

func TestServiceQueryCatalogEnrichment(t *testing.T) {
	catalog := auditlog.NewStaticCatalog()
	catalog.Add(auditlog.ResourceRef{ID: 7, Name: "web-frontend"})

	service := auditlog.NewService(seedStore(t), auditlog.WithCatalog(catalog))

	result, err := service.Query(queryCtx(), auditlog.QueryRequest{Filter: auditlog.Filter{OrgID: "org1"}})
	require.NoError(t, err)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, "web-frontend", result.Rows[0].ResourceName)
	assert.Empty(t, result.Rows[1].ResourceName, "unknown resources keep an empty name")

	names := map[int64]string{}
	for _, ref := range result.Facets.Resources {
		names[ref.ID] = ref.Name
	}
	assert.Equal(t, "web-frontend", names[7])
	assert.Empty(t, names[9])
}

func TestServiceQueryFacetCache(t *testing.T) {
	cache := newStubFacetCache()
	service := auditlog.NewService(seedStore(t), auditlog.WithFacetCache(cache))
	ctx := queryCtx()
	req := auditlog.QueryRequest{Filter: auditlog.Filter{OrgID: "org1"}}

	first, err := service.Query(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.gets)
	assert.Equal(t, 1, cache.sets, "a miss populates the cache")

	second, err := service.Query(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.sets, "a hit skips the store facet scan")
	assert.Equal(t, first.Facets, second.Facets)
}

func TestServiceQueryStoreFailure(t *testing.T) {
	service := auditlog.NewService(&failingStore{})

	_, err := service.Query(queryCtx(), auditlog.QueryRequest{Filter: auditlog.Filter{OrgID: "org1"}})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnavailable))
}

func TestServiceExportMatchesQuery(t *testing.T) {
	service := auditlog.NewService(seedStore(t))
	ctx := queryCtx()
	filter := auditlog.Filter{OrgID: "org1"}

	query, err := service.Query(ctx, auditlog.QueryRequest{Filter: filter, Limit: 100})
	require.NoError(t, err)

	var exported []auditlog.Event
	err = service.Export(ctx, auditlog.ExportRequest{Filter: filter}, func(event auditlog.Event) error {
		exported = append(exported, event)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, query.Rows, exported, "export yields the full result set in query order")
}

func TestServiceExportHonorsFilter(t *testing.T) {
	service := auditlog.NewService(seedStore(t))
	allowed := true

	var exported []auditlog.Event
	err := service.Export(queryCtx(), auditlog.ExportRequest{
		Filter: auditlog.Filter{OrgID: "org1", Action: &allowed},
	}, func(event auditlog.Event) error {
		exported = append(exported, event)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, exported, 2)
	for _, event := range exported {
		assert.True(t, event.Action)
	}
}

func TestServiceExportValidation(t *testing.T) {
	service := auditlog.NewService(seedStore(t))

	err := service.Export(queryCtx(), auditlog.ExportRequest{
		Filter: auditlog.Filter{OrgID: "org1", AuthMethod: "certificate"},
	}, func(auditlog.Event) error { return nil })
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestServiceExportCancellation(t *testing.T) {
	service := auditlog.NewService(seedStore(t))

	ctx, cancel := context.WithCancel(queryCtx())
	cancel()

	err := service.Export(ctx, auditlog.ExportRequest{Filter: auditlog.Filter{OrgID: "org1"}},
		func(auditlog.Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
