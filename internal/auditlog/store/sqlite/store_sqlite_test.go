package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatelog/internal/auditlog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedStore(t *testing.T, store *Store) {
	t.Helper()
	resourceA := int64(1)
	resourceB := int64(2)
	events := []auditlog.Event{
		{Timestamp: 100, OrgID: "org1", Action: true, Reason: auditlog.ReasonValidPassword,
			AuthMethod: auditlog.AuthMethodPassword, ActorType: auditlog.ActorTypeUser,
			Actor: "alice", ActorID: "u1", ResourceID: &resourceA, Location: "de-fra", Host: "b.example.com"},
		{Timestamp: 300, OrgID: "org1", Action: false, Reason: auditlog.ReasonDroppedByRule,
			ActorType: auditlog.ActorTypeUser, Actor: "bob", ActorID: "u2",
			ResourceID: &resourceB, Location: "us-nyc", Host: "a.example.com"},
		{Timestamp: 200, OrgID: "org1", Action: true, Reason: auditlog.ReasonAllowedByRule,
			ActorType: auditlog.ActorTypeAPIKey, Actor: "ci-key", ActorID: "k1",
			ResourceID: &resourceA, ResourceName: "web", Location: "de-fra", Host: "c.example.com"},
		{Timestamp: 200, OrgID: "org2", Action: true, Reason: auditlog.ReasonAllowedNoAuth,
			Actor: "carol", Location: "eu-ams", Host: "d.example.com"},
	}
	for _, event := range events {
		require.NoError(t, store.Append(context.Background(), event))
	}
}

func TestAppendAndScanRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	resourceID := int64(42)
	metadata := `{"rule":"allow-all"}`
	original := auditlog.Event{
		Timestamp:          1700000000,
		OrgID:              "org1",
		Action:             true,
		Reason:             auditlog.ReasonValidPassword,
		ResourceID:         &resourceID,
		ResourceName:       "web",
		Location:           "de-fra",
		ActorType:          auditlog.ActorTypeUser,
		Actor:              "alice",
		ActorID:            "u1",
		AuthMethod:         auditlog.AuthMethodPassword,
		Metadata:           &metadata,
		OriginalRequestURL: "https://app.example.com/api/v1/status",
		Scheme:             "https",
		Host:               "app.example.com",
		Path:               "/api/v1/status",
		Method:             "GET",
		TLS:                true,
		IP:                 "203.0.113.5",
	}
	require.NoError(t, store.Append(ctx, original))

	rows, total, err := store.Scan(ctx, auditlog.ScanRequest{End: 1700000000, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, int64(1), got.ID, "the store assigns the sequence")
	original.ID = got.ID
	assert.Equal(t, original, got)
}

func TestScanNullableFields(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, auditlog.Event{
		Timestamp: 100,
		OrgID:     "org1",
		Action:    false,
		Reason:    auditlog.ReasonResourceNotFound,
		Host:      "app.example.com",
	}))

	rows, _, err := store.Scan(ctx, auditlog.ScanRequest{End: 1000, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].ResourceID)
	assert.Nil(t, rows[0].Metadata)
	assert.Empty(t, rows[0].ActorType)
}

func TestScanFiltersAndPagination(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)
	ctx := context.Background()

	allowed := true
	rows, total, err := store.Scan(ctx, auditlog.ScanRequest{
		Filter: auditlog.Filter{OrgID: "org1", Action: &allowed},
		End:    1000, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].Actor)
	assert.Equal(t, "ci-key", rows[1].Actor)

	rows, total, err = store.Scan(ctx, auditlog.ScanRequest{
		Filter: auditlog.Filter{OrgID: "org1"},
		End:    1000, Limit: 2, Offset: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total, "count ignores pagination")
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0].Actor)
}

func TestScanOrdering(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)
	ctx := context.Background()

	rows, _, err := store.Scan(ctx, auditlog.ScanRequest{
		End: 1000, Limit: 10,
		Sort: auditlog.Sort{Field: auditlog.SortByTimestamp, Desc: true},
	})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, int64(300), rows[0].Timestamp)
	// The two events at 200 tie-break on id, reversed along with the sort.
	assert.Equal(t, "carol", rows[1].Actor)
	assert.Equal(t, "ci-key", rows[2].Actor)
	assert.Equal(t, int64(100), rows[3].Timestamp)

	rows, _, err = store.Scan(ctx, auditlog.ScanRequest{
		Filter: auditlog.Filter{OrgID: "org1"},
		End:    1000, Limit: 10,
		Sort:   auditlog.Sort{Field: auditlog.SortByHost},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a.example.com", rows[0].Host)
	assert.Equal(t, "c.example.com", rows[2].Host)
}

func TestScanAllStreamsInOrder(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)

	var timestamps []int64
	err := store.ScanAll(context.Background(), auditlog.ScanRequest{End: 1000}, func(event auditlog.Event) error {
		timestamps = append(timestamps, event.Timestamp)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 200, 300}, timestamps)
}

func TestScanAllHonorsCancellation(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := store.ScanAll(ctx, auditlog.ScanRequest{End: 1000}, func(auditlog.Event) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestFacetScan(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)

	facets, err := store.FacetScan(context.Background(), "org1", 0, 1000)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob", "ci-key"}, facets.Actors, "distinct values, sorted")
	assert.Equal(t, []string{"de-fra", "us-nyc"}, facets.Locations)
	require.Len(t, facets.Resources, 2)
	assert.Equal(t, auditlog.ResourceRef{ID: 1, Name: "web"}, facets.Resources[0], "the named sighting wins")
	assert.Equal(t, auditlog.ResourceRef{ID: 2}, facets.Resources[1])
}

func TestFacetScanEmptyRange(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)

	facets, err := store.FacetScan(context.Background(), "org1", 500, 1000)
	require.NoError(t, err)
	assert.Empty(t, facets.Actors)
	assert.Empty(t, facets.Locations)
	assert.Empty(t, facets.Resources)
	assert.NotNil(t, facets.Actors, "facet slices serialize as empty arrays, not null")
}
