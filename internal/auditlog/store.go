package auditlog

import "context"

// ScanRequest is the store-level query shape. Start and End are inclusive
// epoch-second bounds, already resolved by the service (a zero End never
// reaches the store).
type ScanRequest struct {
	Filter Filter
	Start  int64
	End    int64
	Sort   Sort
	Limit  int
	Offset int
}

// Store abstracts the storage engine behind append and query operations.
// Implementations must be safe for concurrent appenders; reads delegate
// their consistency guarantees to the backend.
//
// Scan returns one page of matching events plus the total match count before
// pagination. ScanAll streams every matching event through fn in the same
// order Scan would return them, without materializing the result set; a
// non-nil error from fn or a canceled context aborts the iteration.
type Store interface {
	Append(ctx context.Context, event Event) error
	Scan(ctx context.Context, req ScanRequest) ([]Event, int, error)
	ScanAll(ctx context.Context, req ScanRequest, fn func(Event) error) error
	FacetScan(ctx context.Context, orgID string, start, end int64) (Facets, error)
}
