package auditlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gatelog/internal/auditlog/metrics"
	pkgerrors "gatelog/pkg/errors"
	"gatelog/pkg/requestcontext"
)

const (
	// DefaultPageSize applies when the caller does not set a limit.
	DefaultPageSize = 50
	// MaxPageSize is the hard upper bound for a single page.
	MaxPageSize = 500
)

// FacetCache is an optional read-through cache in front of the store's facet
// scan. Misses are silent; a cache failure must never fail a query.
type FacetCache interface {
	Get(ctx context.Context, key string) (Facets, bool)
	Set(ctx context.Context, key string, facets Facets)
}

// QueryRequest is a filtered, paginated, sortable view request over the
// audit log. Limit and Offset express pagination directly; page N at size S
// is Offset = N*S.
type QueryRequest struct {
	Filter Filter
	Time   TimeRange
	Sort   Sort
	Limit  int
	Offset int
}

// ExportRequest selects rows for a bulk export. Exports ignore pagination by
// design.
type ExportRequest struct {
	Filter Filter
	Time   TimeRange
}

// Service is the query, facet, and export engine over the audit store. It
// performs read-only operations; consistency is delegated to the store.
type Service struct {
	store       Store
	catalog     ResourceCatalog
	cache       FacetCache
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxPageSize int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCatalog sets the resource catalog used to enrich rows and facets.
func WithCatalog(catalog ResourceCatalog) ServiceOption {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// WithFacetCache sets a cache consulted before the store facet scan.
func WithFacetCache(cache FacetCache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMaxPageSize overrides the page size clamp.
func WithMaxPageSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.maxPageSize = size
		}
	}
}

// NewService constructs the query/export engine.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, maxPageSize: MaxPageSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Query returns one page of matching rows, the total match count before
// pagination, and the filter facets for the time range. Malformed input is
// rejected here and never reaches the store.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	start := time.Now()

	scan, err := s.prepareScan(ctx, req.Filter, req.Time, req.Sort)
	if err != nil {
		return nil, err
	}
	if req.Offset < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offset must not be negative")
	}
	if req.Limit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must not be negative")
	}
	scan.Offset = req.Offset
	scan.Limit = req.Limit
	if scan.Limit == 0 {
		scan.Limit = DefaultPageSize
	}
	if scan.Limit > s.maxPageSize {
		scan.Limit = s.maxPageSize
	}

	rows, total, err := s.store.Scan(ctx, scan)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "audit store scan failed")
	}

	// Facets are keyed to org and time range only: they populate the filter
	// UI and must not be narrowed by the filters they drive.
	facets, err := s.facets(ctx, req.Filter.OrgID, scan.Start, scan.End)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "audit store facet scan failed")
	}

	for i := range rows {
		s.enrichRow(ctx, &rows[i])
	}

	s.metrics.ObserveQueryLatency(time.Since(start))

	return &QueryResult{Rows: rows, TotalCount: total, Facets: facets}, nil
}

// Export streams every row matching the filter and time range through fn in
// the default query order. Rows are read from the store incrementally, never
// materialized wholesale; ctx cancellation aborts the underlying scan
// without side effects.
func (s *Service) Export(ctx context.Context, req ExportRequest, fn func(Event) error) error {
	scan, err := s.prepareScan(ctx, req.Filter, req.Time, Sort{})
	if err != nil {
		return err
	}

	exported := 0
	err = s.store.ScanAll(ctx, scan, func(event Event) error {
		s.enrichRow(ctx, &event)
		if err := fn(event); err != nil {
			return err
		}
		exported++
		return nil
	})
	s.metrics.AddExportedRows(exported)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return pkgerrors.Wrap(err, pkgerrors.CodeUnavailable, "audit export scan failed")
	}

	s.logger.InfoContext(ctx, "audit export completed",
		"org_id", req.Filter.OrgID,
		"rows", exported,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// prepareScan validates the filter, sort, and time range and resolves the
// range to inclusive epoch-second bounds. An unset end means "up to now",
// not end-of-day.
func (s *Service) prepareScan(ctx context.Context, filter Filter, tr TimeRange, sort Sort) (ScanRequest, error) {
	if filter.AuthMethod != "" && !KnownAuthMethod(filter.AuthMethod) {
		return ScanRequest{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown auth method %q", filter.AuthMethod)
	}
	switch sort.Field {
	case "", SortByTimestamp, SortByActor, SortByHost:
	default:
		return ScanRequest{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown sort field %q", sort.Field)
	}
	if sort.Field == "" {
		sort.Field = SortByTimestamp
	}
	if !tr.Start.IsZero() && !tr.End.IsZero() && tr.Start.After(tr.End) {
		return ScanRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "time range start is after end")
	}

	var start int64
	if !tr.Start.IsZero() {
		start = tr.Start.Unix()
	}
	end := tr.End
	if end.IsZero() {
		end = requestcontext.Now(ctx)
	}

	return ScanRequest{
		Filter: filter,
		Start:  start,
		End:    end.Unix(),
		Sort:   sort,
	}, nil
}

func (s *Service) facets(ctx context.Context, orgID string, start, end int64) (Facets, error) {
	key := fmt.Sprintf("%s:%d:%d", orgID, start, end)

	if s.cache != nil {
		if facets, ok := s.cache.Get(ctx, key); ok {
			s.metrics.IncFacetCache(true)
			return facets, nil
		}
		s.metrics.IncFacetCache(false)
	}

	facets, err := s.store.FacetScan(ctx, orgID, start, end)
	if err != nil {
		return Facets{}, err
	}

	for i := range facets.Resources {
		s.resolveResourceName(ctx, &facets.Resources[i])
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, facets)
	}
	return facets, nil
}

func (s *Service) enrichRow(ctx context.Context, event *Event) {
	if event.ResourceID == nil || event.ResourceName != "" || s.catalog == nil {
		return
	}
	ref := ResourceRef{ID: *event.ResourceID}
	s.resolveResourceName(ctx, &ref)
	event.ResourceName = ref.Name
}

func (s *Service) resolveResourceName(ctx context.Context, ref *ResourceRef) {
	if ref.Name != "" || s.catalog == nil {
		return
	}
	resolved, err := s.catalog.ResolveResource(ctx, ref.ID)
	if err != nil {
		if !errors.Is(err, ErrResourceUnknown) {
			s.logger.DebugContext(ctx, "resource lookup failed",
				"resource_id", ref.ID,
				"error", err,
			)
		}
		return
	}
	ref.Name = resolved.Name
}
