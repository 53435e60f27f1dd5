// Package memory provides the reference in-memory audit store. It favors
// clarity over performance and backs the unit tests for the recorder and
// query engine.
package memory

import (
	"context"
	"sort"
	"sync"

	"gatelog/internal/auditlog"
	pkgstrings "gatelog/pkg/platform/strings"
)

// InMemoryStore keeps events in append order and assigns the sequence IDs
// used as the ordering tiebreaker. Safe for concurrent appenders.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []auditlog.Event
	nextID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Append(_ context.Context, event auditlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.nextID
	s.nextID++
	s.events = append(s.events, event)
	return nil
}

// Len returns the number of stored events.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *InMemoryStore) Scan(_ context.Context, req auditlog.ScanRequest) ([]auditlog.Event, int, error) {
	s.mu.RLock()
	matched := s.match(req)
	s.mu.RUnlock()

	sortEvents(matched, req.Sort)
	total := len(matched)

	if req.Offset >= len(matched) {
		return []auditlog.Event{}, total, nil
	}
	matched = matched[req.Offset:]
	if req.Limit > 0 && req.Limit < len(matched) {
		matched = matched[:req.Limit]
	}
	return matched, total, nil
}

func (s *InMemoryStore) ScanAll(ctx context.Context, req auditlog.ScanRequest, fn func(auditlog.Event) error) error {
	s.mu.RLock()
	matched := s.match(req)
	s.mu.RUnlock()

	sortEvents(matched, req.Sort)
	for _, event := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryStore) FacetScan(_ context.Context, orgID string, start, end int64) (auditlog.Facets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var actors, locations []string
	resourceNames := make(map[int64]string)
	var resourceOrder []int64

	for _, event := range s.events {
		if !inRange(event, orgID, start, end) {
			continue
		}
		actors = append(actors, event.Actor)
		locations = append(locations, event.Location)
		if event.ResourceID != nil {
			id := *event.ResourceID
			if _, ok := resourceNames[id]; !ok {
				resourceOrder = append(resourceOrder, id)
			}
			if event.ResourceName != "" {
				resourceNames[id] = event.ResourceName
			} else if _, ok := resourceNames[id]; !ok {
				resourceNames[id] = ""
			}
		}
	}

	facets := auditlog.Facets{
		Actors:    pkgstrings.DedupeAndTrim(actors),
		Locations: pkgstrings.DedupeAndTrim(locations),
		Resources: make([]auditlog.ResourceRef, 0, len(resourceOrder)),
	}
	for _, id := range resourceOrder {
		facets.Resources = append(facets.Resources, auditlog.ResourceRef{ID: id, Name: resourceNames[id]})
	}
	return facets, nil
}

// match returns copies of the events selected by the filter and time range,
// in insertion order. Callers sort afterwards.
func (s *InMemoryStore) match(req auditlog.ScanRequest) []auditlog.Event {
	matched := make([]auditlog.Event, 0, len(s.events))
	for _, event := range s.events {
		if !inRange(event, req.Filter.OrgID, req.Start, req.End) {
			continue
		}
		if !matchesFilter(event, req.Filter) {
			continue
		}
		matched = append(matched, event)
	}
	return matched
}

func inRange(event auditlog.Event, orgID string, start, end int64) bool {
	if orgID != "" && event.OrgID != orgID {
		return false
	}
	return event.Timestamp >= start && event.Timestamp <= end
}

func matchesFilter(event auditlog.Event, filter auditlog.Filter) bool {
	if filter.Action != nil && event.Action != *filter.Action {
		return false
	}
	if filter.AuthMethod != "" && event.AuthMethod != filter.AuthMethod {
		return false
	}
	if filter.ResourceID != nil && (event.ResourceID == nil || *event.ResourceID != *filter.ResourceID) {
		return false
	}
	if filter.Location != "" && event.Location != filter.Location {
		return false
	}
	if filter.Actor != "" && event.Actor != filter.Actor {
		return false
	}
	return true
}

// sortEvents orders events by the requested field with the store-assigned
// sequence as the deterministic tiebreaker.
func sortEvents(events []auditlog.Event, by auditlog.Sort) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if by.Desc {
			a, b = b, a
		}
		switch by.Field {
		case auditlog.SortByActor:
			if a.Actor != b.Actor {
				return a.Actor < b.Actor
			}
		case auditlog.SortByHost:
			if a.Host != b.Host {
				return a.Host < b.Host
			}
		default:
			if a.Timestamp != b.Timestamp {
				return a.Timestamp < b.Timestamp
			}
		}
		return a.ID < b.ID
	})
}
