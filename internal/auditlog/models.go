package auditlog

import "time"

// ActorType tags which identity variant is attached to an event so the query
// layer can facet and clients can render per-type icons.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAPIKey ActorType = "apiKey"
)

// User is the authenticated-user identity supplied by the decision engine.
type User struct {
	Username string
	UserID   string
}

// APIKey is the API-key identity supplied by the decision engine. Name may be
// empty, in which case the key ID doubles as the display name.
type APIKey struct {
	Name     string
	APIKeyID string
}

// ActorIdentity is the canonical actor attributed to a decision. The three
// fields are co-present; an event either carries a full identity or none.
type ActorIdentity struct {
	Type ActorType
	Name string
	ID   string
}

// Decision is the per-event input from the authorization engine. The engine
// already decided the outcome; this core only records it.
type Decision struct {
	Action     bool
	Reason     ReasonCode
	OrgID      string
	ResourceID *int64
	Location   string
	User       *User
	APIKey     *APIKey
	Metadata   any
}

// RequestInfo is the network and request context supplied by the
// request-handling layer. RequestIP is the raw client address and may carry
// IPv6 bracket notation or a trailing port.
type RequestInfo struct {
	Path               string
	OriginalRequestURL string
	Scheme             string
	Host               string
	Method             string
	TLS                bool
	RequestIP          string
}

// Event is the persisted, immutable audit record. ID is assigned by the
// store on append and doubles as the ordering tiebreaker.
type Event struct {
	ID                 int64      `json:"id"`
	Timestamp          int64      `json:"timestamp"`
	OrgID              string     `json:"orgId,omitempty"`
	Action             bool       `json:"action"`
	Reason             ReasonCode `json:"reason"`
	ResourceID         *int64     `json:"resourceId,omitempty"`
	ResourceName       string     `json:"resourceName,omitempty"`
	Location           string     `json:"location,omitempty"`
	ActorType          ActorType  `json:"actorType,omitempty"`
	Actor              string     `json:"actor,omitempty"`
	ActorID            string     `json:"actorId,omitempty"`
	AuthMethod         string     `json:"type,omitempty"`
	Metadata           *string    `json:"metadata,omitempty"`
	OriginalRequestURL string     `json:"originalRequestURL"`
	Scheme             string     `json:"scheme"`
	Host               string     `json:"host"`
	Path               string     `json:"path"`
	Method             string     `json:"method"`
	TLS                bool       `json:"tls"`
	IP                 string     `json:"ip,omitempty"`
}

// Filter selects events for queries and exports. Zero-valued fields are
// ignored; set fields combine with AND.
type Filter struct {
	OrgID      string
	Action     *bool
	AuthMethod string
	ResourceID *int64
	Location   string
	Actor      string
}

// TimeRange bounds a query by event timestamp, inclusive on both ends. A zero
// End means "up to now", resolved at query time.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// SortField names a sortable event column.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByActor     SortField = "actor"
	SortByHost      SortField = "host"
)

// Sort describes the requested ordering. The zero value means ascending
// timestamp, the default ordering for queries and exports. Ties are always
// broken by the store-assigned sequence.
type Sort struct {
	Field SortField
	Desc  bool
}

// ResourceRef pairs a resource ID with its display name for the resource
// facet and for linking rows back to the resource catalog.
type ResourceRef struct {
	ID   int64  `json:"resourceId"`
	Name string `json:"resourceName,omitempty"`
}

// Facets are the distinct values present in the time-bounded result set,
// used to populate filter selection UIs. They are keyed to the time range
// only, never to the other filters, so selecting one filter does not erase
// the remaining options.
type Facets struct {
	Actors    []string      `json:"actors"`
	Resources []ResourceRef `json:"resources"`
	Locations []string      `json:"locations"`
}

// QueryResult is the paginated view over the audit log. TotalCount reflects
// the filter and time range before pagination.
type QueryResult struct {
	Rows       []Event `json:"rows"`
	TotalCount int     `json:"totalCount"`
	Facets     Facets  `json:"facets"`
}
