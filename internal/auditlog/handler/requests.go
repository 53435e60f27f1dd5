package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"gatelog/internal/auditlog"
	pkgerrors "gatelog/pkg/errors"
)

// RecordRequest is the HTTP request body for POST /logs/access. Its shape
// mirrors what the gateway's decision engine emits per request.
type RecordRequest struct {
	Action     bool            `json:"action"`
	Reason     int             `json:"reason"`
	OrgID      string          `json:"orgId"`
	ResourceID *int64          `json:"resourceId"`
	Location   string          `json:"location"`
	User       *recordUser     `json:"user"`
	APIKey     *recordAPIKey   `json:"apiKey"`
	Metadata   json.RawMessage `json:"metadata"`
	Request    recordContext   `json:"request"`
}

type recordUser struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

type recordAPIKey struct {
	Name     string `json:"name"`
	APIKeyID string `json:"apiKeyId"`
}

type recordContext struct {
	Path               string `json:"path"`
	OriginalRequestURL string `json:"originalRequestURL"`
	Scheme             string `json:"scheme"`
	Host               string `json:"host"`
	Method             string `json:"method"`
	TLS                bool   `json:"tls"`
	RequestIP          string `json:"requestIp"`
}

func decodeRecordRequest(r *http.Request) (*RecordRequest, error) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "request body is not valid JSON")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate rejects structurally incomplete records. Semantic checks such as
// the reason/outcome cross-check belong to the recorder, which fails open.
func (r *RecordRequest) Validate() error {
	if r.Reason == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if r.Request.Path == "" || r.Request.Host == "" || r.Request.Method == "" || r.Request.Scheme == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "request context requires path, host, method, and scheme")
	}
	if r.User != nil && (r.User.Username == "" || r.User.UserID == "") {
		return pkgerrors.New(pkgerrors.CodeValidation, "user requires username and userId")
	}
	if r.APIKey != nil && r.APIKey.APIKeyID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "apiKey requires apiKeyId")
	}
	return nil
}

// Decision converts the request into the recorder's decision input.
func (r *RecordRequest) Decision() auditlog.Decision {
	decision := auditlog.Decision{
		Action:     r.Action,
		Reason:     auditlog.ReasonCode(r.Reason),
		OrgID:      r.OrgID,
		ResourceID: r.ResourceID,
		Location:   r.Location,
	}
	if r.User != nil {
		decision.User = &auditlog.User{Username: r.User.Username, UserID: r.User.UserID}
	}
	if r.APIKey != nil {
		decision.APIKey = &auditlog.APIKey{Name: r.APIKey.Name, APIKeyID: r.APIKey.APIKeyID}
	}
	if len(r.Metadata) > 0 && string(r.Metadata) != "null" {
		decision.Metadata = r.Metadata
	}
	return decision
}

// RequestInfo converts the request into the recorder's network context.
func (r *RecordRequest) RequestInfo() auditlog.RequestInfo {
	return auditlog.RequestInfo{
		Path:               r.Request.Path,
		OriginalRequestURL: r.Request.OriginalRequestURL,
		Scheme:             r.Request.Scheme,
		Host:               r.Request.Host,
		Method:             r.Request.Method,
		TLS:                r.Request.TLS,
		RequestIP:          r.Request.RequestIP,
	}
}

// parseQueryRequest parses the GET query parameters of the log view:
// limit, offset, timeStart, timeEnd, action, type, resourceId, location,
// actor, sort, order.
func parseQueryRequest(r *http.Request, orgID string) (auditlog.QueryRequest, error) {
	filter, timeRange, err := parseFilterParams(r, orgID)
	if err != nil {
		return auditlog.QueryRequest{}, err
	}

	req := auditlog.QueryRequest{Filter: filter, Time: timeRange}

	if req.Limit, err = intParam(r, "limit"); err != nil {
		return auditlog.QueryRequest{}, err
	}
	if req.Offset, err = intParam(r, "offset"); err != nil {
		return auditlog.QueryRequest{}, err
	}

	if sortField := r.URL.Query().Get("sort"); sortField != "" {
		req.Sort.Field = auditlog.SortField(sortField)
	}
	switch order := r.URL.Query().Get("order"); order {
	case "", "asc":
	case "desc":
		req.Sort.Desc = true
	default:
		return auditlog.QueryRequest{}, pkgerrors.Newf(pkgerrors.CodeValidation, "order must be asc or desc, got %q", order)
	}

	return req, nil
}

// parseExportRequest parses the same filter and time parameters as a query;
// pagination and sort parameters are ignored.
func parseExportRequest(r *http.Request, orgID string) (auditlog.ExportRequest, error) {
	filter, timeRange, err := parseFilterParams(r, orgID)
	if err != nil {
		return auditlog.ExportRequest{}, err
	}
	return auditlog.ExportRequest{Filter: filter, Time: timeRange}, nil
}

func parseFilterParams(r *http.Request, orgID string) (auditlog.Filter, auditlog.TimeRange, error) {
	query := r.URL.Query()
	filter := auditlog.Filter{
		OrgID:      orgID,
		AuthMethod: query.Get("type"),
		Location:   query.Get("location"),
		Actor:      query.Get("actor"),
	}

	if raw := query.Get("action"); raw != "" {
		action, err := strconv.ParseBool(raw)
		if err != nil {
			return auditlog.Filter{}, auditlog.TimeRange{}, pkgerrors.Newf(pkgerrors.CodeValidation, "action must be a boolean, got %q", raw)
		}
		filter.Action = &action
	}
	if raw := query.Get("resourceId"); raw != "" {
		resourceID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return auditlog.Filter{}, auditlog.TimeRange{}, pkgerrors.Newf(pkgerrors.CodeValidation, "resourceId must be an integer, got %q", raw)
		}
		filter.ResourceID = &resourceID
	}

	var timeRange auditlog.TimeRange
	var err error
	if timeRange.Start, err = timeParam(r, "timeStart"); err != nil {
		return auditlog.Filter{}, auditlog.TimeRange{}, err
	}
	if timeRange.End, err = timeParam(r, "timeEnd"); err != nil {
		return auditlog.Filter{}, auditlog.TimeRange{}, err
	}

	return filter, timeRange, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be an integer, got %q", name, raw)
	}
	return value, nil
}

// timeParam accepts RFC 3339 instants or raw epoch seconds.
func timeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(seconds, 0), nil
	}
	return time.Time{}, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be an RFC 3339 instant or epoch seconds, got %q", name, raw)
}
