// Package postgres provides the PostgreSQL-backed audit store used by
// multi-node deployments.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"gatelog/internal/auditlog"
)

// Store implements auditlog.Store on PostgreSQL. Appends rely on the
// database for sequencing, so concurrent appenders need no coordination
// here.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle. Callers own the handle's lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditlog postgres: open: %w", err)
	}
	s := New(db)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the audit table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS access_audit_log (
            id                   BIGSERIAL PRIMARY KEY,
            timestamp            BIGINT  NOT NULL,
            org_id               TEXT    NOT NULL DEFAULT '',
            action               BOOLEAN NOT NULL,
            reason               INTEGER NOT NULL,
            resource_id          BIGINT,
            resource_name        TEXT    NOT NULL DEFAULT '',
            location             TEXT    NOT NULL DEFAULT '',
            actor_type           TEXT    NOT NULL DEFAULT '',
            actor                TEXT    NOT NULL DEFAULT '',
            actor_id             TEXT    NOT NULL DEFAULT '',
            auth_method          TEXT    NOT NULL DEFAULT '',
            metadata             TEXT,
            original_request_url TEXT    NOT NULL DEFAULT '',
            scheme               TEXT    NOT NULL DEFAULT '',
            host                 TEXT    NOT NULL DEFAULT '',
            path                 TEXT    NOT NULL DEFAULT '',
            method               TEXT    NOT NULL DEFAULT '',
            tls                  BOOLEAN NOT NULL DEFAULT FALSE,
            ip                   TEXT    NOT NULL DEFAULT ''
        );
        CREATE INDEX IF NOT EXISTS idx_access_audit_log_timestamp ON access_audit_log ("timestamp");
        CREATE INDEX IF NOT EXISTS idx_access_audit_log_org_time ON access_audit_log (org_id, "timestamp");
    `
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("auditlog postgres: migration failed: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event auditlog.Event) error {
	var resourceID any
	if event.ResourceID != nil {
		resourceID = *event.ResourceID
	}
	var metadata any
	if event.Metadata != nil {
		metadata = *event.Metadata
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO access_audit_log (
            timestamp, org_id, action, reason, resource_id, resource_name,
            location, actor_type, actor, actor_id, auth_method, metadata,
            original_request_url, scheme, host, path, method, tls, ip
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		event.Timestamp, event.OrgID, event.Action, int(event.Reason),
		resourceID, event.ResourceName, event.Location, string(event.ActorType),
		event.Actor, event.ActorID, event.AuthMethod, metadata,
		event.OriginalRequestURL, event.Scheme, event.Host, event.Path,
		event.Method, event.TLS, event.IP,
	)
	if err != nil {
		return fmt.Errorf("auditlog postgres: insert failed: %w", err)
	}
	return nil
}

const selectColumns = `id, timestamp, org_id, action, reason, resource_id, resource_name,
       location, actor_type, actor, actor_id, auth_method, metadata,
       original_request_url, scheme, host, path, method, tls, ip`

func (s *Store) Scan(ctx context.Context, req auditlog.ScanRequest) ([]auditlog.Event, int, error) {
	where, args := buildWhere(req)

	var total int
	countQuery := "SELECT COUNT(*) FROM access_audit_log " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("auditlog postgres: count failed: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM access_audit_log %s %s LIMIT $%d OFFSET $%d",
		selectColumns, where, orderClause(req.Sort), len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, req.Limit, req.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("auditlog postgres: query failed: %w", err)
	}
	defer rows.Close()

	events := make([]auditlog.Event, 0, req.Limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("auditlog postgres: iterate failed: %w", err)
	}
	return events, total, nil
}

func (s *Store) ScanAll(ctx context.Context, req auditlog.ScanRequest, fn func(auditlog.Event) error) error {
	where, args := buildWhere(req)
	query := fmt.Sprintf("SELECT %s FROM access_audit_log %s %s",
		selectColumns, where, orderClause(req.Sort))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("auditlog postgres: export query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, err := scanEvent(rows)
		if err != nil {
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("auditlog postgres: export iterate failed: %w", err)
	}
	return nil
}

func (s *Store) FacetScan(ctx context.Context, orgID string, start, end int64) (auditlog.Facets, error) {
	where := `WHERE "timestamp" >= $1 AND "timestamp" <= $2`
	args := []any{start, end}
	if orgID != "" {
		where += " AND org_id = $3"
		args = append(args, orgID)
	}

	facets := auditlog.Facets{
		Actors:    []string{},
		Resources: []auditlog.ResourceRef{},
		Locations: []string{},
	}

	if err := s.distinctStrings(ctx, "actor", where, args, &facets.Actors); err != nil {
		return auditlog.Facets{}, err
	}
	if err := s.distinctStrings(ctx, "location", where, args, &facets.Locations); err != nil {
		return auditlog.Facets{}, err
	}

	query := fmt.Sprintf(
		"SELECT resource_id, MAX(resource_name) FROM access_audit_log %s AND resource_id IS NOT NULL GROUP BY resource_id ORDER BY resource_id",
		where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return auditlog.Facets{}, fmt.Errorf("auditlog postgres: resource facet failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref auditlog.ResourceRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return auditlog.Facets{}, fmt.Errorf("auditlog postgres: resource facet scan failed: %w", err)
		}
		facets.Resources = append(facets.Resources, ref)
	}
	if err := rows.Err(); err != nil {
		return auditlog.Facets{}, fmt.Errorf("auditlog postgres: resource facet iterate failed: %w", err)
	}

	return facets, nil
}

func (s *Store) distinctStrings(ctx context.Context, column, where string, args []any, out *[]string) error {
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM access_audit_log %s AND %s != '' ORDER BY %s",
		column, where, column, column)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("auditlog postgres: %s facet failed: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return fmt.Errorf("auditlog postgres: %s facet scan failed: %w", column, err)
		}
		*out = append(*out, value)
	}
	return rows.Err()
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func buildWhere(req auditlog.ScanRequest) (string, []any) {
	conds := []string{`"timestamp" >= $1`, `"timestamp" <= $2`}
	args := []any{req.Start, req.End}

	next := func() int { return len(args) + 1 }

	f := req.Filter
	if f.OrgID != "" {
		conds = append(conds, fmt.Sprintf("org_id = $%d", next()))
		args = append(args, f.OrgID)
	}
	if f.Action != nil {
		conds = append(conds, fmt.Sprintf("action = $%d", next()))
		args = append(args, *f.Action)
	}
	if f.AuthMethod != "" {
		conds = append(conds, fmt.Sprintf("auth_method = $%d", next()))
		args = append(args, f.AuthMethod)
	}
	if f.ResourceID != nil {
		conds = append(conds, fmt.Sprintf("resource_id = $%d", next()))
		args = append(args, *f.ResourceID)
	}
	if f.Location != "" {
		conds = append(conds, fmt.Sprintf("location = $%d", next()))
		args = append(args, f.Location)
	}
	if f.Actor != "" {
		conds = append(conds, fmt.Sprintf("actor = $%d", next()))
		args = append(args, f.Actor)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(by auditlog.Sort) string {
	column := `"timestamp"`
	switch by.Field {
	case auditlog.SortByActor:
		column = "actor"
	case auditlog.SortByHost:
		column = "host"
	}
	dir := "ASC"
	if by.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", column, dir, dir)
}

func scanEvent(rows *sql.Rows) (auditlog.Event, error) {
	var (
		event      auditlog.Event
		reason     int
		actorType  string
		resourceID sql.NullInt64
		metadata   sql.NullString
	)
	err := rows.Scan(
		&event.ID, &event.Timestamp, &event.OrgID, &event.Action, &reason,
		&resourceID, &event.ResourceName, &event.Location, &actorType,
		&event.Actor, &event.ActorID, &event.AuthMethod, &metadata,
		&event.OriginalRequestURL, &event.Scheme, &event.Host, &event.Path,
		&event.Method, &event.TLS, &event.IP,
	)
	if err != nil {
		return auditlog.Event{}, fmt.Errorf("auditlog postgres: scan failed: %w", err)
	}

	event.Reason = auditlog.ReasonCode(reason)
	event.ActorType = auditlog.ActorType(actorType)
	if resourceID.Valid {
		id := resourceID.Int64
		event.ResourceID = &id
	}
	if metadata.Valid {
		value := metadata.String
		event.Metadata = &value
	}
	return event, nil
}
