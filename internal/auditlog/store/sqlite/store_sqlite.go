// Package sqlite provides a file-backed reference implementation of the
// audit store. It is suitable for single-node deployments and integration
// tests; larger installations use the postgres store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"gatelog/internal/auditlog"
)

// Store implements auditlog.Store on a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("auditlog sqlite: open: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS access_audit_log (
            id                   INTEGER PRIMARY KEY AUTOINCREMENT,
            timestamp            INTEGER NOT NULL,
            org_id               TEXT    NOT NULL DEFAULT '',
            action               INTEGER NOT NULL,
            reason               INTEGER NOT NULL,
            resource_id          INTEGER,
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
            tls                  INTEGER NOT NULL DEFAULT 0,
            ip                   TEXT    NOT NULL DEFAULT ''
        );
        CREATE INDEX IF NOT EXISTS idx_access_audit_log_timestamp ON access_audit_log(timestamp);
        CREATE INDEX IF NOT EXISTS idx_access_audit_log_org_time ON access_audit_log(org_id, timestamp);
    `
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("auditlog sqlite: migration failed: %w", err)
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
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp, event.OrgID, boolToInt(event.Action), int(event.Reason),
		resourceID, event.ResourceName, event.Location, string(event.ActorType),
		event.Actor, event.ActorID, event.AuthMethod, metadata,
		event.OriginalRequestURL, event.Scheme, event.Host, event.Path,
		event.Method, boolToInt(event.TLS), event.IP,
	)
	if err != nil {
		return fmt.Errorf("auditlog sqlite: insert failed: %w", err)
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
		return nil, 0, fmt.Errorf("auditlog sqlite: count failed: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM access_audit_log %s %s LIMIT ? OFFSET ?",
		selectColumns, where, orderClause(req.Sort))
	rows, err := s.db.QueryContext(ctx, query, append(args, req.Limit, req.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("auditlog sqlite: query failed: %w", err)
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
		return nil, 0, fmt.Errorf("auditlog sqlite: iterate failed: %w", err)
	}
	return events, total, nil
}

func (s *Store) ScanAll(ctx context.Context, req auditlog.ScanRequest, fn func(auditlog.Event) error) error {
	where, args := buildWhere(req)
	query := fmt.Sprintf("SELECT %s FROM access_audit_log %s %s",
		selectColumns, where, orderClause(req.Sort))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("auditlog sqlite: export query failed: %w", err)
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
		return fmt.Errorf("auditlog sqlite: export iterate failed: %w", err)
	}
	return nil
}

func (s *Store) FacetScan(ctx context.Context, orgID string, start, end int64) (auditlog.Facets, error) {
	where := "WHERE timestamp >= ? AND timestamp <= ?"
	args := []any{start, end}
	if orgID != "" {
		where += " AND org_id = ?"
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
		return auditlog.Facets{}, fmt.Errorf("auditlog sqlite: resource facet failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref auditlog.ResourceRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return auditlog.Facets{}, fmt.Errorf("auditlog sqlite: resource facet scan failed: %w", err)
		}
		facets.Resources = append(facets.Resources, ref)
	}
	if err := rows.Err(); err != nil {
		return auditlog.Facets{}, fmt.Errorf("auditlog sqlite: resource facet iterate failed: %w", err)
	}

	return facets, nil
}

func (s *Store) distinctStrings(ctx context.Context, column, where string, args []any, out *[]string) error {
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM access_audit_log %s AND %s != '' ORDER BY %s",
		column, where, column, column)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("auditlog sqlite: %s facet failed: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return fmt.Errorf("auditlog sqlite: %s facet scan failed: %w", column, err)
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
	conds := []string{"timestamp >= ?", "timestamp <= ?"}
	args := []any{req.Start, req.End}

	f := req.Filter
	if f.OrgID != "" {
		conds = append(conds, "org_id = ?")
		args = append(args, f.OrgID)
	}
	if f.Action != nil {
		conds = append(conds, "action = ?")
		args = append(args, boolToInt(*f.Action))
	}
	if f.AuthMethod != "" {
		conds = append(conds, "auth_method = ?")
		args = append(args, f.AuthMethod)
	}
	if f.ResourceID != nil {
		conds = append(conds, "resource_id = ?")
		args = append(args, *f.ResourceID)
	}
	if f.Location != "" {
		conds = append(conds, "location = ?")
		args = append(args, f.Location)
	}
	if f.Actor != "" {
		conds = append(conds, "actor = ?")
		args = append(args, f.Actor)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(by auditlog.Sort) string {
	column := "timestamp"
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
	// id carries the insertion sequence; including it keeps ties deterministic.
	return fmt.Sprintf("ORDER BY %s %s, id %s", column, dir, dir)
}

func scanEvent(rows *sql.Rows) (auditlog.Event, error) {
	var (
		event       auditlog.Event
		action, tls int
		reason      int
		actorType   string
		resourceID  sql.NullInt64
		metadata    sql.NullString
	)
	err := rows.Scan(
		&event.ID, &event.Timestamp, &event.OrgID, &action, &reason,
		&resourceID, &event.ResourceName, &event.Location, &actorType,
		&event.Actor, &event.ActorID, &event.AuthMethod, &metadata,
		&event.OriginalRequestURL, &event.Scheme, &event.Host, &event.Path,
		&event.Method, &tls, &event.IP,
	)
	if err != nil {
		return auditlog.Event{}, fmt.Errorf("auditlog sqlite: scan failed: %w", err)
	}

	event.Action = action != 0
	event.TLS = tls != 0
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
