package handler

import (
	"strconv"
	"time"

	"gatelog/internal/auditlog"
)

// csvHeader names the export columns. Order matches the log table view.
var csvHeader = []string{
	"timestamp", "orgId", "action", "reason", "actorType", "actor", "actorId",
	"type", "resourceId", "resourceName", "location", "ip", "scheme", "host",
	"path", "method", "tls", "originalRequestURL", "metadata",
}

func csvRow(event auditlog.Event) []string {
	resourceID := ""
	if event.ResourceID != nil {
		resourceID = strconv.FormatInt(*event.ResourceID, 10)
	}
	metadata := ""
	if event.Metadata != nil {
		metadata = *event.Metadata
	}

	return []string{
		time.Unix(event.Timestamp, 0).UTC().Format(time.RFC3339),
		event.OrgID,
		strconv.FormatBool(event.Action),
		strconv.Itoa(int(event.Reason)),
		string(event.ActorType),
		event.Actor,
		event.ActorID,
		event.AuthMethod,
		resourceID,
		event.ResourceName,
		event.Location,
		event.IP,
		event.Scheme,
		event.Host,
		event.Path,
		event.Method,
		strconv.FormatBool(event.TLS),
		event.OriginalRequestURL,
		metadata,
	}
}
