package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatelog/internal/auditlog"
	pkgerrors "gatelog/pkg/errors"
	"gatelog/pkg/platform/httputil"
	"gatelog/pkg/requestcontext"
)

// flushEvery bounds how many CSV rows are buffered before forcing bytes out
// to the client during an export.
const flushEvery = 500

// Recorder accepts decision events for persistence. It never fails.
type Recorder interface {
	Record(ctx context.Context, decision auditlog.Decision, info auditlog.RequestInfo)
}

// Querier serves filtered views and exports over the audit log.
type Querier interface {
	Query(ctx context.Context, req auditlog.QueryRequest) (*auditlog.QueryResult, error)
	Export(ctx context.Context, req auditlog.ExportRequest, fn func(auditlog.Event) error) error
}

// Handler wires audit log endpoints to the recorder and query engine.
type Handler struct {
	recorder Recorder
	querier  Querier
	logger   *slog.Logger
}

// New constructs an audit log handler with its dependencies.
func New(recorder Recorder, querier Querier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{recorder: recorder, querier: querier, logger: logger}
}

// Register mounts audit log endpoints on the router. The record endpoint is
// called by the gateway itself and is expected to sit behind internal-only
// routing.
func (h *Handler) Register(r chi.Router) {
	r.Post("/logs/access", h.HandleRecord)
	r.Get("/org/{orgID}/logs/access", h.HandleQuery)
	r.Get("/org/{orgID}/logs/access/export", h.HandleExport)
}

// HandleRecord handles POST /logs/access. Recording is fire-and-forget: a
// parseable request is always accepted, whatever happens downstream.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeRecordRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.recorder.Record(ctx, req.Decision(), req.RequestInfo())
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleQuery handles GET /org/{orgID}/logs/access.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := chi.URLParam(r, "orgID")

	req, err := parseQueryRequest(r, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.querier.Query(ctx, req)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "audit query failed",
				"org_id", orgID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleExport handles GET /org/{orgID}/logs/access/export. Rows are
// streamed as CSV; pagination parameters are ignored by design.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := chi.URLParam(r, "orgID")

	req, err := parseExportRequest(r, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filename := exportFilename(orgID, requestcontext.Now(ctx))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		h.logger.ErrorContext(ctx, "audit export write failed", "org_id", orgID, "error", err)
		return
	}

	flusher, _ := w.(http.Flusher)
	written := 0
	err = h.querier.Export(ctx, req, func(event auditlog.Event) error {
		if err := writer.Write(csvRow(event)); err != nil {
			return err
		}
		written++
		if written%flushEvery == 0 {
			writer.Flush()
			if err := writer.Error(); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		return nil
	})
	if err != nil {
		// Headers are gone; all we can do is cut the stream short and log.
		h.logger.ErrorContext(ctx, "audit export aborted",
			"org_id", orgID,
			"rows_written", written,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		h.logger.ErrorContext(ctx, "audit export flush failed", "org_id", orgID, "error", err)
	}
}

func exportFilename(orgID string, now time.Time) string {
	return fmt.Sprintf("access-audit-logs-%s-%d.csv", orgID, now.Unix())
}
