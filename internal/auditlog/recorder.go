package auditlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"gatelog/internal/auditlog/metrics"
	"gatelog/pkg/requestcontext"
)

// Recorder assembles canonical audit events from decision and request
// context and persists them. Recording is fire-and-forget with respect to
// the caller: failures are logged and swallowed, never returned, because
// audit logging must not abort or delay the request path it observes.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	inbox  chan Event
	done   chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger used for swallowed failures.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithRecorderMetrics sets the metrics collector.
func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithAsyncBuffer decouples persistence from the request path through a
// bounded inbox drained by a background worker. When the inbox is full the
// event is dropped and counted rather than blocking the caller.
func WithAsyncBuffer(size int) RecorderOption {
	return func(r *Recorder) {
		if size > 0 {
			r.inbox = make(chan Event, size)
		}
	}
}

// NewRecorder constructs a Recorder. With an async buffer configured the
// background worker starts immediately; call Close to drain it.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.inbox != nil {
		r.done = make(chan struct{})
		go r.run()
	}
	return r
}

// Record builds and persists exactly one audit event for a decision, or none
// when the event cannot be assembled. It never returns or panics: any
// serialization or storage failure is logged and swallowed. The event is
// constructed fully in memory before the single append call; partial writes
// are not attempted.
func (r *Recorder) Record(ctx context.Context, decision Decision, info RequestInfo) {
	if !decision.Reason.Matches(decision.Action) {
		// Invariant violation is a programming error upstream. Log loudly
		// and record anyway: a miscoded row beats a hole in the audit trail.
		r.logger.ErrorContext(ctx, "reason code does not match decision outcome",
			"reason", int(decision.Reason),
			"action", decision.Action,
			"request_id", requestcontext.RequestID(ctx),
		)
		r.metrics.IncReasonMismatch()
	}

	event, err := r.buildEvent(ctx, decision, info)
	if err != nil {
		r.logger.ErrorContext(ctx, "audit event assembly failed",
			"reason", int(decision.Reason),
			"error", err,
		)
		r.metrics.IncRecordFailure()
		return
	}

	if r.inbox != nil {
		r.enqueue(ctx, event)
		return
	}

	// Recording has no cancellation: the decision already happened, so the
	// append must not be aborted by the caller's request context ending.
	r.append(context.WithoutCancel(ctx), event)
}

func (r *Recorder) buildEvent(ctx context.Context, decision Decision, info RequestInfo) (Event, error) {
	event := Event{
		Timestamp:          requestcontext.Now(ctx).Unix(),
		OrgID:              decision.OrgID,
		Action:             decision.Action,
		Reason:             decision.Reason,
		ResourceID:         decision.ResourceID,
		Location:           decision.Location,
		AuthMethod:         decision.Reason.AuthMethod(),
		OriginalRequestURL: info.OriginalRequestURL,
		Scheme:             info.Scheme,
		Host:               info.Host,
		Path:               info.Path,
		Method:             info.Method,
		TLS:                info.TLS,
		IP:                 NormalizeClientIP(info.RequestIP),
	}

	if actor, ok := ResolveActor(decision.User, decision.APIKey); ok {
		event.ActorType = actor.Type
		event.Actor = actor.Name
		event.ActorID = actor.ID
	}

	// Absent metadata stores as nil, never the string "null".
	if decision.Metadata != nil {
		raw, err := json.Marshal(decision.Metadata)
		if err != nil {
			return Event{}, err
		}
		serialized := string(raw)
		event.Metadata = &serialized
	}

	return event, nil
}

func (r *Recorder) append(ctx context.Context, event Event) {
	if err := r.store.Append(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "audit append failed",
			"reason", int(event.Reason),
			"host", event.Host,
			"error", err,
		)
		r.metrics.IncRecordFailure()
		return
	}
	r.metrics.IncRecorded(event.Action)
}
