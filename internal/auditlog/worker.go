package auditlog

import "context"

// enqueue hands an event to the background worker without blocking. Events
// arriving after Close, or while the inbox is full, are dropped and counted;
// blocking the request path is never an option here.
func (r *Recorder) enqueue(ctx context.Context, event Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.WarnContext(ctx, "audit recorder closed, event dropped",
			"reason", int(event.Reason),
		)
		r.metrics.IncDropped()
		return
	}

	select {
	case r.inbox <- event:
	default:
		r.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"reason", int(event.Reason),
		)
		r.metrics.IncDropped()
	}
}

// run drains the inbox until Close. Appends use a fresh context: the request
// that produced the event has usually completed by the time it persists.
func (r *Recorder) run() {
	for event := range r.inbox {
		r.append(context.Background(), event)
	}
	close(r.done)
}

// Close stops accepting events and drains the inbox. Safe to call more than
// once. A synchronous recorder closes immediately.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.inbox != nil {
		close(r.inbox)
	}
	r.mu.Unlock()

	if r.done != nil {
		<-r.done
	}
	return nil
}
