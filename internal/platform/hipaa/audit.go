package hipaa

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/metrics"
)

// Store persists audit entries. Implementations must be safe for
// concurrent use by the logger's workers.
type Store interface {
	Append(ctx context.Context, e *Entry) error
}

// Recorder is what handlers depend on. Record never fails from the
// caller's point of view.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Options tunes the AuditLogger queue.
type Options struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
	Clock        func() time.Time
}

func (o *Options) applyDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// AuditLogger hands entries to a bounded queue drained by background
// workers. Delivery is at most once: a full queue, a closed logger or a
// failed write loses the entry, which is logged and counted but never
// reported to the request that produced it.
type AuditLogger struct {
	store        Store
	logger       zerolog.Logger
	queue        chan Entry
	now          func() time.Time
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAuditLogger starts opts.Workers goroutines writing to store.
func NewAuditLogger(store Store, logger zerolog.Logger, opts Options) *AuditLogger {
	opts.applyDefaults()
	a := &AuditLogger{
		store:        store,
		logger:       logger.With().Str("component", "audit").Logger(),
		queue:        make(chan Entry, opts.QueueSize),
		now:          opts.Clock,
		writeTimeout: opts.WriteTimeout,
	}
	a.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go a.worker()
	}
	return a
}

// Record stamps the entry with the current time, replacing any caller
// value, and enqueues it without blocking.
func (a *AuditLogger) Record(ctx context.Context, e Entry) {
	e.Timestamp = a.now().UTC()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.UserID == "" {
		e.UserID = auth.SubjectFromContext(ctx)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(e, "logger closed")
		return
	}
	select {
	case a.queue <- e:
		metrics.AuditQueueDepth.Set(float64(len(a.queue)))
	default:
		a.drop(e, "queue full")
	}
}

func (a *AuditLogger) drop(e Entry, reason string) {
	metrics.AuditEntries.WithLabelValues("dropped").Inc()
	a.logger.Warn().
		Str("reason", reason).
		Str("user_id", e.UserID).
		Str("action", e.Action).
		Str("resource", e.Resource).
		Msg("audit entry dropped")
}

func (a *AuditLogger) worker() {
	defer a.wg.Done()
	for e := range a.queue {
		metrics.AuditQueueDepth.Set(float64(len(a.queue)))
		a.write(e)
	}
}

func (a *AuditLogger) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
	defer cancel()

	if err := a.store.Append(ctx, &e); err != nil {
		metrics.AuditEntries.WithLabelValues("failed").Inc()
		a.logger.Error().Err(err).
			Str("user_id", e.UserID).
			Str("action", e.Action).
			Str("resource", e.Resource).
			Str("resource_id", e.ResourceID).
			Msg("failed to write audit entry")
		return
	}
	metrics.AuditEntries.WithLabelValues("written").Inc()
}

// Close stops accepting entries and waits for the workers to drain the
// queue or for ctx to end. Calling it again is a no-op.
func (a *AuditLogger) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.logger.Warn().Int("pending", len(a.queue)).Msg("audit queue not drained before shutdown")
		return ctx.Err()
	}
}
