package anchor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/veridianhq/veridian-ledger/internal/ledger"
	"go.uber.org/zap"
)

// HeadReader is the one slice of the event log the scheduler needs.
type HeadReader interface {
	Head(ctx context.Context) (ledger.Head, error)
}

// MetricsRecorder is an optional callback for recording publish outcomes.
type MetricsRecorder func(method Method, success bool)

// Config holds scheduler policy.
type Config struct {
	// SkipUnchanged skips a backend when its last anchored hash equals
	// the current head, trading anchoring freshness for backend call
	// volume. Set false to re-anchor every cycle regardless.
	SkipUnchanged bool

	// BackendTimeout bounds each backend's publish attempt. A hung
	// backend exhausts its own budget without stalling the others.
	BackendTimeout time.Duration
}

// Backend outcome statuses in a CycleReport.
const (
	StatusAnchored = "anchored"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// BackendResult is one backend's outcome within a cycle.
type BackendResult struct {
	Method Method  `json:"method"`
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
	Record *Record `json:"record,omitempty"`
}

// CycleReport aggregates one anchoring cycle. A cycle with some failed
// backends still succeeds as long as at least one anchored; failed backends
// are simply retried on the next cycle.
type CycleReport struct {
	StartedAt time.Time       `json:"started_at"`
	Head      ledger.Head     `json:"head"`
	Results   []BackendResult `json:"results"`
}

// Anchored returns the number of backends that anchored in this cycle.
func (r *CycleReport) Anchored() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusAnchored {
			n++
		}
	}
	return n
}

// ErrCycleFailed is returned when every attempted backend failed.
var ErrCycleFailed = errors.New("anchoring cycle failed: no backend anchored")

// Scheduler fans the current chain head out to the configured backends.
// Overlapping runs (duplicate cron triggers, multiple instances) are safe:
// anchoring the same hash twice just produces redundant records.
type Scheduler struct {
	log       HeadReader
	store     RecordStore
	backends  []Backend
	cfg       Config
	onMetrics MetricsRecorder
	logger    *zap.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(log HeadReader, store RecordStore, backends []Backend, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.BackendTimeout == 0 {
		cfg.BackendTimeout = 30 * time.Second
	}
	return &Scheduler{
		log:      log,
		store:    store,
		backends: backends,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetMetricsRecorder installs an optional publish-outcome callback.
func (s *Scheduler) SetMetricsRecorder(rec MetricsRecorder) { s.onMetrics = rec }

// RunCycle reads the chain head and publishes it through the enabled
// backends, concurrently, each under its own timeout budget. If only is
// non-empty, the cycle is restricted to those methods.
//
// Successful publishes are persisted even when ctx is cancelled midway
// through the cycle: the external anchor already exists, so dropping its
// record would orphan it.
func (s *Scheduler) RunCycle(ctx context.Context, only ...Method) (*CycleReport, error) {
	head, err := s.log.Head(ctx)
	if err != nil {
		return nil, err
	}

	report := &CycleReport{StartedAt: time.Now().UTC(), Head: head}
	if head.Sequence < 0 {
		s.logger.Debug("anchoring cycle skipped: ledger is empty")
		return report, nil
	}

	backends := s.selectBackends(only)
	report.Results = make([]BackendResult, len(backends))

	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(i int, b Backend) {
			defer wg.Done()
			report.Results[i] = s.runBackend(ctx, b, head)
		}(i, b)
	}
	wg.Wait()

	attempted := 0
	for _, res := range report.Results {
		if res.Status != StatusSkipped {
			attempted++
		}
	}
	if attempted > 0 && report.Anchored() == 0 {
		return report, ErrCycleFailed
	}

	s.logger.Info("anchoring cycle complete",
		zap.Int64("sequence", head.Sequence),
		zap.String("hash", head.Hash),
		zap.Int("anchored", report.Anchored()),
		zap.Int("backends", len(backends)),
	)
	return report, nil
}

func (s *Scheduler) selectBackends(only []Method) []Backend {
	if len(only) == 0 {
		return s.backends
	}
	wanted := make(map[Method]bool, len(only))
	for _, m := range only {
		wanted[m] = true
	}
	var out []Backend
	for _, b := range s.backends {
		if wanted[b.Method()] {
			out = append(out, b)
		}
	}
	return out
}

func (s *Scheduler) runBackend(ctx context.Context, b Backend, head ledger.Head) BackendResult {
	method := b.Method()

	if s.cfg.SkipUnchanged {
		last, err := s.store.LastForMethod(ctx, method)
		if err != nil {
			// Store trouble is not a reason to withhold the anchor.
			s.logger.Warn("anchor history lookup failed",
				zap.String("method", string(method)), zap.Error(err))
		} else if last != nil && last.AnchoredHash == head.Hash {
			return BackendResult{Method: method, Status: StatusSkipped}
		}
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	rec, err := b.Publish(pubCtx, head.Hash, head.Sequence)
	if err != nil {
		s.record(method, false)
		s.logger.Warn("anchor publish failed",
			zap.String("method", string(method)),
			zap.Int64("sequence", head.Sequence),
			zap.Error(err),
		)
		return BackendResult{Method: method, Status: StatusFailed, Error: err.Error()}
	}

	// Persist under a context detached from cycle cancellation: the
	// external publication already happened and must not be orphaned.
	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelSave()
	if err := s.store.Save(saveCtx, rec); err != nil {
		s.record(method, false)
		s.logger.Error("anchor record persist failed",
			zap.String("method", string(method)),
			zap.String("anchor_id", rec.AnchorID.String()),
			zap.Error(err),
		)
		return BackendResult{Method: method, Status: StatusFailed, Error: err.Error()}
	}

	s.record(method, true)
	return BackendResult{Method: method, Status: StatusAnchored, Record: rec}
}

func (s *Scheduler) record(method Method, success bool) {
	if s.onMetrics != nil {
		s.onMetrics(method, success)
	}
}
