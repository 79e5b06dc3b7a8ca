package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Repository stores audit events. Implementations return an error wrapping
// a not-found sentinel when no row matches.
type Repository interface {
	InsertAuditEvent(ctx context.Context, e Event) (int64, error)
	GetAuditEventByRequestID(ctx context.Context, requestID string) (Event, error)
	Ping(ctx context.Context) error
}

// Service is the write and read path for audit events.
type Service struct {
	repo    Repository
	enabled bool
	logger  *slog.Logger
	now     func() time.Time

	healthGroup singleflight.Group
	healthErr   atomic.Pointer[error]
	healthAt    atomic.Int64
}

// NewService returns a Service. A nil repo or enabled=false turns every
// write into a no-op and every read into not-found.
func NewService(repo Repository, enabled bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		enabled: enabled,
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether events are persisted.
func (s *Service) Enabled() bool {
	return s.enabled && s.repo != nil
}

// Persist writes one event for rc. It returns nil without writing when
// auditing is disabled.
func (s *Service) Persist(ctx context.Context, rc RequestContext) error {
	if !s.Enabled() {
		return nil
	}
	e := BuildEvent(rc, s.now())
	if _, err := s.repo.InsertAuditEvent(ctx, e); err != nil {
		return fmt.Errorf("audit: persist %s: %w", rc.RequestID, err)
	}
	return nil
}

// Get returns the event for requestID. Disabled auditing, missing storage,
// storage errors and missing rows all report false.
func (s *Service) Get(ctx context.Context, requestID string) (Event, bool) {
	if !s.Enabled() || requestID == "" {
		return Event{}, false
	}
	e, err := s.repo.GetAuditEventByRequestID(ctx, requestID)
	if err != nil {
		s.logger.Debug("audit: lookup miss", "request_id", requestID, "error", err)
		return Event{}, false
	}
	return e, true
}

// healthTTL is how long a storage health result is reused.
const healthTTL = 5 * time.Second

// Healthy pings the repository. Results are cached for healthTTL and
// concurrent callers share a single ping.
func (s *Service) Healthy(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if time.Since(time.Unix(0, s.healthAt.Load())) < healthTTL {
		return s.loadHealthErr()
	}

	// The shared ping runs on its own context so one caller cancelling does
	// not fail every waiter.
	result, _, _ := s.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()

		var stored error
		if err := s.repo.Ping(checkCtx); err != nil {
			stored = fmt.Errorf("audit: storage unhealthy: %w", err)
		}
		s.healthErr.Store(&stored)
		s.healthAt.Store(time.Now().UnixNano())
		return stored, nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

func (s *Service) loadHealthErr() error {
	if p := s.healthErr.Load(); p != nil {
		return *p
	}
	return nil
}
