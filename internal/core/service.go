package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/opsdash/internal/config"
	"github.com/JonMunkholm/opsdash/internal/database"
	"github.com/JonMunkholm/opsdash/internal/metrics"
)

// Listing bounds for ListJobs.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// DefaultPreviewSampleSize caps the invalid rows returned by Preview.
const DefaultPreviewSampleSize = 20

// failJobTimeout bounds the best-effort FAILED update issued after the
// request context may already be gone.
const failJobTimeout = 10 * time.Second

// Service runs the ingestion pipeline against a Store.
type Service struct {
	store   database.Store
	limiter *UploadLimiter
	metrics *metrics.Recorder
	locks   *jobLocks

	uploadTimeout     time.Duration
	defaultListLimit  int
	previewSampleSize int

	now   func() time.Time
	newID func() string
}

// NewService wires a Service. A nil cfg uses defaults; a nil rec disables
// metrics.
func NewService(store database.Store, cfg *config.Config, rec *metrics.Recorder) *Service {
	s := &Service{
		store:             store,
		metrics:           rec,
		locks:             newJobLocks(),
		defaultListLimit:  DefaultListLimit,
		previewSampleSize: DefaultPreviewSampleSize,
		now:               func() time.Time { return time.Now().UTC() },
		newID:             func() string { return uuid.New().String() },
	}

	maxConcurrent, maxWait := DefaultMaxConcurrentUploads, DefaultMaxWaitTime
	if cfg != nil {
		maxConcurrent = cfg.Upload.MaxConcurrent
		maxWait = cfg.Upload.MaxWaitTime
		s.uploadTimeout = cfg.Upload.Timeout
		if cfg.Upload.PreviewSampleSize > 0 {
			s.previewSampleSize = cfg.Upload.PreviewSampleSize
		}
		if cfg.Staging.DefaultListLimit > 0 {
			s.defaultListLimit = min(cfg.Staging.DefaultListLimit, MaxListLimit)
		}
	}
	s.limiter = NewUploadLimiter(maxConcurrent, maxWait)
	rec.TrackActiveUploads(s.limiter.ActiveCount)

	return s
}

// Limiter exposes the ingestion limiter for status reporting and shutdown.
func (s *Service) Limiter() *UploadLimiter {
	return s.limiter
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// jobLocks hands out one mutex per job id. Entries are dropped when the
// last holder unlocks.
type jobLocks struct {
	mu    sync.Mutex
	locks map[string]*jobLock
}

type jobLock struct {
	mu   sync.Mutex
	refs int
}

func newJobLocks() *jobLocks {
	return &jobLocks{locks: make(map[string]*jobLock)}
}

// lock blocks until the caller holds id's mutex and returns the release func.
func (l *jobLocks) lock(id string) func() {
	l.mu.Lock()
	jl, ok := l.locks[id]
	if !ok {
		jl = &jobLock{}
		l.locks[id] = jl
	}
	jl.refs++
	l.mu.Unlock()

	jl.mu.Lock()

	return func() {
		jl.mu.Unlock()

		l.mu.Lock()
		jl.refs--
		if jl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// size reports how many ids are currently tracked.
func (l *jobLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
