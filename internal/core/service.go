package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults for ServiceConfig fields left at zero.
const (
	DefaultCommitTimeout = 10 * time.Minute
	DefaultSessionTTL    = 4 * time.Hour

	// resultRetention is how long a finished commit's outcome stays readable.
	resultRetention = 15 * time.Minute
)

// ServiceConfig holds the tunables of the reconciliation service.
type ServiceConfig struct {
	ChunkSize            int
	CallTimeout          time.Duration
	CommitTimeout        time.Duration
	CandidateLimit       int
	MaxConcurrentCommits int
	CommitWaitTime       time.Duration
	SessionTTL           time.Duration
	MaxFileSize          int64
}

// Metrics receives reconciliation measurements. Implementations must be
// safe for concurrent use.
type Metrics interface {
	SessionOpened(mode string)
	SessionsActive(n int)
	RecordsClassified(stats MatchStats)
	ChunkCommitted(records int, elapsed time.Duration)
	ChunkFailed()
	CommitFinished(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) SessionOpened(string) {}
func (nopMetrics) SessionsActive(int) {}
func (nopMetrics) RecordsClassified(MatchStats) {}
func (nopMetrics) ChunkCommitted(int, time.Duration) {}
func (nopMetrics) ChunkFailed() {}
func (nopMetrics) CommitFinished(string) {}

// Deps are the collaborators of a Service. Catalog and Store are required.
type Deps struct {
	Catalog Catalog
	Store   InventoryStore
	Audit   AuditLogger
	Events  EventPublisher
	Metrics Metrics
	Logger  *slog.Logger
}

// Service owns the live reconciliation sessions. Each session is driven by
// one operator at a time: operations on a session are serialized, and while
// a commit runs every other operation on that session gets ErrSessionBusy.
type Service struct {
	catalog   Catalog
	auditLog  AuditLogger
	events    EventPublisher
	metrics   Metrics
	logger    *slog.Logger
	matcher   *Matcher
	committer *Committer
	limiter   *CommitLimiter
	cfg       ServiceConfig

	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
	commits  map[uuid.UUID]*activeCommit
}

type sessionEntry struct {
	mu         sync.Mutex
	sess       *Session
	committing bool
	removed    bool
	lastUsed   time.Time
}

// NewService wires a Service. Zero config values take their defaults.
func NewService(deps Deps, cfg ServiceConfig) (*Service, error) {
	if deps.Catalog == nil {
		return nil, errors.New("core: catalog is required")
	}
	if deps.Store == nil {
		return nil, errors.New("core: inventory store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = DefaultCommitTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	return &Service{
		catalog:  deps.Catalog,
		auditLog: deps.Audit,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		matcher: NewMatcher(deps.Catalog, MatcherOptions{
			CallTimeout:    cfg.CallTimeout,
			CandidateLimit: cfg.CandidateLimit,
			Logger:         deps.Logger,
		}),
		committer: NewCommitter(deps.Store, deps.Logger),
		limiter:   NewCommitLimiter(cfg.MaxConcurrentCommits, cfg.CommitWaitTime),
		cfg:       cfg,
		sessions:  make(map[uuid.UUID]*sessionEntry),
		commits:   make(map[uuid.UUID]*activeCommit),
	}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() ServiceConfig { return s.cfg }

// ListModes returns the registered import modes.
func (s *Service) ListModes() []ImportMode { return Modes() }

// ListCategories returns the catalog's categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	cats, err := s.catalog.ListCategories(callCtx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// SessionView is a session summary plus (optionally filtered) records.
type SessionView struct {
	Summary SessionSummary `json:"summary"`
	Records []ImportRecord `json:"records"`
}

// ImportResult is returned when a sheet has been loaded into a new session.
type ImportResult struct {
	Summary SessionSummary `json:"summary"`
	Stats   MatchStats     `json:"stats"`
}

// CreateSession reads a CSV, validates every row and matches the valid ones
// against the catalog. The new session is registered and ready for review.
func (s *Service) CreateSession(ctx context.Context, modeKey, fileName string, r io.Reader) (ImportResult, error) {
	mode, err := GetMode(modeKey)
	if err != nil {
		return ImportResult{}, err
	}

	rows, err := ReadRows(r, mode, s.cfg.MaxFileSize)
	if err != nil {
		return ImportResult{}, err
	}

	rules := ValidationRules{}
	if cats, err := s.ListCategories(ctx); err != nil {
		// Rows still validate; only the category check is skipped.
		s.logger.Warn("categories unavailable, skipping category validation", "error", err)
	} else {
		rules.Categories = cats
	}

	sess := NewSession(mode, fileName)
	sess.AddRows(rows, rules)

	stats, err := s.matcher.MatchAll(ctx, sess)
	if err != nil {
		return ImportResult{}, fmt.Errorf("match records: %w", err)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{sess: sess, lastUsed: time.Now()}
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionOpened(mode.Key)
	s.metrics.SessionsActive(active)
	s.metrics.RecordsClassified(stats)

	s.logger.Info("import session created",
		"session_id", sess.ID,
		"mode", mode.Key,
		"file", fileName,
		"records", sess.Len(),
		"matched", stats.Matched,
		"similar", stats.Similar,
		"new", stats.New,
		"invalid", stats.Invalid)

	s.audit(ctx, AuditLogParams{
		Action:       ActionSessionCreate,
		SessionID:    sess.ID,
		RowsAffected: sess.Len(),
		Details: map[string]any{
			"mode":     mode.Key,
			"fileName": fileName,
			"stats":    stats,
		},
	})

	return ImportResult{Summary: sess.Summary(), Stats: stats}, nil
}

// GetSession returns the session summary and its records, filtered by
// status when status is non-empty.
func (s *Service) GetSession(sessionID uuid.UUID, status RecordStatus) (SessionView, error) {
	var view SessionView
	err := s.withSession(sessionID, func(sess *Session) error {
		view.Summary = sess.Summary()
		if status == "" {
			view.Records = sess.Records()
		} else {
			view.Records = sess.Filter(status)
		}
		return nil
	})
	return view, err
}

// DiscardSession drops a session and its undo log.
func (s *Service) DiscardSession(ctx context.Context, sessionID uuid.UUID) error {
	var remaining int
	err := s.withSession(sessionID, func(sess *Session) error {
		remaining = sess.Len()
		s.removeSession(sessionID)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("import session discarded", "session_id", sessionID)
	s.audit(ctx, AuditLogParams{
		Action:       ActionSessionDiscard,
		SessionID:    sessionID,
		RowsAffected: remaining,
	})
	return nil
}

// SessionIDs lists live sessions.
func (s *Service) SessionIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// withSession runs fn with exclusive access to the session.
func (s *Service) withSession(id uuid.UUID, fn func(*Session) error) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrSessionNotFound
	}
	if e.committing {
		return ErrSessionBusy
	}
	e.lastUsed = time.Now()
	return fn(e.sess)
}

// removeSession unregisters a session. The caller holds the entry's lock.
func (s *Service) removeSession(id uuid.UUID) {
	s.mu.Lock()
	if e, ok := s.sessions[id]; ok {
		e.removed = true
	}
	delete(s.sessions, id)
	active := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SessionsActive(active)
}
