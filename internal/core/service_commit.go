package core

// service_commit.go runs the commit pipeline for a session in the
// background and fans its progress out to subscribers.
//
// A commit is started by StartCommit and runs on its own goroutine under a
// CommitLimiter slot. While it runs the session is marked busy. Subscribers
// receive an ImportProgress after every committed chunk; the latest value
// is replayed to late subscribers. The outcome stays readable for a while
// after the run ends, even when a fully successful commit discarded the
// session.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CommitOutcome is the observable state of a commit run.
type CommitOutcome struct {
	SessionID  uuid.UUID      `json:"sessionId"`
	Running    bool           `json:"running"`
	Progress   ImportProgress `json:"progress"`
	Result     CommitResult   `json:"result"`
	Error      string         `json:"error,omitempty"`
	Code       string         `json:"code,omitempty"`
	Retryable  bool           `json:"retryable"`
	Remaining  int            `json:"remaining"`
	Discarded  bool           `json:"sessionDiscarded"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

type activeCommit struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	outcome   CommitOutcome
	listeners []chan ImportProgress
}

func (ac *activeCommit) publish(p ImportProgress) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.outcome.Progress = p
	for _, ch := range ac.listeners {
		select {
		case ch <- p:
		default:
			// Slow listener: it will catch up on the next chunk.
		}
	}
}

// finish records the final outcome and releases waiters. Only the first
// call has any effect.
func (ac *activeCommit) finish(o CommitOutcome) {
	ac.once.Do(func() {
		ac.mu.Lock()
		ac.outcome = o
		for _, ch := range ac.listeners {
			close(ch)
		}
		ac.listeners = nil
		ac.mu.Unlock()
		close(ac.done)
	})
}

func (ac *activeCommit) snapshot() CommitOutcome {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.outcome
}

// CommitPlan reports how many records a commit would submit and skip.
func (s *Service) CommitPlan(sessionID uuid.UUID) (CommitPlan, error) {
	var plan CommitPlan
	err := s.withSession(sessionID, func(sess *Session) error {
		plan = s.committer.Plan(sess, s.cfg.ChunkSize)
		return nil
	})
	return plan, err
}

// StartCommit begins committing a session in the background. Skipped
// records must be acknowledged. The call waits for a free commit slot and
// returns the plan once the run has started.
func (s *Service) StartCommit(ctx context.Context, sessionID uuid.UUID, acknowledgeSkipped bool) (CommitPlan, error) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return CommitPlan{}, ErrSessionNotFound
	}

	// Reject early, before queueing for a slot.
	plan, err := s.CommitPlan(sessionID)
	if err != nil {
		return CommitPlan{}, err
	}
	if plan.Skipped > 0 && !acknowledgeSkipped {
		return plan, ErrSkippedNotAcknowledged
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return plan, err
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		s.limiter.Release()
		return plan, ErrSessionNotFound
	}
	if e.committing {
		e.mu.Unlock()
		s.limiter.Release()
		return plan, ErrSessionBusy
	}
	e.committing = true
	e.lastUsed = time.Now()
	plan = s.committer.Plan(e.sess, s.cfg.ChunkSize)
	e.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CommitTimeout)
	ac := &activeCommit{
		cancel: cancel,
		done:   make(chan struct{}),
		outcome: CommitOutcome{
			SessionID: sessionID,
			Running:   true,
			Progress:  ImportProgress{Total: plan.Eligible},
			StartedAt: time.Now().UTC(),
		},
	}

	s.mu.Lock()
	s.commits[sessionID] = ac
	s.mu.Unlock()

	s.logger.Info("commit started",
		"session_id", sessionID,
		"eligible", plan.Eligible,
		"skipped", plan.Skipped,
		"chunks", plan.Chunks)

	go s.runCommit(runCtx, e, ac, acknowledgeSkipped)
	return plan, nil
}

func (s *Service) runCommit(ctx context.Context, e *sessionEntry, ac *activeCommit, ack bool) {
	defer s.limiter.Release()
	defer ac.cancel()

	sess := e.sess
	started := ac.snapshot().StartedAt

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in commit",
				"session_id", sess.ID,
				"panic", r,
			)
			e.mu.Lock()
			e.committing = false
			e.lastUsed = time.Now()
			remaining := sess.Len()
			e.mu.Unlock()

			finished := time.Now().UTC()
			ac.finish(CommitOutcome{
				SessionID:  sess.ID,
				Progress:   ac.snapshot().Progress,
				Error:      fmt.Sprintf("internal error: %v", r),
				Code:       "ERR000",
				Remaining:  remaining,
				StartedAt:  started,
				FinishedAt: &finished,
			})
			s.forgetCommit(sess.ID, ac, resultRetention)
		}
	}()

	last, prev := time.Now(), 0
	result, err := s.committer.Commit(ctx, sess, CommitOptions{
		ChunkSize:          s.cfg.ChunkSize,
		AcknowledgeSkipped: ack,
		CallTimeout:        s.cfg.CallTimeout,
		OnProgress: func(p ImportProgress) {
			if p.Current > prev {
				s.metrics.ChunkCommitted(p.Current-prev, time.Since(last))
			}
			prev, last = p.Current, time.Now()
			ac.publish(p)
		},
	})

	e.mu.Lock()
	e.committing = false
	e.lastUsed = time.Now()
	remaining := sess.Len()
	progress := sess.Progress
	discard := err == nil && result.Complete()
	if discard {
		s.removeSession(sess.ID)
	}
	e.mu.Unlock()

	finished := time.Now().UTC()
	outcome := CommitOutcome{
		SessionID:  sess.ID,
		Progress:   progress,
		Result:     result,
		Remaining:  remaining,
		Discarded:  discard,
		StartedAt:  started,
		FinishedAt: &finished,
	}

	label := "success"
	action := ActionCommit
	var batchErr *CommitBatchError
	switch {
	case err == nil:
	case result.Cancelled:
		label, action = "cancelled", ActionCommitCancel
	default:
		label, action = "failed", ActionCommitFailed
	}
	if err != nil {
		outcome.Error = err.Error()
		outcome.Code = MapError(err).Code
		outcome.Retryable = IsRetryable(err)
		if errors.As(err, &batchErr) {
			s.metrics.ChunkFailed()
		}
	}
	s.metrics.CommitFinished(label)

	s.logger.Info("commit finished",
		"session_id", sess.ID,
		"outcome", label,
		"committed", len(result.Committed),
		"failed", len(result.Failed),
		"not_attempted", len(result.NotAttempted),
		"chunks", result.Chunks,
		"session_discarded", discard,
		"elapsed", finished.Sub(started))

	// ctx may already be done; bookkeeping after the run uses its values only.
	after := context.WithoutCancel(ctx)
	s.audit(after, AuditLogParams{
		Action:       action,
		SessionID:    sess.ID,
		RowsAffected: len(result.Committed),
		Reason:       outcome.Error,
		Details: map[string]any{
			"committed":    len(result.Committed),
			"failed":       len(result.Failed),
			"notAttempted": len(result.NotAttempted),
			"chunks":       result.Chunks,
		},
	})
	s.publishEvent(after, sess, outcome)

	ac.finish(outcome)
	s.forgetCommit(sess.ID, ac, resultRetention)
}

func (s *Service) publishEvent(ctx context.Context, sess *Session, o CommitOutcome) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	ev := CommitEvent{
		SessionID:    sess.ID,
		Mode:         sess.Mode.Key,
		FileName:     sess.FileName,
		Committed:    len(o.Result.Committed),
		Failed:       len(o.Result.Failed),
		NotAttempted: len(o.Result.NotAttempted),
		Aborted:      o.Result.Aborted,
		Cancelled:    o.Result.Cancelled,
		Error:        o.Error,
		CompletedAt:  *o.FinishedAt,
	}
	if err := s.events.PublishCommit(ctx, ev); err != nil {
		s.logger.Warn("commit event not published",
			"session_id", sess.ID,
			"error", err)
	}
}

// forgetCommit drops a finished commit's outcome after delay, unless a newer
// run for the same session has replaced it.
func (s *Service) forgetCommit(sessionID uuid.UUID, ac *activeCommit, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.commits[sessionID] == ac {
			delete(s.commits, sessionID)
		}
		s.mu.Unlock()
	})
}

func (s *Service) commitFor(sessionID uuid.UUID) (*activeCommit, error) {
	s.mu.RLock()
	ac, ok := s.commits[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoCommitResult
	}
	return ac, nil
}

// SubscribeProgress returns a channel of commit progress for the session.
// The current value is sent first; the channel closes when the run ends.
// Call the returned func to stop listening early.
func (s *Service) SubscribeProgress(sessionID uuid.UUID) (<-chan ImportProgress, func(), error) {
	ac, err := s.commitFor(sessionID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan ImportProgress, 16)
	ac.mu.Lock()
	ch <- ac.outcome.Progress
	if !ac.outcome.Running {
		close(ch)
		ac.mu.Unlock()
		return ch, func() {}, nil
	}
	ac.listeners = append(ac.listeners, ch)
	ac.mu.Unlock()

	unsubscribe := func() {
		ac.mu.Lock()
		defer ac.mu.Unlock()
		for i, l := range ac.listeners {
			if l == ch {
				ac.listeners = append(ac.listeners[:i], ac.listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe, nil
}

// CommitStatus returns the state of the latest commit without blocking.
func (s *Service) CommitStatus(sessionID uuid.UUID) (CommitOutcome, error) {
	ac, err := s.commitFor(sessionID)
	if err != nil {
		return CommitOutcome{}, err
	}
	return ac.snapshot(), nil
}

// WaitCommit blocks until the latest commit for the session ends.
func (s *Service) WaitCommit(ctx context.Context, sessionID uuid.UUID) (CommitOutcome, error) {
	ac, err := s.commitFor(sessionID)
	if err != nil {
		return CommitOutcome{}, err
	}
	select {
	case <-ac.done:
		return ac.snapshot(), nil
	case <-ctx.Done():
		return ac.snapshot(), ctx.Err()
	}
}

// CancelCommit asks a running commit to stop before its next chunk.
func (s *Service) CancelCommit(sessionID uuid.UUID) error {
	ac, err := s.commitFor(sessionID)
	if err != nil {
		return err
	}
	ac.cancel()
	s.logger.Info("commit cancel requested", "session_id", sessionID)
	return nil
}

// Shutdown waits for running commits to finish. When ctx ends first, the
// remaining commits are cancelled and stop after their current chunk.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.limiter.WaitForDrain(ctx)
	if err == nil {
		return nil
	}

	s.mu.RLock()
	for _, ac := range s.commits {
		ac.cancel()
	}
	s.mu.RUnlock()
	return err
}
