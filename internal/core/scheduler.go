package core

// scheduler.go runs the idle-session janitor.
//
// Sessions live in memory until the operator commits or discards them. An
// abandoned session would otherwise hold its records forever, so the
// janitor drops sessions that have not been touched for the configured TTL.
// Sessions with a commit in flight are never expired.

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JanitorConfig controls the idle-session janitor.
type JanitorConfig struct {
	Interval time.Duration // how often to sweep (default: 10m)
	TTL      time.Duration // idle time before a session is dropped (default: service SessionTTL)
}

// StartJanitor sweeps idle sessions every Interval until ctx is cancelled.
func (s *Service) StartJanitor(ctx context.Context, cfg JanitorConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.TTL <= 0 {
		cfg.TTL = s.cfg.SessionTTL
	}

	s.logger.Info("session janitor started",
		"interval", cfg.Interval,
		"ttl", cfg.TTL)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session janitor stopped")
			return
		case <-ticker.C:
			s.SweepIdle(ctx, time.Now().Add(-cfg.TTL))
		}
	}
}

// SweepIdle drops every session last used before cutoff and returns how
// many were dropped.
func (s *Service) SweepIdle(ctx context.Context, cutoff time.Time) int {
	start := time.Now()

	s.mu.RLock()
	entries := make(map[uuid.UUID]*sessionEntry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.RUnlock()

	expired := 0
	for id, e := range entries {
		e.mu.Lock()
		if e.committing || !e.lastUsed.Before(cutoff) {
			e.mu.Unlock()
			continue
		}
		remaining := e.sess.Len()
		s.removeSession(id)
		e.mu.Unlock()

		expired++
		s.audit(ctx, AuditLogParams{
			Action:       ActionSessionExpire,
			SessionID:    id,
			RowsAffected: remaining,
			Reason:       "idle session expired",
		})
	}

	if expired > 0 {
		s.logger.Info("expired idle sessions",
			"sessions", expired,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return expired
}
