package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction is the kind of operator or pipeline action recorded.
type AuditAction string

const (
	ActionSessionCreate  AuditAction = "session_create"
	ActionSessionDiscard AuditAction = "session_discard"
	ActionSessionExpire  AuditAction = "session_expire"
	ActionResolve        AuditAction = "record_resolve"
	ActionUndo           AuditAction = "record_undo"
	ActionRecordAdd      AuditAction = "record_add"
	ActionRecordRemove   AuditAction = "record_remove"
	ActionRecordEdit     AuditAction = "record_edit"
	ActionCommit         AuditAction = "commit"
	ActionCommitFailed   AuditAction = "commit_failed"
	ActionCommitCancel   AuditAction = "commit_cancel"
)

// AuditSeverity ranks audit entries for review.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// SeverityFor returns the severity recorded for an action.
func SeverityFor(action AuditAction) AuditSeverity {
	switch action {
	case ActionCommit:
		return SeverityHigh
	case ActionCommitFailed:
		return SeverityCritical
	case ActionSessionCreate, ActionSessionDiscard, ActionSessionExpire, ActionCommitCancel:
		return SeverityMedium
	case ActionRecordRemove, ActionRecordEdit, ActionRecordAdd:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AuditEntry is one stored audit row.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	SessionID    string         `json:"sessionId"`
	RecordID     string         `json:"recordId,omitempty"`
	ProductID    string         `json:"productId,omitempty"`
	Operator     string         `json:"operator,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditLogParams describes an entry to record.
type AuditLogParams struct {
	Action       AuditAction
	Severity     AuditSeverity // derived from Action when empty
	SessionID    uuid.UUID
	RecordID     uuid.UUID
	ProductID    string
	Operator     string
	IPAddress    string
	UserAgent    string
	RowsAffected int
	Details      map[string]any
	Reason       string
}

// AuditFilter narrows an audit query.
type AuditFilter struct {
	SessionID uuid.UUID
	Action    AuditAction
	Since     time.Time
	Limit     int
	Offset    int
}

// DefaultAuditLimit caps audit queries without an explicit limit.
const DefaultAuditLimit = 100

// AuditLogger stores audit entries.
type AuditLogger interface {
	LogAudit(ctx context.Context, params AuditLogParams) error
}

// AuditReader lists stored audit entries, newest first.
type AuditReader interface {
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// audit records an entry with the request identity taken from ctx. A failed
// write is logged and otherwise ignored: auditing never blocks reconciliation.
func (s *Service) audit(ctx context.Context, p AuditLogParams) {
	if s.auditLog == nil {
		return
	}
	if p.Severity == "" {
		p.Severity = SeverityFor(p.Action)
	}
	if p.Operator == "" {
		p.Operator = OperatorFromContext(ctx)
	}
	if p.IPAddress == "" {
		p.IPAddress = IPAddressFromContext(ctx)
	}
	if p.UserAgent == "" {
		p.UserAgent = UserAgentFromContext(ctx)
	}

	if err := s.auditLog.LogAudit(context.WithoutCancel(ctx), p); err != nil {
		s.logger.Warn("audit write failed",
			"action", string(p.Action),
			"session_id", p.SessionID,
			"error", err)
	}
}
