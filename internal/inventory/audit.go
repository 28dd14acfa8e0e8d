package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rxstock/internal/core"
)

const auditColumns = `id::text, action, severity, session_id::text, coalesce(record_id::text, ''),
	product_id, operator, ip_address, user_agent, rows_affected, details, reason, created_at`

// AuditLog stores audit entries in import_audit_log. It implements
// core.AuditLogger and core.AuditReader.
type AuditLog struct {
	pool *pgxpool.Pool
}

func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

func (a *AuditLog) LogAudit(ctx context.Context, p core.AuditLogParams) error {
	severity := p.Severity
	if severity == "" {
		severity = core.SeverityFor(p.Action)
	}

	var details []byte
	if len(p.Details) > 0 {
		details, _ = json.Marshal(p.Details)
	}

	var recordID pgtype.UUID
	if p.RecordID != uuid.Nil {
		recordID = pgtype.UUID{Bytes: p.RecordID, Valid: true}
	}

	_, err := a.pool.Exec(ctx, `INSERT INTO import_audit_log
		(action, severity, session_id, record_id, product_id, operator, ip_address,
		 user_agent, rows_affected, details, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(p.Action), string(severity), p.SessionID, recordID,
		toPgText(p.ProductID), toPgText(p.Operator), parseIP(p.IPAddress),
		toPgText(p.UserAgent), pgtype.Int4{Int32: int32(p.RowsAffected), Valid: p.RowsAffected != 0},
		details, toPgText(p.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert audit %s: %w", p.Action, err)
	}
	return nil
}

// ListAudit returns entries newest first.
func (a *AuditLog) ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = core.DefaultAuditLimit
	}

	wb := &whereBuilder{}
	if f.SessionID != uuid.Nil {
		wb.add("session_id", f.SessionID)
	}
	if f.Action != "" {
		wb.add("action", string(f.Action))
	}
	if !f.Since.IsZero() {
		wb.addSince("created_at", f.Since)
	}
	where, args := wb.build()

	query := `SELECT ` + auditColumns + ` FROM import_audit_log` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		entry, err := scanAuditRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}

func scanAuditRow(rows pgx.Rows) (*core.AuditEntry, error) {
	var (
		e            core.AuditEntry
		action       string
		severity     string
		productID    pgtype.Text
		operator     pgtype.Text
		ipAddress    *netip.Addr
		userAgent    pgtype.Text
		rowsAffected pgtype.Int4
		details      []byte
		reason       pgtype.Text
		createdAt    pgtype.Timestamptz
	)

	err := rows.Scan(
		&e.ID, &action, &severity, &e.SessionID, &e.RecordID,
		&productID, &operator, &ipAddress, &userAgent, &rowsAffected,
		&details, &reason, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.Action = core.AuditAction(action)
	e.Severity = core.AuditSeverity(severity)
	e.ProductID = productID.String
	e.Operator = operator.String
	e.UserAgent = userAgent.String
	e.Reason = reason.String
	e.CreatedAt = createdAt.Time
	if ipAddress != nil {
		e.IPAddress = ipAddress.String()
	}
	if rowsAffected.Valid {
		e.RowsAffected = int(rowsAffected.Int32)
	}
	if details != nil {
		_ = json.Unmarshal(details, &e.Details)
	}
	return &e, nil
}

// parseIP accepts "ip" or "ip:port"; anything unparsable is stored as NULL.
func parseIP(s string) *netip.Addr {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil
	}
	return &addr
}

// whereBuilder assembles an AND-ed WHERE clause with numbered placeholders.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(column string, value any) {
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *whereBuilder) addSince(column string, t time.Time) {
	w.args = append(w.args, t)
	w.conds = append(w.conds, fmt.Sprintf("%s >= $%d", column, len(w.args)))
}

func (w *whereBuilder) build() (string, []any) {
	if len(w.conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conds, " AND "), w.args
}
