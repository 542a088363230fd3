package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx used by PostgresAuditStore. *pgxpool.Pool,
// *pgx.Conn and pgx.Tx all satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS workbench_audit_log (
    id          UUID PRIMARY KEY,
    action      TEXT NOT NULL,
    severity    TEXT NOT NULL,
    session_id  TEXT NOT NULL,
    file_name   TEXT,
    rows_before INTEGER NOT NULL DEFAULT 0,
    cols_before INTEGER NOT NULL DEFAULT 0,
    rows_after  INTEGER NOT NULL DEFAULT 0,
    cols_after  INTEGER NOT NULL DEFAULT 0,
    details     JSONB,
    ip_address  TEXT,
    user_agent  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS workbench_audit_log_session_idx
    ON workbench_audit_log (session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS workbench_audit_log_created_idx
    ON workbench_audit_log (created_at);
`

const insertAuditLog = `
INSERT INTO workbench_audit_log (
    id, action, severity, session_id, file_name,
    rows_before, cols_before, rows_after, cols_after,
    details, ip_address, user_agent, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const selectAuditLog = `
SELECT id::text, action, severity, session_id, file_name,
       rows_before, cols_before, rows_after, cols_after,
       details, ip_address, user_agent, created_at
FROM workbench_audit_log`

// PostgresAuditStore keeps the audit log in PostgreSQL.
type PostgresAuditStore struct {
	db DBTX
}

// NewPostgresAuditStore wraps db. Call EnsureSchema once before use.
func NewPostgresAuditStore(db DBTX) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

// EnsureSchema creates the audit table and its indexes if missing.
func (p *PostgresAuditStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Record inserts e.
func (p *PostgresAuditStore) Record(ctx context.Context, e AuditEntry) error {
	var details []byte
	if e.Details != nil {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			details = nil
		}
	}

	_, err := p.db.Exec(ctx, insertAuditLog,
		e.ID, string(e.Action), string(e.Severity), e.SessionID, toPgText(e.FileName),
		int32(e.RowsBefore), int32(e.ColsBefore), int32(e.RowsAfter), int32(e.ColsAfter),
		details, toPgText(e.IPAddress), toPgText(e.UserAgent), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (p *PostgresAuditStore) List(ctx context.Context, f AuditLogFilter) ([]AuditEntry, error) {
	f = f.withDefaults()

	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < $%d", f.Until)
	}

	var sb strings.Builder
	sb.WriteString(selectAuditLog)
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, f.Limit, f.Offset)
	fmt.Fprintf(&sb, "\nORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := p.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}

// Purge deletes entries created before cutoff.
func (p *PostgresAuditStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, "DELETE FROM workbench_audit_log WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAuditEntry(row pgx.Row) (AuditEntry, error) {
	var (
		e                AuditEntry
		action, severity string
		fileName, ip, ua pgtype.Text
		rb, cb, ra, ca   int32
		details          []byte
	)
	err := row.Scan(&e.ID, &action, &severity, &e.SessionID, &fileName,
		&rb, &cb, &ra, &ca, &details, &ip, &ua, &e.CreatedAt)
	if err != nil {
		return AuditEntry{}, err
	}

	e.Action = AuditAction(action)
	e.Severity = AuditSeverity(severity)
	e.FileName = fileName.String
	e.IPAddress = ip.String
	e.UserAgent = ua.String
	e.RowsBefore, e.ColsBefore = int(rb), int(cb)
	e.RowsAfter, e.ColsAfter = int(ra), int(ca)
	if details != nil {
		_ = json.Unmarshal(details, &e.Details)
	}
	return e, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
