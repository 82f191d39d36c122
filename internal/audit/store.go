// Package audit persists the audit trail of imports and destructive ledger
// operations in Postgres.
package audit

import (
	"context"
	_ "embed"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed schema.sql
var schema string

// DefaultListLimit is the page size of List when none is given.
const DefaultListLimit = 50

// DBTX is the subset of pgx used by the store. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx all satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store writes and reads import_audit_log. It implements core.AuditRecorder.
type Store struct {
	db DBTX
}

var _ core.AuditRecorder = (*Store)(nil)

// New creates a store on db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates the audit table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

const insertEntry = `INSERT INTO import_audit_log (
	id, action, severity, mode, period_id, site_id, batch_id, file_name,
	rows_affected, rows_failed, cascade, ip_address, user_agent, session_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// Record inserts entry. A missing id is generated and a missing severity is
// derived from the action.
func (s *Store) Record(ctx context.Context, entry core.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Severity == "" {
		entry.Severity = core.DetermineSeverity(entry.Action)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, insertEntry,
		toPgUUID(entry.ID),
		string(entry.Action),
		string(entry.Severity),
		toPgText(string(entry.Mode)),
		toPgText(entry.PeriodID),
		toPgText(entry.SiteID),
		toPgText(entry.BatchID),
		toPgText(entry.FileName),
		pgtype.Int4{Int32: int32(entry.RowsAffected), Valid: true},
		pgtype.Int4{Int32: int32(entry.RowsFailed), Valid: true},
		entry.Cascade,
		parseIP(entry.IPAddress),
		toPgText(entry.UserAgent),
		toPgText(entry.SessionID),
		pgtype.Timestamptz{Time: entry.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert audit entry %s: %w", entry.Action, err)
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	Action   core.AuditAction
	Severity core.AuditSeverity
	PeriodID string
	Since    time.Time
	Limit    int
	Offset   int
}

// List returns matching entries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]core.AuditEntry, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}

	wb := newWhereBuilder()
	wb.add("action", string(opts.Action))
	wb.add("severity", string(opts.Severity))
	wb.add("period_id", opts.PeriodID)
	if !opts.Since.IsZero() {
		wb.addSince("created_at", opts.Since)
	}
	where, args := wb.build()

	query := `SELECT id, action, severity, mode, period_id, site_id, batch_id, file_name,
		rows_affected, rows_failed, cascade, ip_address, user_agent, session_id, created_at
		FROM import_audit_log` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", wb.next(), wb.next()+1)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return entries, nil
}

// Purge deletes entries older than retention and returns how many were removed.
func (s *Store) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := s.db.Exec(ctx, `DELETE FROM import_audit_log WHERE created_at < $1`,
		pgtype.Timestamptz{Time: cutoff, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEntry(row pgx.Row) (core.AuditEntry, error) {
	var (
		id           pgtype.UUID
		action       string
		severity     string
		mode         pgtype.Text
		periodID     pgtype.Text
		siteID       pgtype.Text
		batchID      pgtype.Text
		fileName     pgtype.Text
		rowsAffected pgtype.Int4
		rowsFailed   pgtype.Int4
		cascade      bool
		ipAddress    *netip.Addr
		userAgent    pgtype.Text
		sessionID    pgtype.Text
		createdAt    pgtype.Timestamptz
	)
	if err := row.Scan(
		&id, &action, &severity, &mode, &periodID, &siteID, &batchID, &fileName,
		&rowsAffected, &rowsFailed, &cascade, &ipAddress, &userAgent, &sessionID, &createdAt,
	); err != nil {
		return core.AuditEntry{}, err
	}

	e := core.AuditEntry{
		ID:           pgUUIDToString(id),
		Action:       core.AuditAction(action),
		Severity:     core.AuditSeverity(severity),
		Mode:         core.ImportMode(mode.String),
		PeriodID:     periodID.String,
		SiteID:       siteID.String,
		BatchID:      batchID.String,
		FileName:     fileName.String,
		RowsAffected: int(rowsAffected.Int32),
		RowsFailed:   int(rowsFailed.Int32),
		Cascade:      cascade,
		UserAgent:    userAgent.String,
		SessionID:    sessionID.String,
		CreatedAt:    createdAt.Time,
	}
	if ipAddress != nil {
		e.IPAddress = ipAddress.String()
	}
	return e, nil
}

// parseIP strips a port if present. Unparseable addresses are stored as NULL.
func parseIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
