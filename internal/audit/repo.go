package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo stores audit entries in Postgres.
type Repo struct {
	DB DBTX
}

const auditColumns = `id, tenant_id, actor_kind, actor_id, action, resource_type, resource_id,
	method, path, status, ip, request_id, metadata, created_at`

// InsertAuditLog appends one entry.
func (r Repo) InsertAuditLog(ctx context.Context, entry Entry) (Entry, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO audit_logs (tenant_id, actor_kind, actor_id, action, resource_type, resource_id,
			method, path, status, ip, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+auditColumns,
		entry.TenantID, entry.ActorKind, entry.ActorID, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Method, entry.Path, entry.Status, entry.IP, entry.RequestID, entry.Metadata)
	return scanEntry(row)
}

// ListAuditLogs returns a tenant's entries, newest first.
func (r Repo) ListAuditLogs(ctx context.Context, tenantID uuid.UUID, limit, offset int32) ([]Entry, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+auditColumns+`
		FROM audit_logs WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		entry     Entry
		createdAt time.Time
	)
	err := row.Scan(&entry.ID, &entry.TenantID, &entry.ActorKind, &entry.ActorID,
		&entry.Action, &entry.ResourceType, &entry.ResourceID,
		&entry.Method, &entry.Path, &entry.Status,
		&entry.IP, &entry.RequestID, &entry.Metadata, &createdAt)
	if err != nil {
		return Entry{}, err
	}
	entry.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return entry, nil
}
