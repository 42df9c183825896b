package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no organizer matches the lookup.
var ErrNotFound = errors.New("auth: organizer not found")

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo persists organizer accounts.
type Repo struct {
	DB DBTX
}

const organizerColumns = `id, tenant_id, name, email, password_hash, role, created_at`

// GetByEmail loads an organizer by normalized email.
func (r Repo) GetByEmail(ctx context.Context, email string) (Organizer, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+organizerColumns+`
		FROM organizers WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	return scanOrganizer(row)
}

// GetByID loads an organizer by id.
func (r Repo) GetByID(ctx context.Context, id uuid.UUID) (Organizer, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+organizerColumns+`
		FROM organizers WHERE id = $1`, id)
	return scanOrganizer(row)
}

// Insert creates an organizer account. The password must already be hashed.
func (r Repo) Insert(ctx context.Context, o Organizer) (Organizer, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO organizers (tenant_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+organizerColumns,
		o.TenantID, o.Name, strings.ToLower(strings.TrimSpace(o.Email)), o.PasswordHash, o.Role)
	return scanOrganizer(row)
}

func scanOrganizer(row pgx.Row) (Organizer, error) {
	var o Organizer
	err := row.Scan(&o.ID, &o.TenantID, &o.Name, &o.Email, &o.PasswordHash, &o.Role, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organizer{}, ErrNotFound
	}
	return o, err
}
