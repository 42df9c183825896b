package feetype

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-confero/internal/pricing"
)

// ErrCapacityExceeded is returned by ClaimSlot when no slot remains.
// The condition is a hard limit, not transient; callers surface it as
// sold out instead of retrying.
var ErrCapacityExceeded = errors.New("feetype: capacity exceeded")

// ErrNotFound is returned when a fee type does not exist or is detached.
var ErrNotFound = errors.New("feetype: not found")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repository
// methods can run standalone or inside a caller-owned transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo persists custom fee types.
type Repo struct {
	DB DBTX
}

// WithTx returns a repo bound to the provided transaction.
func (r Repo) WithTx(tx pgx.Tx) Repo { return Repo{DB: tx} }

const feeTypeColumns = `id, conference_id, name, COALESCE(description, ''),
	price_net::text, vat_percentage::text, price_gross::text,
	valid_from, valid_to, is_active, capacity, sold_count, display_order`

// InsertParams carries the validated values written for a new fee type.
// TenantID pins the target conference to the caller's tenant; an insert
// against another tenant's conference matches nothing.
type InsertParams struct {
	TenantID      uuid.UUID
	ConferenceID  uuid.UUID
	Name          string
	Description   string
	PriceNet      decimal.Decimal
	VATPercentage decimal.Decimal
	PriceGross    decimal.Decimal
	ValidFrom     time.Time
	ValidTo       time.Time
	IsActive      bool
	Capacity      *int32
	DisplayOrder  int32
}

// UpdateParams mirrors InsertParams for edits. The sold count is never
// written through this path; it only moves via ClaimSlot/ReleaseSlot.
type UpdateParams struct {
	TenantID      uuid.UUID
	ID            uuid.UUID
	Name          string
	Description   string
	PriceNet      decimal.Decimal
	VATPercentage decimal.Decimal
	PriceGross    decimal.Decimal
	ValidFrom     time.Time
	ValidTo       time.Time
	IsActive      bool
	Capacity      *int32
	DisplayOrder  int32
}

// Insert stores a new fee type and returns the persisted row. The
// SELECT source restricts the insert to conferences of the tenant, so
// a foreign conference id yields ErrNotFound instead of a row.
func (r Repo) Insert(ctx context.Context, p InsertParams) (pricing.FeeType, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO fee_types (conference_id, name, description, price_net, vat_percentage, price_gross,
			valid_from, valid_to, is_active, capacity, display_order)
		SELECT c.id, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12
		FROM conferences c WHERE c.id = $2 AND c.tenant_id = $1
		RETURNING `+feeTypeColumns,
		p.TenantID, p.ConferenceID, p.Name, p.Description, p.PriceNet.String(), p.VATPercentage.String(), p.PriceGross.String(),
		p.ValidFrom, p.ValidTo, p.IsActive, p.Capacity, p.DisplayOrder)
	ft, err := scanFeeType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.FeeType{}, ErrNotFound
	}
	return ft, err
}

// Update rewrites an existing fee type's configuration. Scoped to the
// tenant through the conference join; another tenant's fee type is
// indistinguishable from a missing one.
func (r Repo) Update(ctx context.Context, p UpdateParams) (pricing.FeeType, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE fee_types SET name = $3, description = NULLIF($4, ''), price_net = $5,
			vat_percentage = $6, price_gross = $7, valid_from = $8, valid_to = $9,
			is_active = $10, capacity = $11, display_order = $12, updated_at = now()
		WHERE id = $2 AND deleted_at IS NULL
		  AND conference_id IN (SELECT id FROM conferences WHERE tenant_id = $1)
		RETURNING `+feeTypeColumns,
		p.TenantID, p.ID, p.Name, p.Description, p.PriceNet.String(), p.VATPercentage.String(), p.PriceGross.String(),
		p.ValidFrom, p.ValidTo, p.IsActive, p.Capacity, p.DisplayOrder)
	ft, err := scanFeeType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.FeeType{}, ErrNotFound
	}
	return ft, err
}

// Get fetches one fee type by id, pinned to the conference it must
// belong to. A fee type of any other conference reads as missing, so a
// registrant cannot buy at a foreign conference's price.
func (r Repo) Get(ctx context.Context, conferenceID, id uuid.UUID) (pricing.FeeType, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+feeTypeColumns+`
		FROM fee_types WHERE id = $1 AND conference_id = $2 AND deleted_at IS NULL`, id, conferenceID)
	ft, err := scanFeeType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.FeeType{}, ErrNotFound
	}
	return ft, err
}

// ListByConference returns every non-detached fee type of a tenant's
// conference in display order.
func (r Repo) ListByConference(ctx context.Context, tenantID, conferenceID uuid.UUID) ([]pricing.FeeType, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+feeTypeColumns+`
		FROM fee_types f
		WHERE f.conference_id = $2 AND f.deleted_at IS NULL
		  AND EXISTS (SELECT 1 FROM conferences c WHERE c.id = f.conference_id AND c.tenant_id = $1)
		ORDER BY f.display_order, f.name`, tenantID, conferenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pricing.FeeType
	for rows.Next() {
		ft, err := scanFeeType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

// Detach soft-deletes a tenant's fee type and reports which conference
// it belonged to. Registrations that reference it keep their historical
// price snapshot, so nothing is physically removed.
func (r Repo) Detach(ctx context.Context, tenantID, id uuid.UUID) (uuid.UUID, error) {
	var conferenceID uuid.UUID
	err := r.DB.QueryRow(ctx, `
		UPDATE fee_types SET deleted_at = now()
		WHERE id = $2 AND deleted_at IS NULL
		  AND conference_id IN (SELECT id FROM conferences WHERE tenant_id = $1)
		RETURNING conference_id`, tenantID, id).Scan(&conferenceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return conferenceID, err
}

// ClaimSlot atomically consumes one slot of a capacity-limited fee
// type. The conditional update serializes concurrent claims at the
// storage layer: at most capacity registrations can ever succeed, even
// across independent processes.
func (r Repo) ClaimSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE fee_types SET sold_count = sold_count + 1, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		  AND (capacity IS NULL OR sold_count < capacity)`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrCapacityExceeded
	}
	return nil
}

// ReleaseSlot returns a slot to the pool when a registration holding it
// is cancelled. The count never drops below zero.
func (r Repo) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE fee_types SET sold_count = GREATEST(sold_count - 1, 0), updated_at = now()
		WHERE id = $1`, id)
	return err
}

func (r Repo) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var found bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fee_types WHERE id = $1 AND deleted_at IS NULL)`, id).Scan(&found)
	return found, err
}

func scanFeeType(row pgx.Row) (pricing.FeeType, error) {
	var (
		ft       pricing.FeeType
		net      string
		vatPct   string
		gross    string
		capacity *int32
	)
	err := row.Scan(&ft.ID, &ft.ConferenceID, &ft.Name, &ft.Description,
		&net, &vatPct, &gross,
		&ft.ValidFrom, &ft.ValidTo, &ft.IsActive, &capacity, &ft.SoldCount, &ft.DisplayOrder)
	if err != nil {
		return pricing.FeeType{}, err
	}
	if ft.PriceNet, err = decimal.NewFromString(net); err != nil {
		return pricing.FeeType{}, err
	}
	if ft.VATPercentage, err = decimal.NewFromString(vatPct); err != nil {
		return pricing.FeeType{}, err
	}
	if ft.PriceGross, err = decimal.NewFromString(gross); err != nil {
		return pricing.FeeType{}, err
	}
	ft.Capacity = capacity
	return ft, nil
}
