package registration

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-confero/internal/conference"
	"github.com/noah-isme/backend-confero/internal/feetype"
)

// PgxRunner executes units of work on a pgx connection pool. All
// repositories handed to the callback share one transaction.
type PgxRunner struct {
	Pool *pgxpool.Pool
}

// WithinTx begins a transaction, binds the repositories to it and
// commits when fn returns nil.
func (r PgxRunner) WithinTx(ctx context.Context, fn func(Stores) error) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	stores := Stores{
		Registrations: Repo{DB: tx},
		FeeTypes:      feetype.Repo{DB: tx},
		Conferences:   conference.Repo{DB: tx},
	}
	if err := fn(stores); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
