package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/repository"
)

var _ repository.ListingRepository = (*listingRepo)(nil)

type listingRepo struct{ pool *pgxpool.Pool }

func NewListingRepo(pool *pgxpool.Pool) *listingRepo {
	return &listingRepo{pool: pool}
}

const listingColumns = `id, seller_id, title, plan_id, price_cents, status, created_at, updated_at, paid_at, expira_em`

func scanListing(row pgx.Row) (*model.Listing, error) {
	l := &model.Listing{}
	var status string
	if err := row.Scan(&l.ID, &l.SellerID, &l.Title, &l.PlanID, &l.PriceCents, &status, &l.CreatedAt, &l.UpdatedAt, &l.PaidAt, &l.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	l.Status = model.ListingStatus(status)
	return l, nil
}

func (r *listingRepo) Create(ctx context.Context, tx repository.Tx, l *model.Listing) error {
	const q = `
INSERT INTO listings (` + listingColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, l.ID, l.SellerID, l.Title, l.PlanID, l.PriceCents, string(l.Status), l.CreatedAt, l.UpdatedAt, l.PaidAt, l.ExpiresAt)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *listingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanListing(row)
}

// ActivateIfPending is the activation compare-and-swap. The WHERE clause is the
// guard: a listing that is no longer pending (or was already paid) is left untouched.
func (r *listingRepo) ActivateIfPending(ctx context.Context, tx repository.Tx, id string, paidAt, expiresAt time.Time) (bool, error) {
	const q = `
UPDATE listings
   SET status = 'ativo',
       paid_at = $2,
       expira_em = $3,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pendente'
   AND paid_at IS NULL;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, paidAt, expiresAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *listingRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, from, to model.ListingStatus) (bool, error) {
	const q = `UPDATE listings SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to))
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *listingRepo) UpdatePrice(ctx context.Context, tx repository.Tx, id string, priceCents int64) error {
	const q = `UPDATE listings SET price_cents=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, priceCents)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *listingRepo) ListPendingCreatedBetween(ctx context.Context, tx repository.Tx, from, to time.Time, limit int) ([]*model.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + listingColumns + ` FROM listings
WHERE status='pendente' AND created_at >= $1 AND created_at < $2
ORDER BY created_at ASC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, from, to, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
