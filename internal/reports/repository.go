package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RepositoryPort loads aggregated posted activity for report building.
type RepositoryPort interface {
	AccountActivity(ctx context.Context, companyID int64, from, to *time.Time) ([]AccountActivity, error)
}

// Repository aggregates posted journal lines per account.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AccountActivity returns, per account, the raw opening balance carried in
// from strictly before `from` and the debit/credit sums inside [from, to].
// With from nil everything up to `to` counts as in-range movement; with to
// nil the window is open-ended. Only POSTED entries participate.
func (r *Repository) AccountActivity(ctx context.Context, companyID int64, from, to *time.Time) ([]AccountActivity, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.code, a.name, a.type,
COALESCE(SUM(l.debit - l.credit) FILTER (WHERE $2::timestamptz IS NOT NULL AND e.date < $2), 0)::text,
COALESCE(SUM(l.debit) FILTER (WHERE ($2::timestamptz IS NULL OR e.date >= $2) AND ($3::timestamptz IS NULL OR e.date <= $3)), 0)::text,
COALESCE(SUM(l.credit) FILTER (WHERE ($2::timestamptz IS NULL OR e.date >= $2) AND ($3::timestamptz IS NULL OR e.date <= $3)), 0)::text
FROM accounts a
LEFT JOIN journal_lines l ON l.account_id = a.id
LEFT JOIN journal_entries e ON e.id = l.entry_id AND e.status = 'POSTED'
WHERE a.company_id = $1 AND (l.id IS NULL OR e.id IS NOT NULL)
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activity []AccountActivity
	for rows.Next() {
		var acc AccountActivity
		var opening, debit, credit string
		if err := rows.Scan(&acc.Code, &acc.Name, &acc.Type, &opening, &debit, &credit); err != nil {
			return nil, err
		}
		if acc.Opening, err = decimal.NewFromString(opening); err != nil {
			return nil, err
		}
		if acc.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if acc.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		activity = append(activity, acc)
	}
	return activity, rows.Err()
}

// CompanyIDs returns every company with at least one account, for jobs that
// sweep all tenants.
func (r *Repository) CompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT company_id FROM accounts ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
