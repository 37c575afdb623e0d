package ap

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/reports"
)

// Repository persists AP documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const billColumns = `id, company_id, supplier_id, number, total::text, paid::text, status, source_id, entry_id, issued_at, due_at, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var (
		bill        Bill
		total, paid string
	)
	err := row.Scan(&bill.ID, &bill.CompanyID, &bill.SupplierID, &bill.Number, &total, &paid,
		&bill.Status, &bill.SourceID, &bill.EntryID, &bill.IssuedAt, &bill.DueAt, &bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		return Bill{}, err
	}
	if bill.Total, err = decimal.NewFromString(total); err != nil {
		return Bill{}, err
	}
	if bill.Paid, err = decimal.NewFromString(paid); err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// InsertBill stores a new open bill.
func (r *Repository) InsertBill(ctx context.Context, input BillInput, sourceID uuid.UUID) (Bill, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO ap_bills
		(company_id, supplier_id, number, total, paid, status, source_id, issued_at, due_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)
		RETURNING `+billColumns,
		input.CompanyID, input.SupplierID, input.Number, input.Total.String(),
		string(StatusOpen), sourceID, input.IssuedAt, input.DueAt)
	return scanBill(row)
}

// GetBill fetches one bill scoped to the company.
func (r *Repository) GetBill(ctx context.Context, companyID, billID int64) (Bill, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM ap_bills WHERE company_id = $1 AND id = $2`,
		companyID, billID)
	bill, err := scanBill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	return bill, err
}

// ListBills returns the company's bills, newest first.
func (r *Repository) ListBills(ctx context.Context, companyID int64) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM ap_bills
		WHERE company_id = $1 ORDER BY issued_at DESC, id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bills []Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

// DeleteBill removes a bill that never finished posting. Bills with a posted
// entry stay put.
func (r *Repository) DeleteBill(ctx context.Context, billID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ap_bills WHERE id = $1 AND entry_id IS NULL`, billID)
	return err
}

// SetBillEntry links the bill to the journal entry it posted.
func (r *Repository) SetBillEntry(ctx context.Context, billID, entryID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE ap_bills SET entry_id = $2, updated_at = now() WHERE id = $1`,
		billID, entryID)
	return err
}

// ApplyPayment records the disbursement and advances the bill's paid amount
// and status in one transaction.
func (r *Repository) ApplyPayment(ctx context.Context, billID int64, payment Payment, newStatus BillStatus) (Payment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO ap_payments (bill_id, amount, paid_at, method, note, entry_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			billID, payment.Amount.String(), payment.PaidAt, payment.Method, payment.Note, payment.EntryID)
		if err := row.Scan(&payment.ID, &payment.CreatedAt); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE ap_bills
			SET paid = paid + $2, status = $3, updated_at = now()
			WHERE id = $1`, billID, payment.Amount.String(), string(newStatus))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrBillNotFound
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	payment.BillID = billID
	return payment, nil
}

// OpenItems returns outstanding bill balances issued on or before asOf,
// feeding the payables aging schedule.
func (r *Repository) OpenItems(ctx context.Context, companyID int64, asOf time.Time) ([]reports.OpenItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT number, due_at, (total - paid)::text
		FROM ap_bills
		WHERE company_id = $1 AND status = 'OPEN' AND issued_at <= $2 AND total > paid
		ORDER BY due_at ASC, id ASC`, companyID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []reports.OpenItem
	for rows.Next() {
		var (
			item   reports.OpenItem
			amount string
		)
		if err := rows.Scan(&item.Reference, &item.DueDate, &amount); err != nil {
			return nil, err
		}
		if item.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
