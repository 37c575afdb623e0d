package ar

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

// Repository persists AR documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, company_id, customer_id, number, total::text, paid::text, status, source_id, entry_id, issued_at, due_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv         Invoice
		total, paid string
	)
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.CustomerID, &inv.Number, &total, &paid,
		&inv.Status, &inv.SourceID, &inv.EntryID, &inv.IssuedAt, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Total, err = decimal.NewFromString(total); err != nil {
		return Invoice{}, err
	}
	if inv.Paid, err = decimal.NewFromString(paid); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// InsertInvoice stores a new open invoice.
func (r *Repository) InsertInvoice(ctx context.Context, input InvoiceInput, sourceID uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO ar_invoices
		(company_id, customer_id, number, total, paid, status, source_id, issued_at, due_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)
		RETURNING `+invoiceColumns,
		input.CompanyID, input.CustomerID, input.Number, input.Total.String(),
		string(StatusOpen), sourceID, input.IssuedAt, input.DueAt)
	return scanInvoice(row)
}

// GetInvoice fetches one invoice scoped to the company.
func (r *Repository) GetInvoice(ctx context.Context, companyID, invoiceID int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE company_id = $1 AND id = $2`,
		companyID, invoiceID)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, err
}

// ListInvoices returns the company's invoices, newest first.
func (r *Repository) ListInvoices(ctx context.Context, companyID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices
		WHERE company_id = $1 ORDER BY issued_at DESC, id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// DeleteInvoice removes an invoice that never finished posting. Invoices with
// a posted entry stay put.
func (r *Repository) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ar_invoices WHERE id = $1 AND entry_id IS NULL`, invoiceID)
	return err
}

// SetInvoiceEntry links the invoice to the journal entry it posted.
func (r *Repository) SetInvoiceEntry(ctx context.Context, invoiceID, entryID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE ar_invoices SET entry_id = $2, updated_at = now() WHERE id = $1`,
		invoiceID, entryID)
	return err
}

// ApplyPayment records the receipt and advances the invoice's paid amount
// and status in one transaction.
func (r *Repository) ApplyPayment(ctx context.Context, invoiceID int64, payment Payment, newStatus InvoiceStatus) (Payment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO ar_payments (invoice_id, amount, paid_at, method, note, entry_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			invoiceID, payment.Amount.String(), payment.PaidAt, payment.Method, payment.Note, payment.EntryID)
		if err := row.Scan(&payment.ID, &payment.CreatedAt); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE ar_invoices
			SET paid = paid + $2, status = $3, updated_at = now()
			WHERE id = $1`, invoiceID, payment.Amount.String(), string(newStatus))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrInvoiceNotFound
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	payment.InvoiceID = invoiceID
	return payment, nil
}

// OpenItems returns outstanding invoice balances issued on or before asOf,
// feeding the receivables aging schedule.
func (r *Repository) OpenItems(ctx context.Context, companyID int64, asOf time.Time) ([]reports.OpenItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT number, due_at, (total - paid)::text
		FROM ar_invoices
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
