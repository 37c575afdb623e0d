package ar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/reports"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type memoryARRepo struct {
	invoices map[int64]*Invoice
	payments []Payment
	nextID   int64
	linkErr  error
}

func newMemoryARRepo() *memoryARRepo {
	return &memoryARRepo{invoices: make(map[int64]*Invoice)}
}

func (r *memoryARRepo) InsertInvoice(ctx context.Context, input InvoiceInput, sourceID uuid.UUID) (Invoice, error) {
	r.nextID++
	invoice := &Invoice{
		ID:         r.nextID,
		CompanyID:  input.CompanyID,
		CustomerID: input.CustomerID,
		Number:     input.Number,
		Total:      input.Total,
		Paid:       decimal.Zero,
		Status:     StatusOpen,
		SourceID:   sourceID,
		IssuedAt:   input.IssuedAt,
		DueAt:      input.DueAt,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.invoices[invoice.ID] = invoice
	return *invoice, nil
}

func (r *memoryARRepo) GetInvoice(ctx context.Context, companyID, invoiceID int64) (Invoice, error) {
	inv, ok := r.invoices[invoiceID]
	if !ok || inv.CompanyID != companyID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return *inv, nil
}

func (r *memoryARRepo) ListInvoices(ctx context.Context, companyID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.CompanyID == companyID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *memoryARRepo) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	delete(r.invoices, invoiceID)
	return nil
}

func (r *memoryARRepo) SetInvoiceEntry(ctx context.Context, invoiceID, entryID int64) error {
	if r.linkErr != nil {
		return r.linkErr
	}
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.EntryID = &entryID
	return nil
}

func (r *memoryARRepo) ApplyPayment(ctx context.Context, invoiceID int64, payment Payment, newStatus InvoiceStatus) (Payment, error) {
	inv, ok := r.invoices[invoiceID]
	if !ok {
		return Payment{}, ErrInvoiceNotFound
	}
	payment.ID = int64(len(r.payments) + 1)
	payment.CreatedAt = time.Now()
	r.payments = append(r.payments, payment)
	inv.Paid = inv.Paid.Add(payment.Amount)
	inv.Status = newStatus
	return payment, nil
}

func (r *memoryARRepo) OpenItems(ctx context.Context, companyID int64, asOf time.Time) ([]reports.OpenItem, error) {
	var out []reports.OpenItem
	for _, inv := range r.invoices {
		if inv.CompanyID != companyID || inv.Status != StatusOpen || inv.IssuedAt.After(asOf) {
			continue
		}
		if inv.Outstanding().IsPositive() {
			out = append(out, reports.OpenItem{Reference: inv.Number, DueDate: inv.DueAt, Amount: inv.Outstanding()})
		}
	}
	return out, nil
}

// fakeLedger posts drafts immediately and keeps them for GetEntry, so the
// service's posting calls can be asserted on.
type fakeLedger struct {
	entries   map[int64]ledger.JournalEntry
	nextID    int64
	postErr   error
	cancelled []int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[int64]ledger.JournalEntry)}
}

func (f *fakeLedger) CreateDraft(ctx context.Context, input ledger.DraftInput) (ledger.JournalEntry, error) {
	f.nextID++
	entry := ledger.JournalEntry{
		ID:           f.nextID,
		CompanyID:    input.CompanyID,
		Date:         input.Date,
		Description:  input.Description,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		Status:       ledger.EntryStatusDraft,
	}
	for i, line := range input.Lines {
		entry.Lines = append(entry.Lines, ledger.JournalLine{
			ID:        f.nextID*100 + int64(i),
			EntryID:   entry.ID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	f.entries[entry.ID] = entry
	return entry, nil
}

func (f *fakeLedger) Post(ctx context.Context, companyID, entryID, actorID int64) (ledger.JournalEntry, error) {
	if f.postErr != nil {
		return ledger.JournalEntry{}, f.postErr
	}
	entry, ok := f.entries[entryID]
	if !ok || entry.CompanyID != companyID {
		return ledger.JournalEntry{}, ledger.ErrEntryNotFound
	}
	entry.Status = ledger.EntryStatusPosted
	f.entries[entryID] = entry
	return entry, nil
}

func (f *fakeLedger) DeleteDraft(ctx context.Context, companyID, entryID int64) error {
	entry, ok := f.entries[entryID]
	if !ok || entry.CompanyID != companyID {
		return ledger.ErrEntryNotFound
	}
	if entry.Status != ledger.EntryStatusDraft {
		return ledger.ErrEntryNotDraft
	}
	delete(f.entries, entryID)
	return nil
}

func (f *fakeLedger) Cancel(ctx context.Context, input ledger.CancelInput) (ledger.JournalEntry, error) {
	entry, ok := f.entries[input.EntryID]
	if !ok || entry.CompanyID != input.CompanyID {
		return ledger.JournalEntry{}, ledger.ErrEntryNotFound
	}
	if entry.Status != ledger.EntryStatusPosted {
		return ledger.JournalEntry{}, ledger.ErrNotPosted
	}
	f.cancelled = append(f.cancelled, input.EntryID)
	return entry, nil
}

func (f *fakeLedger) GetEntry(ctx context.Context, companyID, entryID int64) (ledger.JournalEntry, error) {
	entry, ok := f.entries[entryID]
	if !ok || entry.CompanyID != companyID {
		return ledger.JournalEntry{}, ledger.ErrEntryNotFound
	}
	return entry, nil
}

func issueInvoice(t *testing.T, svc *Service, total string) Invoice {
	t.Helper()
	invoice, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CompanyID:           1,
		CustomerID:          42,
		Number:              "INV-001",
		Total:               d(total),
		IssuedAt:            time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueAt:               time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		ReceivableAccountID: 11,
		RevenueAccountID:    41,
		ActorID:             7,
	})
	require.NoError(t, err)
	return invoice
}

func TestCreateInvoicePostsEntry(t *testing.T) {
	repo := newMemoryARRepo()
	lg := newFakeLedger()
	svc := NewService(repo, lg)

	invoice := issueInvoice(t, svc, "1200")
	require.Equal(t, StatusOpen, invoice.Status)
	require.NotNil(t, invoice.EntryID)

	entry := lg.entries[*invoice.EntryID]
	require.Equal(t, ledger.EntryStatusPosted, entry.Status)
	require.Equal(t, "AR", entry.SourceModule)
	require.Equal(t, invoice.SourceID, entry.SourceID)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, int64(11), entry.Lines[0].AccountID)
	require.True(t, entry.Lines[0].Debit.Equal(d("1200")), "receivable debited for the total")
	require.Equal(t, int64(41), entry.Lines[1].AccountID)
	require.True(t, entry.Lines[1].Credit.Equal(d("1200")), "revenue credited for the total")
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc := NewService(newMemoryARRepo(), newFakeLedger())

	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CompanyID: 1, CustomerID: 42, Number: "INV-002", Total: d("-5"),
		ReceivableAccountID: 11, RevenueAccountID: 41,
	})
	require.Error(t, err)

	_, err = svc.CreateInvoice(context.Background(), InvoiceInput{
		CompanyID: 1, CustomerID: 42, Total: d("100"),
		ReceivableAccountID: 11, RevenueAccountID: 41,
	})
	require.Error(t, err, "invoice number required")
}

func TestCreateInvoiceDiscardsDocumentWhenPostingFails(t *testing.T) {
	repo := newMemoryARRepo()
	lg := newFakeLedger()
	lg.postErr = ledger.ErrAccountInactive
	svc := NewService(repo, lg)

	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CompanyID: 1, CustomerID: 42, Number: "INV-003", Total: d("500"),
		IssuedAt:            time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ReceivableAccountID: 11, RevenueAccountID: 41, ActorID: 7,
	})
	require.ErrorIs(t, err, ledger.ErrAccountInactive)

	// neither side survives: no invoice to age, no draft left behind
	require.Empty(t, repo.invoices)
	require.Empty(t, lg.entries)

	items, err := repo.OpenItems(context.Background(), 1, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestCreateInvoiceReversesEntryWhenLinkFails(t *testing.T) {
	repo := newMemoryARRepo()
	repo.linkErr = errors.New("ar: link write refused")
	lg := newFakeLedger()
	svc := NewService(repo, lg)

	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CompanyID: 1, CustomerID: 42, Number: "INV-004", Total: d("500"),
		IssuedAt:            time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ReceivableAccountID: 11, RevenueAccountID: 41, ActorID: 7,
	})
	require.ErrorIs(t, err, repo.linkErr)

	require.Empty(t, repo.invoices)
	require.Len(t, lg.cancelled, 1, "posted entry reversed when the invoice cannot reference it")
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	repo := newMemoryARRepo()
	lg := newFakeLedger()
	svc := NewService(repo, lg)
	invoice := issueInvoice(t, svc, "1000")

	payment, err := svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, InvoiceID: invoice.ID, Amount: d("400"),
		PaidAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Method: "wire",
		CashAccountID: 10, ActorID: 7,
	})
	require.NoError(t, err)
	require.NotNil(t, payment.EntryID)

	// receipt credits the same receivable the invoice debited
	entry := lg.entries[*payment.EntryID]
	require.Equal(t, int64(10), entry.Lines[0].AccountID)
	require.True(t, entry.Lines[0].Debit.Equal(d("400")))
	require.Equal(t, int64(11), entry.Lines[1].AccountID)
	require.True(t, entry.Lines[1].Credit.Equal(d("400")))

	after, err := svc.GetInvoice(context.Background(), 1, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, after.Status)
	require.True(t, after.Outstanding().Equal(d("600")))

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, InvoiceID: invoice.ID, Amount: d("600"),
		CashAccountID: 10, ActorID: 7,
	})
	require.NoError(t, err)

	after, err = svc.GetInvoice(context.Background(), 1, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, after.Status)
	require.True(t, after.Outstanding().IsZero())
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	repo := newMemoryARRepo()
	svc := NewService(repo, newFakeLedger())
	invoice := issueInvoice(t, svc, "100")

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, InvoiceID: invoice.ID, Amount: d("100.01"),
		CashAccountID: 10, ActorID: 7,
	})
	require.ErrorIs(t, err, ErrOverpayment)
}

func TestRecordPaymentRejectsClosedInvoice(t *testing.T) {
	repo := newMemoryARRepo()
	svc := NewService(repo, newFakeLedger())
	invoice := issueInvoice(t, svc, "100")

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, InvoiceID: invoice.ID, Amount: d("100"),
		CashAccountID: 10, ActorID: 7,
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, InvoiceID: invoice.ID, Amount: d("1"),
		CashAccountID: 10, ActorID: 7,
	})
	require.ErrorIs(t, err, ErrInvoiceClosed)
}

func TestOpenItemsReflectOutstanding(t *testing.T) {
	repo := newMemoryARRepo()
	svc := NewService(repo, newFakeLedger())
	invoice := issueInvoice(t, svc, "1000")

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		CompanyID: 1, InvoiceID: invoice.ID, Amount: d("250"),
		CashAccountID: 10, ActorID: 7,
	})
	require.NoError(t, err)

	items, err := svc.OpenItems(context.Background(), 1, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "INV-001", items[0].Reference)
	require.True(t, items[0].Amount.Equal(d("750")))
}

var _ RepositoryPort = (*memoryARRepo)(nil)
var _ LedgerPort = (*fakeLedger)(nil)
