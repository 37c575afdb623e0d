package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/reports"
)

// RepositoryPort defines data access methods for AR.
type RepositoryPort interface {
	InsertInvoice(ctx context.Context, input InvoiceInput, sourceID uuid.UUID) (Invoice, error)
	DeleteInvoice(ctx context.Context, invoiceID int64) error
	GetInvoice(ctx context.Context, companyID, invoiceID int64) (Invoice, error)
	ListInvoices(ctx context.Context, companyID int64) ([]Invoice, error)
	SetInvoiceEntry(ctx context.Context, invoiceID, entryID int64) error
	ApplyPayment(ctx context.Context, invoiceID int64, payment Payment, newStatus InvoiceStatus) (Payment, error)
	OpenItems(ctx context.Context, companyID int64, asOf time.Time) ([]reports.OpenItem, error)
}

// LedgerPort is the narrow slice of the posting engine AR drives. DeleteDraft
// and Cancel back out the ledger side when the document side fails partway.
type LedgerPort interface {
	CreateDraft(ctx context.Context, input ledger.DraftInput) (ledger.JournalEntry, error)
	Post(ctx context.Context, companyID, entryID, actorID int64) (ledger.JournalEntry, error)
	DeleteDraft(ctx context.Context, companyID, entryID int64) error
	Cancel(ctx context.Context, input ledger.CancelInput) (ledger.JournalEntry, error)
	GetEntry(ctx context.Context, companyID, entryID int64) (ledger.JournalEntry, error)
}

// Service handles receivable workflows: issuing invoices and recording
// receipts, each driving a balanced posting through the ledger core.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	now    func() time.Time
}

// NewService builds the AR service.
func NewService(repo RepositoryPort, ledgerPort LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledgerPort, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInvoice records the invoice and posts debit receivable / credit
// revenue for its total. The invoice's source id makes the posting
// idempotent: re-sending the same document cannot double-post.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (Invoice, error) {
	if input.CustomerID == 0 {
		return Invoice{}, errors.New("ar: customer required")
	}
	if input.Number == "" {
		return Invoice{}, errors.New("ar: invoice number required")
	}
	if !input.Total.IsPositive() {
		return Invoice{}, errors.New("ar: total must be positive")
	}
	if input.ReceivableAccountID == 0 || input.RevenueAccountID == 0 {
		return Invoice{}, errors.New("ar: receivable and revenue accounts required")
	}
	if input.IssuedAt.IsZero() {
		input.IssuedAt = s.now()
	}
	if input.DueAt.IsZero() {
		input.DueAt = input.IssuedAt.AddDate(0, 1, 0)
	}

	invoice, err := s.repo.InsertInvoice(ctx, input, uuid.New())
	if err != nil {
		return Invoice{}, err
	}

	draft, err := s.ledger.CreateDraft(ctx, ledger.DraftInput{
		CompanyID:    input.CompanyID,
		Date:         input.IssuedAt,
		Description:  fmt.Sprintf("Invoice %s", input.Number),
		SourceModule: "AR",
		SourceID:     invoice.SourceID,
		CreatedBy:    input.ActorID,
		Lines: []ledger.LineInput{
			{AccountID: input.ReceivableAccountID, Debit: input.Total, Description: fmt.Sprintf("Invoice %s", input.Number)},
			{AccountID: input.RevenueAccountID, Credit: input.Total, Description: fmt.Sprintf("Invoice %s", input.Number)},
		},
	})
	if err != nil {
		return Invoice{}, s.discardInvoice(ctx, invoice.ID, err)
	}
	posted, err := s.ledger.Post(ctx, input.CompanyID, draft.ID, input.ActorID)
	if err != nil {
		if derr := s.ledger.DeleteDraft(ctx, input.CompanyID, draft.ID); derr != nil {
			err = errors.Join(err, derr)
		}
		return Invoice{}, s.discardInvoice(ctx, invoice.ID, err)
	}
	if err := s.repo.SetInvoiceEntry(ctx, invoice.ID, posted.ID); err != nil {
		if _, cerr := s.ledger.Cancel(ctx, ledger.CancelInput{
			CompanyID: input.CompanyID,
			EntryID:   posted.ID,
			ActorID:   input.ActorID,
			Reason:    fmt.Sprintf("invoice %s link failed", input.Number),
		}); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return Invoice{}, s.discardInvoice(ctx, invoice.ID, err)
	}
	invoice.EntryID = &posted.ID
	return invoice, nil
}

// discardInvoice removes an invoice whose posting never completed, so a half
// issued document cannot surface as an open item. The original cause is
// returned, joined with the delete error if that fails too.
func (s *Service) discardInvoice(ctx context.Context, invoiceID int64, cause error) error {
	if err := s.repo.DeleteInvoice(ctx, invoiceID); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// RecordPayment applies a receipt to the invoice and posts debit cash /
// credit receivable.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	if !input.Amount.IsPositive() {
		return Payment{}, errors.New("ar: amount must be positive")
	}
	if input.CashAccountID == 0 {
		return Payment{}, errors.New("ar: cash account required")
	}
	invoice, err := s.repo.GetInvoice(ctx, input.CompanyID, input.InvoiceID)
	if err != nil {
		return Payment{}, err
	}
	if invoice.Status != StatusOpen {
		return Payment{}, ErrInvoiceClosed
	}
	if input.Amount.GreaterThan(invoice.Outstanding()) {
		return Payment{}, ErrOverpayment
	}
	if input.PaidAt.IsZero() {
		input.PaidAt = s.now()
	}

	receivableID, err := s.receivableAccount(ctx, invoice)
	if err != nil {
		return Payment{}, err
	}
	draft, err := s.ledger.CreateDraft(ctx, ledger.DraftInput{
		CompanyID:    input.CompanyID,
		Date:         input.PaidAt,
		Description:  fmt.Sprintf("Payment for invoice %s", invoice.Number),
		SourceModule: "AR:PAYMENT",
		SourceID:     uuid.New(),
		CreatedBy:    input.ActorID,
		Lines: []ledger.LineInput{
			{AccountID: input.CashAccountID, Debit: input.Amount},
			{AccountID: receivableID, Credit: input.Amount},
		},
	})
	if err != nil {
		return Payment{}, err
	}
	posted, err := s.ledger.Post(ctx, input.CompanyID, draft.ID, input.ActorID)
	if err != nil {
		return Payment{}, err
	}

	status := StatusOpen
	if invoice.Paid.Add(input.Amount).GreaterThanOrEqual(invoice.Total) {
		status = StatusPaid
	}
	payment := Payment{
		InvoiceID: invoice.ID,
		Amount:    input.Amount,
		PaidAt:    input.PaidAt,
		Method:    input.Method,
		Note:      input.Note,
		EntryID:   &posted.ID,
	}
	return s.repo.ApplyPayment(ctx, invoice.ID, payment, status)
}

// GetInvoice returns one invoice.
func (s *Service) GetInvoice(ctx context.Context, companyID, invoiceID int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, companyID, invoiceID)
}

// ListInvoices returns the company's invoices.
func (s *Service) ListInvoices(ctx context.Context, companyID int64) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, companyID)
}

// OpenItems feeds the receivables aging schedule.
func (s *Service) OpenItems(ctx context.Context, companyID int64, asOf time.Time) ([]reports.OpenItem, error) {
	return s.repo.OpenItems(ctx, companyID, asOf)
}

// receivableAccount resolves the account the invoice originally debited so
// the receipt credits the same one.
func (s *Service) receivableAccount(ctx context.Context, invoice Invoice) (int64, error) {
	if invoice.EntryID == nil {
		return 0, fmt.Errorf("ar: invoice %s has no posted entry", invoice.Number)
	}
	entry, err := s.ledger.GetEntry(ctx, invoice.CompanyID, *invoice.EntryID)
	if err != nil {
		return 0, err
	}
	for _, line := range entry.Lines {
		if line.Debit.IsPositive() {
			return line.AccountID, nil
		}
	}
	return 0, fmt.Errorf("ar: invoice %s entry has no debit line", invoice.Number)
}
