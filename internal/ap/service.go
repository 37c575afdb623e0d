package ap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/reports"
)

// RepositoryPort defines data access methods for AP.
type RepositoryPort interface {
	InsertBill(ctx context.Context, input BillInput, sourceID uuid.UUID) (Bill, error)
	DeleteBill(ctx context.Context, billID int64) error
	GetBill(ctx context.Context, companyID, billID int64) (Bill, error)
	ListBills(ctx context.Context, companyID int64) ([]Bill, error)
	SetBillEntry(ctx context.Context, billID, entryID int64) error
	ApplyPayment(ctx context.Context, billID int64, payment Payment, newStatus BillStatus) (Payment, error)
	OpenItems(ctx context.Context, companyID int64, asOf time.Time) ([]reports.OpenItem, error)
}

// LedgerPort is the narrow slice of the posting engine AP drives. DeleteDraft
// and Cancel back out the ledger side when the document side fails partway.
type LedgerPort interface {
	CreateDraft(ctx context.Context, input ledger.DraftInput) (ledger.JournalEntry, error)
	Post(ctx context.Context, companyID, entryID, actorID int64) (ledger.JournalEntry, error)
	DeleteDraft(ctx context.Context, companyID, entryID int64) error
	Cancel(ctx context.Context, input ledger.CancelInput) (ledger.JournalEntry, error)
	GetEntry(ctx context.Context, companyID, entryID int64) (ledger.JournalEntry, error)
}

// Service handles payable workflows, the mirror image of receivables:
// bills credit the payable account, payments debit it back down.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	now    func() time.Time
}

// NewService builds the AP service.
func NewService(repo RepositoryPort, ledgerPort LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledgerPort, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateBill records the bill and posts debit expense / credit payable.
func (s *Service) CreateBill(ctx context.Context, input BillInput) (Bill, error) {
	if input.SupplierID == 0 {
		return Bill{}, errors.New("ap: supplier required")
	}
	if input.Number == "" {
		return Bill{}, errors.New("ap: bill number required")
	}
	if !input.Total.IsPositive() {
		return Bill{}, errors.New("ap: total must be positive")
	}
	if input.PayableAccountID == 0 || input.ExpenseAccountID == 0 {
		return Bill{}, errors.New("ap: payable and expense accounts required")
	}
	if input.IssuedAt.IsZero() {
		input.IssuedAt = s.now()
	}
	if input.DueAt.IsZero() {
		input.DueAt = input.IssuedAt.AddDate(0, 1, 0)
	}

	bill, err := s.repo.InsertBill(ctx, input, uuid.New())
	if err != nil {
		return Bill{}, err
	}

	draft, err := s.ledger.CreateDraft(ctx, ledger.DraftInput{
		CompanyID:    input.CompanyID,
		Date:         input.IssuedAt,
		Description:  fmt.Sprintf("Bill %s", input.Number),
		SourceModule: "AP",
		SourceID:     bill.SourceID,
		CreatedBy:    input.ActorID,
		Lines: []ledger.LineInput{
			{AccountID: input.ExpenseAccountID, Debit: input.Total, Description: fmt.Sprintf("Bill %s", input.Number)},
			{AccountID: input.PayableAccountID, Credit: input.Total, Description: fmt.Sprintf("Bill %s", input.Number)},
		},
	})
	if err != nil {
		return Bill{}, s.discardBill(ctx, bill.ID, err)
	}
	posted, err := s.ledger.Post(ctx, input.CompanyID, draft.ID, input.ActorID)
	if err != nil {
		if derr := s.ledger.DeleteDraft(ctx, input.CompanyID, draft.ID); derr != nil {
			err = errors.Join(err, derr)
		}
		return Bill{}, s.discardBill(ctx, bill.ID, err)
	}
	if err := s.repo.SetBillEntry(ctx, bill.ID, posted.ID); err != nil {
		if _, cerr := s.ledger.Cancel(ctx, ledger.CancelInput{
			CompanyID: input.CompanyID,
			EntryID:   posted.ID,
			ActorID:   input.ActorID,
			Reason:    fmt.Sprintf("bill %s link failed", input.Number),
		}); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return Bill{}, s.discardBill(ctx, bill.ID, err)
	}
	bill.EntryID = &posted.ID
	return bill, nil
}

// discardBill removes a bill whose posting never completed, so a half
// recorded document cannot surface as an open item. The original cause is
// returned, joined with the delete error if that fails too.
func (s *Service) discardBill(ctx context.Context, billID int64, cause error) error {
	if err := s.repo.DeleteBill(ctx, billID); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// RecordPayment settles part of the bill and posts debit payable /
// credit cash.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	if !input.Amount.IsPositive() {
		return Payment{}, errors.New("ap: amount must be positive")
	}
	if input.CashAccountID == 0 {
		return Payment{}, errors.New("ap: cash account required")
	}
	bill, err := s.repo.GetBill(ctx, input.CompanyID, input.BillID)
	if err != nil {
		return Payment{}, err
	}
	if bill.Status != StatusOpen {
		return Payment{}, ErrBillClosed
	}
	if input.Amount.GreaterThan(bill.Outstanding()) {
		return Payment{}, ErrOverpayment
	}
	if input.PaidAt.IsZero() {
		input.PaidAt = s.now()
	}

	payableID, err := s.payableAccount(ctx, bill)
	if err != nil {
		return Payment{}, err
	}
	draft, err := s.ledger.CreateDraft(ctx, ledger.DraftInput{
		CompanyID:    input.CompanyID,
		Date:         input.PaidAt,
		Description:  fmt.Sprintf("Payment for bill %s", bill.Number),
		SourceModule: "AP:PAYMENT",
		SourceID:     uuid.New(),
		CreatedBy:    input.ActorID,
		Lines: []ledger.LineInput{
			{AccountID: payableID, Debit: input.Amount},
			{AccountID: input.CashAccountID, Credit: input.Amount},
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
	if bill.Paid.Add(input.Amount).GreaterThanOrEqual(bill.Total) {
		status = StatusPaid
	}
	payment := Payment{
		BillID:  bill.ID,
		Amount:  input.Amount,
		PaidAt:  input.PaidAt,
		Method:  input.Method,
		Note:    input.Note,
		EntryID: &posted.ID,
	}
	return s.repo.ApplyPayment(ctx, bill.ID, payment, status)
}

// GetBill returns one bill.
func (s *Service) GetBill(ctx context.Context, companyID, billID int64) (Bill, error) {
	return s.repo.GetBill(ctx, companyID, billID)
}

// ListBills returns the company's bills.
func (s *Service) ListBills(ctx context.Context, companyID int64) ([]Bill, error) {
	return s.repo.ListBills(ctx, companyID)
}

// OpenItems feeds the payables aging schedule.
func (s *Service) OpenItems(ctx context.Context, companyID int64, asOf time.Time) ([]reports.OpenItem, error) {
	return s.repo.OpenItems(ctx, companyID, asOf)
}

// payableAccount resolves the account the bill originally credited so the
// payment debits the same one.
func (s *Service) payableAccount(ctx context.Context, bill Bill) (int64, error) {
	if bill.EntryID == nil {
		return 0, fmt.Errorf("ap: bill %s has no posted entry", bill.Number)
	}
	entry, err := s.ledger.GetEntry(ctx, bill.CompanyID, *bill.EntryID)
	if err != nil {
		return 0, err
	}
	for _, line := range entry.Lines {
		if line.Credit.IsPositive() {
			return line.AccountID, nil
		}
	}
	return 0, fmt.Errorf("ap: bill %s entry has no credit line", bill.Number)
}
