package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// DebitNormal reports whether the type's balance grows with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Valid reports whether the value is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// EntryStatus enumerates journal entry lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "DRAFT"
	EntryStatusPosted EntryStatus = "POSTED"
)

// Epsilon is the tolerance applied to the debit/credit balance check at
// posting time. Amounts are decimals, so drift only enters through callers
// that round line amounts independently.
var Epsilon = decimal.New(1, -2)

// Account models a chart of accounts node. Balance is a denormalised cache
// maintained by the posting engine; ground truth is the posted line history.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	Balance   decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Delta returns the signed balance movement the line amounts cause on an
// account of this type. Debit-normal accounts grow with debits,
// credit-normal accounts grow with credits.
func (a Account) Delta(debit, credit decimal.Decimal) decimal.Decimal {
	if a.Type.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// JournalEntry captures a balanced movement across two or more accounts.
// ReversedByID points at the automatically created reversing entry when the
// entry has been cancelled; posted history is never mutated in place.
type JournalEntry struct {
	ID           int64
	CompanyID    int64
	Number       int64
	Date         time.Time
	Description  string
	Status       EntryStatus
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	SourceModule string
	SourceID     uuid.UUID
	CreatedBy    int64
	PostedAt     *time.Time
	ReversedByID *int64
	ReversalOfID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []JournalLine
}

// JournalLine stores a debit or credit amount against one account. Lines
// have no lifecycle of their own; they live and die with their entry.
type JournalLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// LineInput describes a single requested journal line.
type LineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// DraftInput groups fields required to create a draft entry. Balance is
// deliberately not checked here; drafts may be unbalanced while they are
// being assembled and the check is deferred to posting.
type DraftInput struct {
	CompanyID    int64
	Date         time.Time
	Description  string
	SourceModule string
	SourceID     uuid.UUID
	CreatedBy    int64
	Lines        []LineInput
}

// AccountInput groups fields for creating a chart of accounts node.
type AccountInput struct {
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
}

// CancelInput wraps parameters for cancelling a posted entry.
type CancelInput struct {
	CompanyID int64
	EntryID   int64
	ActorID   int64
	Reason    string
}

// ReconcileResult compares an account's cached balance to the balance
// recomputed from posted line history.
type ReconcileResult struct {
	AccountID int64
	Cached    decimal.Decimal
	Computed  decimal.Decimal
	Drift     decimal.Decimal
	InSync    bool
}

// Validate checks structural well-formedness of the draft. The entry-level
// balance is a posting-time postcondition, not a draft invariant.
func (in DraftInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("ledger: company required")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: entry date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", ErrValidation, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", ErrValidation, idx)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("%w: line %d has no amount", ErrValidation, idx)
		}
	}
	return nil
}

// Totals sums the requested debit and credit columns.
func (in DraftInput) Totals() (debit, credit decimal.Decimal) {
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Balanced reports whether debit and credit totals match within Epsilon.
func Balanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThanOrEqual(Epsilon)
}
