package ledger

import "errors"

var (
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("ledger: invalid input")
	// ErrTooFewLines indicates less than two line items.
	ErrTooFewLines = errors.New("ledger: entry requires at least two line items")
	// ErrUnbalanced indicates debit != credit beyond epsilon at posting time.
	ErrUnbalanced = errors.New("ledger: entry debits and credits must balance")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrEntryNotDraft indicates a mutation attempted on a non-draft entry.
	ErrEntryNotDraft = errors.New("ledger: journal entry is not a draft")
	// ErrAlreadyPosted indicates posting an entry that already left DRAFT.
	ErrAlreadyPosted = errors.New("ledger: journal entry already posted")
	// ErrNotPosted indicates cancelling an entry that was never posted.
	ErrNotPosted = errors.New("ledger: journal entry is not posted")
	// ErrAlreadyReversed indicates the entry was cancelled before.
	ErrAlreadyReversed = errors.New("ledger: journal entry already reversed")
	// ErrUnknownAccount indicates a line references a missing account.
	ErrUnknownAccount = errors.New("ledger: unknown account")
	// ErrAccountInactive indicates a line references a deactivated account.
	ErrAccountInactive = errors.New("ledger: account is inactive")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrDuplicateCode indicates the account code is taken in the company.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrInvalidParent indicates a missing or foreign parent account.
	ErrInvalidParent = errors.New("ledger: invalid parent account")
	// ErrAccountHasActivity blocks deactivation of referenced accounts.
	ErrAccountHasActivity = errors.New("ledger: account has posted activity")
	// ErrAccountHasChildren blocks deactivation of parent accounts.
	ErrAccountHasChildren = errors.New("ledger: account has child accounts")
	// ErrSourceAlreadyPosted indicates the source document was posted before.
	ErrSourceAlreadyPosted = errors.New("ledger: source already posted")
	// ErrConcurrencyConflict surfaces after posting retries are exhausted.
	ErrConcurrencyConflict = errors.New("ledger: concurrent balance update conflict")
)
