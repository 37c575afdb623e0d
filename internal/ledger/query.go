package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountLedger is the chronological statement for one account: the balance
// carried in from before the range, the ordered movements with running
// balances, and the resulting closing balance.
type AccountLedger struct {
	AccountID      int64
	OpeningBalance decimal.Decimal
	Movements      []Movement
	ClosingBalance decimal.Decimal
}

// GetAccountLedger derives the account statement for the date range by
// replaying posted line items. The function is pure with respect to posted
// data: the same history always yields the same sequence, movement for
// movement, which is what makes the ledger auditable.
func (s *Service) GetAccountLedger(ctx context.Context, companyID, accountID int64, from, to *time.Time) (AccountLedger, error) {
	account, err := s.repo.GetAccount(ctx, companyID, accountID)
	if err != nil {
		return AccountLedger{}, err
	}

	opening := decimal.Zero
	if from != nil {
		debit, credit, err := s.repo.SignedActivity(ctx, companyID, accountID, from, nil)
		if err != nil {
			return AccountLedger{}, err
		}
		opening = account.Delta(debit, credit)
	}

	movements, err := s.repo.Movements(ctx, companyID, accountID, from, to)
	if err != nil {
		return AccountLedger{}, err
	}

	running := opening
	for i := range movements {
		running = running.Add(account.Delta(movements[i].Debit, movements[i].Credit))
		movements[i].Running = running
	}

	return AccountLedger{
		AccountID:      accountID,
		OpeningBalance: opening,
		Movements:      movements,
		ClosingBalance: running,
	}, nil
}
