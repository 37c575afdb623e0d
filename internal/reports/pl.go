package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger"
)

// ProfitAndLossRow represents a revenue or expense account summary.
type ProfitAndLossRow struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label string
	Rows  []ProfitAndLossRow
	Total decimal.Decimal
}

// ProfitAndLoss sums revenue minus expense movement over a date range.
// Only in-range movements count; opening balances are excluded.
type ProfitAndLoss struct {
	From      time.Time
	To        time.Time
	Revenue   ProfitAndLossSection
	Expense   ProfitAndLossSection
	NetIncome decimal.Decimal
}

// BuildProfitAndLoss aggregates in-range movements into revenue and expense
// sections, each reported positive on its natural side.
func BuildProfitAndLoss(accounts []AccountActivity, from, to time.Time) ProfitAndLoss {
	revenue := ProfitAndLossSection{Label: "Revenue"}
	expense := ProfitAndLossSection{Label: "Expense"}

	for _, acc := range accounts {
		movement := acc.Debit.Sub(acc.Credit)
		if movement.IsZero() {
			continue
		}
		switch acc.Type {
		case ledger.AccountTypeRevenue:
			amount := movement.Neg()
			revenue.Rows = append(revenue.Rows, ProfitAndLossRow{Code: acc.Code, Name: acc.Name, Amount: amount})
			revenue.Total = revenue.Total.Add(amount)
		case ledger.AccountTypeExpense:
			expense.Rows = append(expense.Rows, ProfitAndLossRow{Code: acc.Code, Name: acc.Name, Amount: movement})
			expense.Total = expense.Total.Add(movement)
		}
	}

	sort.Slice(revenue.Rows, func(i, j int) bool { return revenue.Rows[i].Code < revenue.Rows[j].Code })
	sort.Slice(expense.Rows, func(i, j int) bool { return expense.Rows[i].Code < expense.Rows[j].Code })

	return ProfitAndLoss{
		From:      from,
		To:        to,
		Revenue:   revenue,
		Expense:   expense,
		NetIncome: revenue.Total.Sub(expense.Total),
	}
}
