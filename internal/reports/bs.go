package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger"
)

// BalanceSheetRow summarises an account for assets, liabilities, or equity.
type BalanceSheetRow struct {
	Code    string
	Name    string
	Balance decimal.Decimal
}

// BalanceSheetSection contains the rows and total for a classification.
type BalanceSheetSection struct {
	Label string
	Rows  []BalanceSheetRow
	Total decimal.Decimal
}

// BalanceSheet partitions accounts by type as of a date. The accounting
// equation Assets == Liabilities + Equity must hold; net income not yet
// closed to equity is carried as a synthetic current-earnings row.
type BalanceSheet struct {
	AsOf                      time.Time
	Assets                    BalanceSheetSection
	Liabilities               BalanceSheetSection
	Equity                    BalanceSheetSection
	TotalLiabilitiesAndEquity decimal.Decimal
	Consistent                bool
}

// BuildBalanceSheet aggregates closing balances into the three sections,
// each reported positive on its natural side.
func BuildBalanceSheet(accounts []AccountActivity, asOf time.Time) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets"}
	liabilities := BalanceSheetSection{Label: "Liabilities"}
	equity := BalanceSheetSection{Label: "Equity"}
	earnings := decimal.Zero

	for _, acc := range accounts {
		if !acc.HasActivity() {
			continue
		}
		closing := acc.RawClosing()
		switch acc.Type {
		case ledger.AccountTypeAsset:
			assets.Rows = append(assets.Rows, BalanceSheetRow{Code: acc.Code, Name: acc.Name, Balance: closing})
			assets.Total = assets.Total.Add(closing)
		case ledger.AccountTypeLiability:
			liabilities.Rows = append(liabilities.Rows, BalanceSheetRow{Code: acc.Code, Name: acc.Name, Balance: closing.Neg()})
			liabilities.Total = liabilities.Total.Add(closing.Neg())
		case ledger.AccountTypeEquity:
			equity.Rows = append(equity.Rows, BalanceSheetRow{Code: acc.Code, Name: acc.Name, Balance: closing.Neg()})
			equity.Total = equity.Total.Add(closing.Neg())
		case ledger.AccountTypeRevenue, ledger.AccountTypeExpense:
			earnings = earnings.Sub(closing)
		}
	}

	for _, section := range []*BalanceSheetSection{&assets, &liabilities, &equity} {
		sort.Slice(section.Rows, func(i, j int) bool { return section.Rows[i].Code < section.Rows[j].Code })
	}
	if !earnings.IsZero() {
		equity.Rows = append(equity.Rows, BalanceSheetRow{Code: "", Name: "Current Earnings", Balance: earnings})
		equity.Total = equity.Total.Add(earnings)
	}

	total := liabilities.Total.Add(equity.Total)
	return BalanceSheet{
		AsOf:                      asOf,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalLiabilitiesAndEquity: total,
		Consistent:                assets.Total.Equal(total),
	}
}
