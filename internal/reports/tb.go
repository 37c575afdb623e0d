package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger"
)

// AccountActivity models one ledger account with aggregated posted amounts:
// opening is the raw debit-minus-credit balance carried in from before the
// range, debit/credit are the in-range movement sums.
type AccountActivity struct {
	Code    string
	Name    string
	Type    ledger.AccountType
	Opening decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// RawClosing computes the debit-positive closing balance.
func (a AccountActivity) RawClosing() decimal.Decimal {
	return a.Opening.Add(a.Debit).Sub(a.Credit)
}

// HasActivity reports whether anything was ever posted against the account
// in the window.
func (a AccountActivity) HasActivity() bool {
	return !a.Opening.IsZero() || !a.Debit.IsZero() || !a.Credit.IsZero()
}

// TrialBalanceRow lists one account's closing balance on its natural side.
type TrialBalanceRow struct {
	Code          string
	Name          string
	Type          ledger.AccountType
	DebitBalance  decimal.Decimal
	CreditBalance decimal.Decimal
}

// TrialBalance is the ledger-wide self-consistency report: the debit and
// credit columns must total the same or the ledger is corrupt.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balanced    bool
}

// BuildTrialBalance emits every account with nonzero activity on the side
// its closing balance falls on. Balanced doubles as the primary diagnostic
// for the whole ledger, not just a report field.
func BuildTrialBalance(accounts []AccountActivity, asOf time.Time) TrialBalance {
	tb := TrialBalance{AsOf: asOf}
	for _, acc := range accounts {
		if !acc.HasActivity() {
			continue
		}
		row := TrialBalanceRow{Code: acc.Code, Name: acc.Name, Type: acc.Type}
		closing := acc.RawClosing()
		if closing.Sign() >= 0 {
			row.DebitBalance = closing
		} else {
			row.CreditBalance = closing.Neg()
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.DebitBalance)
		tb.TotalCredit = tb.TotalCredit.Add(row.CreditBalance)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb
}
