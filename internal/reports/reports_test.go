package reports

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func activity(code string, typ ledger.AccountType, opening, debit, credit string) AccountActivity {
	return AccountActivity{
		Code:    code,
		Name:    "Account " + code,
		Type:    typ,
		Opening: d(opening),
		Debit:   d(debit),
		Credit:  d(credit),
	}
}

func asOf() time.Time {
	return time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
}

func TestBuildTrialBalanceNaturalSides(t *testing.T) {
	tb := BuildTrialBalance([]AccountActivity{
		activity("4000", ledger.AccountTypeRevenue, "0", "0", "500"),
		activity("1000", ledger.AccountTypeAsset, "0", "500", "200"),
		activity("5000", ledger.AccountTypeExpense, "0", "200", "0"),
		activity("9999", ledger.AccountTypeAsset, "0", "0", "0"),
	}, asOf())

	require.Len(t, tb.Rows, 3, "accounts without activity are omitted")
	require.Equal(t, "1000", tb.Rows[0].Code, "rows sorted by code")

	require.True(t, tb.Rows[0].DebitBalance.Equal(d("300")))
	require.True(t, tb.Rows[0].CreditBalance.IsZero())
	require.True(t, tb.Rows[1].CreditBalance.Equal(d("500")), "credit-normal balance reported positive")
	require.True(t, tb.Rows[2].DebitBalance.Equal(d("200")))

	require.True(t, tb.TotalDebit.Equal(d("500")))
	require.True(t, tb.TotalCredit.Equal(d("500")))
	require.True(t, tb.Balanced)
}

func TestBuildTrialBalanceDetectsImbalance(t *testing.T) {
	tb := BuildTrialBalance([]AccountActivity{
		activity("1000", ledger.AccountTypeAsset, "0", "100", "0"),
		activity("4000", ledger.AccountTypeRevenue, "0", "0", "90"),
	}, asOf())

	require.False(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(d("100")))
	require.True(t, tb.TotalCredit.Equal(d("90")))
}

func TestBuildBalanceSheetCurrentEarnings(t *testing.T) {
	// cash sale of 500 plus 200 of expenses paid from cash
	bs := BuildBalanceSheet([]AccountActivity{
		activity("1000", ledger.AccountTypeAsset, "0", "500", "200"),
		activity("4000", ledger.AccountTypeRevenue, "0", "0", "500"),
		activity("5000", ledger.AccountTypeExpense, "0", "200", "0"),
	}, asOf())

	require.True(t, bs.Assets.Total.Equal(d("300")))
	require.True(t, bs.Liabilities.Total.IsZero())

	// unclosed net income of 300 surfaces as the synthetic equity row
	require.Len(t, bs.Equity.Rows, 1)
	require.Equal(t, "Current Earnings", bs.Equity.Rows[0].Name)
	require.True(t, bs.Equity.Rows[0].Balance.Equal(d("300")))
	require.True(t, bs.Equity.Total.Equal(d("300")))

	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(d("300")))
	require.True(t, bs.Consistent)
}

func TestBuildBalanceSheetSections(t *testing.T) {
	bs := BuildBalanceSheet([]AccountActivity{
		activity("1000", ledger.AccountTypeAsset, "100", "50", "0"),
		activity("2000", ledger.AccountTypeLiability, "0", "0", "80"),
		activity("3000", ledger.AccountTypeEquity, "0", "0", "70"),
	}, asOf())

	require.True(t, bs.Assets.Total.Equal(d("150")))
	require.True(t, bs.Liabilities.Total.Equal(d("80")), "liabilities reported positive on the credit side")
	require.True(t, bs.Equity.Total.Equal(d("70")))
	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(d("150")))
	require.True(t, bs.Consistent)
}

func TestBuildProfitAndLoss(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pl := BuildProfitAndLoss([]AccountActivity{
		activity("4000", ledger.AccountTypeRevenue, "900", "0", "500"),
		activity("4100", ledger.AccountTypeRevenue, "0", "20", "0"),
		activity("5000", ledger.AccountTypeExpense, "0", "200", "0"),
		activity("1000", ledger.AccountTypeAsset, "0", "480", "200"),
	}, from, asOf())

	// opening balances never count, only in-range movement
	require.True(t, pl.Revenue.Total.Equal(d("480")))
	require.True(t, pl.Expense.Total.Equal(d("200")))
	require.True(t, pl.NetIncome.Equal(d("280")))
	require.Len(t, pl.Revenue.Rows, 2)
	require.True(t, pl.Revenue.Rows[1].Amount.Equal(d("-20")), "debit movement on revenue reported as negative revenue")
}

func TestBuildAgingBucketBoundaries(t *testing.T) {
	ref := asOf()
	due := func(daysAgo int) time.Time { return ref.AddDate(0, 0, -daysAgo) }

	schedule := BuildAging([]OpenItem{
		{Reference: "INV-1", DueDate: due(-5), Amount: d("10")}, // not yet due
		{Reference: "INV-2", DueDate: due(0), Amount: d("20")},  // due today
		{Reference: "INV-3", DueDate: due(1), Amount: d("30")},
		{Reference: "INV-4", DueDate: due(30), Amount: d("40")},
		{Reference: "INV-5", DueDate: due(31), Amount: d("50")},
		{Reference: "INV-6", DueDate: due(60), Amount: d("60")},
		{Reference: "INV-7", DueDate: due(61), Amount: d("70")},
		{Reference: "INV-8", DueDate: due(90), Amount: d("80")},
		{Reference: "INV-9", DueDate: due(91), Amount: d("90")},
		{Reference: "INV-0", DueDate: due(10), Amount: d("0")}, // settled, skipped
	}, ref)

	require.True(t, schedule.Current.Equal(d("30")))
	require.True(t, schedule.Days1to30.Equal(d("70")))
	require.True(t, schedule.Days31to60.Equal(d("110")))
	require.True(t, schedule.Days61to90.Equal(d("150")))
	require.True(t, schedule.Over90.Equal(d("90")))
	require.True(t, schedule.Total.Equal(d("450")))
}

func TestWriteTrialBalanceCSV(t *testing.T) {
	tb := BuildTrialBalance([]AccountActivity{
		activity("1000", ledger.AccountTypeAsset, "0", "1500.50", "0"),
		activity("4000", ledger.AccountTypeRevenue, "0", "0", "1500.50"),
	}, asOf())

	var buf strings.Builder
	require.NoError(t, WriteTrialBalanceCSV(&buf, tb))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4, "header, two rows, totals")
	require.Equal(t, "Code,Name,Type,Debit,Credit", lines[0])
	require.Contains(t, lines[1], "1,500.50")
	require.Contains(t, lines[3], "Total")
}

func TestFormatAmountKeepsDecimalPrecision(t *testing.T) {
	// 16 significant digits, past what a float64 round-trip can carry
	require.Equal(t, "1,234,567,890,123,456.78", formatAmount(d("1234567890123456.78")))
	require.Equal(t, "-1,500.50", formatAmount(d("-1500.5")))
	require.Equal(t, "-0.50", formatAmount(d("-0.5")))
	require.Equal(t, "0.00", formatAmount(d("0")))
}

func TestWriteAgingCSV(t *testing.T) {
	schedule := BuildAging([]OpenItem{
		{Reference: "INV-1", DueDate: asOf().AddDate(0, 0, -45), Amount: d("120")},
	}, asOf())

	var buf strings.Builder
	require.NoError(t, WriteAgingCSV(&buf, schedule))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "Bucket,Amount", lines[0])
	require.Equal(t, "31-60,120.00", lines[3])
	require.Equal(t, "Total,120.00", lines[6])
}
