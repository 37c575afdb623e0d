package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenItem is an outstanding invoice or bill balance with its due date.
// These are external documents, not ledger accounts.
type OpenItem struct {
	Reference string
	DueDate   time.Time
	Amount    decimal.Decimal
}

// AgingSchedule buckets outstanding amounts by days overdue relative to the
// as-of date. Bucket boundaries are inclusive-upper: 30 days overdue falls
// in Days1to30.
type AgingSchedule struct {
	AsOf       time.Time
	Current    decimal.Decimal
	Days1to30  decimal.Decimal
	Days31to60 decimal.Decimal
	Days61to90 decimal.Decimal
	Over90     decimal.Decimal
	Total      decimal.Decimal
}

// BuildAging distributes open items into overdue buckets.
func BuildAging(items []OpenItem, asOf time.Time) AgingSchedule {
	schedule := AgingSchedule{AsOf: asOf}
	for _, item := range items {
		if item.Amount.IsZero() {
			continue
		}
		days := daysOverdue(item.DueDate, asOf)
		switch {
		case days <= 0:
			schedule.Current = schedule.Current.Add(item.Amount)
		case days <= 30:
			schedule.Days1to30 = schedule.Days1to30.Add(item.Amount)
		case days <= 60:
			schedule.Days31to60 = schedule.Days31to60.Add(item.Amount)
		case days <= 90:
			schedule.Days61to90 = schedule.Days61to90.Add(item.Amount)
		default:
			schedule.Over90 = schedule.Over90.Add(item.Amount)
		}
		schedule.Total = schedule.Total.Add(item.Amount)
	}
	return schedule
}

func daysOverdue(due, asOf time.Time) int {
	due = due.Truncate(24 * time.Hour)
	asOf = asOf.Truncate(24 * time.Hour)
	return int(asOf.Sub(due).Hours() / 24)
}
