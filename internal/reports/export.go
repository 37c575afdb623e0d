package reports

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatAmount renders a monetary value with grouped thousands and two
// decimals. The whole and fractional parts are formatted separately from the
// decimal itself, so amounts never pass through a float.
func formatAmount(d decimal.Decimal) string {
	cents := d.Round(2)
	whole := cents.IntPart()
	frac := cents.Sub(decimal.NewFromInt(whole)).Abs().Shift(2).IntPart()
	sign := ""
	if cents.Sign() < 0 && whole == 0 {
		sign = "-"
	}
	return printer.Sprintf("%s%d.%02d", sign, whole, frac)
}

// WriteTrialBalanceCSV serialises the trial balance to CSV.
func WriteTrialBalanceCSV(w io.Writer, tb TrialBalance) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Code", "Name", "Type", "Debit", "Credit"}); err != nil {
		return err
	}
	for _, row := range tb.Rows {
		record := []string{row.Code, row.Name, string(row.Type), formatAmount(row.DebitBalance), formatAmount(row.CreditBalance)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "Total", "", formatAmount(tb.TotalDebit), formatAmount(tb.TotalCredit)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteAgingCSV serialises an aging schedule to CSV.
func WriteAgingCSV(w io.Writer, schedule AgingSchedule) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Bucket", "Amount"}); err != nil {
		return err
	}
	records := [][]string{
		{"Current", formatAmount(schedule.Current)},
		{"1-30", formatAmount(schedule.Days1to30)},
		{"31-60", formatAmount(schedule.Days31to60)},
		{"61-90", formatAmount(schedule.Days61to90)},
		{"Over 90", formatAmount(schedule.Over90)},
		{"Total", formatAmount(schedule.Total)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
