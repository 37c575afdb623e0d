package ar

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates customer invoice states.
type InvoiceStatus string

const (
	StatusOpen InvoiceStatus = "OPEN"
	StatusPaid InvoiceStatus = "PAID"
	StatusVoid InvoiceStatus = "VOID"
)

// Invoice is a customer receivable document. It is not a ledger account;
// its financial effect lives in the journal entry it posted.
type Invoice struct {
	ID         int64
	CompanyID  int64
	CustomerID int64
	Number     string
	Total      decimal.Decimal
	Paid       decimal.Decimal
	Status     InvoiceStatus
	SourceID   uuid.UUID
	EntryID    *int64
	IssuedAt   time.Time
	DueAt      time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Outstanding returns the unpaid remainder.
func (i Invoice) Outstanding() decimal.Decimal {
	return i.Total.Sub(i.Paid)
}

// InvoiceInput describes a new invoice. The caller names the receivable and
// revenue accounts the posting should hit; the ledger core validates them.
type InvoiceInput struct {
	CompanyID           int64
	CustomerID          int64
	Number              string
	Total               decimal.Decimal
	IssuedAt            time.Time
	DueAt               time.Time
	ReceivableAccountID int64
	RevenueAccountID    int64
	ActorID             int64
}

// PaymentInput records money received against an invoice.
type PaymentInput struct {
	CompanyID     int64
	InvoiceID     int64
	Amount        decimal.Decimal
	PaidAt        time.Time
	Method        string
	Note          string
	CashAccountID int64
	ActorID       int64
}

// Payment is a receipt applied to one invoice.
type Payment struct {
	ID        int64
	InvoiceID int64
	Amount    decimal.Decimal
	PaidAt    time.Time
	Method    string
	Note      string
	EntryID   *int64
	CreatedAt time.Time
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("ar: invoice not found")
	// ErrInvoiceClosed indicates payment against a paid or void invoice.
	ErrInvoiceClosed = errors.New("ar: invoice is not open")
	// ErrOverpayment indicates the payment exceeds the outstanding balance.
	ErrOverpayment = errors.New("ar: payment exceeds outstanding balance")
)
