package ap

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillStatus enumerates supplier bill states.
type BillStatus string

const (
	StatusOpen BillStatus = "OPEN"
	StatusPaid BillStatus = "PAID"
	StatusVoid BillStatus = "VOID"
)

// Bill is a supplier payable document mirroring the AR invoice.
type Bill struct {
	ID         int64
	CompanyID  int64
	SupplierID int64
	Number     string
	Total      decimal.Decimal
	Paid       decimal.Decimal
	Status     BillStatus
	SourceID   uuid.UUID
	EntryID    *int64
	IssuedAt   time.Time
	DueAt      time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Outstanding returns the unpaid remainder.
func (b Bill) Outstanding() decimal.Decimal {
	return b.Total.Sub(b.Paid)
}

// BillInput describes a new bill and the accounts its posting should hit.
type BillInput struct {
	CompanyID        int64
	SupplierID       int64
	Number           string
	Total            decimal.Decimal
	IssuedAt         time.Time
	DueAt            time.Time
	PayableAccountID int64
	ExpenseAccountID int64
	ActorID          int64
}

// PaymentInput records money paid against a bill.
type PaymentInput struct {
	CompanyID     int64
	BillID        int64
	Amount        decimal.Decimal
	PaidAt        time.Time
	Method        string
	Note          string
	CashAccountID int64
	ActorID       int64
}

// Payment is a disbursement applied to one bill.
type Payment struct {
	ID        int64
	BillID    int64
	Amount    decimal.Decimal
	PaidAt    time.Time
	Method    string
	Note      string
	EntryID   *int64
	CreatedAt time.Time
}

var (
	// ErrBillNotFound indicates a missing bill.
	ErrBillNotFound = errors.New("ap: bill not found")
	// ErrBillClosed indicates payment against a paid or void bill.
	ErrBillClosed = errors.New("ap: bill is not open")
	// ErrOverpayment indicates the payment exceeds the outstanding balance.
	ErrOverpayment = errors.New("ap: payment exceeds outstanding balance")
)
