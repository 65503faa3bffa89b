package payment

import (
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/shopspring/decimal"
)

// PaymentBatch - one accepted gateway submission
type PaymentBatch struct {
	ID              string
	CompanyID       string
	RunID           string
	ExternalID      string
	OriginAccountID string
	TransferCount   int
	TotalAmount     decimal.Decimal
	CreatedAt       time.Time
}

// PaymentBatchItem - one transfer inside a batch, linked 1:1 to a payroll line
type PaymentBatchItem struct {
	ID        string
	BatchID   string
	LineID    string
	Position  int
	Amount    decimal.Decimal
	KeyType   employee.PaymentKeyType
	KeyValue  string
	Reference string
	CreatedAt time.Time
}

// TransferKey is a destination key already shaped for the gateway.
type TransferKey struct {
	Type  employee.PaymentKeyType
	Value string
}

// Transfer is one outbound credit submitted to the gateway.
type Transfer struct {
	LineID    string
	Amount    decimal.Decimal
	Reference string
	Key       TransferKey
}
