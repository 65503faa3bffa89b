package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the read-only projection of an employee record that payroll needs.
type Employee struct {
	ID             string
	CompanyID      string
	FullName       string
	TaxID          string
	Active         bool
	ContractType   ContractType
	Salary         decimal.Decimal
	DailyRate      decimal.Decimal
	OvertimeRate   decimal.Decimal
	PaymentKey     *string
	PaymentKeyType *PaymentKeyType
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ContractType string

const (
	ContractTypeMonthly ContractType = "monthly"
	ContractTypeDayRate ContractType = "day_rate"
)

func (c ContractType) IsValid() bool {
	return c == ContractTypeMonthly || c == ContractTypeDayRate
}

// PaymentKeyType identifies how an instant-payment key must be shaped before it is sent to the bank.
type PaymentKeyType string

const (
	PaymentKeyPhone  PaymentKeyType = "phone"
	PaymentKeyEmail  PaymentKeyType = "email"
	PaymentKeyTaxID  PaymentKeyType = "tax_id"
	PaymentKeyRandom PaymentKeyType = "random"
)

func (k PaymentKeyType) IsValid() bool {
	switch k {
	case PaymentKeyPhone, PaymentKeyEmail, PaymentKeyTaxID, PaymentKeyRandom:
		return true
	}
	return false
}

// HasPaymentKey reports whether both the key value and its type are configured.
func (e Employee) HasPaymentKey() bool {
	return e.PaymentKey != nil && *e.PaymentKey != "" && e.PaymentKeyType != nil && *e.PaymentKeyType != ""
}
