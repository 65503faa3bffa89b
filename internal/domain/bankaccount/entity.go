package bankaccount

import "time"

// BankAccount is a company account that payroll transfers are debited from.
type BankAccount struct {
	ID            string
	CompanyID     string
	Name          string
	BankCode      string
	Agency        string
	AccountNumber string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
