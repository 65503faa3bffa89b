package bankaccount

import "context"

type BankAccountRepository interface {
	GetByID(ctx context.Context, id string, companyID string) (BankAccount, error)
}
