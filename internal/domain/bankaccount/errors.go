package bankaccount

import "errors"

var (
	ErrBankAccountNotFound = errors.New("bank account not found")
	ErrBankAccountInactive = errors.New("bank account is not active")
)
