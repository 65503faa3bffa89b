package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/bankaccount"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/validator"
	"github.com/jackc/pgx/v5"
)

type bankAccountRepository struct {
	db *database.DB
}

func NewBankAccountRepository(db *database.DB) bankaccount.BankAccountRepository {
	return &bankAccountRepository{db: db}
}

func (r *bankAccountRepository) GetByID(ctx context.Context, id string, companyID string) (bankaccount.BankAccount, error) {
	if !validator.IsValidUUID(id) {
		return bankaccount.BankAccount{}, bankaccount.ErrBankAccountNotFound
	}

	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, company_id, name, bank_code, agency, account_number, active, created_at, updated_at
		FROM bank_accounts
		WHERE id = $1 AND company_id = $2
	`

	var b bankaccount.BankAccount
	err := q.QueryRow(ctx, query, id, companyID).Scan(
		&b.ID, &b.CompanyID, &b.Name, &b.BankCode, &b.Agency, &b.AccountNumber, &b.Active, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bankaccount.BankAccount{}, bankaccount.ErrBankAccountNotFound
		}
		return bankaccount.BankAccount{}, fmt.Errorf("failed to get bank account: %w", err)
	}

	return b, nil
}
