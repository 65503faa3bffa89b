package memory

import (
	"context"
	"sort"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/bankaccount"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
)

func (s *Store) GetByID(ctx context.Context, id string, companyID string) (employee.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data.employees[id]
	if !ok || e.CompanyID != companyID {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (s *Store) GetByIDs(ctx context.Context, ids []string, companyID string) ([]employee.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []employee.Employee
	for _, id := range ids {
		if e, ok := s.data.employees[id]; ok && e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	sortEmployees(out)
	return out, nil
}

func (s *Store) GetActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []employee.Employee
	for _, e := range s.data.employees {
		if e.CompanyID == companyID && e.Active {
			out = append(out, e)
		}
	}
	sortEmployees(out)
	return out, nil
}

func sortEmployees(es []employee.Employee) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].FullName != es[j].FullName {
			return es[i].FullName < es[j].FullName
		}
		return es[i].ID < es[j].ID
	})
}

// BankAccounts exposes the store as a bank account repository. Its GetByID
// would otherwise clash with the employee lookup.
func (s *Store) BankAccounts() bankaccount.BankAccountRepository {
	return bankAccounts{s}
}

type bankAccounts struct{ s *Store }

func (b bankAccounts) GetByID(ctx context.Context, id string, companyID string) (bankaccount.BankAccount, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	a, ok := b.s.data.accounts[id]
	if !ok || a.CompanyID != companyID {
		return bankaccount.BankAccount{}, bankaccount.ErrBankAccountNotFound
	}
	return a, nil
}
