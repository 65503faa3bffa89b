// Package memory keeps every payroll aggregate in process memory. It backs
// unit tests and local runs without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/bankaccount"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
)

type txKey struct{}

type tables struct {
	runs      map[string]payroll.PayrollRun
	lines     map[string]payroll.PayrollLine
	employees map[string]employee.Employee
	accounts  map[string]bankaccount.BankAccount
	batches   map[string]payment.PaymentBatch
	items     map[string]payment.PaymentBatchItem
}

func (t tables) clone() tables {
	return tables{
		runs:      maps.Clone(t.runs),
		lines:     maps.Clone(t.lines),
		employees: maps.Clone(t.employees),
		accounts:  maps.Clone(t.accounts),
		batches:   maps.Clone(t.batches),
		items:     maps.Clone(t.items),
	}
}

// Store implements the payroll, payment, employee and bank account
// repositories plus database.Transactor. A failed transaction restores the
// state it started from.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data tables
	seq  int
	now  func() time.Time

	// BeforeLink, when set, runs before a line is linked to a batch item.
	// A non-nil error aborts the link.
	BeforeLink func(lineID string) error
}

func NewStore() *Store {
	return &Store{
		data: tables{
			runs:      make(map[string]payroll.PayrollRun),
			lines:     make(map[string]payroll.PayrollLine),
			employees: make(map[string]employee.Employee),
			accounts:  make(map[string]bankaccount.BankAccount),
			batches:   make(map[string]payment.PaymentBatch),
			items:     make(map[string]payment.PaymentBatchItem),
		},
		now: time.Now,
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%06d", prefix, s.seq)
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// AddEmployee stores e, assigning an id when it has none.
func (s *Store) AddEmployee(e employee.Employee) employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.nextID("emp")
	}
	now := s.now()
	e.CreatedAt, e.UpdatedAt = now, now
	s.data.employees[e.ID] = e
	return e
}

// AddBankAccount stores a, assigning an id when it has none.
func (s *Store) AddBankAccount(a bankaccount.BankAccount) bankaccount.BankAccount {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.nextID("acc")
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.data.accounts[a.ID] = a
	return a
}

var (
	_ database.Transactor               = (*Store)(nil)
	_ payroll.PayrollRunRepository      = (*Store)(nil)
	_ payroll.PayrollLineRepository     = (*Store)(nil)
	_ employee.EmployeeRepository       = (*Store)(nil)
	_ payment.PaymentBatchRepository    = (*Store)(nil)
	_ bankaccount.BankAccountRepository = bankAccounts{}
)
