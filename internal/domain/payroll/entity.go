package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/shopspring/decimal"
)

// RunStatus enum
type RunStatus string

const (
	RunStatusDraft          RunStatus = "draft"
	RunStatusPendingRelease RunStatus = "pending_release"
	RunStatusProcessing     RunStatus = "processing"
	RunStatusClosed         RunStatus = "closed"
	RunStatusCancelled      RunStatus = "cancelled"
)

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusDraft, RunStatusPendingRelease, RunStatusProcessing, RunStatusClosed, RunStatusCancelled:
		return true
	}
	return false
}

// AllowsMembershipChanges reports whether employees may be added to or removed from the run.
func (s RunStatus) AllowsMembershipChanges() bool {
	return s == RunStatusDraft || s == RunStatusPendingRelease
}

// AllowsLineEdits reports whether line values may still be changed.
func (s RunStatus) AllowsLineEdits() bool {
	return s != RunStatusClosed && s != RunStatusCancelled
}

// CanRelease reports whether Release may run. Processing is accepted so a
// partially dispatched release can be retried.
func (s RunStatus) CanRelease() bool {
	return s == RunStatusPendingRelease || s == RunStatusProcessing
}

// PaymentMethod enum
type PaymentMethod string

const (
	PaymentMethodBankBatch      PaymentMethod = "bank_batch"
	PaymentMethodManualTransfer PaymentMethod = "manual_transfer"
	PaymentMethodCash           PaymentMethod = "cash"

	// DefaultPaymentMethod is stamped on new lines and restored on reopen.
	DefaultPaymentMethod = PaymentMethodManualTransfer
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankBatch, PaymentMethodManualTransfer, PaymentMethodCash:
		return true
	}
	return false
}

// PaymentStatus enum for a single line
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSent       PaymentStatus = "sent"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusAccepted   PaymentStatus = "accepted"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusRejected   PaymentStatus = "rejected"
	PaymentStatusError      PaymentStatus = "error"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSent, PaymentStatusProcessing, PaymentStatusAccepted,
		PaymentStatusPaid, PaymentStatusRejected, PaymentStatusError, PaymentStatusCancelled:
		return true
	}
	return false
}

// PayrollRun - one fortnight payroll for a company
type PayrollRun struct {
	ID            string
	CompanyID     string
	PeriodMonth   int
	PeriodYear    int
	Fortnight     int
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Status        RunStatus
	PaymentMethod *PaymentMethod
	PaymentDate   *time.Time
	BankAccountID *string
	TotalGross    decimal.Decimal
	TotalNet      decimal.Decimal
	TotalPaid     decimal.Decimal
	TotalPending  decimal.Decimal
	LineCount     int
	CreatedBy     string
	LiberatedBy   *string
	LiberatedAt   *time.Time
	Notes         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UsesBankBatch reports whether the run was finalized for gateway dispatch.
func (r PayrollRun) UsesBankBatch() bool {
	return r.PaymentMethod != nil && *r.PaymentMethod == PaymentMethodBankBatch
}

// ApplyTotals copies recomputed aggregates onto the run.
func (r *PayrollRun) ApplyTotals(t RunTotals) {
	r.TotalGross = t.Gross
	r.TotalNet = t.Net
	r.TotalPaid = t.Paid
	r.TotalPending = t.Pending
	r.LineCount = t.LineCount
}

// PayrollLine - one employee's payable entry within a run
type PayrollLine struct {
	ID                 string
	RunID              string
	CompanyID          string
	EmployeeID         string
	EmployeeName       string
	ContractType       employee.ContractType
	ReferenceSalary    decimal.Decimal
	ReferenceDailyRate decimal.Decimal
	DaysWorked         decimal.Decimal
	Absences           int
	OvertimeHours      decimal.Decimal
	OvertimeRate       decimal.Decimal
	Allowance          decimal.Decimal
	ExtraDiscounts     decimal.Decimal
	Advance            decimal.Decimal
	BaseAmount         decimal.Decimal
	OvertimeAmount     decimal.Decimal
	GrossAmount        decimal.Decimal
	NetAmount          decimal.Decimal
	PaymentMethod      PaymentMethod
	PaymentStatus      PaymentStatus
	PaymentDate        *time.Time
	Paid               bool
	PaidDate           *time.Time
	BatchItemID        *string
	Notes              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewLine builds a line for emp with zero worked time, snapshotting the contract values.
func NewLine(runID string, emp employee.Employee) PayrollLine {
	line := PayrollLine{
		RunID:          runID,
		CompanyID:      emp.CompanyID,
		EmployeeID:     emp.ID,
		DaysWorked:     decimal.Zero,
		OvertimeHours:  decimal.Zero,
		Allowance:      decimal.Zero,
		ExtraDiscounts: decimal.Zero,
		Advance:        decimal.Zero,
		PaymentMethod:  DefaultPaymentMethod,
		PaymentStatus:  PaymentStatusPending,
	}
	line.Snapshot(emp)
	line.Recalculate()
	return line
}

// IsDispatched reports whether an external batch item already exists for the line.
func (l PayrollLine) IsDispatched() bool {
	return l.BatchItemID != nil
}

// Snapshot freezes the employee's contract values onto the line.
func (l *PayrollLine) Snapshot(emp employee.Employee) {
	l.EmployeeName = emp.FullName
	l.ContractType = emp.ContractType
	l.ReferenceSalary = emp.Salary
	l.ReferenceDailyRate = emp.DailyRate
	l.OvertimeRate = emp.OvertimeRate
}

// Recalculate recomputes amounts from the line's stored inputs.
func (l *PayrollLine) Recalculate() {
	amounts := ComputeLine(LineInput{
		ContractType:       l.ContractType,
		ReferenceSalary:    l.ReferenceSalary,
		ReferenceDailyRate: l.ReferenceDailyRate,
		DaysWorked:         l.DaysWorked,
		OvertimeHours:      l.OvertimeHours,
		OvertimeRate:       l.OvertimeRate,
		Allowance:          l.Allowance,
		ExtraDiscounts:     l.ExtraDiscounts,
		Advance:            l.Advance,
	})
	l.BaseAmount = amounts.Base
	l.OvertimeAmount = amounts.Overtime
	l.GrossAmount = amounts.Gross
	l.NetAmount = amounts.Net
}

// ApplyPaymentStatus writes a resolved status tuple onto the line.
func (l *PayrollLine) ApplyPaymentStatus(u PaymentStatusUpdate) {
	if u.Status != nil {
		l.PaymentStatus = *u.Status
	}
	if u.Paid != nil {
		l.Paid = *u.Paid
	}
	if u.ClearPaidDate {
		l.PaidDate = nil
	} else if u.PaidDate != nil {
		d := *u.PaidDate
		l.PaidDate = &d
	}
}
