package payroll

import "errors"

var (
	ErrRunNotFound           = errors.New("payroll run not found")
	ErrLineNotFound          = errors.New("payroll line not found")
	ErrDuplicatePeriod       = errors.New("a payroll run already exists for this period")
	ErrNoActiveEmployees     = errors.New("company has no active employees")
	ErrEmployeeAlreadyInRun  = errors.New("employee is already part of this payroll run")
	ErrRunClosedForEdits     = errors.New("payroll run no longer accepts edits")
	ErrInvalidRunStatus      = errors.New("operation not allowed in the current run status")
	ErrMissingBankAccount    = errors.New("bank account is required for bank batch payments")
	ErrRunHasDispatchedLines = errors.New("payroll run has lines already sent to the bank")
	ErrLineAlreadyDispatched = errors.New("payroll line was already sent to the bank")
	ErrLinesNotDispatched    = errors.New("payroll run has bank batch lines that were not sent, release again")
)
