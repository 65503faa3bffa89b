package payment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBatchNotFound      = errors.New("payment batch not found")
	ErrGatewayFailure     = errors.New("payment gateway call failed")
	ErrDispatchValidation = errors.New("payroll lines are not ready for bank dispatch")
	ErrLineAlreadyLinked  = errors.New("payroll line was linked to another batch item concurrently")
	ErrDispatchInProgress = errors.New("a bank dispatch is already running for this payroll run")
	ErrItemCountMismatch  = errors.New("stored batch items do not match submitted transfers")
	ErrBatchNotRecorded   = errors.New("bank accepted a batch that could not be recorded")
)

// InvalidLine names one line that failed pre-dispatch validation.
type InvalidLine struct {
	LineID       string
	EmployeeID   string
	EmployeeName string
	Reason       string
}

// ValidationFailure is returned before any gateway call when candidate lines are invalid.
type ValidationFailure struct {
	Lines []InvalidLine
}

func (e *ValidationFailure) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s (%s)", l.EmployeeName, l.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrDispatchValidation.Error(), strings.Join(parts, ", "))
}

func (e *ValidationFailure) Unwrap() error { return ErrDispatchValidation }

type DispatchStage string

const (
	StageGateway DispatchStage = "gateway"
	StageRecord  DispatchStage = "record"
)

// DispatchError reports a failure in the middle of a dispatch.
// Chunks before FailedChunk were committed and stay committed.
// With StageRecord the gateway accepted ExternalBatchID but linking it to the
// lines failed; those lines need manual reconciliation before any retry.
type DispatchError struct {
	Stage           DispatchStage
	ExternalBatchID string
	FailedChunk     int
	TotalChunks     int
	ChunksCommitted int
	LinesSent       int
	LinesPending    int
	Cause           error
}

func (e *DispatchError) Error() string {
	if e.Stage == StageRecord {
		return fmt.Sprintf("%s: batch %s (chunk %d of %d) must be reconciled manually: %v",
			ErrBatchNotRecorded.Error(), e.ExternalBatchID, e.FailedChunk, e.TotalChunks, e.Cause)
	}
	if e.PartiallySent() {
		return fmt.Sprintf("%s on chunk %d of %d: %d lines were already sent, %d remain; retry release to send the rest: %v",
			ErrGatewayFailure.Error(), e.FailedChunk, e.TotalChunks, e.LinesSent, e.LinesPending, e.Cause)
	}
	return fmt.Sprintf("%s: nothing was sent, %d lines remain: %v", ErrGatewayFailure.Error(), e.LinesPending, e.Cause)
}

// PartiallySent reports whether any transfer reached the bank before the failure.
func (e *DispatchError) PartiallySent() bool {
	return e.ChunksCommitted > 0 || e.Stage == StageRecord
}

func (e *DispatchError) Unwrap() []error {
	if e.Stage == StageRecord {
		return []error{ErrBatchNotRecorded, e.Cause}
	}
	return []error{ErrGatewayFailure, e.Cause}
}
