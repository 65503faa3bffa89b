package response

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/bankaccount"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Dispatch errors carry progress details
	var dispatchErr *payment.DispatchError
	if errors.As(err, &dispatchErr) {
		BadGateway(w, err.Error(), map[string]string{
			"stage":             string(dispatchErr.Stage),
			"partial":           strconv.FormatBool(dispatchErr.PartiallySent()),
			"failed_chunk":      strconv.Itoa(dispatchErr.FailedChunk),
			"total_chunks":      strconv.Itoa(dispatchErr.TotalChunks),
			"lines_sent":        strconv.Itoa(dispatchErr.LinesSent),
			"lines_pending":     strconv.Itoa(dispatchErr.LinesPending),
			"external_batch_id": dispatchErr.ExternalBatchID,
		})
		return
	}

	var validationFailure *payment.ValidationFailure
	if errors.As(err, &validationFailure) {
		details := make(map[string]string, len(validationFailure.Lines))
		for _, l := range validationFailure.Lines {
			details[l.LineID] = l.EmployeeName + ": " + l.Reason
		}
		UnprocessableEntity(w, "DISPATCH_VALIDATION_FAILED", payment.ErrDispatchValidation.Error(), details)
		return
	}

	switch {
	// Not found
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrLineNotFound):
		NotFound(w, "Payroll line not found")
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, bankaccount.ErrBankAccountNotFound):
		NotFound(w, "Bank account not found")

	// Conflicts
	case errors.Is(err, payroll.ErrDuplicatePeriod),
		errors.Is(err, payroll.ErrEmployeeAlreadyInRun),
		errors.Is(err, payment.ErrLineAlreadyLinked),
		errors.Is(err, payment.ErrDispatchInProgress):
		Conflict(w, err.Error())

	// State preconditions
	case errors.Is(err, payroll.ErrInvalidRunStatus),
		errors.Is(err, payroll.ErrRunClosedForEdits),
		errors.Is(err, payroll.ErrRunHasDispatchedLines),
		errors.Is(err, payroll.ErrLineAlreadyDispatched),
		errors.Is(err, payroll.ErrLinesNotDispatched):
		Conflict(w, err.Error())

	// Input preconditions
	case errors.Is(err, payroll.ErrMissingBankAccount),
		errors.Is(err, payroll.ErrNoActiveEmployees),
		errors.Is(err, employee.ErrEmployeeInactive),
		errors.Is(err, bankaccount.ErrBankAccountInactive),
		errors.Is(err, payment.ErrDispatchValidation):
		BadRequest(w, err.Error(), nil)

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
