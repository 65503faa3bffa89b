package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/bankaccount"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/go-chi/jwtauth/v5"
)

const dateLayout = "2006-01-02"

type PayrollServiceImpl struct {
	logger          *slog.Logger
	clock           payroll.Clock
	tx              database.Transactor
	runRepo         payroll.PayrollRunRepository
	lineRepo        payroll.PayrollLineRepository
	employeeRepo    employee.EmployeeRepository
	bankAccountRepo bankaccount.BankAccountRepository
	dispatcher      payment.Dispatcher
	lease           payment.Lease
}

func NewPayrollService(
	logger *slog.Logger,
	clock payroll.Clock,
	tx database.Transactor,
	runRepo payroll.PayrollRunRepository,
	lineRepo payroll.PayrollLineRepository,
	employeeRepo employee.EmployeeRepository,
	bankAccountRepo bankaccount.BankAccountRepository,
	dispatcher payment.Dispatcher,
	lease payment.Lease,
) payroll.PayrollService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = payroll.SystemClock{}
	}
	return &PayrollServiceImpl{
		logger:          logger,
		clock:           clock,
		tx:              tx,
		runRepo:         runRepo,
		lineRepo:        lineRepo,
		employeeRepo:    employeeRepo,
		bankAccountRepo: bankAccountRepo,
		dispatcher:      dispatcher,
		lease:           lease,
	}
}

// Helper to get company_id and user_id from JWT context
func getClaimsFromContext(ctx context.Context) (companyID, userID string, err error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		return "", "", fmt.Errorf("company_id claim is missing or invalid")
	}

	userID, _ = claims["user_id"].(string)

	return companyID, userID, nil
}

func statusError(base error, run payroll.PayrollRun) error {
	return fmt.Errorf("%w: run is %s", base, run.Status)
}

// ========== RUNS ==========

func (s *PayrollServiceImpl) CreateRun(ctx context.Context, req payroll.CreateRunRequest) (payroll.RunDetailResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunDetailResponse{}, err
	}

	companyID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	employees, err := s.employeeRepo.GetActiveByCompanyID(ctx, companyID)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}
	if len(employees) == 0 {
		return payroll.RunDetailResponse{}, payroll.ErrNoActiveEmployees
	}

	start, end := req.Period()

	var run payroll.PayrollRun
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err = s.runRepo.CreateRun(ctx, payroll.PayrollRun{
			CompanyID:   companyID,
			PeriodMonth: req.PeriodMonth,
			PeriodYear:  req.PeriodYear,
			Fortnight:   req.Fortnight,
			PeriodStart: start,
			PeriodEnd:   end,
			Status:      payroll.RunStatusDraft,
			CreatedBy:   userID,
			Notes:       req.Notes,
		})
		if err != nil {
			return err
		}

		lines := make([]payroll.PayrollLine, 0, len(employees))
		for _, emp := range employees {
			lines = append(lines, payroll.NewLine(run.ID, emp))
		}
		if _, err := s.lineRepo.CreateLines(ctx, lines); err != nil {
			return err
		}

		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll run created",
		"run_id", run.ID, "company_id", companyID, "period", fmt.Sprintf("%02d/%d Q%d", run.PeriodMonth, run.PeriodYear, run.Fortnight),
		"lines", run.LineCount)

	return s.detail(ctx, run)
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, filter payroll.RunFilter) (payroll.ListRunResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListRunResponse{}, err
	}
	filter.Normalize()

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ListRunResponse{}, err
	}

	runs, total, err := s.runRepo.ListRuns(ctx, companyID, filter)
	if err != nil {
		return payroll.ListRunResponse{}, err
	}

	data := make([]payroll.RunResponse, 0, len(runs))
	for _, r := range runs {
		data = append(data, mapToRunResponse(r))
	}

	return payroll.ListRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) GetRun(ctx context.Context, id string) (payroll.RunDetailResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	run, err := s.runRepo.GetRunByID(ctx, id, companyID)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	return s.detail(ctx, run)
}

func (s *PayrollServiceImpl) DeleteRun(ctx context.Context, id string) error {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err := s.runRepo.GetRunByIDForUpdate(ctx, id, companyID)
		if err != nil {
			return err
		}
		if run.Status != payroll.RunStatusDraft {
			return statusError(payroll.ErrInvalidRunStatus, run)
		}

		if err := s.lineRepo.DeleteLinesByRun(ctx, run.ID); err != nil {
			return err
		}
		return s.runRepo.DeleteRun(ctx, run.ID, companyID)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "payroll run deleted", "run_id", id, "company_id", companyID)
	return nil
}

// ========== LINES ==========

func (s *PayrollServiceImpl) AddEmployees(ctx context.Context, req payroll.AddEmployeesRequest) (payroll.RunDetailResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunDetailResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	var run payroll.PayrollRun
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err = s.runRepo.GetRunByIDForUpdate(ctx, req.RunID, companyID)
		if err != nil {
			return err
		}
		if !run.Status.AllowsMembershipChanges() {
			return statusError(payroll.ErrRunClosedForEdits, run)
		}

		employees, err := s.employeeRepo.GetByIDs(ctx, req.EmployeeIDs, companyID)
		if err != nil {
			return err
		}
		byID := make(map[string]employee.Employee, len(employees))
		for _, e := range employees {
			byID[e.ID] = e
		}

		existing, err := s.lineRepo.ListLinesByRun(ctx, run.ID)
		if err != nil {
			return err
		}
		inRun := make(map[string]bool, len(existing))
		for _, l := range existing {
			inRun[l.EmployeeID] = true
		}

		lines := make([]payroll.PayrollLine, 0, len(req.EmployeeIDs))
		for _, id := range req.EmployeeIDs {
			emp, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: %s", employee.ErrEmployeeNotFound, id)
			}
			if !emp.Active {
				return fmt.Errorf("%w: %s", employee.ErrEmployeeInactive, emp.FullName)
			}
			if inRun[id] {
				return fmt.Errorf("%w: %s", payroll.ErrEmployeeAlreadyInRun, emp.FullName)
			}

			line := payroll.NewLine(run.ID, emp)
			if run.Status == payroll.RunStatusPendingRelease && run.PaymentMethod != nil {
				line.PaymentMethod = *run.PaymentMethod
				line.PaymentDate = run.PaymentDate
			}
			lines = append(lines, line)
		}

		if _, err := s.lineRepo.CreateLines(ctx, lines); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	s.logger.InfoContext(ctx, "employees added to payroll run", "run_id", run.ID, "added", len(req.EmployeeIDs))
	return s.detail(ctx, run)
}

func (s *PayrollServiceImpl) RemoveEmployee(ctx context.Context, runID string, lineID string) (payroll.RunDetailResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	var run payroll.PayrollRun
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err = s.runRepo.GetRunByIDForUpdate(ctx, runID, companyID)
		if err != nil {
			return err
		}
		if !run.Status.AllowsMembershipChanges() {
			return statusError(payroll.ErrRunClosedForEdits, run)
		}

		line, err := s.lineRepo.GetLineByID(ctx, lineID, run.ID)
		if err != nil {
			return err
		}
		if line.IsDispatched() {
			return fmt.Errorf("%w: %s", payroll.ErrLineAlreadyDispatched, line.EmployeeName)
		}

		if err := s.lineRepo.DeleteLine(ctx, line.ID, run.ID); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	return s.detail(ctx, run)
}

func (s *PayrollServiceImpl) UpdateLine(ctx context.Context, req payroll.UpdateLineRequest) (payroll.LineResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.LineResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.LineResponse{}, err
	}

	var line payroll.PayrollLine
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err := s.runRepo.GetRunByIDForUpdate(ctx, req.RunID, companyID)
		if err != nil {
			return err
		}
		if !run.Status.AllowsLineEdits() {
			return statusError(payroll.ErrRunClosedForEdits, run)
		}

		line, err = s.lineRepo.GetLineByID(ctx, req.LineID, run.ID)
		if err != nil {
			return err
		}
		if line.IsDispatched() {
			return fmt.Errorf("%w: %s", payroll.ErrLineAlreadyDispatched, line.EmployeeName)
		}

		if req.DaysWorked != nil {
			line.DaysWorked = *req.DaysWorked
		}
		if req.Absences != nil {
			line.Absences = *req.Absences
		}
		if req.OvertimeHours != nil {
			line.OvertimeHours = *req.OvertimeHours
		}
		if req.OvertimeRate != nil {
			line.OvertimeRate = *req.OvertimeRate
		}
		if req.Allowance != nil {
			line.Allowance = *req.Allowance
		}
		if req.ExtraDiscounts != nil {
			line.ExtraDiscounts = *req.ExtraDiscounts
		}
		if req.Advance != nil {
			line.Advance = *req.Advance
		}
		if req.Notes != nil {
			line.Notes = req.Notes
		}
		line.Recalculate()

		if err := s.lineRepo.UpdateLine(ctx, line); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.LineResponse{}, err
	}

	return mapToLineResponse(line), nil
}

func (s *PayrollServiceImpl) MarkLinePayment(ctx context.Context, req payroll.MarkPaymentRequest) (payroll.LineResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.LineResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.LineResponse{}, err
	}

	var line payroll.PayrollLine
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err := s.runRepo.GetRunByIDForUpdate(ctx, req.RunID, companyID)
		if err != nil {
			return err
		}
		if run.Status == payroll.RunStatusCancelled {
			return statusError(payroll.ErrRunClosedForEdits, run)
		}

		line, err = s.lineRepo.GetLineByID(ctx, req.LineID, run.ID)
		if err != nil {
			return err
		}

		line.ApplyPaymentStatus(payroll.ResolvePaymentStatus(req.Change(), s.clock.Now()))
		if err := s.lineRepo.UpdateLine(ctx, line); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.LineResponse{}, err
	}

	s.logger.InfoContext(ctx, "line payment updated",
		"run_id", req.RunID, "line_id", line.ID, "status", line.PaymentStatus, "paid", line.Paid)
	return mapToLineResponse(line), nil
}

// ========== TRANSITIONS ==========

func (s *PayrollServiceImpl) Finalize(ctx context.Context, req payroll.FinalizeRequest) (payroll.RunDetailResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunDetailResponse{}, err
	}

	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	method := payroll.PaymentMethod(req.PaymentMethod)
	paymentDate := s.today()
	if req.PaymentDate != nil {
		paymentDate, _ = time.Parse(dateLayout, *req.PaymentDate)
	}

	var run payroll.PayrollRun
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err = s.runRepo.GetRunByIDForUpdate(ctx, req.RunID, companyID)
		if err != nil {
			return err
		}
		if run.Status != payroll.RunStatusDraft {
			return statusError(payroll.ErrInvalidRunStatus, run)
		}

		var accountID *string
		if method == payroll.PaymentMethodBankBatch {
			if req.BankAccountID == nil || *req.BankAccountID == "" {
				return payroll.ErrMissingBankAccount
			}
			account, err := s.bankAccountRepo.GetByID(ctx, *req.BankAccountID, companyID)
			if err != nil {
				return err
			}
			if !account.Active {
				return fmt.Errorf("%w: %s", bankaccount.ErrBankAccountInactive, account.Name)
			}
			accountID = &account.ID
		}

		lines, err := s.lineRepo.ListLinesByRun(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if l.Paid {
				continue
			}
			l.PaymentMethod = method
			l.PaymentDate = &paymentDate
			if err := s.lineRepo.UpdateLine(ctx, l); err != nil {
				return err
			}
		}

		run.PaymentMethod = &method
		run.PaymentDate = &paymentDate
		run.BankAccountID = accountID
		run.Status = payroll.RunStatusPendingRelease
		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll run finalized",
		"run_id", run.ID, "payment_method", method, "payment_date", paymentDate.Format(dateLayout))
	return s.detail(ctx, run)
}

func (s *PayrollServiceImpl) Reopen(ctx context.Context, id string) (payroll.RunDetailResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	var run payroll.PayrollRun
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err = s.runRepo.GetRunByIDForUpdate(ctx, id, companyID)
		if err != nil {
			return err
		}
		if run.Status != payroll.RunStatusPendingRelease {
			return statusError(payroll.ErrInvalidRunStatus, run)
		}

		lines, err := s.lineRepo.ListLinesByRun(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if l.IsDispatched() {
				return payroll.ErrRunHasDispatchedLines
			}
		}
		for _, l := range lines {
			if l.Paid {
				continue
			}
			l.PaymentMethod = payroll.DefaultPaymentMethod
			l.PaymentDate = nil
			if err := s.lineRepo.UpdateLine(ctx, l); err != nil {
				return err
			}
		}

		run.PaymentMethod = nil
		run.PaymentDate = nil
		run.BankAccountID = nil
		run.Status = payroll.RunStatusDraft
		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll run reopened", "run_id", run.ID)
	return s.detail(ctx, run)
}

// Release pays the run. Bank batch runs are dispatched to the gateway first;
// a dispatch that fails after sending some transfers leaves the run in
// processing so Release can be called again to send the rest.
func (s *PayrollServiceImpl) Release(ctx context.Context, id string) (payroll.RunDetailResponse, error) {
	companyID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	run, err := s.runRepo.GetRunByID(ctx, id, companyID)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}
	if !run.Status.CanRelease() {
		return payroll.RunDetailResponse{}, statusError(payroll.ErrInvalidRunStatus, run)
	}

	if run.UsesBankBatch() {
		if err := s.dispatch(ctx, run); err != nil {
			return payroll.RunDetailResponse{}, err
		}
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err = s.runRepo.GetRunByIDForUpdate(ctx, id, companyID)
		if err != nil {
			return err
		}
		if !run.Status.CanRelease() {
			return statusError(payroll.ErrInvalidRunStatus, run)
		}

		now := s.clock.Now()
		paidDate := now
		if run.PaymentDate != nil {
			paidDate = *run.PaymentDate
		}

		lines, err := s.lineRepo.ListLinesByRun(ctx, run.ID)
		if err != nil {
			return err
		}

		// Bank batch lines carry the status the dispatcher or a payment
		// confirmation gave them. One without a batch item was never sent.
		var undispatched []string
		for _, l := range lines {
			if !l.Paid && l.PaymentMethod == payroll.PaymentMethodBankBatch && !l.IsDispatched() {
				undispatched = append(undispatched, l.EmployeeName)
			}
		}
		if len(undispatched) > 0 {
			return fmt.Errorf("%w: %s", payroll.ErrLinesNotDispatched, strings.Join(undispatched, ", "))
		}

		for _, l := range lines {
			if l.Paid || l.PaymentMethod == payroll.PaymentMethodBankBatch {
				continue
			}
			d := paidDate
			l.PaymentStatus = payroll.PaymentStatusPaid
			l.Paid = true
			l.PaidDate = &d
			if err := s.lineRepo.UpdateLine(ctx, l); err != nil {
				return err
			}
		}

		run.Status = payroll.RunStatusClosed
		run.LiberatedBy = &userID
		run.LiberatedAt = &now
		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll run released", "run_id", run.ID, "liberated_by", userID, "net", run.TotalNet.String())
	return s.detail(ctx, run)
}

// dispatch sends the run's bank batch lines under the run's dispatch lease.
func (s *PayrollServiceImpl) dispatch(ctx context.Context, run payroll.PayrollRun) error {
	if run.BankAccountID == nil {
		return payroll.ErrMissingBankAccount
	}

	release, err := s.lease.Acquire(ctx, run.ID)
	if err != nil {
		return err
	}
	defer release()

	paymentDate := s.clock.Now()
	if run.PaymentDate != nil {
		paymentDate = *run.PaymentDate
	}

	result, err := s.dispatcher.Dispatch(ctx, payment.DispatchRequest{
		CompanyID:       run.CompanyID,
		RunID:           run.ID,
		OriginAccountID: *run.BankAccountID,
		PaymentDate:     paymentDate,
	})
	if err != nil {
		var de *payment.DispatchError
		if errors.As(err, &de) && de.PartiallySent() {
			if markErr := s.markProcessing(ctx, run); markErr != nil {
				s.logger.ErrorContext(ctx, "failed to mark partially dispatched run as processing",
					"run_id", run.ID, "error", markErr)
			}
		}
		return err
	}

	s.logger.InfoContext(ctx, "payroll run dispatched",
		"run_id", run.ID, "no_op", result.NoOp, "batches", len(result.Batches),
		"lines_sent", result.LinesSent, "resumed", result.ResumedAfterPartial)

	return s.markProcessing(ctx, run)
}

func (s *PayrollServiceImpl) markProcessing(ctx context.Context, run payroll.PayrollRun) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.runRepo.GetRunByIDForUpdate(ctx, run.ID, run.CompanyID)
		if err != nil {
			return err
		}
		if current.Status == payroll.RunStatusPendingRelease {
			current.Status = payroll.RunStatusProcessing
		}
		return s.recomputeTotals(ctx, &current)
	})
}

// Reprocess refreshes every undispatched line from the current employee record.
func (s *PayrollServiceImpl) Reprocess(ctx context.Context, id string) (payroll.RunDetailResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	var run payroll.PayrollRun
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err = s.runRepo.GetRunByIDForUpdate(ctx, id, companyID)
		if err != nil {
			return err
		}
		if !run.Status.AllowsLineEdits() {
			return statusError(payroll.ErrRunClosedForEdits, run)
		}

		lines, err := s.lineRepo.ListLinesByRun(ctx, run.ID)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.EmployeeID)
		}
		employees, err := s.employeeRepo.GetByIDs(ctx, ids, companyID)
		if err != nil {
			return err
		}
		byID := make(map[string]employee.Employee, len(employees))
		for _, e := range employees {
			byID[e.ID] = e
		}

		for _, l := range lines {
			if l.IsDispatched() {
				continue
			}
			if emp, ok := byID[l.EmployeeID]; ok {
				l.Snapshot(emp)
			} else {
				s.logger.WarnContext(ctx, "employee missing during reprocess, keeping snapshot",
					"run_id", run.ID, "line_id", l.ID, "employee_id", l.EmployeeID)
			}
			l.Recalculate()
			if err := s.lineRepo.UpdateLine(ctx, l); err != nil {
				return err
			}
		}

		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll run reprocessed", "run_id", run.ID)
	return s.detail(ctx, run)
}

func (s *PayrollServiceImpl) Cancel(ctx context.Context, id string) (payroll.RunDetailResponse, error) {
	companyID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	var run payroll.PayrollRun
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err = s.runRepo.GetRunByIDForUpdate(ctx, id, companyID)
		if err != nil {
			return err
		}
		if run.Status != payroll.RunStatusDraft && run.Status != payroll.RunStatusPendingRelease {
			return statusError(payroll.ErrInvalidRunStatus, run)
		}

		lines, err := s.lineRepo.ListLinesByRun(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if l.IsDispatched() {
				return payroll.ErrRunHasDispatchedLines
			}
		}
		for _, l := range lines {
			if l.Paid {
				continue
			}
			l.PaymentStatus = payroll.PaymentStatusCancelled
			if err := s.lineRepo.UpdateLine(ctx, l); err != nil {
				return err
			}
		}

		run.Status = payroll.RunStatusCancelled
		return s.recomputeTotals(ctx, &run)
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll run cancelled", "run_id", run.ID)
	return s.detail(ctx, run)
}

// ========== HELPERS ==========

// recomputeTotals reloads the run's lines, refreshes the aggregates and saves the run.
func (s *PayrollServiceImpl) recomputeTotals(ctx context.Context, run *payroll.PayrollRun) error {
	lines, err := s.lineRepo.ListLinesByRun(ctx, run.ID)
	if err != nil {
		return err
	}
	run.ApplyTotals(payroll.ComputeTotals(lines))
	return s.runRepo.UpdateRun(ctx, *run)
}

func (s *PayrollServiceImpl) detail(ctx context.Context, run payroll.PayrollRun) (payroll.RunDetailResponse, error) {
	lines, err := s.lineRepo.ListLinesByRun(ctx, run.ID)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	resp := payroll.RunDetailResponse{
		RunResponse: mapToRunResponse(run),
		Lines:       make([]payroll.LineResponse, 0, len(lines)),
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, mapToLineResponse(l))
	}
	return resp, nil
}

func (s *PayrollServiceImpl) today() time.Time {
	now := s.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	str := t.Format(dateLayout)
	return &str
}

func mapToRunResponse(r payroll.PayrollRun) payroll.RunResponse {
	var method *string
	if r.PaymentMethod != nil {
		m := string(*r.PaymentMethod)
		method = &m
	}

	var liberatedAt *string
	if r.LiberatedAt != nil {
		str := r.LiberatedAt.Format(time.RFC3339)
		liberatedAt = &str
	}

	return payroll.RunResponse{
		ID:            r.ID,
		PeriodMonth:   r.PeriodMonth,
		PeriodYear:    r.PeriodYear,
		Fortnight:     r.Fortnight,
		PeriodStart:   r.PeriodStart.Format(dateLayout),
		PeriodEnd:     r.PeriodEnd.Format(dateLayout),
		Status:        string(r.Status),
		PaymentMethod: method,
		PaymentDate:   formatDate(r.PaymentDate),
		BankAccountID: r.BankAccountID,
		TotalGross:    r.TotalGross,
		TotalNet:      r.TotalNet,
		TotalPaid:     r.TotalPaid,
		TotalPending:  r.TotalPending,
		LineCount:     r.LineCount,
		CreatedBy:     r.CreatedBy,
		LiberatedBy:   r.LiberatedBy,
		LiberatedAt:   liberatedAt,
		Notes:         r.Notes,
	}
}

func mapToLineResponse(l payroll.PayrollLine) payroll.LineResponse {
	return payroll.LineResponse{
		ID:                 l.ID,
		RunID:              l.RunID,
		EmployeeID:         l.EmployeeID,
		EmployeeName:       l.EmployeeName,
		ContractType:       string(l.ContractType),
		ReferenceSalary:    l.ReferenceSalary,
		ReferenceDailyRate: l.ReferenceDailyRate,
		DaysWorked:         l.DaysWorked,
		Absences:           l.Absences,
		OvertimeHours:      l.OvertimeHours,
		OvertimeRate:       l.OvertimeRate,
		Allowance:          l.Allowance,
		ExtraDiscounts:     l.ExtraDiscounts,
		Advance:            l.Advance,
		BaseAmount:         l.BaseAmount,
		OvertimeAmount:     l.OvertimeAmount,
		GrossAmount:        l.GrossAmount,
		NetAmount:          l.NetAmount,
		PaymentMethod:      string(l.PaymentMethod),
		PaymentStatus:      string(l.PaymentStatus),
		PaymentDate:        formatDate(l.PaymentDate),
		Paid:               l.Paid,
		PaidDate:           formatDate(l.PaidDate),
		BatchItemID:        l.BatchItemID,
		Notes:              l.Notes,
	}
}
