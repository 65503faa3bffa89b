package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ========== RUN DTOs ==========

type CreateRunRequest struct {
	PeriodMonth int     `json:"period_month"`
	PeriodYear  int     `json:"period_year"`
	Fortnight   int     `json:"fortnight"`
	PeriodStart *string `json:"period_start,omitempty"`
	PeriodEnd   *string `json:"period_end,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (r *CreateRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.PeriodMonth < 1 || r.PeriodMonth > 12 {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}
	if r.PeriodYear < 2020 {
		errs = append(errs, validator.ValidationError{Field: "period_year", Message: "must be 2020 or later"})
	}
	if r.Fortnight != 1 && r.Fortnight != 2 {
		errs = append(errs, validator.ValidationError{Field: "fortnight", Message: "must be 1 or 2"})
	}

	var start, end time.Time
	var startOK, endOK bool
	if r.PeriodStart != nil {
		if start, startOK = validator.IsValidDate(*r.PeriodStart); !startOK {
			errs = append(errs, validator.ValidationError{Field: "period_start", Message: "must be in YYYY-MM-DD format"})
		}
	}
	if r.PeriodEnd != nil {
		if end, endOK = validator.IsValidDate(*r.PeriodEnd); !endOK {
			errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must be in YYYY-MM-DD format"})
		}
	}
	if startOK && endOK && end.Before(start) {
		errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must not be before period_start"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Period returns the explicit date range, or the fortnight's default range.
// Fortnight 1 covers days 1-15, fortnight 2 covers day 16 to the end of the month.
// Call only after Validate succeeded.
func (r *CreateRunRequest) Period() (time.Time, time.Time) {
	var start, end time.Time
	if r.Fortnight == 1 {
		start = time.Date(r.PeriodYear, time.Month(r.PeriodMonth), 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(r.PeriodYear, time.Month(r.PeriodMonth), 15, 0, 0, 0, 0, time.UTC)
	} else {
		start = time.Date(r.PeriodYear, time.Month(r.PeriodMonth), 16, 0, 0, 0, 0, time.UTC)
		end = time.Date(r.PeriodYear, time.Month(r.PeriodMonth)+1, 0, 0, 0, 0, 0, time.UTC)
	}
	if r.PeriodStart != nil {
		start, _ = time.Parse(dateLayout, *r.PeriodStart)
	}
	if r.PeriodEnd != nil {
		end, _ = time.Parse(dateLayout, *r.PeriodEnd)
	}
	return start, end
}

type RunFilter struct {
	PeriodMonth *int    `json:"period_month,omitempty"`
	PeriodYear  *int    `json:"period_year,omitempty"`
	Status      *string `json:"status,omitempty"`
	Page        int     `json:"page"`
	Limit       int     `json:"limit"`
}

func (f *RunFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Status != nil && !RunStatus(*f.Status).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "invalid run status"})
	}
	if f.PeriodMonth != nil && (*f.PeriodMonth < 1 || *f.PeriodMonth > 12) {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Normalize applies paging defaults.
func (f *RunFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// ========== LINE DTOs ==========

type AddEmployeesRequest struct {
	RunID       string   `json:"-"`
	EmployeeIDs []string `json:"employee_ids"`
}

func (r *AddEmployeesRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.EmployeeIDs) == 0 {
		errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "at least one employee is required"})
	}
	seen := make(map[string]bool, len(r.EmployeeIDs))
	for _, id := range r.EmployeeIDs {
		if validator.IsEmpty(id) {
			errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "must not contain empty ids"})
			break
		}
		if seen[id] {
			errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "must not contain duplicates"})
			break
		}
		seen[id] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type UpdateLineRequest struct {
	RunID          string           `json:"-"`
	LineID         string           `json:"-"`
	DaysWorked     *decimal.Decimal `json:"days_worked,omitempty"`
	Absences       *int             `json:"absences,omitempty"`
	OvertimeHours  *decimal.Decimal `json:"overtime_hours,omitempty"`
	OvertimeRate   *decimal.Decimal `json:"overtime_rate,omitempty"`
	Allowance      *decimal.Decimal `json:"allowance,omitempty"`
	ExtraDiscounts *decimal.Decimal `json:"extra_discounts,omitempty"`
	Advance        *decimal.Decimal `json:"advance,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

func (r *UpdateLineRequest) Validate() error {
	var errs validator.ValidationErrors

	nonNegative := []struct {
		field string
		value *decimal.Decimal
	}{
		{"days_worked", r.DaysWorked},
		{"overtime_hours", r.OvertimeHours},
		{"overtime_rate", r.OvertimeRate},
		{"allowance", r.Allowance},
		{"extra_discounts", r.ExtraDiscounts},
		{"advance", r.Advance},
	}
	for _, f := range nonNegative {
		if f.value != nil && f.value.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: f.field, Message: "must be non-negative"})
		}
	}
	if r.DaysWorked != nil && r.DaysWorked.GreaterThan(decimal.NewFromInt(16)) {
		errs = append(errs, validator.ValidationError{Field: "days_worked", Message: "must not exceed 16 days in a fortnight"})
	}
	if r.Absences != nil && *r.Absences < 0 {
		errs = append(errs, validator.ValidationError{Field: "absences", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type MarkPaymentRequest struct {
	RunID    string  `json:"-"`
	LineID   string  `json:"-"`
	Status   *string `json:"status,omitempty"`
	Paid     *bool   `json:"paid,omitempty"`
	PaidDate *string `json:"paid_date,omitempty"`
}

func (r *MarkPaymentRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Status == nil && r.Paid == nil {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "status or paid is required"})
	}
	if r.Status != nil && !PaymentStatus(*r.Status).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "invalid payment status"})
	}
	if r.PaidDate != nil {
		if _, ok := validator.IsValidDate(*r.PaidDate); !ok {
			errs = append(errs, validator.ValidationError{Field: "paid_date", Message: "must be in YYYY-MM-DD format"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Change converts the request into a status resolver input. Call only after Validate succeeded.
func (r *MarkPaymentRequest) Change() PaymentStatusChange {
	var change PaymentStatusChange
	if r.Status != nil {
		status := PaymentStatus(*r.Status)
		change.Status = &status
	}
	change.Paid = r.Paid
	if r.PaidDate != nil {
		if d, err := time.Parse(dateLayout, *r.PaidDate); err == nil {
			change.PaidDate = &d
		}
	}
	return change
}

// ========== TRANSITION DTOs ==========

type FinalizeRequest struct {
	RunID         string  `json:"-"`
	PaymentMethod string  `json:"payment_method"`
	PaymentDate   *string `json:"payment_date,omitempty"`
	BankAccountID *string `json:"bank_account_id,omitempty"`
}

func (r *FinalizeRequest) Validate() error {
	var errs validator.ValidationErrors

	if !PaymentMethod(r.PaymentMethod).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "payment_method", Message: "must be one of bank_batch, manual_transfer, cash"})
	}
	if r.PaymentDate != nil {
		if _, ok := validator.IsValidDate(*r.PaymentDate); !ok {
			errs = append(errs, validator.ValidationError{Field: "payment_date", Message: "must be in YYYY-MM-DD format"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== RESPONSES ==========

type RunResponse struct {
	ID            string          `json:"id"`
	PeriodMonth   int             `json:"period_month"`
	PeriodYear    int             `json:"period_year"`
	Fortnight     int             `json:"fortnight"`
	PeriodStart   string          `json:"period_start"`
	PeriodEnd     string          `json:"period_end"`
	Status        string          `json:"status"`
	PaymentMethod *string         `json:"payment_method,omitempty"`
	PaymentDate   *string         `json:"payment_date,omitempty"`
	BankAccountID *string         `json:"bank_account_id,omitempty"`
	TotalGross    decimal.Decimal `json:"total_gross"`
	TotalNet      decimal.Decimal `json:"total_net"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalPending  decimal.Decimal `json:"total_pending"`
	LineCount     int             `json:"line_count"`
	CreatedBy     string          `json:"created_by"`
	LiberatedBy   *string         `json:"liberated_by,omitempty"`
	LiberatedAt   *string         `json:"liberated_at,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
}

type LineResponse struct {
	ID                 string          `json:"id"`
	RunID              string          `json:"run_id"`
	EmployeeID         string          `json:"employee_id"`
	EmployeeName       string          `json:"employee_name"`
	ContractType       string          `json:"contract_type"`
	ReferenceSalary    decimal.Decimal `json:"reference_salary"`
	ReferenceDailyRate decimal.Decimal `json:"reference_daily_rate"`
	DaysWorked         decimal.Decimal `json:"days_worked"`
	Absences           int             `json:"absences"`
	OvertimeHours      decimal.Decimal `json:"overtime_hours"`
	OvertimeRate       decimal.Decimal `json:"overtime_rate"`
	Allowance          decimal.Decimal `json:"allowance"`
	ExtraDiscounts     decimal.Decimal `json:"extra_discounts"`
	Advance            decimal.Decimal `json:"advance"`
	BaseAmount         decimal.Decimal `json:"base_amount"`
	OvertimeAmount     decimal.Decimal `json:"overtime_amount"`
	GrossAmount        decimal.Decimal `json:"gross_amount"`
	NetAmount          decimal.Decimal `json:"net_amount"`
	PaymentMethod      string          `json:"payment_method"`
	PaymentStatus      string          `json:"payment_status"`
	PaymentDate        *string         `json:"payment_date,omitempty"`
	Paid               bool            `json:"paid"`
	PaidDate           *string         `json:"paid_date,omitempty"`
	BatchItemID        *string         `json:"batch_item_id,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
}

type RunDetailResponse struct {
	RunResponse
	Lines []LineResponse `json:"lines"`
}

type ListRunResponse struct {
	Data       []RunResponse `json:"data"`
	TotalCount int64         `json:"total_count"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
}
