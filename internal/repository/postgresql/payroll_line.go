package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/validator"
	"github.com/jackc/pgx/v5"
)

type payrollLineRepository struct {
	db *database.DB
}

func NewPayrollLineRepository(db *database.DB) payroll.PayrollLineRepository {
	return &payrollLineRepository{db: db}
}

const lineColumns = `
	id, run_id, company_id, employee_id, employee_name, contract_type, reference_salary, reference_daily_rate,
	days_worked, absences, overtime_hours, overtime_rate, allowance, extra_discounts, advance,
	base_amount, overtime_amount, gross_amount, net_amount, payment_method, payment_status, payment_date,
	paid, paid_date, batch_item_id, notes, created_at, updated_at
`

func scanLine(row pgx.Row) (payroll.PayrollLine, error) {
	var l payroll.PayrollLine
	err := row.Scan(
		&l.ID, &l.RunID, &l.CompanyID, &l.EmployeeID, &l.EmployeeName, &l.ContractType, &l.ReferenceSalary, &l.ReferenceDailyRate,
		&l.DaysWorked, &l.Absences, &l.OvertimeHours, &l.OvertimeRate, &l.Allowance, &l.ExtraDiscounts, &l.Advance,
		&l.BaseAmount, &l.OvertimeAmount, &l.GrossAmount, &l.NetAmount, &l.PaymentMethod, &l.PaymentStatus, &l.PaymentDate,
		&l.Paid, &l.PaidDate, &l.BatchItemID, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func collectLines(rows pgx.Rows) ([]payroll.PayrollLine, error) {
	defer rows.Close()

	var lines []payroll.PayrollLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll lines: %w", err)
	}
	return lines, nil
}

func (r *payrollLineRepository) CreateLines(ctx context.Context, lines []payroll.PayrollLine) ([]payroll.PayrollLine, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_lines (
			run_id, company_id, employee_id, employee_name, contract_type, reference_salary, reference_daily_rate,
			days_worked, absences, overtime_hours, overtime_rate, allowance, extra_discounts, advance,
			base_amount, overtime_amount, gross_amount, net_amount, payment_method, payment_status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING ` + lineColumns

	created := make([]payroll.PayrollLine, 0, len(lines))
	for _, l := range lines {
		line, err := scanLine(q.QueryRow(ctx, query,
			l.RunID, l.CompanyID, l.EmployeeID, l.EmployeeName, l.ContractType, l.ReferenceSalary, l.ReferenceDailyRate,
			l.DaysWorked, l.Absences, l.OvertimeHours, l.OvertimeRate, l.Allowance, l.ExtraDiscounts, l.Advance,
			l.BaseAmount, l.OvertimeAmount, l.GrossAmount, l.NetAmount, l.PaymentMethod, l.PaymentStatus, l.Notes,
		))
		if err != nil {
			if isUniqueViolation(err, "uk_payroll_line_employee") {
				return nil, fmt.Errorf("%w: employee %s", payroll.ErrEmployeeAlreadyInRun, l.EmployeeID)
			}
			return nil, fmt.Errorf("failed to create payroll line: %w", err)
		}
		created = append(created, line)
	}

	return created, nil
}

func (r *payrollLineRepository) GetLineByID(ctx context.Context, id string, runID string) (payroll.PayrollLine, error) {
	if !validator.IsValidUUID(id) || !validator.IsValidUUID(runID) {
		return payroll.PayrollLine{}, payroll.ErrLineNotFound
	}

	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + lineColumns + ` FROM payroll_lines WHERE id = $1 AND run_id = $2`

	line, err := scanLine(q.QueryRow(ctx, query, id, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollLine{}, payroll.ErrLineNotFound
		}
		return payroll.PayrollLine{}, fmt.Errorf("failed to get payroll line: %w", err)
	}

	return line, nil
}

func (r *payrollLineRepository) ListLinesByRun(ctx context.Context, runID string) ([]payroll.PayrollLine, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + lineColumns + ` FROM payroll_lines WHERE run_id = $1 ORDER BY employee_name, id`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll lines: %w", err)
	}
	return collectLines(rows)
}

func (r *payrollLineRepository) ListUnpaidByMethod(ctx context.Context, runID string, method payroll.PaymentMethod) ([]payroll.PayrollLine, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + lineColumns + `
		FROM payroll_lines
		WHERE run_id = $1 AND payment_method = $2 AND paid = FALSE
		ORDER BY employee_name, id`

	rows, err := q.Query(ctx, query, runID, method)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid payroll lines: %w", err)
	}
	return collectLines(rows)
}

func (r *payrollLineRepository) UpdateLine(ctx context.Context, l payroll.PayrollLine) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_lines SET
			employee_name = $3, contract_type = $4, reference_salary = $5, reference_daily_rate = $6,
			days_worked = $7, absences = $8, overtime_hours = $9, overtime_rate = $10,
			allowance = $11, extra_discounts = $12, advance = $13,
			base_amount = $14, overtime_amount = $15, gross_amount = $16, net_amount = $17,
			payment_method = $18, payment_status = $19, payment_date = $20,
			paid = $21, paid_date = $22, notes = $23, updated_at = NOW()
		WHERE id = $1 AND run_id = $2
	`

	tag, err := q.Exec(ctx, query,
		l.ID, l.RunID,
		l.EmployeeName, l.ContractType, l.ReferenceSalary, l.ReferenceDailyRate,
		l.DaysWorked, l.Absences, l.OvertimeHours, l.OvertimeRate,
		l.Allowance, l.ExtraDiscounts, l.Advance,
		l.BaseAmount, l.OvertimeAmount, l.GrossAmount, l.NetAmount,
		l.PaymentMethod, l.PaymentStatus, l.PaymentDate,
		l.Paid, l.PaidDate, l.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrLineNotFound
	}

	return nil
}

func (r *payrollLineRepository) DeleteLine(ctx context.Context, id string, runID string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM payroll_lines WHERE id = $1 AND run_id = $2`, id, runID)
	if err != nil {
		return fmt.Errorf("failed to delete payroll line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrLineNotFound
	}

	return nil
}

func (r *payrollLineRepository) DeleteLinesByRun(ctx context.Context, runID string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM payroll_lines WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete payroll lines: %w", err)
	}

	return nil
}

func (r *payrollLineRepository) LinkBatchItem(ctx context.Context, lineID string, batchItemID string, status payroll.PaymentStatus) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_lines SET batch_item_id = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND batch_item_id IS NULL
	`

	tag, err := q.Exec(ctx, query, lineID, batchItemID, status)
	if err != nil {
		return fmt.Errorf("failed to link batch item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: line %s", payment.ErrLineAlreadyLinked, lineID)
	}

	return nil
}
