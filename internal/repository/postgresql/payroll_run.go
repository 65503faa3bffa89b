package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/validator"
	"github.com/jackc/pgx/v5"
)

type payrollRunRepository struct {
	db *database.DB
}

func NewPayrollRunRepository(db *database.DB) payroll.PayrollRunRepository {
	return &payrollRunRepository{db: db}
}

const runColumns = `
	id, company_id, period_month, period_year, fortnight, period_start, period_end, status,
	payment_method, payment_date, bank_account_id, total_gross, total_net, total_paid, total_pending,
	line_count, created_by, liberated_by, liberated_at, notes, created_at, updated_at
`

func scanRun(row pgx.Row) (payroll.PayrollRun, error) {
	var r payroll.PayrollRun
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.PeriodMonth, &r.PeriodYear, &r.Fortnight, &r.PeriodStart, &r.PeriodEnd, &r.Status,
		&r.PaymentMethod, &r.PaymentDate, &r.BankAccountID, &r.TotalGross, &r.TotalNet, &r.TotalPaid, &r.TotalPending,
		&r.LineCount, &r.CreatedBy, &r.LiberatedBy, &r.LiberatedAt, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (r *payrollRunRepository) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_runs (
			company_id, period_month, period_year, fortnight, period_start, period_end, status,
			created_by, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + runColumns

	created, err := scanRun(q.QueryRow(ctx, query,
		run.CompanyID, run.PeriodMonth, run.PeriodYear, run.Fortnight, run.PeriodStart, run.PeriodEnd, run.Status,
		run.CreatedBy, run.Notes,
	))
	if err != nil {
		if isUniqueViolation(err, "uk_payroll_run_period") {
			return payroll.PayrollRun{}, payroll.ErrDuplicatePeriod
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	return created, nil
}

func (r *payrollRunRepository) GetRunByID(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	return r.getRun(ctx, id, companyID, "")
}

func (r *payrollRunRepository) GetRunByIDForUpdate(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	return r.getRun(ctx, id, companyID, " FOR UPDATE")
}

func (r *payrollRunRepository) getRun(ctx context.Context, id string, companyID string, lock string) (payroll.PayrollRun, error) {
	if !validator.IsValidUUID(id) {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}

	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1 AND company_id = $2` + lock

	run, err := scanRun(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	return run, nil
}

func (r *payrollRunRepository) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.PayrollRun, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := ` FROM payroll_runs WHERE company_id = $1`
	args := []interface{}{companyID}
	argIdx := 2

	if filter.PeriodMonth != nil {
		baseQuery += fmt.Sprintf(" AND period_month = $%d", argIdx)
		args = append(args, *filter.PeriodMonth)
		argIdx++
	}
	if filter.PeriodYear != nil {
		baseQuery += fmt.Sprintf(" AND period_year = $%d", argIdx)
		args = append(args, *filter.PeriodYear)
		argIdx++
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	filter.Normalize()
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`SELECT %s %s
		ORDER BY period_year DESC, period_month DESC, fortnight DESC
		LIMIT $%d OFFSET $%d`, runColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}

	return runs, totalCount, nil
}

func (r *payrollRunRepository) UpdateRun(ctx context.Context, run payroll.PayrollRun) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs SET
			status = $3, payment_method = $4, payment_date = $5, bank_account_id = $6,
			total_gross = $7, total_net = $8, total_paid = $9, total_pending = $10, line_count = $11,
			liberated_by = $12, liberated_at = $13, notes = $14, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`

	tag, err := q.Exec(ctx, query,
		run.ID, run.CompanyID,
		run.Status, run.PaymentMethod, run.PaymentDate, run.BankAccountID,
		run.TotalGross, run.TotalNet, run.TotalPaid, run.TotalPending, run.LineCount,
		run.LiberatedBy, run.LiberatedAt, run.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrRunNotFound
	}

	return nil
}

func (r *payrollRunRepository) DeleteRun(ctx context.Context, id string, companyID string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM payroll_runs WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete payroll run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrRunNotFound
	}

	return nil
}
