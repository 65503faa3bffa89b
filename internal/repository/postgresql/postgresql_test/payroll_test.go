package postgresql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-dispatch/internal/repository/postgresql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun(companyID string, fortnight int) payroll.PayrollRun {
	return payroll.PayrollRun{
		CompanyID:   companyID,
		PeriodMonth: 3,
		PeriodYear:  2025,
		Fortnight:   fortnight,
		PeriodStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:      payroll.RunStatusDraft,
		CreatedBy:   uuid.NewString(),
	}
}

func seedRunWithLines(t *testing.T, db *database.DB, companyID string, names ...string) (payroll.PayrollRun, []payroll.PayrollLine) {
	t.Helper()
	ctx := context.Background()

	run, err := postgresql.NewPayrollRunRepository(db).CreateRun(ctx, newRun(companyID, 1))
	require.NoError(t, err)

	employees := postgresql.NewEmployeeRepository(db)
	lines := make([]payroll.PayrollLine, 0, len(names))
	for _, name := range names {
		emp, err := employees.GetByID(ctx, createTestEmployee(t, db, companyID, name, true), companyID)
		require.NoError(t, err)
		lines = append(lines, payroll.NewLine(run.ID, emp))
	}

	created, err := postgresql.NewPayrollLineRepository(db).CreateLines(ctx, lines)
	require.NoError(t, err)
	return run, created
}

func TestPayrollRunRepository(t *testing.T) {
	db := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(db)
	ctx := context.Background()
	companyID := newCompanyID()

	run, err := repo.CreateRun(ctx, newRun(companyID, 1))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, payroll.RunStatusDraft, run.Status)

	_, err = repo.CreateRun(ctx, newRun(companyID, 1))
	assert.ErrorIs(t, err, payroll.ErrDuplicatePeriod)

	_, err = repo.GetRunByID(ctx, run.ID, newCompanyID())
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)

	method := payroll.PaymentMethodCash
	run.Status = payroll.RunStatusPendingRelease
	run.PaymentMethod = &method
	run.TotalNet = decimal.RequireFromString("1234.56")
	require.NoError(t, repo.UpdateRun(ctx, run))

	got, err := repo.GetRunByID(ctx, run.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusPendingRelease, got.Status)
	require.NotNil(t, got.PaymentMethod)
	assert.Equal(t, payroll.PaymentMethodCash, *got.PaymentMethod)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(got.TotalNet))

	_, err = repo.CreateRun(ctx, newRun(companyID, 2))
	require.NoError(t, err)

	status := string(payroll.RunStatusPendingRelease)
	runs, total, err := repo.ListRuns(ctx, companyID, payroll.RunFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	runs, total, err = repo.ListRuns(ctx, companyID, payroll.RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Fortnight, "newest period first")
}

func TestPayrollLineRepository(t *testing.T) {
	db := NewTestDatabase(t)
	repo := postgresql.NewPayrollLineRepository(db)
	ctx := context.Background()
	companyID := newCompanyID()

	run, lines := seedRunWithLines(t, db, companyID, "Bruno", "Ana")
	require.Len(t, lines, 2)

	listed, err := repo.ListLinesByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Ana", listed[0].EmployeeName)
	assert.True(t, decimal.NewFromInt(1500).Equal(listed[0].NetAmount))
	assert.Equal(t, employee.ContractTypeMonthly, listed[0].ContractType)

	dup := payroll.NewLine(run.ID, employee.Employee{ID: lines[0].EmployeeID, CompanyID: companyID, FullName: "Bruno"})
	_, err = repo.CreateLines(ctx, []payroll.PayrollLine{dup})
	assert.ErrorIs(t, err, payroll.ErrEmployeeAlreadyInRun)

	line := listed[0]
	line.Allowance = decimal.NewFromInt(100)
	line.Recalculate()
	require.NoError(t, repo.UpdateLine(ctx, line))

	got, err := repo.GetLineByID(ctx, line.ID, run.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1600).Equal(got.NetAmount))

	_, err = repo.GetLineByID(ctx, line.ID, uuid.NewString())
	assert.ErrorIs(t, err, payroll.ErrLineNotFound)

	require.NoError(t, repo.DeleteLine(ctx, line.ID, run.ID))
	listed, err = repo.ListLinesByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestBatchItemsAndConditionalLink(t *testing.T) {
	db := NewTestDatabase(t)
	ctx := context.Background()
	companyID := newCompanyID()
	accountID := createTestBankAccount(t, db, companyID)

	lineRepo := postgresql.NewPayrollLineRepository(db)
	batchRepo := postgresql.NewPaymentBatchRepository(db)
	run, lines := seedRunWithLines(t, db, companyID, "Ana", "Bruno")

	batch, err := batchRepo.CreateBatch(ctx, payment.PaymentBatch{
		CompanyID:       companyID,
		RunID:           run.ID,
		ExternalID:      "ext-" + uuid.NewString(),
		OriginAccountID: accountID,
		TransferCount:   2,
		TotalAmount:     decimal.NewFromInt(3000),
	})
	require.NoError(t, err)

	items := make([]payment.PaymentBatchItem, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		items = append(items, payment.PaymentBatchItem{
			BatchID:   batch.ID,
			LineID:    lines[i].ID,
			Position:  i,
			Amount:    lines[i].NetAmount,
			KeyType:   employee.PaymentKeyEmail,
			KeyValue:  "someone@example.com",
			Reference: "Payroll 03/2025 Q1",
		})
	}
	stored, err := batchRepo.CreateItems(ctx, items)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for i, item := range stored {
		assert.Equal(t, i, item.Position, "items come back ordered by position")
		assert.Equal(t, lines[i].ID, item.LineID)
	}

	require.NoError(t, lineRepo.LinkBatchItem(ctx, lines[0].ID, stored[0].ID, payroll.PaymentStatusSent))
	err = lineRepo.LinkBatchItem(ctx, lines[0].ID, stored[1].ID, payroll.PaymentStatusSent)
	assert.ErrorIs(t, err, payment.ErrLineAlreadyLinked)

	linked, err := lineRepo.GetLineByID(ctx, lines[0].ID, run.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.BatchItemID)
	assert.Equal(t, stored[0].ID, *linked.BatchItemID)

	// UpdateLine never clears the link
	linked.BatchItemID = nil
	require.NoError(t, lineRepo.UpdateLine(ctx, linked))
	linked, err = lineRepo.GetLineByID(ctx, lines[0].ID, run.ID)
	require.NoError(t, err)
	assert.NotNil(t, linked.BatchItemID)

	batches, err := batchRepo.ListBatchesByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, batch.ExternalID, batches[0].ExternalID)
}

func TestTransactorRollsBack(t *testing.T) {
	db := NewTestDatabase(t)
	ctx := context.Background()
	companyID := newCompanyID()
	tx := postgresql.NewTransactor(db)
	repo := postgresql.NewPayrollRunRepository(db)

	boom := errors.New("boom")
	var runID string
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err := repo.CreateRun(ctx, newRun(companyID, 1))
		if err != nil {
			return err
		}
		runID = run.ID

		// nested calls join the outer transaction
		return tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := repo.GetRunByIDForUpdate(ctx, run.ID, companyID); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)
	require.NotEmpty(t, runID)

	_, err = repo.GetRunByID(ctx, runID, companyID)
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}
