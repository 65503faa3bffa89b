package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/bankaccount"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyID = "company-1"

type fakeGateway struct {
	mu     sync.Mutex
	calls  [][]payment.Transfer
	failOn map[int]error
}

func (g *fakeGateway) SubmitTransferBatch(ctx context.Context, originAccountID string, transfers []payment.Transfer) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.calls) + 1
	if err, ok := g.failOn[n]; ok {
		return "", err
	}
	g.calls = append(g.calls, append([]payment.Transfer(nil), transfers...))
	return fmt.Sprintf("ext-%d", n), nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fixture struct {
	store      *memory.Store
	gateway    *fakeGateway
	dispatcher payment.Dispatcher
	run        payroll.PayrollRun
	account    bankaccount.BankAccount
}

func newFixture(t *testing.T, maxPerBatch int) *fixture {
	t.Helper()

	store := memory.NewStore()
	gw := &fakeGateway{failOn: map[int]error{}}
	account := store.AddBankAccount(bankaccount.BankAccount{CompanyID: companyID, Name: "Main", Active: true})

	run, err := store.CreateRun(context.Background(), payroll.PayrollRun{
		CompanyID:   companyID,
		PeriodMonth: 3,
		PeriodYear:  2025,
		Fortnight:   1,
		Status:      payroll.RunStatusPendingRelease,
	})
	require.NoError(t, err)

	d := NewDispatcher(nil, store, store, store, store, store, gw, Config{MaxTransfersPerBatch: maxPerBatch})
	return &fixture{store: store, gateway: gw, dispatcher: d, run: run, account: account}
}

func strPtr(s string) *string { return &s }

func keyType(k employee.PaymentKeyType) *employee.PaymentKeyType { return &k }

// addLines creates n bank-batch lines whose employees have valid email keys.
func (f *fixture) addLines(t *testing.T, n int, net string) []payroll.PayrollLine {
	t.Helper()

	lines := make([]payroll.PayrollLine, 0, n)
	for i := 0; i < n; i++ {
		emp := f.store.AddEmployee(employee.Employee{
			CompanyID:      companyID,
			FullName:       fmt.Sprintf("Employee %04d", i),
			Active:         true,
			ContractType:   employee.ContractTypeMonthly,
			Salary:         decimal.RequireFromString("3000"),
			PaymentKey:     strPtr(fmt.Sprintf("Employee%d@Example.com", i)),
			PaymentKeyType: keyType(employee.PaymentKeyEmail),
		})
		line := payroll.NewLine(f.run.ID, emp)
		line.PaymentMethod = payroll.PaymentMethodBankBatch
		line.NetAmount = decimal.RequireFromString(net)
		lines = append(lines, line)
	}

	created, err := f.store.CreateLines(context.Background(), lines)
	require.NoError(t, err)
	return created
}

func (f *fixture) dispatch(t *testing.T) (payment.DispatchResult, error) {
	t.Helper()
	return f.dispatcher.Dispatch(context.Background(), payment.DispatchRequest{
		CompanyID:       companyID,
		RunID:           f.run.ID,
		OriginAccountID: f.account.ID,
		PaymentDate:     time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
	})
}

func (f *fixture) linesByRun(t *testing.T) []payroll.PayrollLine {
	t.Helper()
	lines, err := f.store.ListLinesByRun(context.Background(), f.run.ID)
	require.NoError(t, err)
	return lines
}

func TestDispatch_NoCandidatesIsNoOp(t *testing.T) {
	f := newFixture(t, 0)

	result, err := f.dispatch(t)
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.Equal(t, 0, f.gateway.callCount())
}

func TestDispatch_SecondCallAfterSuccessDoesNothing(t *testing.T) {
	f := newFixture(t, 0)
	f.addLines(t, 3, "100")

	first, err := f.dispatch(t)
	require.NoError(t, err)
	assert.False(t, first.NoOp)
	assert.Equal(t, 3, first.LinesSent)
	require.Len(t, first.Batches, 1)

	second, err := f.dispatch(t)
	require.NoError(t, err)
	assert.True(t, second.NoOp)
	assert.Equal(t, 1, f.gateway.callCount())

	for _, l := range f.linesByRun(t) {
		assert.True(t, l.IsDispatched())
		assert.Equal(t, payroll.PaymentStatusSent, l.PaymentStatus)
	}
}

func TestDispatch_Chunking(t *testing.T) {
	tests := []struct {
		lines     int
		wantCalls int
		wantSizes []int
	}{
		{lines: 1, wantCalls: 1, wantSizes: []int{1}},
		{lines: 320, wantCalls: 1, wantSizes: []int{320}},
		{lines: 321, wantCalls: 2, wantSizes: []int{320, 1}},
		{lines: 641, wantCalls: 3, wantSizes: []int{320, 320, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d lines", tt.lines), func(t *testing.T) {
			f := newFixture(t, 0)
			f.addLines(t, tt.lines, "10")

			result, err := f.dispatch(t)
			require.NoError(t, err)
			assert.Equal(t, tt.lines, result.LinesSent)
			require.Equal(t, tt.wantCalls, f.gateway.callCount())
			for i, size := range tt.wantSizes {
				assert.Len(t, f.gateway.calls[i], size)
			}
		})
	}
}

func TestDispatch_ReconcilesByPosition(t *testing.T) {
	f := newFixture(t, 2)
	f.addLines(t, 5, "250.5")

	result, err := f.dispatch(t)
	require.NoError(t, err)
	require.Equal(t, 3, f.gateway.callCount())

	ctx := context.Background()
	batches, err := f.store.ListBatchesByRun(ctx, f.run.ID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, batches, result.Batches)

	lines := f.linesByRun(t)
	byID := make(map[string]payroll.PayrollLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}

	for i, b := range batches {
		assert.Equal(t, fmt.Sprintf("ext-%d", i+1), b.ExternalID)

		items, err := f.store.ListItemsByBatch(ctx, b.ID)
		require.NoError(t, err)
		submitted := f.gateway.calls[i]
		require.Len(t, items, len(submitted))
		assert.Equal(t, len(submitted), b.TransferCount)

		for pos, item := range items {
			assert.Equal(t, pos, item.Position)
			assert.Equal(t, submitted[pos].LineID, item.LineID)
			line := byID[item.LineID]
			require.NotNil(t, line.BatchItemID)
			assert.Equal(t, item.ID, *line.BatchItemID)
		}
	}

	var order []string
	for _, call := range f.gateway.calls {
		for _, tr := range call {
			order = append(order, byID[tr.LineID].EmployeeName)
		}
	}
	assert.Equal(t, []string{"Employee 0000", "Employee 0001", "Employee 0002", "Employee 0003", "Employee 0004"}, order)
}

func TestDispatch_BuildsTransfers(t *testing.T) {
	f := newFixture(t, 0)
	f.addLines(t, 1, "1300")

	_, err := f.dispatch(t)
	require.NoError(t, err)

	require.Equal(t, 1, f.gateway.callCount())
	tr := f.gateway.calls[0][0]
	assert.True(t, decimal.RequireFromString("1300").Equal(tr.Amount))
	assert.Equal(t, "Payroll 03/2025 Q1 - Employee 0000", tr.Reference)
	assert.Equal(t, employee.PaymentKeyEmail, tr.Key.Type)
	assert.Equal(t, "employee0@example.com", tr.Key.Value)
}

func TestDispatch_ValidationGatesEveryLine(t *testing.T) {
	f := newFixture(t, 0)
	f.addLines(t, 2, "100")

	noKey := f.store.AddEmployee(employee.Employee{CompanyID: companyID, FullName: "Zoe Keyless", Active: true})
	zeroNet := f.store.AddEmployee(employee.Employee{
		CompanyID:      companyID,
		FullName:       "Yuri Zero",
		Active:         true,
		PaymentKey:     strPtr("12345678901"),
		PaymentKeyType: keyType(employee.PaymentKeyTaxID),
	})
	bad := []payroll.PayrollLine{payroll.NewLine(f.run.ID, noKey), payroll.NewLine(f.run.ID, zeroNet)}
	bad[0].PaymentMethod = payroll.PaymentMethodBankBatch
	bad[0].NetAmount = decimal.RequireFromString("100")
	bad[1].PaymentMethod = payroll.PaymentMethodBankBatch
	_, err := f.store.CreateLines(context.Background(), bad)
	require.NoError(t, err)

	_, err = f.dispatch(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrDispatchValidation)

	var vf *payment.ValidationFailure
	require.True(t, errors.As(err, &vf))
	require.Len(t, vf.Lines, 2)
	assert.Equal(t, "Yuri Zero", vf.Lines[0].EmployeeName)
	assert.Contains(t, vf.Lines[0].Reason, "net amount must be positive")
	assert.Equal(t, "Zoe Keyless", vf.Lines[1].EmployeeName)
	assert.Contains(t, vf.Lines[1].Reason, "missing payment key")
	assert.Contains(t, err.Error(), "Zoe Keyless")

	assert.Equal(t, 0, f.gateway.callCount())
	for _, l := range f.linesByRun(t) {
		assert.False(t, l.IsDispatched())
	}
}

func TestDispatch_PartialGatewayFailureKeepsEarlierChunks(t *testing.T) {
	f := newFixture(t, 2)
	f.addLines(t, 5, "100")
	f.gateway.failOn[2] = errors.New("gateway timeout")

	result, err := f.dispatch(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrGatewayFailure)

	var de *payment.DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, payment.StageGateway, de.Stage)
	assert.Equal(t, 2, de.FailedChunk)
	assert.Equal(t, 3, de.TotalChunks)
	assert.Equal(t, 1, de.ChunksCommitted)
	assert.Equal(t, 2, de.LinesSent)
	assert.Equal(t, 3, de.LinesPending)
	assert.True(t, de.PartiallySent())
	assert.Equal(t, 2, result.LinesSent)

	linked := 0
	for _, l := range f.linesByRun(t) {
		if l.IsDispatched() {
			linked++
		}
	}
	assert.Equal(t, 2, linked)

	delete(f.gateway.failOn, 2)
	retry, err := f.dispatch(t)
	require.NoError(t, err)
	assert.True(t, retry.ResumedAfterPartial)
	assert.Equal(t, 3, retry.LinesSent)

	for _, l := range f.linesByRun(t) {
		assert.True(t, l.IsDispatched())
	}
}

func TestDispatch_FirstChunkFailureSendsNothing(t *testing.T) {
	f := newFixture(t, 0)
	f.addLines(t, 2, "100")
	f.gateway.failOn[1] = context.DeadlineExceeded

	_, err := f.dispatch(t)
	var de *payment.DispatchError
	require.True(t, errors.As(err, &de))
	assert.False(t, de.PartiallySent())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "nothing was sent")
}

func TestDispatch_RecordFailureRollsBackChunkAndNamesBatch(t *testing.T) {
	f := newFixture(t, 0)
	lines := f.addLines(t, 3, "100")

	f.store.BeforeLink = func(lineID string) error {
		if lineID == lines[2].ID {
			return fmt.Errorf("%w: line %s", payment.ErrLineAlreadyLinked, lineID)
		}
		return nil
	}

	_, err := f.dispatch(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrBatchNotRecorded)
	assert.ErrorIs(t, err, payment.ErrLineAlreadyLinked)

	var de *payment.DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, payment.StageRecord, de.Stage)
	assert.Equal(t, "ext-1", de.ExternalBatchID)

	for _, l := range f.linesByRun(t) {
		assert.False(t, l.IsDispatched(), "the chunk transaction must not leave partial links")
	}
	batches, err := f.store.ListBatchesByRun(context.Background(), f.run.ID)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestDispatch_IgnoresOtherMethodsAndPaidLines(t *testing.T) {
	f := newFixture(t, 0)
	lines := f.addLines(t, 3, "100")

	ctx := context.Background()
	manual := lines[0]
	manual.PaymentMethod = payroll.PaymentMethodManualTransfer
	require.NoError(t, f.store.UpdateLine(ctx, manual))
	paid := lines[1]
	paid.Paid = true
	require.NoError(t, f.store.UpdateLine(ctx, paid))

	result, err := f.dispatch(t)
	require.NoError(t, err)
	assert.Equal(t, 1, result.LinesSent)
	require.Equal(t, 1, f.gateway.callCount())
	assert.Equal(t, lines[2].ID, f.gateway.calls[0][0].LineID)
}
