package payroll

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateRunRequest_Validate(t *testing.T) {
	valid := CreateRunRequest{PeriodMonth: 3, PeriodYear: 2025, Fortnight: 1}
	assert.NoError(t, valid.Validate())

	bad := CreateRunRequest{PeriodMonth: 13, PeriodYear: 2019, Fortnight: 3, PeriodStart: strPtr("2025-03-20"), PeriodEnd: strPtr("2025-03-01")}
	err := bad.Validate()
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := verrs.ToMap()
	assert.Contains(t, fields, "period_month")
	assert.Contains(t, fields, "period_year")
	assert.Contains(t, fields, "fortnight")
	assert.Contains(t, fields, "period_end")
}

func TestCreateRunRequest_Period(t *testing.T) {
	first := CreateRunRequest{PeriodMonth: 2, PeriodYear: 2024, Fortnight: 1}
	start, end := first.Period()
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), end)

	second := CreateRunRequest{PeriodMonth: 2, PeriodYear: 2024, Fortnight: 2}
	start, end = second.Period()
	assert.Equal(t, time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), end, "leap year end of month")

	december := CreateRunRequest{PeriodMonth: 12, PeriodYear: 2025, Fortnight: 2}
	_, end = december.Period()
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), end)

	explicit := CreateRunRequest{PeriodMonth: 3, PeriodYear: 2025, Fortnight: 1, PeriodStart: strPtr("2025-02-28"), PeriodEnd: strPtr("2025-03-14")}
	start, end = explicit.Period()
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), end)
}

func TestRunFilter(t *testing.T) {
	status := "bogus"
	f := RunFilter{Status: &status}
	assert.Error(t, f.Validate())

	f = RunFilter{Page: 0, Limit: 500}
	require.NoError(t, f.Validate())
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.Limit)
}

func TestAddEmployeesRequest_Validate(t *testing.T) {
	assert.Error(t, (&AddEmployeesRequest{}).Validate())
	assert.Error(t, (&AddEmployeesRequest{EmployeeIDs: []string{"a", " "}}).Validate())
	assert.Error(t, (&AddEmployeesRequest{EmployeeIDs: []string{"a", "a"}}).Validate())
	assert.NoError(t, (&AddEmployeesRequest{EmployeeIDs: []string{"a", "b"}}).Validate())
}

func TestUpdateLineRequest_Validate(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	tooMany := decimal.NewFromInt(17)
	absences := -2

	err := (&UpdateLineRequest{Advance: &neg, DaysWorked: &tooMany, Absences: &absences}).Validate()
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := verrs.ToMap()
	assert.Contains(t, fields, "advance")
	assert.Contains(t, fields, "days_worked")
	assert.Contains(t, fields, "absences")

	ten := decimal.NewFromInt(10)
	assert.NoError(t, (&UpdateLineRequest{DaysWorked: &ten}).Validate())
}

func TestMarkPaymentRequest(t *testing.T) {
	assert.Error(t, (&MarkPaymentRequest{}).Validate(), "status or paid is required")
	assert.Error(t, (&MarkPaymentRequest{Status: strPtr("lost")}).Validate())
	assert.Error(t, (&MarkPaymentRequest{Status: strPtr("paid"), PaidDate: strPtr("20/03/2025")}).Validate())

	req := MarkPaymentRequest{Status: strPtr("paid"), PaidDate: strPtr("2025-03-20")}
	require.NoError(t, req.Validate())
	change := req.Change()
	require.NotNil(t, change.Status)
	assert.Equal(t, PaymentStatusPaid, *change.Status)
	require.NotNil(t, change.PaidDate)
	assert.Equal(t, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), *change.PaidDate)
}

func TestFinalizeRequest_Validate(t *testing.T) {
	assert.Error(t, (&FinalizeRequest{PaymentMethod: "wire"}).Validate())
	assert.Error(t, (&FinalizeRequest{PaymentMethod: "cash", PaymentDate: strPtr("tomorrow")}).Validate())
	assert.NoError(t, (&FinalizeRequest{PaymentMethod: "bank_batch"}).Validate())
}

func TestRunStatusGuards(t *testing.T) {
	assert.True(t, RunStatusDraft.AllowsMembershipChanges())
	assert.True(t, RunStatusPendingRelease.AllowsMembershipChanges())
	assert.False(t, RunStatusProcessing.AllowsMembershipChanges())

	assert.True(t, RunStatusProcessing.AllowsLineEdits())
	assert.False(t, RunStatusClosed.AllowsLineEdits())
	assert.False(t, RunStatusCancelled.AllowsLineEdits())

	assert.True(t, RunStatusPendingRelease.CanRelease())
	assert.True(t, RunStatusProcessing.CanRelease())
	assert.False(t, RunStatusDraft.CanRelease())
	assert.False(t, RunStatusClosed.CanRelease())
}
