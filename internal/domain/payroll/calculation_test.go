package payroll

import (
	"testing"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestComputeLine(t *testing.T) {
	tests := []struct {
		name     string
		in       LineInput
		base     string
		overtime string
		gross    string
		net      string
	}{
		{
			name: "day rate",
			in: LineInput{
				ContractType:       employee.ContractTypeDayRate,
				ReferenceDailyRate: d("100"),
				DaysWorked:         d("10"),
			},
			base: "1000", overtime: "0", gross: "1000", net: "1000",
		},
		{
			name: "monthly with advance",
			in: LineInput{
				ContractType:    employee.ContractTypeMonthly,
				ReferenceSalary: d("3000"),
				Advance:         d("200"),
			},
			base: "1500", overtime: "0", gross: "1500", net: "1300",
		},
		{
			name: "monthly ignores days worked",
			in: LineInput{
				ContractType:    employee.ContractTypeMonthly,
				ReferenceSalary: d("2000"),
				DaysWorked:      d("3"),
			},
			base: "1000", overtime: "0", gross: "1000", net: "1000",
		},
		{
			name: "overtime allowance and discounts",
			in: LineInput{
				ContractType:    employee.ContractTypeMonthly,
				ReferenceSalary: d("3000"),
				OvertimeHours:   d("4.5"),
				OvertimeRate:    d("20"),
				Allowance:       d("150"),
				ExtraDiscounts:  d("50"),
				Advance:         d("100"),
			},
			base: "1500", overtime: "90", gross: "1690", net: "1590",
		},
		{
			name: "discounts beyond gross clamp to zero",
			in: LineInput{
				ContractType:       employee.ContractTypeDayRate,
				ReferenceDailyRate: d("100"),
				DaysWorked:         d("1"),
				ExtraDiscounts:     d("500"),
				Advance:            d("10"),
			},
			base: "100", overtime: "0", gross: "0", net: "0",
		},
		{
			name: "advance beyond gross clamps net",
			in: LineInput{
				ContractType:    employee.ContractTypeMonthly,
				ReferenceSalary: d("1000"),
				Advance:         d("900"),
			},
			base: "500", overtime: "0", gross: "500", net: "0",
		},
		{
			name: "odd salary rounds to cents",
			in: LineInput{
				ContractType:    employee.ContractTypeMonthly,
				ReferenceSalary: d("1234.57"),
			},
			base: "617.29", overtime: "0", gross: "617.29", net: "617.29",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLine(tt.in)
			assertAmount(t, tt.base, got.Base, "base")
			assertAmount(t, tt.overtime, got.Overtime, "overtime")
			assertAmount(t, tt.gross, got.Gross, "gross")
			assertAmount(t, tt.net, got.Net, "net")
		})
	}
}

func TestComputeLine_NeverNegative(t *testing.T) {
	for _, discount := range []string{"0", "1", "999", "100000"} {
		for _, advance := range []string{"0", "1", "5000"} {
			got := ComputeLine(LineInput{
				ContractType:    employee.ContractTypeMonthly,
				ReferenceSalary: d("1998"),
				ExtraDiscounts:  d(discount),
				Advance:         d(advance),
			})
			assert.False(t, got.Gross.IsNegative(), "gross with discount %s", discount)
			assert.False(t, got.Net.IsNegative(), "net with discount %s advance %s", discount, advance)
		}
	}
}

func TestComputeTotals(t *testing.T) {
	lines := []PayrollLine{
		{GrossAmount: d("1500"), NetAmount: d("1300"), Paid: true},
		{GrossAmount: d("1000"), NetAmount: d("1000")},
		{GrossAmount: d("0"), NetAmount: d("0")},
		{GrossAmount: d("250.55"), NetAmount: d("200.10"), Paid: true},
	}

	got := ComputeTotals(lines)
	assertAmount(t, "2750.55", got.Gross, "gross")
	assertAmount(t, "2500.10", got.Net, "net")
	assertAmount(t, "1500.10", got.Paid, "paid")
	assertAmount(t, "1000", got.Pending, "pending")
	assert.Equal(t, 4, got.LineCount)

	empty := ComputeTotals(nil)
	assert.True(t, empty.Gross.IsZero())
	assert.True(t, empty.Pending.IsZero())
	assert.Equal(t, 0, empty.LineCount)
}

func TestNewLine(t *testing.T) {
	emp := employee.Employee{
		ID:           "emp-1",
		CompanyID:    "company-1",
		FullName:     "Ana Silva",
		ContractType: employee.ContractTypeMonthly,
		Salary:       d("3000"),
		OvertimeRate: d("25"),
	}

	line := NewLine("run-1", emp)
	assert.Equal(t, "run-1", line.RunID)
	assert.Equal(t, "company-1", line.CompanyID)
	assert.Equal(t, "Ana Silva", line.EmployeeName)
	assert.Equal(t, DefaultPaymentMethod, line.PaymentMethod)
	assert.Equal(t, PaymentStatusPending, line.PaymentStatus)
	assert.True(t, line.DaysWorked.IsZero())
	assertAmount(t, "25", line.OvertimeRate, "overtime rate")
	assertAmount(t, "1500", line.GrossAmount, "gross")
	assertAmount(t, "1500", line.NetAmount, "net")
	assert.False(t, line.IsDispatched())
}

func TestLine_SnapshotIsFrozenUntilRefreshed(t *testing.T) {
	emp := employee.Employee{FullName: "Bruno", ContractType: employee.ContractTypeDayRate, DailyRate: d("100")}
	line := NewLine("run-1", emp)
	line.DaysWorked = d("10")
	line.Recalculate()
	assertAmount(t, "1000", line.NetAmount, "net before raise")

	emp.DailyRate = d("150")
	line.Recalculate()
	assertAmount(t, "1000", line.NetAmount, "edits keep the stored rate")

	line.Snapshot(emp)
	line.Recalculate()
	assertAmount(t, "1500", line.NetAmount, "net after refresh")
}
