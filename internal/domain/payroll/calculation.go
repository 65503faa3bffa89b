package payroll

import (
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/shopspring/decimal"
)

// fortnightDivisor splits a monthly salary across the two fortnights of a month.
var fortnightDivisor = decimal.NewFromInt(2)

// LineInput holds everything ComputeLine needs for one employee.
type LineInput struct {
	ContractType       employee.ContractType
	ReferenceSalary    decimal.Decimal
	ReferenceDailyRate decimal.Decimal
	DaysWorked         decimal.Decimal
	OvertimeHours      decimal.Decimal
	OvertimeRate       decimal.Decimal
	Allowance          decimal.Decimal
	ExtraDiscounts     decimal.Decimal
	Advance            decimal.Decimal
}

type LineAmounts struct {
	Base     decimal.Decimal
	Overtime decimal.Decimal
	Gross    decimal.Decimal
	Net      decimal.Decimal
}

// ComputeLine calculates the pay of one line. Gross and net are floored at zero.
func ComputeLine(in LineInput) LineAmounts {
	var base decimal.Decimal
	if in.ContractType == employee.ContractTypeDayRate {
		base = in.ReferenceDailyRate.Mul(in.DaysWorked)
	} else {
		base = in.ReferenceSalary.Div(fortnightDivisor)
	}

	overtime := in.OvertimeHours.Mul(in.OvertimeRate)
	gross := floorZero(base.Add(in.Allowance).Add(overtime).Sub(in.ExtraDiscounts))
	net := floorZero(gross.Sub(in.Advance))

	return LineAmounts{
		Base:     base.Round(2),
		Overtime: overtime.Round(2),
		Gross:    gross.Round(2),
		Net:      net.Round(2),
	}
}

// RunTotals - aggregates kept on the run
type RunTotals struct {
	Gross     decimal.Decimal
	Net       decimal.Decimal
	Paid      decimal.Decimal
	Pending   decimal.Decimal
	LineCount int
}

// ComputeTotals sums lines into run aggregates.
func ComputeTotals(lines []PayrollLine) RunTotals {
	t := RunTotals{
		Gross:     decimal.Zero,
		Net:       decimal.Zero,
		Paid:      decimal.Zero,
		LineCount: len(lines),
	}
	for _, l := range lines {
		t.Gross = t.Gross.Add(l.GrossAmount)
		t.Net = t.Net.Add(l.NetAmount)
		if l.Paid {
			t.Paid = t.Paid.Add(l.NetAmount)
		}
	}
	t.Pending = floorZero(t.Net.Sub(t.Paid))
	return t
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
