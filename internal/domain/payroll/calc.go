package payroll

import "github.com/shopspring/decimal"

// CalcInput carries everything the statutory calculator needs for one
// employee-month. Values come from the slip's frozen employee snapshot, never
// from the live employee record.
type CalcInput struct {
	BasicSalary     decimal.Decimal
	PFApplicable    bool
	ESICApplicable  bool
	PTApplicable    bool
	PayableDays     decimal.Decimal
	DaysInMonth     int
	Advances        decimal.Decimal
	OtherDeductions decimal.Decimal
}

// Breakdown is the full computed result for one slip. Every monetary field is
// rounded to two decimals independently; downstream sums must round again at
// each addition step to reproduce reference totals exactly.
type Breakdown struct {
	FixedBasic     decimal.Decimal `json:"fixedBasic"`
	FixedHRA       decimal.Decimal `json:"fixedHra"`
	FixedAllowance decimal.Decimal `json:"fixedAllowance"`
	GrossFixed     decimal.Decimal `json:"grossFixed"`

	EarnedBasic     decimal.Decimal `json:"earnedBasic"`
	EarnedHRA       decimal.Decimal `json:"earnedHra"`
	EarnedAllowance decimal.Decimal `json:"earnedAllowance"`
	GrossEarned     decimal.Decimal `json:"grossEarned"`

	PFEmployee decimal.Decimal `json:"pfEmployee"`
	PFEmployer decimal.Decimal `json:"pfEmployer"`
	PFAdmin    decimal.Decimal `json:"pfAdmin"`

	ESICEmployee decimal.Decimal `json:"esicEmployee"`
	ESICEmployer decimal.Decimal `json:"esicEmployer"`

	PT decimal.Decimal `json:"pt"`

	TotalDeductions   decimal.Decimal `json:"totalDeductions"`
	NetPay            decimal.Decimal `json:"netPay"`
	TotalEmployerCost decimal.Decimal `json:"totalEmployerCost"`
	CostToCompany     decimal.Decimal `json:"costToCompany"`
}

// round2 rounds to the cent, half away from zero. All amounts in scope are
// non-negative at the point of rounding, so this matches round-half-up.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func prorate(amount, payableDays decimal.Decimal, daysInMonth int) decimal.Decimal {
	if daysInMonth <= 0 {
		return decimal.Zero
	}
	return round2(amount.Mul(payableDays).Div(decimal.NewFromInt(int64(daysInMonth))))
}

// Calculate computes one employee's monthly pay components. It is pure and
// total: no I/O, no errors for any input with DaysInMonth > 0. Input shape
// validation (negative salary, payable days out of range) is the caller's job.
func Calculate(in CalcInput) Breakdown {
	basic := round2(in.BasicSalary)
	hra := round2(basic.Mul(hraRate))
	allowance := round2(basic.Mul(allowanceRate))
	grossFixed := round2(round2(basic.Add(hra)).Add(allowance))

	earnedBasic := prorate(basic, in.PayableDays, in.DaysInMonth)
	earnedHRA := prorate(hra, in.PayableDays, in.DaysInMonth)
	earnedAllowance := prorate(allowance, in.PayableDays, in.DaysInMonth)
	grossEarned := round2(round2(earnedBasic.Add(earnedHRA)).Add(earnedAllowance))

	var pfEmployee, pfEmployer, pfAdmin decimal.Decimal
	if in.PFApplicable {
		// The PF wage base is earned basic, except when the fixed basic
		// exceeds the statutory cap: then the cap itself is prorated.
		wageBase := earnedBasic
		if basic.GreaterThan(pfWageCap) {
			wageBase = prorate(pfWageCap, in.PayableDays, in.DaysInMonth)
		}
		pfEmployee = round2(wageBase.Mul(pfRate))
		pfEmployer = round2(wageBase.Mul(pfRate))
		pfAdmin = round2(wageBase.Mul(pfAdminRate))
	}

	var esicEmployee, esicEmployer decimal.Decimal
	// Eligibility is tested on the fixed gross: an employee over the ceiling
	// stays out of ESIC even when proration drags the earned gross under it.
	if in.ESICApplicable && grossFixed.LessThanOrEqual(esicGrossCeiling) {
		esicEmployee = round2(grossEarned.Mul(esicEmployeeRate))
		esicEmployer = round2(grossEarned.Mul(esicEmployerRate))
	}

	pt := decimal.Zero
	if in.PTApplicable && grossFixed.GreaterThan(ptGrossFloor) {
		pt = ptAmount
	}

	totalDeductions := round2(pfEmployee.Add(esicEmployee).Add(pt).Add(in.Advances).Add(in.OtherDeductions))
	netPay := round2(grossEarned.Sub(totalDeductions))
	employerCost := round2(pfEmployer.Add(pfAdmin).Add(esicEmployer))
	costToCompany := round2(grossEarned.Add(employerCost))

	return Breakdown{
		FixedBasic:     basic,
		FixedHRA:       hra,
		FixedAllowance: allowance,
		GrossFixed:     grossFixed,

		EarnedBasic:     earnedBasic,
		EarnedHRA:       earnedHRA,
		EarnedAllowance: earnedAllowance,
		GrossEarned:     grossEarned,

		PFEmployee: pfEmployee,
		PFEmployer: pfEmployer,
		PFAdmin:    pfAdmin,

		ESICEmployee: esicEmployee,
		ESICEmployer: esicEmployer,

		PT: pt,

		TotalDeductions:   totalDeductions,
		NetPay:            netPay,
		TotalEmployerCost: employerCost,
		CostToCompany:     costToCompany,
	}
}
