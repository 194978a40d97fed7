package payroll

import "github.com/shopspring/decimal"

// SolveRequest asks for the fixed basic salary that yields a desired monthly
// take-home. TargetInHand includes the employee's own PF contribution, since
// that money is the employee's even though it lands in the PF account.
type SolveRequest struct {
	TargetInHand   decimal.Decimal
	PFApplicable   bool
	ESICApplicable bool
	PTApplicable   bool
}

// Solver derives a basic salary from a target take-home. It is an interface so
// the bisection search can later be swapped for a branch-aware solver that
// handles the ESIC/PT/PF-cap step discontinuities explicitly.
type Solver interface {
	SolveBasic(req SolveRequest) decimal.Decimal
}

// BisectionSolver finds the basic salary by monotonic search over a full
// 30/30-day month. The take-home function is non-decreasing between statutory
// thresholds but steps at the ESIC ceiling, the PT floor and the PF cap, so
// near a step the result is a best-effort approximation, not an exact inverse.
type BisectionSolver struct{}

const (
	solverFullMonthDays  = 30
	solverBisectionSteps = 60
	solverGrowthSteps    = 40
)

var (
	two              = decimal.NewFromInt(2)
	solverFloorBasic = decimal.NewFromInt(1)
	solverSeedBasic  = decimal.NewFromInt(10000)
)

// takeHome is the quantity being matched: net pay plus the employee's own PF
// share when PF applies.
func (BisectionSolver) takeHome(basic decimal.Decimal, req SolveRequest) decimal.Decimal {
	bd := Calculate(CalcInput{
		BasicSalary:    basic,
		PFApplicable:   req.PFApplicable,
		ESICApplicable: req.ESICApplicable,
		PTApplicable:   req.PTApplicable,
		PayableDays:    decimal.NewFromInt(solverFullMonthDays),
		DaysInMonth:    solverFullMonthDays,
	})
	if req.PFApplicable {
		return bd.NetPay.Add(bd.PFEmployee)
	}
	return bd.NetPay
}

func (s BisectionSolver) SolveBasic(req SolveRequest) decimal.Decimal {
	target := req.TargetInHand

	upper := decimal.Max(target, solverSeedBasic)
	for i := 0; i < solverGrowthSteps && s.takeHome(upper, req).LessThan(target); i++ {
		upper = upper.Mul(two)
	}

	lower := decimal.Zero
	for i := 0; i < solverBisectionSteps; i++ {
		mid := lower.Add(upper).Div(two)
		if s.takeHome(mid, req).LessThan(target) {
			lower = mid
		} else {
			upper = mid
		}
	}

	best := upper
	if s.takeHome(lower, req).Sub(target).Abs().LessThan(s.takeHome(upper, req).Sub(target).Abs()) {
		best = lower
	}
	best = best.Round(0)
	if best.LessThan(solverFloorBasic) {
		best = solverFloorBasic
	}
	return best
}
