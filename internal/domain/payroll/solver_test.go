package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSolveBasicPFAndPT(t *testing.T) {
	solver := BisectionSolver{}

	// With PF in hand and PT flat at 200, take-home is 2*basic - 200 in this
	// range, so 20000 inverts exactly.
	basic := solver.SolveBasic(SolveRequest{
		TargetInHand: dec("20000"),
		PFApplicable: true,
		PTApplicable: true,
	})
	require.True(t, basic.Equal(dec("10100")), "basic: %s", basic)
}

func TestSolveBasicNoDeductions(t *testing.T) {
	solver := BisectionSolver{}

	basic := solver.SolveBasic(SolveRequest{TargetInHand: dec("15000")})
	require.True(t, basic.Equal(dec("7500")), "basic: %s", basic)
}

func TestSolveBasicRoundTrip(t *testing.T) {
	solver := BisectionSolver{}
	one := decimal.NewFromInt(1)

	cases := []SolveRequest{
		{TargetInHand: dec("8000"), PFApplicable: true, ESICApplicable: true, PTApplicable: true},
		{TargetInHand: dec("10000"), ESICApplicable: true},
		{TargetInHand: dec("25000"), PFApplicable: true, PTApplicable: true},
		{TargetInHand: dec("45000"), PFApplicable: true},
		{TargetInHand: dec("18500.50"), PFApplicable: true, ESICApplicable: true, PTApplicable: true},
	}
	for _, req := range cases {
		basic := solver.SolveBasic(req)
		got := solver.takeHome(basic, req)
		diff := got.Sub(req.TargetInHand).Abs()
		require.True(t, diff.LessThanOrEqual(one),
			"target %s: basic %s gives take-home %s (off by %s)",
			req.TargetInHand, basic, got, diff)
	}
}

func TestSolveBasicFloorsAtOne(t *testing.T) {
	solver := BisectionSolver{}

	basic := solver.SolveBasic(SolveRequest{TargetInHand: dec("0.40")})
	require.True(t, basic.Equal(decimal.NewFromInt(1)), "basic: %s", basic)
}

func TestSolveBasicLargeTarget(t *testing.T) {
	solver := BisectionSolver{}

	req := SolveRequest{TargetInHand: dec("500000"), PFApplicable: true, PTApplicable: true}
	basic := solver.SolveBasic(req)
	got := solver.takeHome(basic, req)
	require.True(t, got.Sub(req.TargetInHand).Abs().LessThanOrEqual(decimal.NewFromInt(1)),
		"basic %s gives %s", basic, got)
}
