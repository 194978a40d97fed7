package payroll

import "github.com/shopspring/decimal"

const (
	RunStatusDraft     = "draft"
	RunStatusConfirmed = "confirmed"
	RunStatusCancelled = "cancelled"
)

// Statutory rates and thresholds. HRA and the residual allowance are fixed
// percentages of basic; PF applies to basic up to a wage cap; ESIC eligibility
// is tested against the fixed (not prorated) gross; PT is a flat slab amount.
var (
	hraRate       = decimal.NewFromFloat(0.40)
	allowanceRate = decimal.NewFromFloat(0.60)

	pfRate      = decimal.NewFromFloat(0.12)
	pfAdminRate = decimal.NewFromFloat(0.01)
	pfWageCap   = decimal.NewFromInt(15000)

	esicEmployeeRate = decimal.NewFromFloat(0.0075)
	esicEmployerRate = decimal.NewFromFloat(0.0325)
	esicGrossCeiling = decimal.NewFromInt(21000)

	ptAmount     = decimal.NewFromInt(200)
	ptGrossFloor = decimal.NewFromInt(10000)
)
