package payroll

import "errors"

var (
	ErrRunNotFound        = errors.New("payroll run not found")
	ErrSlipNotFound       = errors.New("payroll slip not found")
	ErrRunExists          = errors.New("a payroll run already exists for this period")
	ErrRunNotDraft        = errors.New("payroll run is not in draft")
	ErrRunCancelled       = errors.New("payroll run is already cancelled")
	ErrNoActiveEmployees  = errors.New("no active employees to run payroll for")
	ErrInvalidPeriod      = errors.New("invalid payroll period")
	ErrInvalidPayableDays = errors.New("payable days must be between 0 and the days in the month")
	ErrNegativeAmount     = errors.New("amount must not be negative")
)
