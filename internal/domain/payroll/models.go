package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmployeeSnapshot is the employee state frozen onto a slip when the run is
// created. Later edits to the employee record never change historical payroll.
type EmployeeSnapshot struct {
	EmployeeID     string          `json:"employeeId"`
	Name           string          `json:"name"`
	BasicSalary    decimal.Decimal `json:"basicSalary"`
	PFApplicable   bool            `json:"pfApplicable"`
	ESICApplicable bool            `json:"esicApplicable"`
	PTApplicable   bool            `json:"ptApplicable"`
}

type Slip struct {
	ID       string           `json:"id"`
	RunID    string           `json:"runId"`
	Snapshot EmployeeSnapshot `json:"employee"`

	DaysInMonth     int             `json:"daysInMonth"`
	PayableDays     decimal.Decimal `json:"payableDays"`
	IsManualDays    bool            `json:"isManualDays"`
	Advances        decimal.Decimal `json:"advances"`
	OtherDeductions decimal.Decimal `json:"otherDeductions"`

	Breakdown

	InvoiceID string    `json:"invoiceId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Run struct {
	ID          string `json:"id"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
	Status      string `json:"status"`
	DaysInMonth int    `json:"daysInMonth"`

	TotalGross        decimal.Decimal `json:"totalGross"`
	TotalDeductions   decimal.Decimal `json:"totalDeductions"`
	TotalNetPay       decimal.Decimal `json:"totalNetPay"`
	TotalEmployerCost decimal.Decimal `json:"totalEmployerCost"`
	EmployeeCount     int             `json:"employeeCount"`

	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	ConfirmedBy string     `json:"confirmedBy,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy string     `json:"cancelledBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// SlipPatch is a partial slip edit; nil fields are left untouched. Supplying
// PayableDays, even with the full-month value, marks the slip as manual.
type SlipPatch struct {
	PayableDays     *decimal.Decimal
	Advances        *decimal.Decimal
	OtherDeductions *decimal.Decimal
}

// Totals are the run's denormalized aggregates. They are derived state: always
// recomputed by folding over every slip of the run, never patched in place.
type Totals struct {
	TotalGross        decimal.Decimal
	TotalDeductions   decimal.Decimal
	TotalNetPay       decimal.Decimal
	TotalEmployerCost decimal.Decimal
	EmployeeCount     int
}

func sumSlips(slips []Slip) Totals {
	t := Totals{
		TotalGross:        decimal.Zero,
		TotalDeductions:   decimal.Zero,
		TotalNetPay:       decimal.Zero,
		TotalEmployerCost: decimal.Zero,
	}
	for _, slip := range slips {
		t.TotalGross = round2(t.TotalGross.Add(slip.GrossEarned))
		t.TotalDeductions = round2(t.TotalDeductions.Add(slip.TotalDeductions))
		t.TotalNetPay = round2(t.TotalNetPay.Add(slip.NetPay))
		t.TotalEmployerCost = round2(t.TotalEmployerCost.Add(slip.TotalEmployerCost))
		t.EmployeeCount++
	}
	return t
}

func (r *Run) applyTotals(t Totals) {
	r.TotalGross = t.TotalGross
	r.TotalDeductions = t.TotalDeductions
	r.TotalNetPay = t.TotalNetPay
	r.TotalEmployerCost = t.TotalEmployerCost
	r.EmployeeCount = t.EmployeeCount
}

func daysInMonth(month, year int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// periodEnd is the last day of the run's month, the date salary invoices carry.
func periodEnd(month, year int) time.Time {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
}
