package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is owned by the directory subsystem; the payroll engine only reads
// it, and only at run-creation time.
type Employee struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	BasicSalary    decimal.Decimal `json:"basicSalary"`
	PFApplicable   bool            `json:"pfApplicable"`
	ESICApplicable bool            `json:"esicApplicable"`
	PTApplicable   bool            `json:"ptApplicable"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
}
