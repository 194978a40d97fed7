package payroll

import (
	"context"
	"time"
)

// StoreAPI is the persistence surface the run lifecycle needs. InTx scopes a
// unit of work: every mutation of a confirm/cancel/edit happens inside one
// transaction so a run is never left between states.
type StoreAPI interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	ActiveRunExists(ctx context.Context, month, year int) (bool, error)
	InsertRun(ctx context.Context, run Run) error
	InsertSlips(ctx context.Context, slips []Slip) error

	GetRun(ctx context.Context, runID string) (Run, error)
	// GetRunForUpdate locks the run row, serializing slip edits and lifecycle
	// transitions per run.
	GetRunForUpdate(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context) ([]Run, error)

	GetSlip(ctx context.Context, runID, slipID string) (Slip, error)
	ListSlips(ctx context.Context, runID string) ([]Slip, error)
	UpdateSlipComputation(ctx context.Context, slip Slip) error
	SetSlipInvoice(ctx context.Context, slipID, invoiceID string) error
	ClearSlipInvoice(ctx context.Context, slipID string) error

	UpdateRunAggregates(ctx context.Context, runID string, totals Totals) error
	MarkRunConfirmed(ctx context.Context, runID, actor string, at time.Time) error
	MarkRunCancelled(ctx context.Context, runID, actor string, at time.Time) error
}
