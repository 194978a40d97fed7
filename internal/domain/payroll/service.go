package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"erp/internal/domain/employee"
	"erp/internal/domain/ledger"
)

// Directory is the read-only employee lookup used when a run snapshots its
// slip inputs. The directory itself is maintained outside this engine.
type Directory interface {
	ListActive(ctx context.Context) ([]employee.Employee, error)
}

type Service struct {
	store     StoreAPI
	directory Directory
	bridge    ledger.Bridge
	log       zerolog.Logger

	now   func() time.Time
	newID func() string
}

func NewService(store StoreAPI, directory Directory, bridge ledger.Bridge, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		directory: directory,
		bridge:    bridge,
		log:       logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateRun opens a draft run for (month, year), snapshots every active
// employee and computes one full-month slip each. At most one non-cancelled
// run may exist per period; the partial unique index backs this check under
// concurrency.
func (s *Service) CreateRun(ctx context.Context, month, year int, actor string) (Run, error) {
	if month < 1 || month > 12 || year < 2000 || year > 2100 {
		return Run{}, ErrInvalidPeriod
	}

	employees, err := s.directory.ListActive(ctx)
	if err != nil {
		return Run{}, err
	}
	if len(employees) == 0 {
		return Run{}, ErrNoActiveEmployees
	}

	days := daysInMonth(month, year)
	now := s.now()
	run := Run{
		ID:          s.newID(),
		Month:       month,
		Year:        year,
		Status:      RunStatusDraft,
		DaysInMonth: days,
		CreatedAt:   now,
	}

	fullMonth := decimal.NewFromInt(int64(days))
	slips := make([]Slip, 0, len(employees))
	for _, emp := range employees {
		snapshot := EmployeeSnapshot{
			EmployeeID:     emp.ID,
			Name:           emp.Name,
			BasicSalary:    emp.BasicSalary,
			PFApplicable:   emp.PFApplicable,
			ESICApplicable: emp.ESICApplicable,
			PTApplicable:   emp.PTApplicable,
		}
		slips = append(slips, Slip{
			ID:              s.newID(),
			RunID:           run.ID,
			Snapshot:        snapshot,
			DaysInMonth:     days,
			PayableDays:     fullMonth,
			Advances:        decimal.Zero,
			OtherDeductions: decimal.Zero,
			Breakdown:       Calculate(calcInputFor(snapshot, fullMonth, days, decimal.Zero, decimal.Zero)),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	run.applyTotals(sumSlips(slips))

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.store.ActiveRunExists(ctx, month, year)
		if err != nil {
			return err
		}
		if exists {
			return ErrRunExists
		}
		if err := s.store.InsertRun(ctx, run); err != nil {
			return err
		}
		return s.store.InsertSlips(ctx, slips)
	})
	if err != nil {
		return Run{}, err
	}

	s.log.Info().Str("runId", run.ID).Int("month", month).Int("year", year).
		Int("employees", run.EmployeeCount).Str("actor", actor).Msg("payroll run created")
	return run, nil
}

// EditSlip applies a partial edit to a draft run's slip, recomputes the
// breakdown from the frozen snapshot and re-folds the run aggregates from all
// sibling slips. The run row stays locked for the whole unit of work so
// concurrent edits cannot lose each other's totals.
func (s *Service) EditSlip(ctx context.Context, runID, slipID string, patch SlipPatch) (Slip, error) {
	var updated Slip
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		run, err := s.store.GetRunForUpdate(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status != RunStatusDraft {
			return ErrRunNotDraft
		}

		slip, err := s.store.GetSlip(ctx, runID, slipID)
		if err != nil {
			return err
		}

		if patch.PayableDays != nil {
			days := *patch.PayableDays
			if days.IsNegative() || days.GreaterThan(decimal.NewFromInt(int64(run.DaysInMonth))) {
				return ErrInvalidPayableDays
			}
			slip.PayableDays = days
			slip.IsManualDays = true
		}
		if patch.Advances != nil {
			if patch.Advances.IsNegative() {
				return ErrNegativeAmount
			}
			slip.Advances = *patch.Advances
		}
		if patch.OtherDeductions != nil {
			if patch.OtherDeductions.IsNegative() {
				return ErrNegativeAmount
			}
			slip.OtherDeductions = *patch.OtherDeductions
		}

		slip.Breakdown = Calculate(calcInputFor(slip.Snapshot, slip.PayableDays, run.DaysInMonth, slip.Advances, slip.OtherDeductions))
		slip.UpdatedAt = s.now()
		if err := s.store.UpdateSlipComputation(ctx, slip); err != nil {
			return err
		}

		// Full recompute over every sibling, after the edit is written.
		// Incremental patching of the aggregates is how they drift.
		slips, err := s.store.ListSlips(ctx, runID)
		if err != nil {
			return err
		}
		if err := s.store.UpdateRunAggregates(ctx, runID, sumSlips(slips)); err != nil {
			return err
		}
		updated = slip
		return nil
	})
	if err != nil {
		return Slip{}, err
	}
	return updated, nil
}

// Confirm posts one salary invoice plus balanced ledger entry per slip with a
// positive net, then marks the run confirmed. The whole slip set is one
// transaction: if any posting fails the run stays draft with no invoices.
func (s *Service) Confirm(ctx context.Context, runID, actor string) (Run, error) {
	var out Run
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		run, err := s.store.GetRunForUpdate(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status != RunStatusDraft {
			return ErrRunNotDraft
		}

		slips, err := s.store.ListSlips(ctx, runID)
		if err != nil {
			return err
		}

		period := periodEnd(run.Month, run.Year)
		invoiced := 0
		for _, slip := range slips {
			if !slip.NetPay.IsPositive() {
				continue
			}
			posting, err := s.bridge.PostSalaryInvoiceAndEntry(ctx, slip.Snapshot.Name, slip.NetPay, period)
			if err != nil {
				return fmt.Errorf("post salary for slip %s: %w", slip.ID, err)
			}
			if err := s.store.SetSlipInvoice(ctx, slip.ID, posting.InvoiceID); err != nil {
				return err
			}
			invoiced++
		}

		now := s.now()
		if err := s.store.MarkRunConfirmed(ctx, runID, actor, now); err != nil {
			return err
		}
		run.Status = RunStatusConfirmed
		run.ConfirmedAt = &now
		run.ConfirmedBy = actor
		out = run

		s.log.Info().Str("runId", runID).Int("invoiced", invoiced).Str("actor", actor).Msg("payroll run confirmed")
		return nil
	})
	if err != nil {
		return Run{}, err
	}
	return out, nil
}

// Cancel undoes a run. A draft run is a plain status flip; a confirmed run
// first reverses every slip's ledger entry (mirror posting, original kept) and
// cancels its invoice, all inside one transaction. Cancelled runs stay
// cancelled.
func (s *Service) Cancel(ctx context.Context, runID, actor string) (Run, error) {
	var out Run
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		run, err := s.store.GetRunForUpdate(ctx, runID)
		if err != nil {
			return err
		}

		switch run.Status {
		case RunStatusCancelled:
			return ErrRunCancelled
		case RunStatusConfirmed:
			slips, err := s.store.ListSlips(ctx, runID)
			if err != nil {
				return err
			}
			for _, slip := range slips {
				if slip.InvoiceID == "" {
					continue
				}
				if err := s.undoSlipPosting(ctx, slip); err != nil {
					return err
				}
			}
		}

		now := s.now()
		if err := s.store.MarkRunCancelled(ctx, runID, actor, now); err != nil {
			return err
		}
		run.Status = RunStatusCancelled
		run.CancelledAt = &now
		run.CancelledBy = actor
		out = run

		s.log.Info().Str("runId", runID).Str("actor", actor).Msg("payroll run cancelled")
		return nil
	})
	if err != nil {
		return Run{}, err
	}
	return out, nil
}

func (s *Service) undoSlipPosting(ctx context.Context, slip Slip) error {
	entryID, err := s.bridge.InvoiceEntry(ctx, slip.InvoiceID)
	if err != nil {
		return fmt.Errorf("resolve entry for invoice %s: %w", slip.InvoiceID, err)
	}
	if _, err := s.bridge.ReverseEntry(ctx, entryID); err != nil && !errors.Is(err, ledger.ErrEntryReversed) {
		return fmt.Errorf("reverse entry %s: %w", entryID, err)
	}
	if err := s.bridge.CancelInvoice(ctx, slip.InvoiceID); err != nil {
		return fmt.Errorf("cancel invoice %s: %w", slip.InvoiceID, err)
	}
	return s.store.ClearSlipInvoice(ctx, slip.ID)
}

func (s *Service) ListRuns(ctx context.Context) ([]Run, error) {
	return s.store.ListRuns(ctx)
}

func (s *Service) GetRun(ctx context.Context, runID string) (Run, []Slip, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	slips, err := s.store.ListSlips(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, slips, nil
}

func (s *Service) GetSlip(ctx context.Context, runID, slipID string) (Slip, error) {
	return s.store.GetSlip(ctx, runID, slipID)
}

// SlipWithRun returns one slip together with its run, for renderings that need
// both the period and the breakdown.
func (s *Service) SlipWithRun(ctx context.Context, runID, slipID string) (Run, Slip, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return Run{}, Slip{}, err
	}
	slip, err := s.store.GetSlip(ctx, runID, slipID)
	if err != nil {
		return Run{}, Slip{}, err
	}
	return run, slip, nil
}

func calcInputFor(snapshot EmployeeSnapshot, payableDays decimal.Decimal, daysInMonth int, advances, otherDeductions decimal.Decimal) CalcInput {
	return CalcInput{
		BasicSalary:     snapshot.BasicSalary,
		PFApplicable:    snapshot.PFApplicable,
		ESICApplicable:  snapshot.ESICApplicable,
		PTApplicable:    snapshot.PTApplicable,
		PayableDays:     payableDays,
		DaysInMonth:     daysInMonth,
		Advances:        advances,
		OtherDeductions: otherDeductions,
	}
}
