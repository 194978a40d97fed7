package payroll

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"erp/internal/platform/db"
)

const pgUniqueViolation = "23505"

// mapRunInsertError turns a unique violation on the run table into
// ErrRunExists. Two concurrent creates for the same period can both pass the
// ActiveRunExists count under read committed; the loser then trips the partial
// unique index on (month, year) and must still surface as a conflict.
func mapRunInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrRunExists
	}
	return err
}

// Store is the pgx-backed StoreAPI. All SQL lives here; the service never
// touches the database directly.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) q(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, s.Pool)
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTransaction(ctx, s.Pool, fn)
}

func (s *Store) ActiveRunExists(ctx context.Context, month, year int) (bool, error) {
	var count int
	err := s.q(ctx).QueryRow(ctx, `
    SELECT COUNT(1) FROM payroll_runs
    WHERE month = $1 AND year = $2 AND status <> $3
  `, month, year, RunStatusCancelled).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) InsertRun(ctx context.Context, run Run) error {
	_, err := s.q(ctx).Exec(ctx, `
    INSERT INTO payroll_runs (
      id, month, year, status, days_in_month,
      total_gross, total_deductions, total_net_pay, total_employer_cost, employee_count,
      created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, run.ID, run.Month, run.Year, run.Status, run.DaysInMonth,
		run.TotalGross, run.TotalDeductions, run.TotalNetPay, run.TotalEmployerCost, run.EmployeeCount,
		run.CreatedAt)
	return mapRunInsertError(err)
}

func (s *Store) InsertSlips(ctx context.Context, slips []Slip) error {
	for _, slip := range slips {
		if _, err := s.q(ctx).Exec(ctx, `
      INSERT INTO payroll_slips (
        id, run_id, employee_id, employee_name,
        snap_basic_salary, snap_pf, snap_esic, snap_pt,
        days_in_month, payable_days, is_manual_days, advances, other_deductions,
        fixed_basic, fixed_hra, fixed_allowance, gross_fixed,
        earned_basic, earned_hra, earned_allowance, gross_earned,
        pf_employee, pf_employer, pf_admin, esic_employee, esic_employer, pt,
        total_deductions, net_pay, total_employer_cost, cost_to_company,
        created_at, updated_at
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
        $18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33
      )
    `, slip.ID, slip.RunID, slip.Snapshot.EmployeeID, slip.Snapshot.Name,
			slip.Snapshot.BasicSalary, slip.Snapshot.PFApplicable, slip.Snapshot.ESICApplicable, slip.Snapshot.PTApplicable,
			slip.DaysInMonth, slip.PayableDays, slip.IsManualDays, slip.Advances, slip.OtherDeductions,
			slip.FixedBasic, slip.FixedHRA, slip.FixedAllowance, slip.GrossFixed,
			slip.EarnedBasic, slip.EarnedHRA, slip.EarnedAllowance, slip.GrossEarned,
			slip.PFEmployee, slip.PFEmployer, slip.PFAdmin, slip.ESICEmployee, slip.ESICEmployer, slip.PT,
			slip.TotalDeductions, slip.NetPay, slip.TotalEmployerCost, slip.CostToCompany,
			slip.CreatedAt, slip.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

const runColumns = `
  id, month, year, status, days_in_month,
  total_gross, total_deductions, total_net_pay, total_employer_cost, employee_count,
  confirmed_at, COALESCE(confirmed_by, ''), cancelled_at, COALESCE(cancelled_by, ''), created_at
`

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Month, &run.Year, &run.Status, &run.DaysInMonth,
		&run.TotalGross, &run.TotalDeductions, &run.TotalNetPay, &run.TotalEmployerCost, &run.EmployeeCount,
		&run.ConfirmedAt, &run.ConfirmedBy, &run.CancelledAt, &run.CancelledBy, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	return scanRun(s.q(ctx).QueryRow(ctx, "SELECT "+runColumns+" FROM payroll_runs WHERE id = $1", runID))
}

func (s *Store) GetRunForUpdate(ctx context.Context, runID string) (Run, error) {
	return scanRun(s.q(ctx).QueryRow(ctx, "SELECT "+runColumns+" FROM payroll_runs WHERE id = $1 FOR UPDATE", runID))
}

func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.q(ctx).Query(ctx, "SELECT "+runColumns+" FROM payroll_runs ORDER BY year DESC, month DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const slipColumns = `
  id, run_id, employee_id, employee_name,
  snap_basic_salary, snap_pf, snap_esic, snap_pt,
  days_in_month, payable_days, is_manual_days, advances, other_deductions,
  fixed_basic, fixed_hra, fixed_allowance, gross_fixed,
  earned_basic, earned_hra, earned_allowance, gross_earned,
  pf_employee, pf_employer, pf_admin, esic_employee, esic_employer, pt,
  total_deductions, net_pay, total_employer_cost, cost_to_company,
  COALESCE(invoice_id::text, ''), created_at, updated_at
`

func scanSlip(row pgx.Row) (Slip, error) {
	var slip Slip
	err := row.Scan(&slip.ID, &slip.RunID, &slip.Snapshot.EmployeeID, &slip.Snapshot.Name,
		&slip.Snapshot.BasicSalary, &slip.Snapshot.PFApplicable, &slip.Snapshot.ESICApplicable, &slip.Snapshot.PTApplicable,
		&slip.DaysInMonth, &slip.PayableDays, &slip.IsManualDays, &slip.Advances, &slip.OtherDeductions,
		&slip.FixedBasic, &slip.FixedHRA, &slip.FixedAllowance, &slip.GrossFixed,
		&slip.EarnedBasic, &slip.EarnedHRA, &slip.EarnedAllowance, &slip.GrossEarned,
		&slip.PFEmployee, &slip.PFEmployer, &slip.PFAdmin, &slip.ESICEmployee, &slip.ESICEmployer, &slip.PT,
		&slip.TotalDeductions, &slip.NetPay, &slip.TotalEmployerCost, &slip.CostToCompany,
		&slip.InvoiceID, &slip.CreatedAt, &slip.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Slip{}, ErrSlipNotFound
	}
	return slip, err
}

func (s *Store) GetSlip(ctx context.Context, runID, slipID string) (Slip, error) {
	return scanSlip(s.q(ctx).QueryRow(ctx,
		"SELECT "+slipColumns+" FROM payroll_slips WHERE run_id = $1 AND id = $2", runID, slipID))
}

func (s *Store) ListSlips(ctx context.Context, runID string) ([]Slip, error) {
	rows, err := s.q(ctx).Query(ctx,
		"SELECT "+slipColumns+" FROM payroll_slips WHERE run_id = $1 ORDER BY employee_name", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slips []Slip
	for rows.Next() {
		slip, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		slips = append(slips, slip)
	}
	return slips, rows.Err()
}

func (s *Store) UpdateSlipComputation(ctx context.Context, slip Slip) error {
	_, err := s.q(ctx).Exec(ctx, `
    UPDATE payroll_slips SET
      payable_days = $1, is_manual_days = $2, advances = $3, other_deductions = $4,
      fixed_basic = $5, fixed_hra = $6, fixed_allowance = $7, gross_fixed = $8,
      earned_basic = $9, earned_hra = $10, earned_allowance = $11, gross_earned = $12,
      pf_employee = $13, pf_employer = $14, pf_admin = $15,
      esic_employee = $16, esic_employer = $17, pt = $18,
      total_deductions = $19, net_pay = $20, total_employer_cost = $21, cost_to_company = $22,
      updated_at = $23
    WHERE id = $24
  `, slip.PayableDays, slip.IsManualDays, slip.Advances, slip.OtherDeductions,
		slip.FixedBasic, slip.FixedHRA, slip.FixedAllowance, slip.GrossFixed,
		slip.EarnedBasic, slip.EarnedHRA, slip.EarnedAllowance, slip.GrossEarned,
		slip.PFEmployee, slip.PFEmployer, slip.PFAdmin,
		slip.ESICEmployee, slip.ESICEmployer, slip.PT,
		slip.TotalDeductions, slip.NetPay, slip.TotalEmployerCost, slip.CostToCompany,
		slip.UpdatedAt, slip.ID)
	return err
}

func (s *Store) SetSlipInvoice(ctx context.Context, slipID, invoiceID string) error {
	_, err := s.q(ctx).Exec(ctx, "UPDATE payroll_slips SET invoice_id = $1 WHERE id = $2", invoiceID, slipID)
	return err
}

func (s *Store) ClearSlipInvoice(ctx context.Context, slipID string) error {
	_, err := s.q(ctx).Exec(ctx, "UPDATE payroll_slips SET invoice_id = NULL WHERE id = $1", slipID)
	return err
}

func (s *Store) UpdateRunAggregates(ctx context.Context, runID string, totals Totals) error {
	_, err := s.q(ctx).Exec(ctx, `
    UPDATE payroll_runs SET
      total_gross = $1, total_deductions = $2, total_net_pay = $3,
      total_employer_cost = $4, employee_count = $5
    WHERE id = $6
  `, totals.TotalGross, totals.TotalDeductions, totals.TotalNetPay,
		totals.TotalEmployerCost, totals.EmployeeCount, runID)
	return err
}

func (s *Store) MarkRunConfirmed(ctx context.Context, runID, actor string, at time.Time) error {
	_, err := s.q(ctx).Exec(ctx, `
    UPDATE payroll_runs SET status = $1, confirmed_at = $2, confirmed_by = $3 WHERE id = $4
  `, RunStatusConfirmed, at, actor, runID)
	return err
}

func (s *Store) MarkRunCancelled(ctx context.Context, runID, actor string, at time.Time) error {
	_, err := s.q(ctx).Exec(ctx, `
    UPDATE payroll_runs SET status = $1, cancelled_at = $2, cancelled_by = $3 WHERE id = $4
  `, RunStatusCancelled, at, actor, runID)
	return err
}
