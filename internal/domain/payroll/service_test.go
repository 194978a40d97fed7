package payroll

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"erp/internal/domain/employee"
	"erp/internal/domain/ledger"
)

type fakeStore struct {
	runs  map[string]Run
	slips map[string]Slip
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[string]Run{}, slips: map[string]Slip{}}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) ActiveRunExists(_ context.Context, month, year int) (bool, error) {
	for _, run := range f.runs {
		if run.Month == month && run.Year == year && run.Status != RunStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertRun(_ context.Context, run Run) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeStore) InsertSlips(_ context.Context, slips []Slip) error {
	for _, slip := range slips {
		f.slips[slip.ID] = slip
	}
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, runID string) (Run, error) {
	run, ok := f.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (f *fakeStore) GetRunForUpdate(ctx context.Context, runID string) (Run, error) {
	return f.GetRun(ctx, runID)
}

func (f *fakeStore) ListRuns(_ context.Context) ([]Run, error) {
	out := make([]Run, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetSlip(_ context.Context, runID, slipID string) (Slip, error) {
	slip, ok := f.slips[slipID]
	if !ok || slip.RunID != runID {
		return Slip{}, ErrSlipNotFound
	}
	return slip, nil
}

func (f *fakeStore) ListSlips(_ context.Context, runID string) ([]Slip, error) {
	out := make([]Slip, 0)
	for _, slip := range f.slips {
		if slip.RunID == runID {
			out = append(out, slip)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Snapshot.Name < out[j].Snapshot.Name })
	return out, nil
}

func (f *fakeStore) UpdateSlipComputation(_ context.Context, slip Slip) error {
	f.slips[slip.ID] = slip
	return nil
}

func (f *fakeStore) SetSlipInvoice(_ context.Context, slipID, invoiceID string) error {
	slip := f.slips[slipID]
	slip.InvoiceID = invoiceID
	f.slips[slipID] = slip
	return nil
}

func (f *fakeStore) ClearSlipInvoice(_ context.Context, slipID string) error {
	slip := f.slips[slipID]
	slip.InvoiceID = ""
	f.slips[slipID] = slip
	return nil
}

func (f *fakeStore) UpdateRunAggregates(_ context.Context, runID string, totals Totals) error {
	run := f.runs[runID]
	run.applyTotals(totals)
	f.runs[runID] = run
	return nil
}

func (f *fakeStore) MarkRunConfirmed(_ context.Context, runID, actor string, at time.Time) error {
	run := f.runs[runID]
	run.Status = RunStatusConfirmed
	run.ConfirmedAt = &at
	run.ConfirmedBy = actor
	f.runs[runID] = run
	return nil
}

func (f *fakeStore) MarkRunCancelled(_ context.Context, runID, actor string, at time.Time) error {
	run := f.runs[runID]
	run.Status = RunStatusCancelled
	run.CancelledAt = &at
	run.CancelledBy = actor
	f.runs[runID] = run
	return nil
}

type fakeDirectory struct {
	employees []employee.Employee
}

func (f fakeDirectory) ListActive(context.Context) ([]employee.Employee, error) {
	return f.employees, nil
}

func testEmployees() []employee.Employee {
	return []employee.Employee{
		{ID: "e1", Name: "Ramesh Pawar", BasicSalary: dec("12000"), PFApplicable: true, ESICApplicable: true, PTApplicable: true},
		{ID: "e2", Name: "Sunita Gaikwad", BasicSalary: dec("9500"), PFApplicable: true, ESICApplicable: true},
		{ID: "e3", Name: "Vikram Chavan", BasicSalary: dec("25000"), PFApplicable: true, PTApplicable: true},
	}
}

func newTestService(store StoreAPI, dir Directory, bridge ledger.Bridge) *Service {
	return NewService(store, dir, bridge, zerolog.Nop())
}

func TestCreateRunSnapshotsAndAggregates(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())

	run, err := svc.CreateRun(context.Background(), 4, 2025, "tester")
	require.NoError(t, err)
	require.Equal(t, RunStatusDraft, run.Status)
	require.Equal(t, 30, run.DaysInMonth)
	require.Equal(t, 3, run.EmployeeCount)

	slips, err := store.ListSlips(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, slips, 3)

	for _, slip := range slips {
		require.True(t, slip.PayableDays.Equal(decimal.NewFromInt(30)))
		require.False(t, slip.IsManualDays)
		require.Empty(t, slip.InvoiceID)
	}

	totals := sumSlips(slips)
	require.True(t, run.TotalNetPay.Equal(totals.TotalNetPay))
	require.True(t, run.TotalGross.Equal(totals.TotalGross))
}

func TestCreateRunDuplicatePeriod(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())
	ctx := context.Background()

	_, err := svc.CreateRun(ctx, 4, 2025, "tester")
	require.NoError(t, err)

	_, err = svc.CreateRun(ctx, 4, 2025, "tester")
	require.ErrorIs(t, err, ErrRunExists)

	// A different period is fine.
	_, err = svc.CreateRun(ctx, 5, 2025, "tester")
	require.NoError(t, err)
}

func TestCreateRunAfterCancelReopensPeriod(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, 4, 2025, "tester")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, run.ID, "tester")
	require.NoError(t, err)

	_, err = svc.CreateRun(ctx, 4, 2025, "tester")
	require.NoError(t, err)
}

func TestCreateRunValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())
	ctx := context.Background()

	_, err := svc.CreateRun(ctx, 0, 2025, "tester")
	require.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = svc.CreateRun(ctx, 13, 2025, "tester")
	require.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = svc.CreateRun(ctx, 1, 1999, "tester")
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestCreateRunNoActiveEmployees(t *testing.T) {
	svc := newTestService(newFakeStore(), fakeDirectory{}, ledger.NewMemoryBridge())

	_, err := svc.CreateRun(context.Background(), 4, 2025, "tester")
	require.ErrorIs(t, err, ErrNoActiveEmployees)
}

func TestEditSlipRecomputesAndResums(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, 4, 2025, "tester")
	require.NoError(t, err)
	slips, _ := store.ListSlips(ctx, run.ID)
	target := slips[0]

	days := decimal.NewFromInt(15)
	advances := dec("1000")
	updated, err := svc.EditSlip(ctx, run.ID, target.ID, SlipPatch{PayableDays: &days, Advances: &advances})
	require.NoError(t, err)
	require.True(t, updated.IsManualDays)
	require.True(t, updated.PayableDays.Equal(days))
	require.True(t, updated.Advances.Equal(advances))

	want := Calculate(CalcInput{
		BasicSalary:    target.Snapshot.BasicSalary,
		PFApplicable:   target.Snapshot.PFApplicable,
		ESICApplicable: target.Snapshot.ESICApplicable,
		PTApplicable:   target.Snapshot.PTApplicable,
		PayableDays:    days,
		DaysInMonth:    run.DaysInMonth,
		Advances:       advances,
	})
	require.True(t, updated.NetPay.Equal(want.NetPay))

	// Aggregates always equal the fold over current slips.
	after, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	current, _ := store.ListSlips(ctx, run.ID)
	totals := sumSlips(current)
	require.True(t, after.TotalNetPay.Equal(totals.TotalNetPay))
	require.True(t, after.TotalDeductions.Equal(totals.TotalDeductions))
}

func TestEditSlipRejectsBadInputs(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")
	slips, _ := store.ListSlips(ctx, run.ID)
	slipID := slips[0].ID

	tooMany := decimal.NewFromInt(31)
	_, err := svc.EditSlip(ctx, run.ID, slipID, SlipPatch{PayableDays: &tooMany})
	require.ErrorIs(t, err, ErrInvalidPayableDays)

	negative := dec("-1")
	_, err = svc.EditSlip(ctx, run.ID, slipID, SlipPatch{PayableDays: &negative})
	require.ErrorIs(t, err, ErrInvalidPayableDays)
	_, err = svc.EditSlip(ctx, run.ID, slipID, SlipPatch{Advances: &negative})
	require.ErrorIs(t, err, ErrNegativeAmount)
	_, err = svc.EditSlip(ctx, run.ID, slipID, SlipPatch{OtherDeductions: &negative})
	require.ErrorIs(t, err, ErrNegativeAmount)

	_, err = svc.EditSlip(ctx, run.ID, "missing", SlipPatch{})
	require.ErrorIs(t, err, ErrSlipNotFound)
}

func TestEditSlipOnlyOnDraft(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")
	slips, _ := store.ListSlips(ctx, run.ID)
	before := slips[0]

	_, err := svc.Confirm(ctx, run.ID, "tester")
	require.NoError(t, err)

	days := decimal.NewFromInt(10)
	_, err = svc.EditSlip(ctx, run.ID, before.ID, SlipPatch{PayableDays: &days})
	require.ErrorIs(t, err, ErrRunNotDraft)

	after, err := store.GetSlip(ctx, run.ID, before.ID)
	require.NoError(t, err)
	require.True(t, after.PayableDays.Equal(before.PayableDays))
}

func TestConfirmPostsInvoicesForPositiveNets(t *testing.T) {
	store := newFakeStore()
	bridge := ledger.NewMemoryBridge()
	svc := newTestService(store, fakeDirectory{testEmployees()}, bridge)
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")

	// Drive one slip's net to zero and below with an advance.
	slips, _ := store.ListSlips(ctx, run.ID)
	sunk := slips[0]
	advance := sunk.NetPay.Add(dec("5000"))
	_, err := svc.EditSlip(ctx, run.ID, sunk.ID, SlipPatch{Advances: &advance})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, run.ID, "approver")
	require.NoError(t, err)
	require.Equal(t, RunStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	require.Equal(t, "approver", confirmed.ConfirmedBy)

	slips, _ = store.ListSlips(ctx, run.ID)
	invoiced := 0
	for _, slip := range slips {
		if slip.ID == sunk.ID {
			require.Empty(t, slip.InvoiceID, "negative-net slip must not be invoiced")
			continue
		}
		require.NotEmpty(t, slip.InvoiceID)
		invoiced++

		invoice, ok := bridge.Invoice(slip.InvoiceID)
		require.True(t, ok)
		require.Equal(t, ledger.InvoiceStatusConfirmed, invoice.Status)
		require.True(t, invoice.Amount.Equal(slip.NetPay))
		require.Equal(t, slip.Snapshot.Name, invoice.Counterparty)

		entry, ok := bridge.Entry(invoice.LedgerEntryID)
		require.True(t, ok)
		require.True(t, ledger.Balanced(entry.Lines))
	}
	require.Equal(t, 2, invoiced)
}

func TestConfirmOnlyOnDraft(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")
	_, err := svc.Confirm(ctx, run.ID, "tester")
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, run.ID, "tester")
	require.ErrorIs(t, err, ErrRunNotDraft)

	_, err = svc.Confirm(ctx, "missing", "tester")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestCancelConfirmedRunReversesPostings(t *testing.T) {
	store := newFakeStore()
	bridge := ledger.NewMemoryBridge()
	svc := newTestService(store, fakeDirectory{testEmployees()}, bridge)
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")
	_, err := svc.Confirm(ctx, run.ID, "tester")
	require.NoError(t, err)

	slips, _ := store.ListSlips(ctx, run.ID)
	type posted struct{ invoiceID, entryID string }
	postings := make([]posted, 0, len(slips))
	for _, slip := range slips {
		invoice, ok := bridge.Invoice(slip.InvoiceID)
		require.True(t, ok)
		postings = append(postings, posted{slip.InvoiceID, invoice.LedgerEntryID})
	}

	cancelled, err := svc.Cancel(ctx, run.ID, "approver")
	require.NoError(t, err)
	require.Equal(t, RunStatusCancelled, cancelled.Status)
	require.Equal(t, "approver", cancelled.CancelledBy)

	for _, p := range postings {
		invoice, ok := bridge.Invoice(p.invoiceID)
		require.True(t, ok)
		require.Equal(t, ledger.InvoiceStatusCancelled, invoice.Status)

		original, ok := bridge.Entry(p.entryID)
		require.True(t, ok)
		require.True(t, original.Reversed)
		require.NotEmpty(t, original.ReversedBy)

		reversal, ok := bridge.Entry(original.ReversedBy)
		require.True(t, ok)
		require.Equal(t, p.entryID, reversal.ReversalOf)
		require.Len(t, reversal.Lines, len(original.Lines))
		for i, line := range original.Lines {
			require.True(t, reversal.Lines[i].Debit.Equal(line.Credit))
			require.True(t, reversal.Lines[i].Credit.Equal(line.Debit))
		}
	}

	// Invoice references are cleared once undone.
	slips, _ = store.ListSlips(ctx, run.ID)
	for _, slip := range slips {
		require.Empty(t, slip.InvoiceID)
	}
}

func TestCancelDraftRunSkipsLedger(t *testing.T) {
	store := newFakeStore()
	bridge := ledger.NewMemoryBridge()
	svc := newTestService(store, fakeDirectory{testEmployees()}, bridge)
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")
	cancelled, err := svc.Cancel(ctx, run.ID, "tester")
	require.NoError(t, err)
	require.Equal(t, RunStatusCancelled, cancelled.Status)
	require.Empty(t, bridge.Entries())
}

var errLedgerDown = errors.New("ledger unavailable")

// flakyBridge fails the Nth posting or every reversal, to exercise the
// all-or-nothing behavior of confirm and cancel.
type flakyBridge struct {
	*ledger.MemoryBridge
	failPostOn   int
	failReversal bool
	posts        int
}

func (b *flakyBridge) PostSalaryInvoiceAndEntry(ctx context.Context, employeeRef string, amount decimal.Decimal, period time.Time) (ledger.Posting, error) {
	b.posts++
	if b.posts == b.failPostOn {
		return ledger.Posting{}, errLedgerDown
	}
	return b.MemoryBridge.PostSalaryInvoiceAndEntry(ctx, employeeRef, amount, period)
}

func (b *flakyBridge) ReverseEntry(ctx context.Context, entryID string) (string, error) {
	if b.failReversal {
		return "", errLedgerDown
	}
	return b.MemoryBridge.ReverseEntry(ctx, entryID)
}

func TestConfirmAbortsWhenPostingFails(t *testing.T) {
	store := newFakeStore()
	bridge := &flakyBridge{MemoryBridge: ledger.NewMemoryBridge(), failPostOn: 2}
	svc := newTestService(store, fakeDirectory{testEmployees()}, bridge)
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")

	_, err := svc.Confirm(ctx, run.ID, "tester")
	require.ErrorIs(t, err, errLedgerDown)

	after, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, RunStatusDraft, after.Status)
	require.Nil(t, after.ConfirmedAt)
}

func TestCancelAbortsWhenReversalFails(t *testing.T) {
	store := newFakeStore()
	bridge := &flakyBridge{MemoryBridge: ledger.NewMemoryBridge()}
	svc := newTestService(store, fakeDirectory{testEmployees()}, bridge)
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")
	_, err := svc.Confirm(ctx, run.ID, "tester")
	require.NoError(t, err)

	bridge.failReversal = true
	_, err = svc.Cancel(ctx, run.ID, "tester")
	require.ErrorIs(t, err, errLedgerDown)

	after, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, RunStatusConfirmed, after.Status)
	require.Nil(t, after.CancelledAt)

	// The run is still cancellable once the ledger recovers.
	bridge.failReversal = false
	cancelled, err := svc.Cancel(ctx, run.ID, "tester")
	require.NoError(t, err)
	require.Equal(t, RunStatusCancelled, cancelled.Status)
}

func TestCancelIsTerminal(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeDirectory{testEmployees()}, ledger.NewMemoryBridge())
	ctx := context.Background()

	run, _ := svc.CreateRun(ctx, 4, 2025, "tester")
	_, err := svc.Cancel(ctx, run.ID, "tester")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, run.ID, "tester")
	require.ErrorIs(t, err, ErrRunCancelled)
	_, err = svc.Confirm(ctx, run.ID, "tester")
	require.ErrorIs(t, err, ErrRunNotDraft)
}
