package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryBridge keeps invoices and entries in maps. It enforces the same
// balancing and reversal rules as the Postgres bridge and is used by the
// payroll service tests and local development without a database.
type MemoryBridge struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	invoices map[string]*Invoice
}

func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{
		entries:  map[string]*Entry{},
		invoices: map[string]*Invoice{},
	}
}

func (m *MemoryBridge) PostSalaryInvoiceAndEntry(_ context.Context, employeeRef string, amount decimal.Decimal, period time.Time) (Posting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := salaryLines(amount)
	if !Balanced(lines) {
		return Posting{}, ErrUnbalancedEntry
	}

	entry := &Entry{
		ID:        uuid.NewString(),
		Memo:      fmt.Sprintf("Salary %s %s", period.Format("2006-01"), employeeRef),
		EntryDate: period,
		Lines:     lines,
	}
	m.entries[entry.ID] = entry

	invoice := &Invoice{
		ID:            uuid.NewString(),
		Category:      InvoiceCategorySalary,
		Counterparty:  employeeRef,
		Amount:        amount,
		InvoiceDate:   period,
		Status:        InvoiceStatusConfirmed,
		LedgerEntryID: entry.ID,
	}
	m.invoices[invoice.ID] = invoice

	return Posting{InvoiceID: invoice.ID, EntryID: entry.ID}, nil
}

func (m *MemoryBridge) ReverseEntry(_ context.Context, entryID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[entryID]
	if !ok {
		return "", ErrEntryNotFound
	}
	if entry.Reversed {
		return "", ErrEntryReversed
	}

	reversal := &Entry{
		ID:         uuid.NewString(),
		Memo:       "Reversal of " + entry.Memo,
		EntryDate:  entry.EntryDate,
		Lines:      mirrorLines(entry.Lines),
		ReversalOf: entry.ID,
	}
	m.entries[reversal.ID] = reversal
	entry.Reversed = true
	entry.ReversedBy = reversal.ID
	return reversal.ID, nil
}

func (m *MemoryBridge) CancelInvoice(_ context.Context, invoiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	invoice, ok := m.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	invoice.Status = InvoiceStatusCancelled
	return nil
}

func (m *MemoryBridge) InvoiceEntry(_ context.Context, invoiceID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	invoice, ok := m.invoices[invoiceID]
	if !ok {
		return "", ErrInvoiceNotFound
	}
	return invoice.LedgerEntryID, nil
}

// Entry returns a copy of the stored entry, for inspection in tests.
func (m *MemoryBridge) Entry(entryID string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[entryID]
	if !ok {
		return Entry{}, false
	}
	out := *entry
	out.Lines = append([]Line(nil), entry.Lines...)
	return out, true
}

// Invoice returns a copy of the stored invoice, for inspection in tests.
func (m *MemoryBridge) Invoice(invoiceID string) (Invoice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	invoice, ok := m.invoices[invoiceID]
	if !ok {
		return Invoice{}, false
	}
	return *invoice, true
}

// Entries returns copies of all entries, ordered arbitrarily.
func (m *MemoryBridge) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		e := *entry
		e.Lines = append([]Line(nil), entry.Lines...)
		out = append(out, e)
	}
	return out
}
