package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// The payroll engine treats invoicing and bookkeeping as an external finance
// subsystem reached through this bridge. The bridge owns the double-entry
// invariant: every posted entry balances, and corrections are made by posting
// a mirror-image reversal, never by mutating the original entry.

const (
	InvoiceCategorySalary = "salary"

	InvoiceStatusConfirmed = "confirmed"
	InvoiceStatusCancelled = "cancelled"

	AccountSalaryExpense   = "6100"
	AccountSalariesPayable = "2100"
)

var (
	ErrUnbalancedEntry = errors.New("ledger entry debits and credits do not balance")
	ErrEntryNotFound   = errors.New("ledger entry not found")
	ErrEntryReversed   = errors.New("ledger entry is already reversed")
	ErrInvoiceNotFound = errors.New("invoice not found")
)

type Line struct {
	AccountCode string          `json:"accountCode"`
	AccountName string          `json:"accountName"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

type Entry struct {
	ID         string    `json:"id"`
	Memo       string    `json:"memo"`
	EntryDate  time.Time `json:"entryDate"`
	Lines      []Line    `json:"lines"`
	Reversed   bool      `json:"reversed"`
	ReversalOf string    `json:"reversalOf,omitempty"`
	ReversedBy string    `json:"reversedBy,omitempty"`
}

type Invoice struct {
	ID            string          `json:"id"`
	Category      string          `json:"category"`
	Counterparty  string          `json:"counterparty"`
	Amount        decimal.Decimal `json:"amount"`
	InvoiceDate   time.Time       `json:"invoiceDate"`
	Status        string          `json:"status"`
	LedgerEntryID string          `json:"ledgerEntryId"`
}

// Posting is the pair of references handed back to the caller after a salary
// invoice and its balanced journal entry are created together.
type Posting struct {
	InvoiceID string
	EntryID   string
}

type Bridge interface {
	// PostSalaryInvoiceAndEntry creates a confirmed salary invoice for the
	// employee and a balanced entry debiting salary expense and crediting
	// salaries payable, both for amount, dated to period.
	PostSalaryInvoiceAndEntry(ctx context.Context, employeeRef string, amount decimal.Decimal, period time.Time) (Posting, error)

	// ReverseEntry posts a new entry mirroring every line of entryID with
	// debit and credit swapped, marks the original reversed and links the
	// pair. Returns ErrEntryReversed if it was already reversed.
	ReverseEntry(ctx context.Context, entryID string) (string, error)

	// CancelInvoice marks the invoice cancelled. The entry reversal is a
	// separate step so the caller controls ordering.
	CancelInvoice(ctx context.Context, invoiceID string) error

	// InvoiceEntry returns the ledger entry id an invoice is confirmed
	// against, so callers holding only an invoice reference can reverse it.
	InvoiceEntry(ctx context.Context, invoiceID string) (string, error)
}

// Balanced reports whether debits equal credits across the lines.
func Balanced(lines []Line) bool {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, line := range lines {
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	return debits.Equal(credits)
}

func salaryLines(amount decimal.Decimal) []Line {
	return []Line{
		{AccountCode: AccountSalaryExpense, AccountName: "Salary Expense", Debit: amount, Credit: decimal.Zero},
		{AccountCode: AccountSalariesPayable, AccountName: "Salaries Payable", Debit: decimal.Zero, Credit: amount},
	}
}

func mirrorLines(lines []Line) []Line {
	mirrored := make([]Line, len(lines))
	for i, line := range lines {
		mirrored[i] = Line{
			AccountCode: line.AccountCode,
			AccountName: line.AccountName,
			Debit:       line.Credit,
			Credit:      line.Debit,
		}
	}
	return mirrored
}
