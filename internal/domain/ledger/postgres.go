package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"erp/internal/platform/db"
)

// PostgresBridge persists invoices and journal entries in the finance tables.
// It resolves its querier from the context, so calls made inside
// db.WithTransaction join the caller's transaction.
type PostgresBridge struct {
	Pool *pgxpool.Pool
}

func NewPostgresBridge(pool *pgxpool.Pool) *PostgresBridge {
	return &PostgresBridge{Pool: pool}
}

func (b *PostgresBridge) q(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, b.Pool)
}

func (b *PostgresBridge) PostSalaryInvoiceAndEntry(ctx context.Context, employeeRef string, amount decimal.Decimal, period time.Time) (Posting, error) {
	lines := salaryLines(amount)
	if !Balanced(lines) {
		return Posting{}, ErrUnbalancedEntry
	}

	entryID := uuid.NewString()
	memo := fmt.Sprintf("Salary %s %s", period.Format("2006-01"), employeeRef)
	if err := b.insertEntry(ctx, Entry{ID: entryID, Memo: memo, EntryDate: period, Lines: lines}); err != nil {
		return Posting{}, err
	}

	invoiceID := uuid.NewString()
	_, err := b.q(ctx).Exec(ctx, `
    INSERT INTO invoices (id, category, counterparty, amount, invoice_date, status, ledger_entry_id)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, invoiceID, InvoiceCategorySalary, employeeRef, amount, period, InvoiceStatusConfirmed, entryID)
	if err != nil {
		return Posting{}, err
	}

	return Posting{InvoiceID: invoiceID, EntryID: entryID}, nil
}

func (b *PostgresBridge) ReverseEntry(ctx context.Context, entryID string) (string, error) {
	entry, err := b.getEntry(ctx, entryID)
	if err != nil {
		return "", err
	}
	if entry.Reversed {
		return "", ErrEntryReversed
	}

	reversalID := uuid.NewString()
	reversal := Entry{
		ID:         reversalID,
		Memo:       "Reversal of " + entry.Memo,
		EntryDate:  entry.EntryDate,
		Lines:      mirrorLines(entry.Lines),
		ReversalOf: entry.ID,
	}
	if !Balanced(reversal.Lines) {
		return "", ErrUnbalancedEntry
	}
	if err := b.insertEntry(ctx, reversal); err != nil {
		return "", err
	}

	if _, err := b.q(ctx).Exec(ctx, `
    UPDATE ledger_entries SET reversed = TRUE, reversed_by = $1 WHERE id = $2
  `, reversalID, entryID); err != nil {
		return "", err
	}
	return reversalID, nil
}

func (b *PostgresBridge) CancelInvoice(ctx context.Context, invoiceID string) error {
	tag, err := b.q(ctx).Exec(ctx, `
    UPDATE invoices SET status = $1 WHERE id = $2
  `, InvoiceStatusCancelled, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (b *PostgresBridge) InvoiceEntry(ctx context.Context, invoiceID string) (string, error) {
	var entryID string
	err := b.q(ctx).QueryRow(ctx, `
    SELECT ledger_entry_id FROM invoices WHERE id = $1
  `, invoiceID).Scan(&entryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvoiceNotFound
	}
	if err != nil {
		return "", err
	}
	return entryID, nil
}

func (b *PostgresBridge) insertEntry(ctx context.Context, entry Entry) error {
	_, err := b.q(ctx).Exec(ctx, `
    INSERT INTO ledger_entries (id, memo, entry_date, reversed, reversal_of)
    VALUES ($1,$2,$3,FALSE,$4)
  `, entry.ID, entry.Memo, entry.EntryDate, nullIfEmpty(entry.ReversalOf))
	if err != nil {
		return err
	}
	for _, line := range entry.Lines {
		if _, err := b.q(ctx).Exec(ctx, `
      INSERT INTO ledger_lines (entry_id, account_code, account_name, debit, credit)
      VALUES ($1,$2,$3,$4,$5)
    `, entry.ID, line.AccountCode, line.AccountName, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}

func (b *PostgresBridge) getEntry(ctx context.Context, entryID string) (Entry, error) {
	var entry Entry
	var reversalOf, reversedBy *string
	err := b.q(ctx).QueryRow(ctx, `
    SELECT id, memo, entry_date, reversed, reversal_of, reversed_by
    FROM ledger_entries
    WHERE id = $1
  `, entryID).Scan(&entry.ID, &entry.Memo, &entry.EntryDate, &entry.Reversed, &reversalOf, &reversedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	if reversalOf != nil {
		entry.ReversalOf = *reversalOf
	}
	if reversedBy != nil {
		entry.ReversedBy = *reversedBy
	}

	rows, err := b.q(ctx).Query(ctx, `
    SELECT account_code, account_name, debit, credit
    FROM ledger_lines
    WHERE entry_id = $1
    ORDER BY account_code
  `, entryID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.AccountCode, &line.AccountName, &line.Debit, &line.Credit); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
