/*
Package ledger posts verified shift income to the finance ledger exactly once.

PURPOSE:
  Verification turns a shift's reported income into immutable finance
  transactions. Re-verifying, double-clicking, or two owners verifying at
  the same moment must never post the money twice.

IDEMPOTENCY:
  Two layers guard every shift:
    1. Fast path: TransactionsByShift before writing. Existing rows return
       *AlreadyImportedError without touching the ledger.
    2. Authoritative: the storage unique index on
       (related_shift_report_id, payment_method). Whoever loses a race gets
       *StorageConflictError, which also satisfies errors.Is(err, ErrAlreadyImported).
  Conflicts are surfaced to the caller, never retried.

POSTING RULES:
  - One income transaction per INCOME field of the club's report template
  - payment_method = the field's metric key (cash_income, card_income, ...)
  - Zero and negative values are skipped
  - transaction_date = the shift's check-in
  - category = "Club revenue", club-specific first, then the global default

USAGE:
  guard := ledger.NewGuard(store, logger)
  txs, err := guard.ImportShift(ctx, shift, "owner-1")
  if errors.Is(err, compensation.ErrAlreadyImported) {
      // 409
  }
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/google/uuid"
)

// Guard converts shifts into ledger transactions.
type Guard struct {
	store  compensation.Store
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

// NewGuard creates a guard over store. A nil logger discards output.
func NewGuard(store compensation.Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Guard{
		store:  store,
		logger: logger.With("component", "ledger"),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// WithStore returns a guard bound to another store, typically the
// transaction-scoped store handed out by TxStore.WithTx.
func (g *Guard) WithStore(store compensation.Store) *Guard {
	cp := *g
	cp.store = store
	return &cp
}

// ImportShift posts the shift's income. It returns the created rows, which
// may be empty when every income field is zero.
func (g *Guard) ImportShift(ctx context.Context, shift compensation.ShiftRecord, actor string) ([]compensation.FinanceTransaction, error) {
	existing, err := g.store.TransactionsByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing transactions for shift %s: %w", shift.ID, err)
	}
	if len(existing) > 0 {
		return nil, &compensation.AlreadyImportedError{ShiftID: shift.ID, Existing: len(existing)}
	}

	template, err := g.template(ctx, shift.ClubID)
	if err != nil {
		return nil, err
	}
	category, err := g.store.ResolveCategory(ctx, shift.ClubID, compensation.CategoryClubRevenue)
	if err != nil {
		return nil, fmt.Errorf("resolve revenue category for club %s: %w", shift.ClubID, err)
	}
	categoryID := ""
	if category != nil {
		categoryID = category.ID
	}

	now := g.now()
	var txs []compensation.FinanceTransaction
	for _, field := range template.Fields {
		if field.FieldType != compensation.FieldIncome {
			continue
		}
		amount := shift.IncomeField(field.MetricKey)
		if !amount.IsPositive() {
			continue
		}
		label := field.CustomLabel
		if label == "" {
			label = field.MetricKey
		}
		txs = append(txs, compensation.FinanceTransaction{
			ID:              g.newID(),
			ClubID:          shift.ClubID,
			CategoryID:      categoryID,
			Amount:          compensation.RoundMoney(amount),
			Type:            compensation.TxIncome,
			PaymentMethod:   field.MetricKey,
			Status:          compensation.TxStatusCompleted,
			TransactionDate: shift.CheckIn,
			RelatedShiftID:  shift.ID,
			Description:     fmt.Sprintf("Shift %s: %s", shift.ID, label),
			CreatedBy:       actor,
			CreatedAt:       now,
		})
	}
	if len(txs) == 0 {
		g.logger.InfoContext(ctx, "shift has no income to post", "shift_id", shift.ID)
		return txs, nil
	}

	if err := g.store.AppendTransactions(ctx, txs); err != nil {
		return nil, err
	}
	g.logger.InfoContext(ctx, "shift income posted",
		"shift_id", shift.ID,
		"club_id", shift.ClubID,
		"transactions", len(txs),
	)
	return txs, nil
}

// GenerateResult summarizes a GenerateFromShifts run.
type GenerateResult struct {
	Created  int      `json:"created"`  // transactions written
	Skipped  int      `json:"skipped"`  // shifts already imported
	ShiftIDs []string `json:"shift_ids"` // shifts imported by this run
}

// GenerateFromShifts imports every verified or paid shift of the club
// checked in within [from, to) that has no ledger rows yet.
func (g *Guard) GenerateFromShifts(ctx context.Context, clubID string, from, to time.Time, actor string) (GenerateResult, error) {
	res := GenerateResult{ShiftIDs: []string{}}
	if clubID == "" {
		return res, &compensation.ValidationError{Field: "club_id", Message: "is required"}
	}
	if !to.After(from) {
		return res, &compensation.ValidationError{Field: "to", Message: "must be after from"}
	}

	shifts, err := g.store.ListShifts(ctx, compensation.ShiftFilter{
		ClubID:   clubID,
		Statuses: []compensation.ShiftStatus{compensation.StatusVerified, compensation.StatusPaid},
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return res, fmt.Errorf("list shifts for club %s: %w", clubID, err)
	}

	for _, sh := range shifts {
		txs, err := g.ImportShift(ctx, sh, actor)
		if errors.Is(err, compensation.ErrAlreadyImported) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("import shift %s: %w", sh.ID, err)
		}
		res.Created += len(txs)
		res.ShiftIDs = append(res.ShiftIDs, sh.ID)
	}
	return res, nil
}

// RecordManual appends an owner-entered transaction.
func (g *Guard) RecordManual(ctx context.Context, tx compensation.FinanceTransaction) (compensation.FinanceTransaction, error) {
	if err := validateManual(tx); err != nil {
		return tx, err
	}
	if tx.ID == "" {
		tx.ID = g.newID()
	}
	if tx.Status == "" {
		tx.Status = compensation.TxStatusCompleted
	}
	tx.Amount = compensation.RoundMoney(tx.Amount)
	tx.CreatedAt = g.now()

	if err := g.store.AppendTransactions(ctx, []compensation.FinanceTransaction{tx}); err != nil {
		return tx, err
	}
	return tx, nil
}

// ShiftTransactions returns the ledger rows posted for a shift.
func (g *Guard) ShiftTransactions(ctx context.Context, shiftID string) ([]compensation.FinanceTransaction, error) {
	return g.store.TransactionsByShift(ctx, shiftID)
}

// Transactions lists ledger rows.
func (g *Guard) Transactions(ctx context.Context, f compensation.TransactionFilter) ([]compensation.FinanceTransaction, error) {
	return g.store.ListTransactions(ctx, f)
}

func (g *Guard) template(ctx context.Context, clubID string) (compensation.ReportTemplate, error) {
	t, err := g.store.ReportTemplate(ctx, clubID)
	if err != nil {
		return compensation.ReportTemplate{}, fmt.Errorf("load report template for club %s: %w", clubID, err)
	}
	if t == nil || len(t.Fields) == 0 {
		return compensation.DefaultReportTemplate(clubID), nil
	}
	return *t, nil
}

func validateManual(tx compensation.FinanceTransaction) error {
	if tx.ClubID == "" {
		return &compensation.ValidationError{Field: "club_id", Message: "is required"}
	}
	if !tx.Amount.IsPositive() {
		return &compensation.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if tx.Type != compensation.TxIncome && tx.Type != compensation.TxExpense {
		return &compensation.ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", tx.Type)}
	}
	if tx.PaymentMethod == "" {
		return &compensation.ValidationError{Field: "payment_method", Message: "is required"}
	}
	if tx.TransactionDate.IsZero() {
		return &compensation.ValidationError{Field: "transaction_date", Message: "is required"}
	}
	return nil
}
