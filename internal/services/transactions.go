package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// LedgerService implements the transaction write protocol and the
// ownership-scoped ledger queries.
type LedgerService struct {
	store TransactionStore
	cats  CategoryStore
	today func() core.Date
}

func NewLedgerService(store TransactionStore, cats CategoryStore) *LedgerService {
	return &LedgerService{store: store, cats: cats, today: core.Today}
}

// CreateTransaction is the create-mode input of the write protocol.
// The HTTP layer guarantees the required fields are present before the
// service sees it.
type CreateTransaction struct {
	Type        core.TransactionType
	AmountCents int64
	Description string
	OccurredOn  core.Date
	CategoryID  *int64
}

// TransactionPatch carries the optional fields of a partial update.
type TransactionPatch struct {
	Type        *core.TransactionType
	AmountCents *int64
	Description *string
	OccurredOn  *core.Date
	CategoryID  *int64
}

// ListOptions filters a ledger listing. When either date bound is set
// the date-range query is used with the missing bound defaulted
// (trailing 365 days up to today).
type ListOptions struct {
	Skip           int
	Limit          int
	Type           *core.TransactionType
	CategoryID     *int64
	StartDate      *core.Date
	EndDate        *core.Date
	IncludeDeleted bool
}

// List returns the caller's transactions, newest first.
func (s *LedgerService) List(ctx context.Context, userID int64, opts ListOptions) ([]core.Transaction, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	if opts.StartDate != nil || opts.EndDate != nil {
		start := s.today().AddDays(-365)
		end := s.today()
		if opts.StartDate != nil {
			start = *opts.StartDate
		}
		if opts.EndDate != nil {
			end = *opts.EndDate
		}
		txns, err := s.store.TransactionsByDateRange(ctx, userID, start, end, opts.Type, opts.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("list by date range: %w", err)
		}
		return txns, nil
	}

	txns, err := s.store.ListTransactions(ctx, userID, opts.Skip, opts.Limit, opts.IncludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	// Type/category filters apply after pagination on this path,
	// mirroring the plain listing's behavior.
	filtered := txns[:0]
	for _, t := range txns {
		if opts.Type != nil && t.Type != *opts.Type {
			continue
		}
		if opts.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *opts.CategoryID) {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered, nil
}

// Get returns one active transaction owned by the caller.
func (s *LedgerService) Get(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	txn, err := s.store.TransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, core.ErrNotFound
	}
	return txn, nil
}

// Create records a new transaction for the caller. A referenced
// category must exist, be accessible, and match the transaction type.
func (s *LedgerService) Create(ctx context.Context, userID int64, in CreateTransaction) (*core.Transaction, error) {
	txn := core.Transaction{
		UserID:      userID,
		CategoryID:  in.CategoryID,
		Type:        in.Type,
		Amount:      core.Money{Cents: in.AmountCents},
		Description: in.Description,
		OccurredOn:  in.OccurredOn,
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, userID, *in.CategoryID, in.Type); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateTransaction(ctx, &txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		applog.FieldTxnID, txn.ID,
		applog.FieldUserID, userID,
		applog.FieldTxnType, txn.Type,
		applog.FieldAmountCents, txn.Amount.Cents,
		applog.FieldOccurredOn, txn.OccurredOn.String())
	return &txn, nil
}

// Restore is the restore-mode write: it brings a soft-deleted
// transaction back, otherwise unchanged. Nonexistent, active, or
// foreign rows all look the same to the caller.
func (s *LedgerService) Restore(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	txn, err := s.store.DeletedTransaction(ctx, userID, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("deleted transaction not found: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("lookup deleted transaction: %w", err)
	}

	txn.Restore()
	if err := s.store.UpdateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("restore transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction restored", applog.FieldTxnID, id, applog.FieldUserID, userID)
	return txn, nil
}

// Update applies a partial patch. Category changes are validated
// against the effective type: the new type when the patch sets one,
// the stored type otherwise.
func (s *LedgerService) Update(ctx context.Context, userID, id int64, patch TransactionPatch) (*core.Transaction, error) {
	txn, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	effectiveType := txn.Type
	if patch.Type != nil {
		effectiveType = *patch.Type
	}

	if patch.CategoryID != nil {
		if err := s.checkCategory(ctx, userID, *patch.CategoryID, effectiveType); err != nil {
			return nil, err
		}
		txn.CategoryID = patch.CategoryID
	}
	if patch.Type != nil {
		txn.Type = *patch.Type
	}
	if patch.AmountCents != nil {
		txn.Amount = core.Money{Cents: *patch.AmountCents}
	}
	if patch.Description != nil {
		txn.Description = *patch.Description
	}
	if patch.OccurredOn != nil {
		txn.OccurredOn = *patch.OccurredOn
	}

	if err := txn.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	return txn, nil
}

// Delete soft-deletes a transaction and returns the marked row.
func (s *LedgerService) Delete(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	txn, err := s.store.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Transaction deleted", applog.FieldTxnID, id, applog.FieldUserID, userID)
	return txn, nil
}

func (s *LedgerService) checkCategory(ctx context.Context, userID, categoryID int64, typ core.TransactionType) error {
	cat, err := s.cats.CategoryByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("category not found: %w", core.ErrNotFound)
		}
		return fmt.Errorf("lookup category: %w", err)
	}
	if !cat.AccessibleBy(userID) {
		return fmt.Errorf("no permission to use this category: %w", core.ErrPermissionDenied)
	}
	if cat.Type != typ {
		return core.Validationf("category type %q does not match transaction type %q", cat.Type, typ)
	}
	return nil
}
