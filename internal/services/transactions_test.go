package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

func seedTransaction(t *testing.T, ledger *services.LedgerService, userID int64, typ core.TransactionType, cents int64, daysAgo int) *core.Transaction {
	t.Helper()
	txn, err := ledger.Create(context.Background(), userID, services.CreateTransaction{
		Type:        typ,
		AmountCents: cents,
		OccurredOn:  core.Today().AddDays(-daysAgo),
	})
	require.NoError(t, err)
	return txn
}

func TestTransactionCreate(t *testing.T) {
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, store)
	ctx := context.Background()
	user := seedUser(t, store, "t1@example.com")

	txn, err := ledger.Create(ctx, user.ID, services.CreateTransaction{
		Type:        core.Expense,
		AmountCents: 2599,
		Description: "groceries",
		OccurredOn:  core.Today(),
	})
	require.NoError(t, err)
	assert.NotZero(t, txn.ID)
	assert.Equal(t, user.ID, txn.UserID)
	assert.Equal(t, "25.99", txn.Amount.String())

	_, err = ledger.Create(ctx, user.ID, services.CreateTransaction{
		Type:        core.Expense,
		AmountCents: 0,
		OccurredOn:  core.Today(),
	})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestTransactionCategoryRules(t *testing.T) {
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, store)
	cats := services.NewCategoryService(store)
	ctx := context.Background()
	user := seedUser(t, store, "t2@example.com")
	other := seedUser(t, store, "t2b@example.com")

	expenseCat, err := cats.Create(ctx, user.ID, "Rent", core.Expense)
	require.NoError(t, err)
	foreignCat, err := cats.Create(ctx, other.ID, "Private", core.Expense)
	require.NoError(t, err)

	// Type mismatch between category and transaction.
	_, err = ledger.Create(ctx, user.ID, services.CreateTransaction{
		Type:        core.Income,
		AmountCents: 1000,
		OccurredOn:  core.Today(),
		CategoryID:  &expenseCat.ID,
	})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	// Another user's category.
	_, err = ledger.Create(ctx, user.ID, services.CreateTransaction{
		Type:        core.Expense,
		AmountCents: 1000,
		OccurredOn:  core.Today(),
		CategoryID:  &foreignCat.ID,
	})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	// Nonexistent category.
	missing := int64(9999)
	_, err = ledger.Create(ctx, user.ID, services.CreateTransaction{
		Type:        core.Expense,
		AmountCents: 1000,
		OccurredOn:  core.Today(),
		CategoryID:  &missing,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransactionOwnershipHidesRows(t *testing.T) {
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, store)
	ctx := context.Background()
	owner := seedUser(t, store, "t3@example.com")
	intruder := seedUser(t, store, "t3b@example.com")

	txn := seedTransaction(t, ledger, owner.ID, core.Expense, 1000, 0)

	_, err := ledger.Get(ctx, intruder.ID, txn.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = ledger.Delete(ctx, intruder.ID, txn.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// The row is untouched for its owner.
	got, err := ledger.Get(ctx, owner.ID, txn.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
}

func TestTransactionDeleteRestoreRoundTrip(t *testing.T) {
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, store)
	ctx := context.Background()
	user := seedUser(t, store, "t4@example.com")

	txn := seedTransaction(t, ledger, user.ID, core.Income, 50000, 2)

	deleted, err := ledger.Delete(ctx, user.ID, txn.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.NotNil(t, deleted.DeletedAt)

	// Reads no longer see it.
	_, err = ledger.Get(ctx, user.ID, txn.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// But a listing with include_deleted does.
	txns, err := ledger.List(ctx, user.ID, services.ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].IsDeleted)

	restored, err := ledger.Restore(ctx, user.ID, txn.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, txn.Amount, restored.Amount)

	// Restoring an active transaction fails.
	_, err = ledger.Restore(ctx, user.ID, txn.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransactionRestoreForeignRow(t *testing.T) {
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, store)
	ctx := context.Background()
	owner := seedUser(t, store, "t5@example.com")
	intruder := seedUser(t, store, "t5b@example.com")

	txn := seedTransaction(t, ledger, owner.ID, core.Expense, 1000, 0)
	_, err := ledger.Delete(ctx, owner.ID, txn.ID)
	require.NoError(t, err)

	_, err = ledger.Restore(ctx, intruder.ID, txn.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransactionUpdate(t *testing.T) {
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, store)
	cats := services.NewCategoryService(store)
	ctx := context.Background()
	user := seedUser(t, store, "t6@example.com")

	incomeCat, err := cats.Create(ctx, user.ID, "Side gigs", core.Income)
	require.NoError(t, err)

	txn := seedTransaction(t, ledger, user.ID, core.Expense, 1000, 1)

	// Changing type and category together validates against the new type.
	newType := core.Income
	updated, err := ledger.Update(ctx, user.ID, txn.ID, services.TransactionPatch{
		Type:       &newType,
		CategoryID: &incomeCat.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, core.Income, updated.Type)
	require.NotNil(t, updated.CategoryID)
	assert.Equal(t, incomeCat.ID, *updated.CategoryID)

	// The category alone against the stored type now mismatches nothing;
	// an expense category would.
	expenseCat, err := cats.Create(ctx, user.ID, "Bills", core.Expense)
	require.NoError(t, err)
	_, err = ledger.Update(ctx, user.ID, txn.ID, services.TransactionPatch{CategoryID: &expenseCat.ID})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	newAmount := int64(4250)
	updated, err = ledger.Update(ctx, user.ID, txn.ID, services.TransactionPatch{AmountCents: &newAmount})
	require.NoError(t, err)
	assert.Equal(t, "42.50", updated.Amount.String())
}

func TestTransactionListFilters(t *testing.T) {
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, store)
	ctx := context.Background()
	user := seedUser(t, store, "t7@example.com")

	seedTransaction(t, ledger, user.ID, core.Income, 100000, 10)
	seedTransaction(t, ledger, user.ID, core.Expense, 2000, 5)
	seedTransaction(t, ledger, user.ID, core.Expense, 3000, 1)

	// Newest first on the plain listing.
	txns, err := ledger.List(ctx, user.ID, services.ListOptions{})
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, int64(3000), txns[0].Amount.Cents)
	assert.Equal(t, int64(100000), txns[2].Amount.Cents)

	income := core.Income
	txns, err = ledger.List(ctx, user.ID, services.ListOptions{Type: &income})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, core.Income, txns[0].Type)

	// Date-bounded listing excludes rows outside the window.
	start := core.Today().AddDays(-6)
	txns, err = ledger.List(ctx, user.ID, services.ListOptions{StartDate: &start})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}
