// Package services holds the application core: the write protocol for
// the transaction ledger, category lifecycle rules, and the reporting
// engine. Storage backends plug in through the store interfaces below.
package services

import (
	"context"

	"fintrack/internal/core"
)

// UserStore persists user accounts. Lookups return soft-deleted rows
// too; callers decide whether a deleted account is acceptable (it never
// is for authentication).
type UserStore interface {
	CreateUser(ctx context.Context, u *core.User) error
	UserByID(ctx context.Context, id int64) (*core.User, error)
	UserByEmail(ctx context.Context, email string) (*core.User, error)
	UpdateUser(ctx context.Context, u *core.User) error
}

// CategoryStore persists categories with soft-delete semantics. All
// read methods exclude soft-deleted rows except DeletedCategoryByName,
// which exists solely for the restore-on-recreate path.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *core.Category) error
	CategoryByID(ctx context.Context, id int64) (*core.Category, error)
	CategoriesForUser(ctx context.Context, userID int64, typ *core.TransactionType, skip, limit int) ([]core.Category, error)
	DeletedCategoryByName(ctx context.Context, userID int64, name string, typ core.TransactionType) (*core.Category, error)
	UpdateCategory(ctx context.Context, c *core.Category) error
	DeleteCategory(ctx context.Context, id int64) (*core.Category, error)
	CategoryTransactionCount(ctx context.Context, userID, categoryID int64) (int64, error)
}

// TransactionStore persists the transaction ledger and answers the
// aggregate queries the reporting engine is built on.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	TransactionByID(ctx context.Context, id int64) (*core.Transaction, error)
	DeletedTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, skip, limit int, includeDeleted bool) ([]core.Transaction, error)
	TransactionsByDateRange(ctx context.Context, userID int64, start, end core.Date, typ *core.TransactionType, categoryID *int64) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error)

	SumAmount(ctx context.Context, userID int64, typ core.TransactionType, start, end *core.Date) (int64, error)
	CountTransactions(ctx context.Context, userID int64, start, end *core.Date) (int64, error)
	CategoryTotals(ctx context.Context, userID int64, start, end core.Date, typ *core.TransactionType) ([]CategoryTotal, error)
	UncategorizedTotals(ctx context.Context, userID int64, start, end core.Date, typ *core.TransactionType) (totalCents, count int64, err error)
	DailyTotals(ctx context.Context, userID int64, since core.Date) ([]DailyTotal, error)
	MonthlyTotals(ctx context.Context, userID int64, since core.Date) ([]MonthlyTotal, error)
}

// Store bundles the three entity stores; both backends implement it.
type Store interface {
	UserStore
	CategoryStore
	TransactionStore
}

// CategoryTotal is one grouped row of the by-category aggregate.
type CategoryTotal struct {
	CategoryID   int64
	CategoryName string
	CategoryType core.TransactionType
	TotalCents   int64
	Count        int64
}

// DailyTotal is the per-day, per-type sum used by trend bucketing.
type DailyTotal struct {
	Day        core.Date
	Type       core.TransactionType
	TotalCents int64
}

// MonthlyTotal is the per-(year,month), per-type sum used by the
// monthly breakdown and monthly trends.
type MonthlyTotal struct {
	Year       int
	Month      int
	Type       core.TransactionType
	TotalCents int64
}
