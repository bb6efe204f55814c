// Package storage implements the entity store on SQLite. Soft-delete is
// layered transparently: reads exclude marked rows, and the delete path
// dispatches on the core.SoftDeletable capability, so opted-in entity
// types are marked while anything else would be physically removed.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ services.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// removeEntity is the polymorphic delete: entity types implementing
// core.SoftDeletable get marked via markStmt, everything else is
// physically removed via purgeStmt.
func removeEntity(entity any, markStmt func(at time.Time) error, purgeStmt func() error) error {
	if sd, ok := entity.(core.SoftDeletable); ok {
		at := time.Now().UTC()
		sd.MarkDeleted(at)
		return markStmt(at)
	}
	return purgeStmt()
}

// --- users ---

const userCols = `id, email, hashed_password, full_name, is_active, is_superuser, is_deleted, created_at, updated_at, last_login_at`

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	u.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, hashed_password, full_name, is_active, is_superuser, is_deleted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.HashedPassword, u.FullName, u.IsActive, u.IsSuperuser, u.IsDeleted, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", core.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user insert id: %w", err)
	}
	u.ID = id

	slog.InfoContext(ctx, "User saved", "user_id", u.ID, "email", u.Email)
	return nil
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ? AND is_deleted = 0`, id)
	return scanUser(row)
}

// UserByEmail returns the row regardless of deletion state; the caller
// decides whether a deleted account is acceptable.
func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	u.UpdatedAt = &now
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, hashed_password = ?, full_name = ?, is_active = ?,
		 is_superuser = ?, is_deleted = ?, updated_at = ?, last_login_at = ? WHERE id = ?`,
		u.Email, u.HashedPassword, u.FullName, u.IsActive,
		u.IsSuperuser, u.IsDeleted, u.UpdatedAt, nullTime(u.LastLoginAt), u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	var updatedAt, lastLoginAt sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName,
		&u.IsActive, &u.IsSuperuser, &u.IsDeleted, &u.CreatedAt, &updatedAt, &lastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.UpdatedAt = timePtr(updatedAt)
	u.LastLoginAt = timePtr(lastLoginAt)
	return &u, nil
}

// --- categories ---

const categoryCols = `id, name, type, is_default, user_id, is_deleted, deleted_at, created_at, updated_at`

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	c.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, is_default, user_id, is_deleted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, string(c.Type), c.IsDefault, nullInt(c.UserID), c.IsDeleted, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *SQLiteRepository) CategoryByID(ctx context.Context, id int64) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryCols+` FROM categories WHERE id = ? AND is_deleted = 0`, id)
	return scanCategory(row)
}

func (r *SQLiteRepository) CategoriesForUser(ctx context.Context, userID int64, typ *core.TransactionType, skip, limit int) ([]core.Category, error) {
	query := `SELECT ` + categoryCols + ` FROM categories
		 WHERE (is_default = 1 OR user_id = ?) AND is_deleted = 0`
	args := []any{userID}
	if typ != nil {
		query += ` AND type = ?`
		args = append(args, string(*typ))
	}
	query += ` ORDER BY is_default DESC, name ASC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	cats := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategoryRows(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, *c)
	}
	return cats, rows.Err()
}

func (r *SQLiteRepository) DeletedCategoryByName(ctx context.Context, userID int64, name string, typ core.TransactionType) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryCols+` FROM categories
		 WHERE user_id = ? AND name = ? AND type = ? AND is_deleted = 1`,
		userID, name, string(typ))
	return scanCategory(row)
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c *core.Category) error {
	now := time.Now().UTC()
	c.UpdatedAt = &now
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, is_deleted = ?, deleted_at = ?, updated_at = ? WHERE id = ?`,
		c.Name, string(c.Type), c.IsDeleted, nullTime(c.DeletedAt), c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryCols+` FROM categories WHERE id = ?`, id)
	cat, err := scanCategory(row)
	if err != nil {
		return nil, err
	}

	err = removeEntity(cat,
		func(at time.Time) error {
			_, err := r.db.ExecContext(ctx,
				`UPDATE categories SET is_deleted = 1, deleted_at = ? WHERE id = ?`, at, id)
			return err
		},
		func() error {
			_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
			return err
		})
	if err != nil {
		return nil, fmt.Errorf("delete category: %w", err)
	}
	return cat, nil
}

func (r *SQLiteRepository) CategoryTransactionCount(ctx context.Context, userID, categoryID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(id) FROM transactions
		 WHERE category_id = ? AND user_id = ? AND is_deleted = 0`,
		categoryID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count category transactions: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategoryFrom(s rowScanner) (*core.Category, error) {
	var c core.Category
	var typ string
	var userID sql.NullInt64
	var deletedAt, updatedAt sql.NullTime
	err := s.Scan(&c.ID, &c.Name, &typ, &c.IsDefault, &userID, &c.IsDeleted, &deletedAt, &c.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	c.Type = core.TransactionType(typ)
	c.UserID = int64Ptr(userID)
	c.DeletedAt = timePtr(deletedAt)
	c.UpdatedAt = timePtr(updatedAt)
	return &c, nil
}

func scanCategory(row *sql.Row) (*core.Category, error)      { return scanCategoryFrom(row) }
func scanCategoryRows(rows *sql.Rows) (*core.Category, error) { return scanCategoryFrom(rows) }

// --- transactions ---

const txnCols = `id, user_id, category_id, type, amount_cents, description, occurred_on, is_deleted, deleted_at, created_at, updated_at`

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	t.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, type, amount_cents, description, occurred_on, is_deleted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullInt(t.CategoryID), string(t.Type), t.Amount.Cents,
		t.Description, t.OccurredOn.String(), t.IsDeleted, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", t.ID,
		"user_id", t.UserID,
		"transaction_type", t.Type,
		"amount_cents", t.Amount.Cents,
		"occurred_on", t.OccurredOn.String())
	return nil
}

func (r *SQLiteRepository) TransactionByID(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE id = ? AND is_deleted = 0`, id)
	return scanTransaction(row)
}

func (r *SQLiteRepository) DeletedTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txnCols+` FROM transactions
		 WHERE id = ? AND user_id = ? AND is_deleted = 1`, id, userID)
	return scanTransaction(row)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, skip, limit int, includeDeleted bool) ([]core.Transaction, error) {
	query := `SELECT ` + txnCols + ` FROM transactions WHERE user_id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY occurred_on DESC, created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *SQLiteRepository) TransactionsByDateRange(ctx context.Context, userID int64, start, end core.Date, typ *core.TransactionType, categoryID *int64) ([]core.Transaction, error) {
	query := `SELECT ` + txnCols + ` FROM transactions
		 WHERE user_id = ? AND is_deleted = 0 AND occurred_on >= ? AND occurred_on <= ?`
	args := []any{userID, start.String(), end.String()}
	if typ != nil {
		query += ` AND type = ?`
		args = append(args, string(*typ))
	}
	if categoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY occurred_on DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions by date range: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	t.UpdatedAt = &now
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, type = ?, amount_cents = ?, description = ?,
		 occurred_on = ?, is_deleted = ?, deleted_at = ?, updated_at = ? WHERE id = ?`,
		nullInt(t.CategoryID), string(t.Type), t.Amount.Cents, t.Description,
		t.OccurredOn.String(), t.IsDeleted, nullTime(t.DeletedAt), t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}

	err = removeEntity(txn,
		func(at time.Time) error {
			_, err := r.db.ExecContext(ctx,
				`UPDATE transactions SET is_deleted = 1, deleted_at = ? WHERE id = ?`, at, id)
			return err
		},
		func() error {
			_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
			return err
		})
	if err != nil {
		return nil, fmt.Errorf("delete transaction: %w", err)
	}
	return txn, nil
}

func scanTransaction(row *sql.Row) (*core.Transaction, error) {
	return scanTransactionFrom(row)
}

func scanTransactionFrom(s rowScanner) (*core.Transaction, error) {
	var t core.Transaction
	var typ, occurredOn string
	var categoryID sql.NullInt64
	var deletedAt, updatedAt sql.NullTime
	err := s.Scan(&t.ID, &t.UserID, &categoryID, &typ, &t.Amount.Cents,
		&t.Description, &occurredOn, &t.IsDeleted, &deletedAt, &t.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(typ)
	t.CategoryID = int64Ptr(categoryID)
	t.DeletedAt = timePtr(deletedAt)
	t.UpdatedAt = timePtr(updatedAt)
	if t.OccurredOn, err = core.ParseDate(occurredOn); err != nil {
		return nil, fmt.Errorf("parse occurred_on %q: %w", occurredOn, err)
	}
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	txns := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransactionFrom(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// --- aggregates ---

func (r *SQLiteRepository) SumAmount(ctx context.Context, userID int64, typ core.TransactionType, start, end *core.Date) (int64, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND is_deleted = 0 AND type = ?`
	args := []any{userID, string(typ)}
	query, args = appendDateBounds(query, args, start, end)

	var sum int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum amounts: %w", err)
	}
	return sum, nil
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context, userID int64, start, end *core.Date) (int64, error) {
	query := `SELECT COUNT(id) FROM transactions WHERE user_id = ? AND is_deleted = 0`
	args := []any{userID}
	query, args = appendDateBounds(query, args, start, end)

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64, start, end core.Date, typ *core.TransactionType) ([]services.CategoryTotal, error) {
	query := `SELECT c.id, c.name, c.type, SUM(t.amount_cents), COUNT(t.id)
		 FROM transactions t
		 JOIN categories c ON t.category_id = c.id
		 WHERE t.user_id = ? AND t.is_deleted = 0 AND t.occurred_on >= ? AND t.occurred_on <= ?`
	args := []any{userID, start.String(), end.String()}
	if typ != nil {
		query += ` AND t.type = ?`
		args = append(args, string(*typ))
	}
	query += ` GROUP BY c.id, c.name, c.type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	totals := make([]services.CategoryTotal, 0)
	for rows.Next() {
		var ct services.CategoryTotal
		var catType string
		if err := rows.Scan(&ct.CategoryID, &ct.CategoryName, &catType, &ct.TotalCents, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.CategoryType = core.TransactionType(catType)
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

func (r *SQLiteRepository) UncategorizedTotals(ctx context.Context, userID int64, start, end core.Date, typ *core.TransactionType) (int64, int64, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0), COUNT(id) FROM transactions
		 WHERE user_id = ? AND category_id IS NULL AND is_deleted = 0
		 AND occurred_on >= ? AND occurred_on <= ?`
	args := []any{userID, start.String(), end.String()}
	if typ != nil {
		query += ` AND type = ?`
		args = append(args, string(*typ))
	}

	var total, count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("query uncategorized totals: %w", err)
	}
	return total, count, nil
}

func (r *SQLiteRepository) DailyTotals(ctx context.Context, userID int64, since core.Date) ([]services.DailyTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT occurred_on, type, SUM(amount_cents) FROM transactions
		 WHERE user_id = ? AND is_deleted = 0 AND occurred_on >= ?
		 GROUP BY occurred_on, type`,
		userID, since.String())
	if err != nil {
		return nil, fmt.Errorf("query daily totals: %w", err)
	}
	defer rows.Close()

	totals := make([]services.DailyTotal, 0)
	for rows.Next() {
		var dt services.DailyTotal
		var day, typ string
		if err := rows.Scan(&day, &typ, &dt.TotalCents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		if dt.Day, err = core.ParseDate(day); err != nil {
			return nil, fmt.Errorf("parse day %q: %w", day, err)
		}
		dt.Type = core.TransactionType(typ)
		totals = append(totals, dt)
	}
	return totals, rows.Err()
}

func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, userID int64, since core.Date) ([]services.MonthlyTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', occurred_on) AS INTEGER),
		        CAST(strftime('%m', occurred_on) AS INTEGER),
		        type, SUM(amount_cents)
		 FROM transactions
		 WHERE user_id = ? AND is_deleted = 0 AND occurred_on >= ?
		 GROUP BY 1, 2, type`,
		userID, since.String())
	if err != nil {
		return nil, fmt.Errorf("query monthly totals: %w", err)
	}
	defer rows.Close()

	totals := make([]services.MonthlyTotal, 0)
	for rows.Next() {
		var mt services.MonthlyTotal
		var typ string
		if err := rows.Scan(&mt.Year, &mt.Month, &typ, &mt.TotalCents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		mt.Type = core.TransactionType(typ)
		totals = append(totals, mt)
	}
	return totals, rows.Err()
}

// --- helpers ---

func appendDateBounds(query string, args []any, start, end *core.Date) (string, []any) {
	if start != nil {
		query += ` AND occurred_on >= ?`
		args = append(args, start.String())
	}
	if end != nil {
		query += ` AND occurred_on <= ?`
		args = append(args, end.String())
	}
	return query, args
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
