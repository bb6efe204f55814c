// Package memory provides an in-memory Store used by tests and the
// "memory" data backend. Query semantics mirror the SQLite repository.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type Store struct {
	mu sync.RWMutex

	users        map[int64]*core.User
	categories   map[int64]*core.Category
	transactions map[int64]*core.Transaction

	nextUserID     int64
	nextCategoryID int64
	nextTxnID      int64
}

var _ services.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:        make(map[int64]*core.User),
		categories:   make(map[int64]*core.Category),
		transactions: make(map[int64]*core.Transaction),
	}
}

// SeedDefaults installs the system default categories the SQLite
// migrations would normally create.
func (s *Store) SeedDefaults() {
	defaults := []struct {
		name string
		typ  core.TransactionType
	}{
		{"Food", core.Expense},
		{"Transport", core.Expense},
		{"Entertainment", core.Expense},
		{"Health", core.Expense},
		{"Shopping", core.Expense},
		{"Utilities", core.Expense},
		{"Salary", core.Income},
		{"Freelance", core.Income},
		{"Investments", core.Income},
		{"Gifts", core.Income},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range defaults {
		s.nextCategoryID++
		s.categories[s.nextCategoryID] = &core.Category{
			ID:        s.nextCategoryID,
			Name:      d.name,
			Type:      d.typ,
			IsDefault: true,
			CreatedAt: time.Now().UTC(),
		}
	}
}

// markOrPurge applies the soft-delete capability check: entities that
// implement core.SoftDeletable are marked, everything else is removed
// via purge.
func markOrPurge(entity any, purge func()) {
	if sd, ok := entity.(core.SoftDeletable); ok {
		sd.MarkDeleted(time.Now().UTC())
		return
	}
	purge()
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.ErrConflict
		}
	}

	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) UserByID(_ context.Context, id int64) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return core.ErrNotFound
	}
	now := time.Now().UTC()
	u.UpdatedAt = &now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// --- categories ---

func (s *Store) CreateCategory(_ context.Context, c *core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCategoryID++
	c.ID = s.nextCategoryID
	c.CreatedAt = time.Now().UTC()
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *Store) CategoryByID(_ context.Context, id int64) (*core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok || c.IsDeleted {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) CategoriesForUser(_ context.Context, userID int64, typ *core.TransactionType, skip, limit int) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cats := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.IsDeleted {
			continue
		}
		if !c.IsDefault && (c.UserID == nil || *c.UserID != userID) {
			continue
		}
		if typ != nil && c.Type != *typ {
			continue
		}
		cats = append(cats, *c)
	}

	sort.Slice(cats, func(i, j int) bool {
		if cats[i].IsDefault != cats[j].IsDefault {
			return cats[i].IsDefault
		}
		return cats[i].Name < cats[j].Name
	})
	return paginate(cats, skip, limit), nil
}

func (s *Store) DeletedCategoryByName(_ context.Context, userID int64, name string, typ core.TransactionType) (*core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.IsDeleted && c.UserID != nil && *c.UserID == userID && c.Name == name && c.Type == typ {
			cp := *c
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) UpdateCategory(_ context.Context, c *core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[c.ID]; !ok {
		return core.ErrNotFound
	}
	now := time.Now().UTC()
	c.UpdatedAt = &now
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) (*core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	markOrPurge(c, func() { delete(s.categories, id) })
	cp := *c
	return &cp, nil
}

func (s *Store) CategoryTransactionCount(_ context.Context, userID, categoryID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, t := range s.transactions {
		if t.UserID == userID && !t.IsDeleted && t.CategoryID != nil && *t.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

// --- transactions ---

func (s *Store) CreateTransaction(_ context.Context, t *core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTxnID++
	t.ID = s.nextTxnID
	t.CreatedAt = time.Now().UTC()
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

func (s *Store) TransactionByID(_ context.Context, id int64) (*core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok || t.IsDeleted {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) DeletedTransaction(_ context.Context, userID, id int64) (*core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok || !t.IsDeleted || t.UserID != userID {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTransactions(_ context.Context, userID int64, skip, limit int, includeDeleted bool) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := make([]core.Transaction, 0)
	for _, t := range s.transactions {
		if t.UserID != userID {
			continue
		}
		if !includeDeleted && t.IsDeleted {
			continue
		}
		txns = append(txns, *t)
	}
	sortNewestFirst(txns)
	return paginate(txns, skip, limit), nil
}

func (s *Store) TransactionsByDateRange(_ context.Context, userID int64, start, end core.Date, typ *core.TransactionType, categoryID *int64) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := make([]core.Transaction, 0)
	for _, t := range s.transactions {
		if t.UserID != userID || t.IsDeleted {
			continue
		}
		if t.OccurredOn.Before(start.Time) || t.OccurredOn.After(end.Time) {
			continue
		}
		if typ != nil && t.Type != *typ {
			continue
		}
		if categoryID != nil && (t.CategoryID == nil || *t.CategoryID != *categoryID) {
			continue
		}
		txns = append(txns, *t)
	}
	sortNewestFirst(txns)
	return txns, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t *core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[t.ID]; !ok {
		return core.ErrNotFound
	}
	now := time.Now().UTC()
	t.UpdatedAt = &now
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id int64) (*core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return nil, core.ErrNotFound
	}
	markOrPurge(t, func() { delete(s.transactions, id) })
	cp := *t
	return &cp, nil
}

// --- aggregates ---

func (s *Store) SumAmount(_ context.Context, userID int64, typ core.TransactionType, start, end *core.Date) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, t := range s.transactions {
		if t.UserID != userID || t.IsDeleted || t.Type != typ {
			continue
		}
		if !withinBounds(t.OccurredOn, start, end) {
			continue
		}
		sum += t.Amount.Cents
	}
	return sum, nil
}

func (s *Store) CountTransactions(_ context.Context, userID int64, start, end *core.Date) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, t := range s.transactions {
		if t.UserID != userID || t.IsDeleted {
			continue
		}
		if !withinBounds(t.OccurredOn, start, end) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *Store) CategoryTotals(_ context.Context, userID int64, start, end core.Date, typ *core.TransactionType) ([]services.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCategory := make(map[int64]*services.CategoryTotal)
	for _, t := range s.transactions {
		if t.UserID != userID || t.IsDeleted || t.CategoryID == nil {
			continue
		}
		if t.OccurredOn.Before(start.Time) || t.OccurredOn.After(end.Time) {
			continue
		}
		if typ != nil && t.Type != *typ {
			continue
		}
		cat, ok := s.categories[*t.CategoryID]
		if !ok {
			continue
		}
		ct, ok := byCategory[cat.ID]
		if !ok {
			ct = &services.CategoryTotal{
				CategoryID:   cat.ID,
				CategoryName: cat.Name,
				CategoryType: cat.Type,
			}
			byCategory[cat.ID] = ct
		}
		ct.TotalCents += t.Amount.Cents
		ct.Count++
	}

	totals := make([]services.CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		totals = append(totals, *ct)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].CategoryID < totals[j].CategoryID })
	return totals, nil
}

func (s *Store) UncategorizedTotals(_ context.Context, userID int64, start, end core.Date, typ *core.TransactionType) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, count int64
	for _, t := range s.transactions {
		if t.UserID != userID || t.IsDeleted || t.CategoryID != nil {
			continue
		}
		if t.OccurredOn.Before(start.Time) || t.OccurredOn.After(end.Time) {
			continue
		}
		if typ != nil && t.Type != *typ {
			continue
		}
		total += t.Amount.Cents
		count++
	}
	return total, count, nil
}

func (s *Store) DailyTotals(_ context.Context, userID int64, since core.Date) ([]services.DailyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		day string
		typ core.TransactionType
	}
	grouped := make(map[key]*services.DailyTotal)
	for _, t := range s.transactions {
		if t.UserID != userID || t.IsDeleted || t.OccurredOn.Before(since.Time) {
			continue
		}
		k := key{day: t.OccurredOn.String(), typ: t.Type}
		dt, ok := grouped[k]
		if !ok {
			dt = &services.DailyTotal{Day: t.OccurredOn, Type: t.Type}
			grouped[k] = dt
		}
		dt.TotalCents += t.Amount.Cents
	}

	totals := make([]services.DailyTotal, 0, len(grouped))
	for _, dt := range grouped {
		totals = append(totals, *dt)
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].Day.Equal(totals[j].Day.Time) {
			return totals[i].Day.Before(totals[j].Day.Time)
		}
		return totals[i].Type < totals[j].Type
	})
	return totals, nil
}

func (s *Store) MonthlyTotals(_ context.Context, userID int64, since core.Date) ([]services.MonthlyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		year, month int
		typ         core.TransactionType
	}
	grouped := make(map[key]*services.MonthlyTotal)
	for _, t := range s.transactions {
		if t.UserID != userID || t.IsDeleted || t.OccurredOn.Before(since.Time) {
			continue
		}
		k := key{year: t.OccurredOn.Year(), month: int(t.OccurredOn.Month()), typ: t.Type}
		mt, ok := grouped[k]
		if !ok {
			mt = &services.MonthlyTotal{Year: k.year, Month: k.month, Type: t.Type}
			grouped[k] = mt
		}
		mt.TotalCents += t.Amount.Cents
	}

	totals := make([]services.MonthlyTotal, 0, len(grouped))
	for _, mt := range grouped {
		totals = append(totals, *mt)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Year != totals[j].Year {
			return totals[i].Year < totals[j].Year
		}
		if totals[i].Month != totals[j].Month {
			return totals[i].Month < totals[j].Month
		}
		return totals[i].Type < totals[j].Type
	})
	return totals, nil
}

// --- helpers ---

func withinBounds(d core.Date, start, end *core.Date) bool {
	if start != nil && d.Before(start.Time) {
		return false
	}
	if end != nil && d.After(end.Time) {
		return false
	}
	return true
}

func sortNewestFirst(txns []core.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].OccurredOn.Equal(txns[j].OccurredOn.Time) {
			return txns[i].OccurredOn.After(txns[j].OccurredOn.Time)
		}
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].ID > txns[j].ID
	})
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
