package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	// TransactionType separates money coming in from money going out.
	// Categories carry the same type and must match the transactions
	// that reference them.
	TransactionType string

	// Date is a calendar day with no time component, always UTC.
	Date struct {
		time.Time
	}

	// User owns transactions and non-default categories. A soft-deleted
	// user can never authenticate again.
	User struct {
		ID             int64
		Email          string
		HashedPassword string
		FullName       string
		IsActive       bool
		IsSuperuser    bool
		IsDeleted      bool
		CreatedAt      time.Time
		UpdatedAt      *time.Time
		LastLoginAt    *time.Time
	}

	// Category groups transactions. System categories (IsDefault, no
	// owner) are shared and immutable; user categories belong to exactly
	// one user.
	Category struct {
		ID        int64
		Name      string
		Type      TransactionType
		IsDefault bool
		UserID    *int64
		IsDeleted bool
		DeletedAt *time.Time
		CreatedAt time.Time
		UpdatedAt *time.Time
	}

	// Transaction is a single income or expense record.
	Transaction struct {
		ID          int64
		UserID      int64
		CategoryID  *int64
		Type        TransactionType
		Amount      Money
		Description string
		OccurredOn  Date
		IsDeleted   bool
		DeletedAt   *time.Time
		CreatedAt   time.Time
		UpdatedAt   *time.Time
	}
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyEmail       = errors.New("empty email")
	ErrNameTooLong      = errors.New("name too long (max 100 characters)")
	ErrDescriptionLong  = errors.New("description too long (max 500 characters)")
	ErrDefaultImmutable = errors.New("system default category is immutable")
)

// ParseTransactionType validates a type string from the wire.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", ErrInvalidType
	}
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t.UTC()}, nil
}

// AddDays returns the date shifted by n calendar days (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the whole-day distance from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON renders the date as a quoted YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SoftDeletable is the capability opted into by entities whose delete
// marks the row instead of removing it. The store dispatches on this
// interface: types that implement it are never physically deleted.
type SoftDeletable interface {
	Deleted() bool
	MarkDeleted(at time.Time)
	Restore()
}

func (t *Transaction) Deleted() bool { return t.IsDeleted }

func (t *Transaction) MarkDeleted(at time.Time) {
	t.IsDeleted = true
	t.DeletedAt = &at
}

func (t *Transaction) Restore() {
	t.IsDeleted = false
	t.DeletedAt = nil
}

func (c *Category) Deleted() bool { return c.IsDeleted }

func (c *Category) MarkDeleted(at time.Time) {
	c.IsDeleted = true
	c.DeletedAt = &at
}

func (c *Category) Restore() {
	c.IsDeleted = false
	c.DeletedAt = nil
}

func (u *User) Deleted() bool { return u.IsDeleted }

func (u *User) MarkDeleted(at time.Time) {
	u.IsDeleted = true
	u.IsActive = false
}

// Restore satisfies SoftDeletable but user deletion is irreversible
// through the API; nothing calls this on users.
func (u *User) Restore() {
	u.IsDeleted = false
}

// AccessibleBy reports whether a user may reference this category on a
// transaction. Defaults are shared; user categories require ownership.
func (c *Category) AccessibleBy(userID int64) bool {
	if c.IsDefault {
		return true
	}
	return c.UserID != nil && *c.UserID == userID
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return ErrNameTooLong
	}
	if c.Type != Income && c.Type != Expense {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Type != Income && t.Type != Expense {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.OccurredOn.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 500 {
		return ErrDescriptionLong
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	if len(u.FullName) > 150 {
		return ErrNameTooLong
	}
	return nil
}
