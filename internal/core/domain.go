package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// RoleUser is the role granted to every account at registration.
const RoleUser = "ROLE_USER"

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// User is a registered account. PasswordHash is the bcrypt hash of the
	// password and must never be serialized outward.
	User struct {
		ID           int64
		Username     string
		PasswordHash string
		Roles        []string
	}

	// Category groups transactions of one type and belongs to exactly one user.
	Category struct {
		ID     int64
		Name   string
		Type   TransactionType
		UserID int64
	}

	// Transaction is a single income or expense record. Ownership is derived
	// through the category: a transaction belongs to whoever owns its category.
	Transaction struct {
		ID          int64
		Amount      Money
		Type        TransactionType
		Description string
		Date        Date
		CategoryID  int64
	}
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrUsernameExists = errors.New("username already exists")
	ErrCategoryExists = errors.New("category already exists")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty category name")
	ErrInvalidUsername  = errors.New("username must be between 3 and 50 characters")
	ErrInvalidPassword  = errors.New("password must be at least 6 characters")
)

// ParseTransactionType normalizes and validates a type string.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", ErrInvalidType
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDate(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateCredentials applies the registration rules: username between 3 and
// 50 characters, password at least 6.
func ValidateCredentials(username, password string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 50 {
		return ErrInvalidUsername
	}
	if len(password) < 6 {
		return ErrInvalidPassword
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.CategoryID <= 0 {
		return errors.New("missing category")
	}
	return nil
}
