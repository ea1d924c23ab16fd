package services

import (
	"context"
	"fmt"

	"finledger/internal/amqp"
	"finledger/internal/auth"
	"finledger/internal/core"
)

// memStore is an in-memory stand-in for the SQLite repository with the same
// ownership semantics: rows belonging to someone else read as missing.
type memStore struct {
	users        map[string]*core.User
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	summaries    map[string]*core.MonthlySummary
	nextID       int64

	reportQueries int
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*core.User),
		categories:   make(map[int64]core.Category),
		transactions: make(map[int64]core.Transaction),
		summaries:    make(map[string]*core.MonthlySummary),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(_ context.Context, username, passwordHash string) (*core.User, error) {
	if _, exists := m.users[username]; exists {
		return nil, core.ErrUsernameExists
	}
	u := &core.User{ID: m.id(), Username: username, PasswordHash: passwordHash, Roles: []string{core.RoleUser}}
	m.users[username] = u
	return u, nil
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*core.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func (m *memStore) CreateCategory(_ context.Context, c core.Category) (*core.Category, error) {
	for _, existing := range m.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name && existing.Type == c.Type {
			return nil, core.ErrCategoryExists
		}
	}
	c.ID = m.id()
	m.categories[c.ID] = c
	return &c, nil
}

func (m *memStore) GetCategory(_ context.Context, userID, id int64) (*core.Category, error) {
	c, ok := m.categories[id]
	if !ok || c.UserID != userID {
		return nil, core.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) ListCategories(_ context.Context, userID int64) ([]core.Category, error) {
	var out []core.Category
	for _, c := range m.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) UpdateCategory(_ context.Context, c core.Category) (*core.Category, error) {
	existing, ok := m.categories[c.ID]
	if !ok || existing.UserID != c.UserID {
		return nil, core.ErrNotFound
	}
	m.categories[c.ID] = c
	return &c, nil
}

func (m *memStore) DeleteCategory(_ context.Context, userID, id int64) error {
	c, ok := m.categories[id]
	if !ok || c.UserID != userID {
		return core.ErrNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *memStore) ownsCategory(userID, categoryID int64) bool {
	c, ok := m.categories[categoryID]
	return ok && c.UserID == userID
}

func (m *memStore) CreateTransaction(_ context.Context, userID int64, t core.Transaction) (*core.Transaction, error) {
	if !m.ownsCategory(userID, t.CategoryID) {
		return nil, core.ErrNotFound
	}
	t.ID = m.id()
	m.transactions[t.ID] = t
	return &t, nil
}

func (m *memStore) GetTransaction(_ context.Context, userID, id int64) (*core.Transaction, error) {
	t, ok := m.transactions[id]
	if !ok || !m.ownsCategory(userID, t.CategoryID) {
		return nil, core.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) ListTransactions(_ context.Context, userID int64) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range m.transactions {
		if m.ownsCategory(userID, t.CategoryID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, userID int64, t core.Transaction) (*core.Transaction, error) {
	existing, ok := m.transactions[t.ID]
	if !ok || !m.ownsCategory(userID, existing.CategoryID) || !m.ownsCategory(userID, t.CategoryID) {
		return nil, core.ErrNotFound
	}
	m.transactions[t.ID] = t
	return &t, nil
}

func (m *memStore) DeleteTransaction(_ context.Context, userID, id int64) error {
	t, ok := m.transactions[id]
	if !ok || !m.ownsCategory(userID, t.CategoryID) {
		return core.ErrNotFound
	}
	delete(m.transactions, id)
	return nil
}

func (m *memStore) inRange(t core.Transaction, from, to core.Date) bool {
	return !t.Date.Before(from.Time) && !t.Date.After(to.Time)
}

func (m *memStore) SumAmountsBetween(_ context.Context, userID int64, from, to core.Date) (int64, int64, error) {
	m.reportQueries++
	var income, expenses int64
	for _, t := range m.transactions {
		if !m.ownsCategory(userID, t.CategoryID) || !m.inRange(t, from, to) {
			continue
		}
		switch t.Type {
		case core.Income:
			income += t.Amount.Cents
		case core.Expense:
			expenses += t.Amount.Cents
		}
	}
	return income, expenses, nil
}

func (m *memStore) ExpenseTotalsByCategory(_ context.Context, userID int64, from, to core.Date) ([]core.CategoryAmount, error) {
	totals := make(map[string]int64)
	for _, t := range m.transactions {
		if t.Type != core.Expense || !m.ownsCategory(userID, t.CategoryID) || !m.inRange(t, from, to) {
			continue
		}
		totals[m.categories[t.CategoryID].Name] += t.Amount.Cents
	}
	var out []core.CategoryAmount
	for name, cents := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	return out, nil
}

func (m *memStore) GetMonthlySummary(_ context.Context, userID int64, year, month int) (*core.MonthlySummary, error) {
	key := fmt.Sprintf("%d:%d:%d", userID, year, month)
	if s, ok := m.summaries[key]; ok {
		return s, nil
	}
	return &core.MonthlySummary{Year: year, Month: month}, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	events []*amqp.TransactionEventMessage
	err    error
}

func (p *fakePublisher) PublishTransactionEvent(_ context.Context, msg *amqp.TransactionEventMessage) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, msg)
	return nil
}

// asUser returns a context carrying an authenticated principal.
func asUser(username string) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{
		Username: username,
		Roles:    []string{core.RoleUser},
	})
}
