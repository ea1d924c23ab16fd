// Package storage persists users, categories, transactions and monthly
// rollups in SQLite. Every query that touches a category or transaction is
// filtered by the owning user in the statement itself, so a row that exists
// but belongs to someone else is indistinguishable from a missing row.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"finledger/internal/core"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db *sql.DB
}

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

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
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

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// --- users ---

// CreateUser stores a new account with the default role attached.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (*core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrUsernameExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT ?, id FROM roles WHERE name = ?`,
		id, core.RoleUser); err != nil {
		return nil, fmt.Errorf("attach default role: %w", err)
	}

	return &core.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Roles:        []string{core.RoleUser},
	}, nil
}

// FindByUsername loads an account and its roles. Returns core.ErrNotFound
// for unknown usernames.
func (r *SQLiteRepository) FindByUsername(ctx context.Context, username string) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ?
		 ORDER BY r.name`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		u.Roles = append(u.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return &u, nil
}

// --- categories ---

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (*core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, user_id) VALUES (?, ?, ?)`,
		c.Name, string(c.Type), c.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrCategoryExists
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("category id: %w", err)
	}
	return &c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id int64) (*core.Category, error) {
	var c core.Category
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, user_id FROM categories WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&c.ID, &c.Name, &typ, &c.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select category: %w", err)
	}
	c.Type = core.TransactionType(typ)
	return &c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, user_id FROM categories
		 WHERE user_id = ? ORDER BY name, type`, userID)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.UserID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(typ)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (*core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ? WHERE id = ? AND user_id = ?`,
		c.Name, string(c.Type), c.ID, c.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrCategoryExists
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update category rows: %w", err)
	}
	if affected == 0 {
		return nil, core.ErrNotFound
	}
	return &c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- transactions ---

// CreateTransaction inserts a transaction only if the referenced category
// belongs to userID; the ownership check and the insert are one statement.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID int64, t core.Transaction) (*core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (amount_cents, type, description, tx_date, category_id)
		 SELECT ?, ?, ?, ?, c.id FROM categories c WHERE c.id = ? AND c.user_id = ?`,
		t.Amount.Cents, string(t.Type), t.Description, t.Date.String(), t.CategoryID, userID)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert transaction rows: %w", err)
	}
	if affected == 0 {
		return nil, core.ErrNotFound
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("transaction id: %w", err)
	}
	return &t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.amount_cents, t.type, t.description, t.tx_date, t.category_id
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ? AND c.user_id = ?`, id, userID)
	return scanTransaction(row)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.amount_cents, t.type, t.description, t.tx_date, t.category_id
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE c.user_id = ?
		 ORDER BY t.tx_date DESC, t.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListTransactionsBetween returns the user's transactions with tx_date in
// [from, to] inclusive.
func (r *SQLiteRepository) ListTransactionsBetween(ctx context.Context, userID int64, from, to core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.amount_cents, t.type, t.description, t.tx_date, t.category_id
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE c.user_id = ? AND t.tx_date >= ? AND t.tx_date <= ?
		 ORDER BY t.tx_date, t.id`, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("select transactions in range: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// UpdateTransaction rewrites a transaction owned by userID. Both the current
// and the new category must belong to the user.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID int64, t core.Transaction) (*core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET amount_cents = ?, type = ?, description = ?, tx_date = ?, category_id = ?
		 WHERE id = ?
		   AND category_id IN (SELECT id FROM categories WHERE user_id = ?)
		   AND ? IN (SELECT id FROM categories WHERE user_id = ?)`,
		t.Amount.Cents, string(t.Type), t.Description, t.Date.String(), t.CategoryID,
		t.ID, userID, t.CategoryID, userID)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update transaction rows: %w", err)
	}
	if affected == 0 {
		return nil, core.ErrNotFound
	}
	return &t, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions
		 WHERE id = ? AND category_id IN (SELECT id FROM categories WHERE user_id = ?)`,
		id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- report aggregates ---

// SumAmountsBetween returns total income and expense cents for the user's
// transactions in [from, to].
func (r *SQLiteRepository) SumAmountsBetween(ctx context.Context, userID int64, from, to core.Date) (income, expenses int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN t.type = 'INCOME' THEN t.amount_cents ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN t.type = 'EXPENSE' THEN t.amount_cents ELSE 0 END), 0)
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE c.user_id = ? AND t.tx_date >= ? AND t.tx_date <= ?`,
		userID, from.String(), to.String()).Scan(&income, &expenses)
	if err != nil {
		return 0, 0, fmt.Errorf("sum amounts: %w", err)
	}
	return income, expenses, nil
}

// ExpenseTotalsByCategory breaks down the user's expenses in [from, to] by
// category name, largest first.
func (r *SQLiteRepository) ExpenseTotalsByCategory(ctx context.Context, userID int64, from, to core.Date) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, SUM(t.amount_cents)
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE c.user_id = ? AND t.type = 'EXPENSE' AND t.tx_date >= ? AND t.tx_date <= ?
		 GROUP BY c.name
		 ORDER BY SUM(t.amount_cents) DESC, c.name`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("sum expenses by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

// --- monthly summaries ---

// RebuildMonthlySummary recomputes the rollup for (userID, year, month) from
// the transaction table and upserts it.
func (r *SQLiteRepository) RebuildMonthlySummary(ctx context.Context, userID int64, year, month int) (*core.MonthlySummary, error) {
	from := core.NewDate(year, month, 1)
	to := core.NewDate(year, month+1, 1).AddDate(0, 0, -1)
	income, expenses, err := r.SumAmountsBetween(ctx, userID, from, core.Date{Time: to})
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO monthly_summaries (user_id, year, month, income_cents, expense_cents, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id, year, month)
		 DO UPDATE SET income_cents = excluded.income_cents,
		               expense_cents = excluded.expense_cents,
		               updated_at = CURRENT_TIMESTAMP`,
		userID, year, month, income, expenses); err != nil {
		return nil, fmt.Errorf("upsert monthly summary: %w", err)
	}

	return &core.MonthlySummary{
		Year:     year,
		Month:    month,
		Income:   core.Money{Cents: income},
		Expenses: core.Money{Cents: expenses},
	}, nil
}

// GetMonthlySummary reads a stored rollup. Missing rows come back as a zero
// summary rather than an error: a month with no activity is a valid answer.
func (r *SQLiteRepository) GetMonthlySummary(ctx context.Context, userID int64, year, month int) (*core.MonthlySummary, error) {
	s := &core.MonthlySummary{Year: year, Month: month}
	err := r.db.QueryRowContext(ctx,
		`SELECT income_cents, expense_cents FROM monthly_summaries
		 WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month).Scan(&s.Income.Cents, &s.Expenses.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select monthly summary: %w", err)
	}
	return s, nil
}

// MonthRef identifies one user's rollup month.
type MonthRef struct {
	UserID int64
	Year   int
	Month  int
}

// ListStaleMonths finds months whose transactions changed after the stored
// rollup was last rebuilt, or that have no rollup row at all. It backs the
// worker's periodic reconcile pass for events lost on the wire.
func (r *SQLiteRepository) ListStaleMonths(ctx context.Context, limit int) ([]MonthRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.user_id,
		        CAST(strftime('%Y', t.tx_date) AS INTEGER) AS y,
		        CAST(strftime('%m', t.tx_date) AS INTEGER) AS m
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 GROUP BY c.user_id, y, m
		 HAVING MAX(t.created_at) > COALESCE(
		     (SELECT s.updated_at FROM monthly_summaries s
		      WHERE s.user_id = c.user_id AND s.year = y AND s.month = m),
		     '')
		 ORDER BY c.user_id, y, m
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select stale months: %w", err)
	}
	defer rows.Close()

	var out []MonthRef
	for rows.Next() {
		var ref MonthRef
		if err := rows.Scan(&ref.UserID, &ref.Year, &ref.Month); err != nil {
			return nil, fmt.Errorf("scan stale month: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// FindUsernameByID resolves a user ID to its username.
func (r *SQLiteRepository) FindUsernameByID(ctx context.Context, userID int64) (string, error) {
	var username string
	err := r.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = ?`, userID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select username: %w", err)
	}
	return username, nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var t core.Transaction
	var typ, date string
	err := row.Scan(&t.ID, &t.Amount.Cents, &typ, &t.Description, &date, &t.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(typ)
	t.Date, err = core.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("stored date %q: %w", date, err)
	}
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
