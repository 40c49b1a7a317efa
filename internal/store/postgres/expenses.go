package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/xid"
)

func (s *Store) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM expense_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ExpenseCategory, 0, 8)
	for rows.Next() {
		var c domain.ExpenseCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if category.ID == "" {
		category.ID = xid.New("exc")
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO expense_categories (id, name) VALUES ($1,$2)`, category.ID, category.Name); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %s already exists", store.ErrValidation, category.Name)
		}
		return nil, err
	}
	return &category, nil
}

const expenseSelect = `
	SELECT e.id, e.name, e.category_id, c.name, e.amount, e.date, e.payment_method, e.reference_no, e.bank_name,
		e.proof_path, e.notes, e.created_by, e.created_at
	FROM expenses e
	JOIN expense_categories c ON c.id = e.category_id`

func scanExpense(row rowScanner) (domain.Expense, error) {
	var e domain.Expense
	err := row.Scan(&e.ID, &e.Name, &e.CategoryID, &e.CategoryName, &e.Amount, &e.Date, &e.PaymentMethod, &e.ReferenceNo,
		&e.BankName, &e.ProofPath, &e.Notes, &e.CreatedBy, &e.CreatedAt)
	return e, err
}

func (s *Store) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, expenseSelect+` ORDER BY e.date DESC, e.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Expense, 0, 32)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx, expenseSelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, name, category_id, amount, date, payment_method, reference_no, bank_name, proof_path, notes, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, expense.ID, expense.Name, expense.CategoryID, expense.Amount, expense.Date, expense.PaymentMethod, expense.ReferenceNo,
		expense.BankName, expense.ProofPath, expense.Notes, expense.CreatedBy, expense.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: unknown expense category %s", store.ErrValidation, expense.CategoryID)
		}
		return nil, err
	}
	return s.GetExpense(ctx, expense.ID)
}

func (s *Store) UpdateExpense(ctx context.Context, expense domain.Expense, editedBy string, at time.Time) (*domain.Expense, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	existing, err := scanExpense(pgTx.QueryRowContext(ctx, expenseSelect+` WHERE e.id = $1 FOR UPDATE OF e`, expense.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE expenses
		SET name = $2, category_id = $3, amount = $4, date = $5, payment_method = $6, reference_no = $7,
			bank_name = $8, proof_path = $9, notes = $10
		WHERE id = $1
	`, expense.ID, expense.Name, expense.CategoryID, expense.Amount, expense.Date, expense.PaymentMethod,
		expense.ReferenceNo, expense.BankName, expense.ProofPath, expense.Notes); err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: unknown expense category %s", store.ErrValidation, expense.CategoryID)
		}
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO expense_history (id, expense_id, previous_amount, new_amount, edited_by, edited_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, xid.New("exh"), expense.ID, existing.Amount, expense.Amount, editedBy, at); err != nil {
		return nil, err
	}
	updated, err := scanExpense(pgTx.QueryRowContext(ctx, expenseSelect+` WHERE e.id = $1`, expense.ID))
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListExpenseHistory(ctx context.Context, expenseID string) ([]domain.ExpenseHistory, error) {
	exists, err := rowExists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM expenses WHERE id = $1)`, expenseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, expense_id, previous_amount, new_amount, edited_by, edited_at
		FROM expense_history
		WHERE expense_id = $1
		ORDER BY edited_at DESC, id DESC
	`, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ExpenseHistory, 0, 8)
	for rows.Next() {
		var h domain.ExpenseHistory
		if err := rows.Scan(&h.ID, &h.ExpenseID, &h.PreviousAmount, &h.NewAmount, &h.EditedBy, &h.EditedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetExpenseVisibility(ctx context.Context) (domain.ExpenseVisibility, error) {
	var v domain.ExpenseVisibility
	err := s.db.QueryRowContext(ctx, `
		SELECT super_admin, admin, finance, pos_user, farm_admin FROM expense_visibility WHERE id = 1
	`).Scan(&v.SuperAdmin, &v.Admin, &v.Finance, &v.POSUser, &v.FarmAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultExpenseVisibility(), nil
	}
	if err != nil {
		return domain.ExpenseVisibility{}, err
	}
	return v, nil
}

func (s *Store) SaveExpenseVisibility(ctx context.Context, visibility domain.ExpenseVisibility) (domain.ExpenseVisibility, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_visibility (id, super_admin, admin, finance, pos_user, farm_admin)
		VALUES (1,$1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE
		SET super_admin = EXCLUDED.super_admin, admin = EXCLUDED.admin, finance = EXCLUDED.finance,
			pos_user = EXCLUDED.pos_user, farm_admin = EXCLUDED.farm_admin
	`, visibility.SuperAdmin, visibility.Admin, visibility.Finance, visibility.POSUser, visibility.FarmAdmin)
	if err != nil {
		return domain.ExpenseVisibility{}, err
	}
	return visibility, nil
}
