package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/xid"
)

func (s *Store) ListExpenseCategories(_ context.Context) ([]domain.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ExpenseCategory, 0, len(s.expenseCategories))
	for _, c := range s.expenseCategories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.ExpenseCategory) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) CreateExpenseCategory(_ context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.expenseCategories {
		if strings.EqualFold(c.Name, category.Name) {
			return nil, fmt.Errorf("%w: category %s already exists", store.ErrValidation, category.Name)
		}
	}
	if category.ID == "" {
		category.ID = xid.New("exc")
	}
	s.expenseCategories[category.ID] = category
	return &category, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, s.withCategoryLocked(e))
	}
	slices.SortFunc(out, func(a, b domain.Expense) int {
		return newestFirst(a.Date, a.ID, b.Date, b.ID)
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	e = s.withCategoryLocked(e)
	return &e, nil
}

func (s *Store) withCategoryLocked(e domain.Expense) domain.Expense {
	e.CategoryName = s.expenseCategories[e.CategoryID].Name
	return e
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenseCategories[expense.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: unknown expense category %s", store.ErrValidation, expense.CategoryID)
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses[expense.ID] = expense
	created := s.withCategoryLocked(expense)
	return &created, nil
}

func (s *Store) UpdateExpense(_ context.Context, expense domain.Expense, editedBy string, at time.Time) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[expense.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.expenseCategories[expense.CategoryID]; !ok {
		return nil, fmt.Errorf("%w: unknown expense category %s", store.ErrValidation, expense.CategoryID)
	}
	expense.CreatedBy = existing.CreatedBy
	expense.CreatedAt = existing.CreatedAt
	s.expenses[expense.ID] = expense
	s.expenseHistory = append(s.expenseHistory, domain.ExpenseHistory{
		ID:             xid.New("exh"),
		ExpenseID:      expense.ID,
		PreviousAmount: existing.Amount,
		NewAmount:      expense.Amount,
		EditedBy:       editedBy,
		EditedAt:       at,
	})
	updated := s.withCategoryLocked(expense)
	return &updated, nil
}

func (s *Store) ListExpenseHistory(_ context.Context, expenseID string) ([]domain.ExpenseHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.expenses[expenseID]; !ok {
		return nil, store.ErrNotFound
	}
	out := make([]domain.ExpenseHistory, 0)
	for _, h := range s.expenseHistory {
		if h.ExpenseID == expenseID {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b domain.ExpenseHistory) int {
		return newestFirst(a.EditedAt, a.ID, b.EditedAt, b.ID)
	})
	return out, nil
}

func (s *Store) GetExpenseVisibility(_ context.Context) (domain.ExpenseVisibility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.visibility == nil {
		return domain.DefaultExpenseVisibility(), nil
	}
	return *s.visibility, nil
}

func (s *Store) SaveExpenseVisibility(_ context.Context, visibility domain.ExpenseVisibility) (domain.ExpenseVisibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visibility = &visibility
	return visibility, nil
}
