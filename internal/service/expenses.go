package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/export"
	"agrokoperasi/backend/internal/store"
)

func (s *Service) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	return s.repo.ListExpenseCategories(ctx)
}

func (s *Service) CreateExpenseCategory(ctx context.Context, req domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", store.ErrValidation)
	}
	created, err := s.repo.CreateExpenseCategory(ctx, domain.ExpenseCategory{Name: name})
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionCreate, "EXPENSE_CATEGORY", created.ID, nil, created, "")
	return created, nil
}

// ListExpenses is gated by the expense visibility setting for the caller's role.
func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	if err := s.requireExpenseVisibility(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx)
}

func (s *Service) requireExpenseVisibility(ctx context.Context) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	visibility, err := s.repo.GetExpenseVisibility(ctx)
	if err != nil {
		return err
	}
	if !visibility.Allows(actor.Role) {
		return fmt.Errorf("%w: expenses are hidden for role %s", ErrAccessDenied, actor.Role)
	}
	return nil
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseRequest) (*domain.Expense, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	expense, err := s.expenseFromRequest(req)
	if err != nil {
		return nil, err
	}
	expense.CreatedBy = actor.UserID
	expense.CreatedAt = s.now()

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionCreate, "EXPENSE", created.ID, nil, created, "")
	return created, nil
}

func (s *Service) UpdateExpense(ctx context.Context, id string, req domain.ExpenseRequest) (*domain.Expense, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	expense, err := s.expenseFromRequest(req)
	if err != nil {
		return nil, err
	}
	expense.ID = existing.ID
	expense.CreatedBy = existing.CreatedBy
	expense.CreatedAt = existing.CreatedAt

	saved, err := s.repo.UpdateExpense(ctx, expense, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "EXPENSE", saved.ID, existing, saved, "")
	return saved, nil
}

func (s *Service) expenseFromRequest(req domain.ExpenseRequest) (domain.Expense, error) {
	name := strings.TrimSpace(req.Name)
	categoryID := strings.TrimSpace(req.CategoryID)
	if name == "" || categoryID == "" {
		return domain.Expense{}, fmt.Errorf("%w: name and categoryId are required", store.ErrValidation)
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		return domain.Expense{}, err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return domain.Expense{}, err
	}
	return domain.Expense{
		Name:          name,
		CategoryID:    categoryID,
		Amount:        req.Amount,
		Date:          date,
		PaymentMethod: defaultString(strings.ToUpper(req.PaymentMethod), domain.PaymentCash),
		ReferenceNo:   strings.TrimSpace(req.ReferenceNo),
		BankName:      strings.TrimSpace(req.BankName),
		ProofPath:     strings.TrimSpace(req.ProofPath),
		Notes:         strings.TrimSpace(req.Notes),
	}, nil
}

func (s *Service) ExpenseHistory(ctx context.Context, expenseID string) ([]domain.ExpenseHistory, error) {
	return s.repo.ListExpenseHistory(ctx, expenseID)
}

func (s *Service) ExpenseVisibility(ctx context.Context) (domain.ExpenseVisibility, error) {
	return s.repo.GetExpenseVisibility(ctx)
}

func (s *Service) SaveExpenseVisibility(ctx context.Context, visibility domain.ExpenseVisibility) (domain.ExpenseVisibility, error) {
	before, err := s.repo.GetExpenseVisibility(ctx)
	if err != nil {
		return domain.ExpenseVisibility{}, err
	}
	saved, err := s.repo.SaveExpenseVisibility(ctx, visibility)
	if err != nil {
		return domain.ExpenseVisibility{}, err
	}
	s.record(ctx, domain.ActionUpdate, "EXPENSE_VISIBILITY", "", before, saved, "")
	return saved, nil
}

// Export is a rendered CSV file ready to be served.
type Export struct {
	Filename string
	Body     []byte
}

func (s *Service) ExportExpensesCSV(ctx context.Context) (*Export, error) {
	expenses, err := s.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}
	body, err := export.ExpensesCSV(expenses)
	if err != nil {
		return nil, err
	}
	out := &Export{Filename: export.ExpensesFilename(s.now()), Body: body}
	s.archive(ctx, out)
	return out, nil
}

// archive keeps a copy of an export. A failed upload never fails the download.
func (s *Service) archive(ctx context.Context, file *Export) {
	location, err := s.archiver.Archive(ctx, file.Filename, file.Body)
	if err != nil {
		s.log.Warn("export archive failed", zap.String("filename", file.Filename), zap.Error(err))
		return
	}
	if location != "" {
		s.log.Info("export archived", zap.String("filename", file.Filename), zap.String("location", location))
	}
}
