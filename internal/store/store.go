package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/xid"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInvalidState         = errors.New("invalid state")
	ErrValidation           = errors.New("validation failed")
	ErrEmptyOrder           = errors.New("order has no items")
	ErrNotAvailable         = errors.New("not available")
)

// Repository is the ledger. Methods that mutate more than one entity run as a
// single transaction and either fully apply or leave no trace.
type Repository interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	ListModulePermissions(ctx context.Context, userID string) ([]domain.ModulePermission, error)
	SetModulePermissions(ctx context.Context, userID string, perms []domain.ModulePermission) ([]domain.ModulePermission, error)

	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListLivestock(ctx context.Context, filter domain.LivestockFilter) ([]domain.Livestock, error)
	GetLivestock(ctx context.Context, id string) (*domain.Livestock, error)
	CreateLivestock(ctx context.Context, livestock domain.Livestock) (*domain.Livestock, error)
	UpdateLivestock(ctx context.Context, livestock domain.Livestock) (*domain.Livestock, error)
	DeleteLivestock(ctx context.Context, id string) error
	ListSlaughterLogs(ctx context.Context) ([]domain.SlaughterLog, error)
	ProcessSlaughter(ctx context.Context, req domain.SlaughterRequest, recordedBy string, at time.Time) (*domain.SlaughterResult, error)

	CreateCheckout(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	FinancialTotals(ctx context.Context) (domain.FinancialTotals, error)

	CreateMemberInvestment(ctx context.Context, inv domain.MemberInvestment) (*domain.MemberInvestment, error)
	GetMemberInvestment(ctx context.Context, id string) (*domain.MemberInvestment, error)
	ListMemberInvestments(ctx context.Context, filter domain.InvestmentFilter) ([]domain.MemberInvestment, error)
	ApproveInvestment(ctx context.Context, id string, approvedBy string, at time.Time) (*domain.ApprovalResult, error)
	RejectInvestment(ctx context.Context, id string, rejectedBy string, reason string, at time.Time) (*domain.MemberInvestment, error)
	ListMemberInvestmentHistory(ctx context.Context) ([]domain.MemberInvestmentHistory, error)

	GetActiveSummary(ctx context.Context) (*domain.InvestmentSummary, error)
	SaveInvestmentSummary(ctx context.Context, update domain.SummaryUpdate) (*domain.SummaryChange, error)
	ListInvestmentHistory(ctx context.Context) ([]domain.InvestmentHistory, error)

	ListDividendSettings(ctx context.Context, summaryID string) ([]domain.DividendSetting, error)
	SaveDividendSetting(ctx context.Context, setting domain.DividendSetting, editedBy string, at time.Time) (*domain.DividendChange, error)
	CancelDividend(ctx context.Context, id string, editedBy string, at time.Time) (*domain.DividendChange, error)
	ListDividendHistory(ctx context.Context) ([]domain.DividendHistory, error)

	ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error)
	CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error)
	ListExpenses(ctx context.Context) ([]domain.Expense, error)
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, expense domain.Expense, editedBy string, at time.Time) (*domain.Expense, error)
	ListExpenseHistory(ctx context.Context, expenseID string) ([]domain.ExpenseHistory, error)
	GetExpenseVisibility(ctx context.Context) (domain.ExpenseVisibility, error)
	SaveExpenseVisibility(ctx context.Context, visibility domain.ExpenseVisibility) (domain.ExpenseVisibility, error)

	ListAllowanceTypes(ctx context.Context) ([]domain.AllowanceType, error)
	CreateAllowanceType(ctx context.Context, allowanceType domain.AllowanceType) (*domain.AllowanceType, error)
	CreateInvoice(ctx context.Context, invoice domain.InvoiceAllowance) (*domain.InvoiceAllowance, error)
	GetInvoice(ctx context.Context, id string) (*domain.InvoiceAllowance, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.InvoiceAllowance, error)
	UpdateInvoiceStatus(ctx context.Context, id string, change domain.InvoiceStatusChange) (*domain.InvoiceAllowance, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// InvoiceNumber formats the allowance invoice number for a period and sequence.
func InvoiceNumber(year int, month int, seq int) string {
	return fmt.Sprintf("INV-ELAUN-%04d%02d-%04d", year, month, seq)
}

// QuantityScale is the number of decimal places a stock quantity may carry.
const QuantityScale = 3

// FitsQuantityScale reports whether q is representable as a stored quantity.
func FitsQuantityScale(q decimal.Decimal) bool {
	return q.Equal(q.Truncate(QuantityScale))
}

// LineSubtotal prices a sale line in currency units.
func LineSubtotal(price decimal.Decimal, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity).Round(2)
}

// ChangeTypeFor classifies a summary edit by comparing amounts.
func ChangeTypeFor(previous decimal.Decimal, next decimal.Decimal) string {
	switch next.Cmp(previous) {
	case 1:
		return domain.ChangeIncrease
	case -1:
		return domain.ChangeDecrease
	default:
		return domain.ChangeCorrection
	}
}

// DividendHistoryFor snapshots a dividend setting after a change. The
// payment date is stamped only when the setting is marked PAID.
func DividendHistoryFor(setting domain.DividendSetting, editedBy string, at time.Time) domain.DividendHistory {
	declared := at
	if setting.DeclarationDate != nil {
		declared = *setting.DeclarationDate
	}
	entry := domain.DividendHistory{
		ID:              xid.New("dvh"),
		DividendID:      setting.ID,
		Cycle:           setting.Cycle,
		Percentage:      setting.Percentage,
		Amount:          setting.Amount,
		DeclarationDate: declared,
		Status:          setting.PaymentStatus,
		EditedBy:        editedBy,
		CreatedAt:       at,
	}
	if setting.PaymentStatus == domain.DividendPaid {
		paid := at
		entry.PaymentDate = &paid
	}
	return entry
}
