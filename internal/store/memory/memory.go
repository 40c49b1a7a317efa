package memory

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"agrokoperasi/backend/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	usersByID   map[string]domain.User
	permissions map[string]map[string]bool

	products      map[string]domain.Product
	livestock     map[string]domain.Livestock
	slaughterLogs []domain.SlaughterLog
	transactions  []domain.Transaction

	memberInvestments map[string]domain.MemberInvestment
	memberHistory     []domain.MemberInvestmentHistory
	summaries         map[string]domain.InvestmentSummary
	summaryHistory    []domain.InvestmentHistory
	dividends         map[string]domain.DividendSetting
	dividendHistory   []domain.DividendHistory

	expenseCategories map[string]domain.ExpenseCategory
	expenses          map[string]domain.Expense
	expenseHistory    []domain.ExpenseHistory
	visibility        *domain.ExpenseVisibility

	allowanceTypes map[string]domain.AllowanceType
	invoices       map[string]domain.InvoiceAllowance
	invoiceSeq     map[string]int

	auditLogs []domain.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{
		usersByID:         make(map[string]domain.User),
		permissions:       make(map[string]map[string]bool),
		products:          make(map[string]domain.Product),
		livestock:         make(map[string]domain.Livestock),
		memberInvestments: make(map[string]domain.MemberInvestment),
		summaries:         make(map[string]domain.InvestmentSummary),
		dividends:         make(map[string]domain.DividendSetting),
		expenseCategories: make(map[string]domain.ExpenseCategory),
		expenses:          make(map[string]domain.Expense),
		allowanceTypes:    make(map[string]domain.AllowanceType),
		invoices:          make(map[string]domain.InvoiceAllowance),
		invoiceSeq:        make(map[string]int),
		auditLogs:         make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store with the demo accounts, catalogue and reference
// data used in development and tests. Seed passwords can be overridden with
// SEED_<ROLE>_PASSWORD variables.
func NewSeeded(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := New()
	now := time.Now().UTC()

	overridden := false
	for _, u := range []struct {
		id       string
		username string
		name     string
		role     string
		envKey   string
		password string
	}{
		{"usr_seed_superadmin", "superadmin@agrokoperasi.my", "Super Admin", domain.RoleSuperAdmin, "SEED_SUPERADMIN_PASSWORD", "super123"},
		{"usr_seed_admin", "admin@agrokoperasi.my", "Operations Admin", domain.RoleAdmin, "SEED_ADMIN_PASSWORD", "admin123"},
		{"usr_seed_finance", "finance@agrokoperasi.my", "Finance Officer", domain.RoleFinance, "SEED_FINANCE_PASSWORD", "finance123"},
		{"usr_seed_pos01", "pos01@agrokoperasi.my", "POS Staff 01", domain.RolePOSUser, "SEED_POS_PASSWORD", "pos123"},
		{"usr_seed_farm", "farm@agrokoperasi.my", "Farm Admin", domain.RoleFarmAdmin, "SEED_FARM_PASSWORD", "farm123"},
	} {
		password := envOr(u.envKey, u.password)
		if password != u.password {
			overridden = true
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		s.usersByID[u.id] = domain.User{
			ID:           u.id,
			Username:     u.username,
			Name:         u.name,
			PasswordHash: string(hash),
			Role:         u.role,
			Branch:       "HQ",
			Active:       true,
			CreatedAt:    now,
		}
	}
	if !overridden {
		log.Warn("memory store seeded with default demo credentials")
	}

	for _, p := range []domain.Product{
		{ID: "prd_seed_beef", SKU: "DGL-001", Name: "Daging Lembu Segar", Category: "Daging", UnitType: domain.UnitPerKG, Price: dec("38.00"), CostPrice: nullDec("30.00"), Stock: dec("50")},
		{ID: "prd_seed_chicken", SKU: "AYM-001", Name: "Ayam Proses", Category: "Ayam", UnitType: domain.UnitPerUnit, Price: dec("18.50"), CostPrice: nullDec("12.00"), Stock: dec("40")},
		{ID: "prd_seed_eggs", SKU: "TLR-030", Name: "Telur Gred A 30 Biji", Category: "Telur", UnitType: domain.UnitPerUnit, Price: dec("16.90"), CostPrice: nullDec("13.50"), Stock: dec("60")},
		{ID: "prd_seed_rice", SKU: "BRS-010", Name: "Beras Tempatan 10kg", UnitType: domain.UnitPerUnit, Price: dec("32.00"), Stock: dec("20")},
	} {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	for _, l := range []domain.Livestock{
		{ID: "lvs_seed_cows", Type: domain.LivestockCow, BatchID: "B-2026-01", Quantity: 5, InitialQuantity: 5, FarmLocation: "Kandang A", CostPrice: nullDec("4200.00")},
		{ID: "lvs_seed_chickens", Type: domain.LivestockChicken, BatchID: "B-2026-02", Quantity: 200, InitialQuantity: 200, FarmLocation: "Reban 3", CostPrice: nullDec("9.50")},
	} {
		l.Status = domain.LivestockAlive
		l.DateReceived = now.AddDate(0, -2, 0)
		l.CreatedAt = now
		l.UpdatedAt = now
		s.livestock[l.ID] = l
	}

	for _, c := range []domain.ExpenseCategory{
		{ID: "exc_seed_utilities", Name: "Utiliti"},
		{ID: "exc_seed_feed", Name: "Makanan Ternakan"},
		{ID: "exc_seed_salary", Name: "Gaji"},
		{ID: "exc_seed_maintenance", Name: "Penyelenggaraan"},
		{ID: "exc_seed_transport", Name: "Pengangkutan"},
	} {
		s.expenseCategories[c.ID] = c
	}

	for _, t := range []domain.AllowanceType{
		{ID: "alt_seed_travel", Name: "Elaun Perjalanan", Description: "Tuntutan perjalanan rasmi", ApprovalRequired: true},
		{ID: "alt_seed_meal", Name: "Elaun Makan"},
		{ID: "alt_seed_overtime", Name: "Elaun Lebih Masa", ApprovalRequired: true},
	} {
		t.Active = true
		s.allowanceTypes[t.ID] = t
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func nullDec(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(v))
}

func cmpString(a string, b string) int {
	return strings.Compare(a, b)
}

// newestFirst orders by time descending, then id descending for ties.
func newestFirst(a time.Time, aID string, b time.Time, bID string) int {
	if c := b.Compare(a); c != 0 {
		return c
	}
	return cmpString(bID, aID)
}

func cloneTransaction(src domain.Transaction) domain.Transaction {
	dup := src
	dup.Items = append([]domain.TransactionItem(nil), src.Items...)
	return dup
}

func cloneInvoice(src domain.InvoiceAllowance) domain.InvoiceAllowance {
	dup := src
	dup.Items = append([]domain.InvoiceAllowanceItem(nil), src.Items...)
	if src.ApprovalTimestamp != nil {
		at := *src.ApprovalTimestamp
		dup.ApprovalTimestamp = &at
	}
	return dup
}

func cloneInvestment(src domain.MemberInvestment) domain.MemberInvestment {
	dup := src
	if src.ApprovedAt != nil {
		at := *src.ApprovedAt
		dup.ApprovedAt = &at
	}
	return dup
}

func cloneDividend(src domain.DividendSetting) domain.DividendSetting {
	dup := src
	if src.DeclarationDate != nil {
		at := *src.DeclarationDate
		dup.DeclarationDate = &at
	}
	return dup
}
