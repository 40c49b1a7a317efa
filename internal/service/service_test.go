package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/metrics"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(nil), Options{LoginDomain: "agrokoperasi.my"})
}

func actorCtx(userID string, role string) context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: userID, Username: userID, Role: role})
}

func superAdminCtx() context.Context {
	return actorCtx("usr_seed_superadmin", domain.RoleSuperAdmin)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// mapCache is a JSON round-tripping ReportCache used to observe hits and
// invalidation.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	c.sets++
	return nil
}

func (c *mapCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func TestCheckoutRejectsEmptyOrder(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(actorCtx("usr_seed_pos01", domain.RolePOSUser), domain.CheckoutRequest{PaymentMethod: "CASH"})
	require.ErrorIs(t, err, store.ErrEmptyOrder)
}

func TestCheckoutRequiresActor(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_beef", Quantity: dec("1")}},
	})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestCheckoutSnapshotsPriceAndDecrementsStock(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_pos01", domain.RolePOSUser)

	tx, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: "qr",
		Items: []domain.CheckoutItem{
			{ProductID: "prd_seed_beef", Quantity: dec("1.5")},
			{ProductID: "prd_seed_eggs", Quantity: dec("2")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentQR, tx.PaymentMethod)
	assert.Equal(t, domain.TxStatusCompleted, tx.Status)
	assert.True(t, tx.TotalAmount.Equal(dec("90.80")), "total %s", tx.TotalAmount)

	beef, err := svc.GetProduct(ctx, "prd_seed_beef")
	require.NoError(t, err)
	assert.True(t, beef.Stock.Equal(dec("48.5")), "stock %s", beef.Stock)

	newPrice := dec("45.00")
	_, err = svc.UpdateProduct(actorCtx("usr_seed_admin", domain.RoleAdmin), "prd_seed_beef", domain.ProductUpdateRequest{Price: &newPrice})
	require.NoError(t, err)

	stored, err := svc.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].Price.Equal(dec("38.00")))
}

func TestCheckoutInsufficientStockLeavesNoTrace(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_pos01", domain.RolePOSUser)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items: []domain.CheckoutItem{
			{ProductID: "prd_seed_eggs", Quantity: dec("5")},
			{ProductID: "prd_seed_rice", Quantity: dec("21")},
		},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	eggs, err := svc.GetProduct(ctx, "prd_seed_eggs")
	require.NoError(t, err)
	assert.True(t, eggs.Stock.Equal(dec("60")))

	txs, err := svc.ListTransactions(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCheckoutValidatesLines(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_pos01", domain.RolePOSUser)

	cases := map[string]domain.CheckoutRequest{
		"unknown payment": {PaymentMethod: "CHEQUE", Items: []domain.CheckoutItem{{ProductID: "prd_seed_eggs", Quantity: dec("1")}}},
		"zero quantity":   {PaymentMethod: "CASH", Items: []domain.CheckoutItem{{ProductID: "prd_seed_eggs", Quantity: dec("0")}}},
		"fractional unit": {PaymentMethod: "CASH", Items: []domain.CheckoutItem{{ProductID: "prd_seed_eggs", Quantity: dec("1.5")}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Checkout(ctx, req)
			require.ErrorIs(t, err, store.ErrValidation)
		})
	}
}

func TestCheckoutRoundsFractionalLinesToCents(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_pos01", domain.RolePOSUser)

	tx, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items: []domain.CheckoutItem{
			{ProductID: "prd_seed_beef", Quantity: dec("1.333")},
			{ProductID: "prd_seed_beef", Quantity: dec("0.017")},
		},
	})
	require.NoError(t, err)
	require.Len(t, tx.Items, 2)
	assert.True(t, tx.Items[0].Subtotal.Equal(dec("50.65")), "subtotal %s", tx.Items[0].Subtotal)
	assert.True(t, tx.Items[1].Subtotal.Equal(dec("0.65")), "subtotal %s", tx.Items[1].Subtotal)

	sum := decimal.Zero
	for _, item := range tx.Items {
		assert.True(t, item.Subtotal.Equal(item.Subtotal.Round(2)))
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, tx.TotalAmount.Equal(sum), "total %s, lines %s", tx.TotalAmount, sum)
	assert.True(t, tx.TotalAmount.Equal(dec("51.30")))

	beef, err := svc.GetProduct(ctx, "prd_seed_beef")
	require.NoError(t, err)
	assert.True(t, beef.Stock.Equal(dec("48.65")), "stock %s", beef.Stock)
}

func TestCheckoutRejectsQuantityFinerThanGrams(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_pos01", domain.RolePOSUser)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_beef", Quantity: dec("0.0001")}},
	})
	require.ErrorIs(t, err, store.ErrValidation)

	beef, err := svc.GetProduct(ctx, "prd_seed_beef")
	require.NoError(t, err)
	assert.True(t, beef.Stock.Equal(dec("50")))
}

func TestCheckoutCountsWorkflowOutcomes(t *testing.T) {
	m := metrics.New()
	svc := New(memory.NewSeeded(nil), Options{Metrics: m})
	ctx := actorCtx("usr_seed_pos01", domain.RolePOSUser)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_rice", Quantity: dec("1")}},
	})
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: "CASH"})
	require.Error(t, err)

	count, err := testutil.GatherAndCount(m.Registry(), "agrokoperasi_workflow_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSlaughterPartialThenComplete(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_farm", domain.RoleFarmManager)

	result, err := svc.ProcessSlaughter(ctx, domain.SlaughterRequest{
		LivestockID: "lvs_seed_cows",
		Quantity:    2,
		YieldWeight: decimal.NewNullDecimal(dec("310.5")),
		ProducedProducts: []domain.ProducedProduct{
			{ProductID: "prd_seed_beef", Quantity: dec("120.5")},
			{ProductID: "prd_missing", Quantity: dec("3")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LivestockPartialSlaughtered, result.Livestock.Status)
	assert.Equal(t, 3, result.Livestock.Quantity)
	require.Len(t, result.Applied, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "prd_missing", result.Skipped[0].ProductID)

	beef, err := svc.GetProduct(ctx, "prd_seed_beef")
	require.NoError(t, err)
	assert.True(t, beef.Stock.Equal(dec("170.5")))

	_, err = svc.ProcessSlaughter(ctx, domain.SlaughterRequest{LivestockID: "lvs_seed_cows", Quantity: 4})
	require.ErrorIs(t, err, store.ErrInsufficientQuantity)

	result, err = svc.ProcessSlaughter(ctx, domain.SlaughterRequest{LivestockID: "lvs_seed_cows", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.LivestockSlaughtered, result.Livestock.Status)

	_, err = svc.ProcessSlaughter(ctx, domain.SlaughterRequest{LivestockID: "lvs_seed_cows", Quantity: 1})
	require.ErrorIs(t, err, store.ErrNotAvailable)

	logs, err := svc.ListSlaughterLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestSlaughterRejectsFractionalPerUnitOutput(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_farm", domain.RoleFarmManager)

	_, err := svc.ProcessSlaughter(ctx, domain.SlaughterRequest{
		LivestockID:      "lvs_seed_chickens",
		Quantity:         10,
		ProducedProducts: []domain.ProducedProduct{{ProductID: "prd_seed_chicken", Quantity: dec("9.5")}},
	})
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.ProcessSlaughter(ctx, domain.SlaughterRequest{
		LivestockID:      "lvs_seed_cows",
		Quantity:         1,
		ProducedProducts: []domain.ProducedProduct{{ProductID: "prd_seed_beef", Quantity: dec("80.0005")}},
	})
	require.ErrorIs(t, err, store.ErrValidation)

	flock, err := svc.GetLivestock(ctx, "lvs_seed_chickens")
	require.NoError(t, err)
	assert.Equal(t, 200, flock.Quantity)
	chicken, err := svc.GetProduct(ctx, "prd_seed_chicken")
	require.NoError(t, err)
	assert.True(t, chicken.Stock.Equal(dec("40")))

	result, err := svc.ProcessSlaughter(ctx, domain.SlaughterRequest{
		LivestockID:      "lvs_seed_chickens",
		Quantity:         10,
		ProducedProducts: []domain.ProducedProduct{{ProductID: "prd_seed_chicken", Quantity: dec("10")}},
	})
	require.NoError(t, err)
	assert.Len(t, result.Applied, 1)
}

func TestLivestockStatusTransitions(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_admin", domain.RoleAdmin)

	created, err := svc.CreateLivestock(ctx, domain.LivestockCreateRequest{Type: "chicken", Quantity: 10, DateReceived: "2026-03-01"})
	require.NoError(t, err)
	assert.Equal(t, domain.LivestockAlive, created.Status)
	assert.Equal(t, 10, created.InitialQuantity)

	slaughtered := domain.LivestockSlaughtered
	_, err = svc.UpdateLivestock(ctx, created.ID, domain.LivestockUpdateRequest{Status: &slaughtered})
	require.ErrorIs(t, err, store.ErrValidation)

	sold := domain.LivestockSold
	updated, err := svc.UpdateLivestock(ctx, created.ID, domain.LivestockUpdateRequest{Status: &sold})
	require.NoError(t, err)
	assert.Equal(t, domain.LivestockSold, updated.Status)

	deceased := domain.LivestockDeceased
	_, err = svc.UpdateLivestock(ctx, created.ID, domain.LivestockUpdateRequest{Status: &deceased})
	require.ErrorIs(t, err, store.ErrInvalidState)
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_admin", domain.RoleAdmin)

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		SKU: "ayq-002", Name: "Ayam Kampung", UnitType: "per_unit", Price: dec("25"), Stock: dec("4"),
	})
	require.NoError(t, err)
	assert.Equal(t, "AYQ-002", product.SKU)

	_, err = svc.CreateProduct(ctx, domain.ProductCreateRequest{
		SKU: "X-1", Name: "Bad", UnitType: domain.UnitPerUnit, Price: dec("1"), Stock: dec("1.25"),
	})
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.CreateProduct(ctx, domain.ProductCreateRequest{
		SKU: "X-2", Name: "Bad", UnitType: "PER_BOX", Price: dec("1"),
	})
	require.ErrorIs(t, err, store.ErrValidation)
}

func TestUpdateProductKeepsPerUnitStockWhole(t *testing.T) {
	svc := newTestService()
	admin := actorCtx("usr_seed_admin", domain.RoleAdmin)
	perUnit := domain.UnitPerUnit

	_, err := svc.Checkout(actorCtx("usr_seed_pos01", domain.RolePOSUser), domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_beef", Quantity: dec("0.5")}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(admin, "prd_seed_beef", domain.ProductUpdateRequest{UnitType: &perUnit})
	require.ErrorIs(t, err, store.ErrValidation)

	beef, err := svc.GetProduct(admin, "prd_seed_beef")
	require.NoError(t, err)
	assert.Equal(t, domain.UnitPerKG, beef.UnitType)

	goat, err := svc.CreateProduct(admin, domain.ProductCreateRequest{
		SKU: "KBG-001", Name: "Daging Kambing", UnitType: domain.UnitPerKG, Price: dec("45"), Stock: dec("3"),
	})
	require.NoError(t, err)
	switched, err := svc.UpdateProduct(admin, goat.ID, domain.ProductUpdateRequest{UnitType: &perUnit})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitPerUnit, switched.UnitType)
}

func submitInvestment(t *testing.T, svc *Service, ctx context.Context, amount string) *domain.MemberInvestment {
	t.Helper()
	inv, err := svc.SubmitInvestment(ctx, domain.MemberInvestmentRequest{Amount: dec(amount), Date: "2026-01-15"})
	require.NoError(t, err)
	return inv
}

func TestInvestmentApprovalFeedsSummary(t *testing.T) {
	svc := newTestService()
	member := actorCtx("usr_seed_pos01", domain.RolePOSUser)
	finance := actorCtx("usr_seed_finance", domain.RoleFinance)

	first := submitInvestment(t, svc, member, "1000")
	second := submitInvestment(t, svc, member, "250.50")
	assert.Equal(t, domain.InvestmentPending, first.Status)
	assert.Equal(t, "usr_seed_pos01", first.MemberID)
	assert.Equal(t, "CASH", first.Type)

	summary, err := svc.InvestmentSummary(finance)
	require.NoError(t, err)
	assert.Nil(t, summary)

	result, err := svc.ApproveInvestment(finance, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSummaryCategory, result.Summary.Category)
	assert.True(t, result.Summary.TotalAmount.Equal(dec("1000")))

	result, err = svc.ApproveInvestment(finance, second.ID)
	require.NoError(t, err)
	assert.True(t, result.Summary.TotalAmount.Equal(dec("1250.50")))

	_, err = svc.ApproveInvestment(finance, first.ID)
	require.ErrorIs(t, err, store.ErrInvalidState)

	history, err := svc.InvestmentHistory(finance)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, domain.ChangeIncrease, h.ChangeType)
	}

	individual, err := svc.IndividualInvestments(finance)
	require.NoError(t, err)
	require.Len(t, individual, 1)
	assert.Equal(t, "POS Staff 01", individual[0].MemberName)
	assert.Equal(t, 2, individual[0].InvestmentCount)
	assert.True(t, individual[0].TotalApprovedInvestment.Equal(dec("1250.50")))
}

func TestRejectInvestmentRequiresReason(t *testing.T) {
	svc := newTestService()
	member := actorCtx("usr_seed_pos01", domain.RolePOSUser)
	finance := actorCtx("usr_seed_finance", domain.RoleFinance)
	inv := submitInvestment(t, svc, member, "500")

	_, err := svc.RejectInvestment(finance, inv.ID, domain.RejectRequest{Reason: "  "})
	require.ErrorIs(t, err, store.ErrValidation)

	rejected, err := svc.RejectInvestment(finance, inv.ID, domain.RejectRequest{Reason: "duplicate slip"})
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentRejected, rejected.Status)

	summary, err := svc.InvestmentSummary(finance)
	require.NoError(t, err)
	assert.Nil(t, summary)

	_, err = svc.ApproveInvestment(finance, inv.ID)
	require.ErrorIs(t, err, store.ErrInvalidState)
}

func TestSaveInvestmentSummaryClassifiesChange(t *testing.T) {
	svc := newTestService()
	ctx := superAdminCtx()

	_, err := svc.SaveInvestmentSummary(ctx, domain.InvestmentSummaryRequest{TotalAmount: dec("100"), StartDate: "2026-01-01"})
	require.ErrorIs(t, err, store.ErrValidation)

	change, err := svc.SaveInvestmentSummary(ctx, domain.InvestmentSummaryRequest{TotalAmount: dec("100"), StartDate: "2026-01-01", Reason: "opening"})
	require.NoError(t, err)
	assert.Nil(t, change.Previous)
	assert.Equal(t, domain.ChangeIncrease, change.History.ChangeType)

	change, err = svc.SaveInvestmentSummary(ctx, domain.InvestmentSummaryRequest{TotalAmount: dec("80"), StartDate: "2026-01-01", Reason: "write-down"})
	require.NoError(t, err)
	require.NotNil(t, change.Previous)
	assert.Equal(t, domain.ChangeDecrease, change.History.ChangeType)

	change, err = svc.SaveInvestmentSummary(ctx, domain.InvestmentSummaryRequest{TotalAmount: dec("80"), StartDate: "2026-02-01", Reason: "date fix"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeCorrection, change.History.ChangeType)
}

func TestDividendDeclarationUsesLiveProfit(t *testing.T) {
	svc := newTestService()
	admin := superAdminCtx()

	_, err := svc.SaveDividend(admin, domain.DividendRequest{Cycle: "YEARLY", Percentage: dec("10")})
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.SaveInvestmentSummary(admin, domain.InvestmentSummaryRequest{TotalAmount: dec("1000"), StartDate: "2026-01-01", Reason: "opening"})
	require.NoError(t, err)

	// revenue 76.00, cost 60.00
	_, err = svc.Checkout(actorCtx("usr_seed_pos01", domain.RolePOSUser), domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_beef", Quantity: dec("2")}},
	})
	require.NoError(t, err)

	change, err := svc.SaveDividend(admin, domain.DividendRequest{Cycle: "quarterly", Percentage: dec("50")})
	require.NoError(t, err)
	assert.True(t, change.Setting.Amount.Equal(dec("8")), "amount %s", change.Setting.Amount)
	assert.Equal(t, domain.DividendDeclared, change.Setting.PaymentStatus)

	_, err = svc.SaveDividend(admin, domain.DividendRequest{Cycle: "QUARTERLY", Percentage: dec("150")})
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.SaveDividend(admin, domain.DividendRequest{Cycle: "MONTHLY", Percentage: dec("5")})
	require.ErrorIs(t, err, store.ErrValidation)

	roi, err := svc.ROI(admin)
	require.NoError(t, err)
	assert.True(t, roi.NetProfit.Equal(dec("16")))
	assert.True(t, roi.ROIPercent.Equal(dec("1.6")))

	cancelled, err := svc.CancelDividend(admin, change.Setting.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DividendCancelled, cancelled.Setting.PaymentStatus)
	assert.False(t, cancelled.Setting.Active)

	_, err = svc.CancelDividend(admin, change.Setting.ID)
	require.ErrorIs(t, err, store.ErrInvalidState)

	history, err := svc.DividendHistory(admin)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestExpenseVisibilityGatesList(t *testing.T) {
	svc := newTestService()
	finance := actorCtx("usr_seed_finance", domain.RoleFinance)
	pos := actorCtx("usr_seed_pos01", domain.RolePOSUser)

	expense, err := svc.CreateExpense(finance, domain.ExpenseRequest{
		Name: "Bil elektrik", CategoryID: "exc_seed_utilities", Amount: dec("120.40"), Date: "2026-02-03",
	})
	require.NoError(t, err)
	assert.Equal(t, "Utiliti", expense.CategoryName)

	_, err = svc.ListExpenses(pos)
	require.ErrorIs(t, err, ErrAccessDenied)

	visibility := domain.DefaultExpenseVisibility()
	visibility.POSUser = true
	_, err = svc.SaveExpenseVisibility(superAdminCtx(), visibility)
	require.NoError(t, err)

	expenses, err := svc.ListExpenses(pos)
	require.NoError(t, err)
	assert.Len(t, expenses, 1)

	_, err = svc.UpdateExpense(finance, expense.ID, domain.ExpenseRequest{
		Name: "Bil elektrik", CategoryID: "exc_seed_utilities", Amount: dec("130"), Date: "2026-02-03",
	})
	require.NoError(t, err)

	history, err := svc.ExpenseHistory(finance, expense.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].PreviousAmount.Equal(dec("120.40")))
	assert.True(t, history[0].NewAmount.Equal(dec("130")))
}

func TestExportExpensesCSV(t *testing.T) {
	svc := newTestService()
	finance := actorCtx("usr_seed_finance", domain.RoleFinance)
	_, err := svc.CreateExpense(finance, domain.ExpenseRequest{
		Name: "Dedak", CategoryID: "exc_seed_feed", Amount: dec("300"), Date: "2026-02-04",
	})
	require.NoError(t, err)

	file, err := svc.ExportExpensesCSV(finance)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Contains(t, string(file.Body), "Dedak")
}

func TestInvoiceNumberingAndVisibility(t *testing.T) {
	svc := newTestService()
	finance := actorCtx("usr_seed_finance", domain.RoleFinance)

	create := func(userID string) *domain.InvoiceAllowance {
		inv, err := svc.CreateInvoice(finance, domain.InvoiceCreateRequest{
			UserID: userID, Month: 3, Year: 2026,
			Items: []domain.InvoiceAllowanceItem{
				{AllowanceTypeID: "alt_seed_meal", Amount: dec("50")},
				{AllowanceTypeID: "alt_seed_travel", Amount: dec("120.25")},
			},
		})
		require.NoError(t, err)
		return inv
	}
	first := create("usr_seed_pos01")
	second := create("usr_seed_farm")
	assert.Equal(t, "INV-ELAUN-202603-0001", first.InvoiceNumber)
	assert.Equal(t, "INV-ELAUN-202603-0002", second.InvoiceNumber)
	assert.Equal(t, domain.InvoiceIssued, first.Status)
	assert.True(t, first.TotalAmount.Equal(dec("170.25")))

	mine, err := svc.ListInvoices(actorCtx("usr_seed_pos01", domain.RolePOSUser), domain.InvoiceFilter{UserID: "usr_seed_farm"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	all, err := svc.ListInvoices(finance, domain.InvoiceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.CreateInvoice(finance, domain.InvoiceCreateRequest{UserID: "usr_seed_pos01", Month: 13, Year: 2026,
		Items: []domain.InvoiceAllowanceItem{{AllowanceTypeID: "alt_seed_meal", Amount: dec("1")}}})
	require.ErrorIs(t, err, store.ErrValidation)
}

func TestInvoiceStatusFinalizedIsTerminal(t *testing.T) {
	svc := newTestService()
	finance := actorCtx("usr_seed_finance", domain.RoleFinance)
	inv, err := svc.CreateInvoice(finance, domain.InvoiceCreateRequest{
		UserID: "usr_seed_pos01", Month: 1, Year: 2026,
		Items: []domain.InvoiceAllowanceItem{{AllowanceTypeID: "alt_seed_overtime", Amount: dec("80")}},
	})
	require.NoError(t, err)

	approved, err := svc.UpdateInvoiceStatus(finance, inv.ID, domain.InvoiceStatusRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleFinance, approved.ApproverRole)
	assert.Equal(t, "Finance Officer", approved.ApproverName)
	require.NotNil(t, approved.ApprovalTimestamp)

	_, err = svc.UpdateInvoiceStatus(finance, inv.ID, domain.InvoiceStatusRequest{Status: "FINALIZED"})
	require.NoError(t, err)

	_, err = svc.UpdateInvoiceStatus(finance, inv.ID, domain.InvoiceStatusRequest{Status: "ISSUED"})
	require.ErrorIs(t, err, store.ErrInvalidState)

	_, err = svc.UpdateInvoiceStatus(finance, inv.ID, domain.InvoiceStatusRequest{Status: "PAID"})
	require.ErrorIs(t, err, store.ErrValidation)
}

func TestAllowanceReportSkipsDrafts(t *testing.T) {
	svc := newTestService()
	finance := actorCtx("usr_seed_finance", domain.RoleFinance)
	for _, userID := range []string{"usr_seed_pos01", "usr_seed_farm"} {
		_, err := svc.CreateInvoice(finance, domain.InvoiceCreateRequest{
			UserID: userID, Month: 4, Year: 2026,
			Items: []domain.InvoiceAllowanceItem{{AllowanceTypeID: "alt_seed_meal", Amount: dec("40")}},
		})
		require.NoError(t, err)
	}
	invoices, err := svc.ListInvoices(finance, domain.InvoiceFilter{UserID: "usr_seed_farm"})
	require.NoError(t, err)
	_, err = svc.UpdateInvoiceStatus(finance, invoices[0].ID, domain.InvoiceStatusRequest{Status: "DRAFT"})
	require.NoError(t, err)

	report, err := svc.AllowanceReport(finance, 2026)
	require.NoError(t, err)
	assert.True(t, report.ByMonth[4].Equal(dec("40")))
	assert.Equal(t, 1, report.StatusCounts[domain.InvoiceIssued])
	assert.Zero(t, report.StatusCounts[domain.InvoiceDraft])
	assert.True(t, report.ByCategory["Elaun Makan"].Equal(dec("40")))

	file, err := svc.ExportAllowanceCSV(finance, 2026)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	assert.Len(t, lines, 5)
}

func TestSalesReportCacheInvalidatedByCheckout(t *testing.T) {
	reports := newMapCache()
	svc := New(memory.NewSeeded(nil), Options{Reports: reports})
	pos := actorCtx("usr_seed_pos01", domain.RolePOSUser)
	checkout := func() {
		_, err := svc.Checkout(pos, domain.CheckoutRequest{
			PaymentMethod: "TRANSFER",
			Items: []domain.CheckoutItem{
				{ProductID: "prd_seed_rice", Quantity: dec("1")},
				{ProductID: "prd_seed_chicken", Quantity: dec("2")},
			},
		})
		require.NoError(t, err)
	}
	checkout()

	report, err := svc.SalesReport(pos, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalTransactions)
	assert.True(t, report.ProductCategoryTotals["Uncategorized"].Equal(dec("32")))
	assert.True(t, report.ProductCategoryTotals["Ayam"].Equal(dec("37")))
	assert.True(t, report.PaymentMethods[domain.PaymentTransfer].Equal(dec("69")))

	_, err = svc.SalesReport(pos, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, reports.sets)

	checkout()
	report, err = svc.SalesReport(pos, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalTransactions)
	assert.Equal(t, 2, reports.sets)
}

func TestSalesReportCacheInvalidatedByProductChanges(t *testing.T) {
	reports := newMapCache()
	svc := New(memory.NewSeeded(nil), Options{Reports: reports})
	pos := actorCtx("usr_seed_pos01", domain.RolePOSUser)
	admin := actorCtx("usr_seed_admin", domain.RoleAdmin)

	_, err := svc.Checkout(pos, domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_rice", Quantity: dec("1")}},
	})
	require.NoError(t, err)

	report, err := svc.SalesReport(pos, "", "")
	require.NoError(t, err)
	assert.True(t, report.ProductCategoryTotals["Uncategorized"].Equal(dec("32")))
	assert.Equal(t, 1, reports.sets)

	category := "Beras"
	_, err = svc.UpdateProduct(admin, "prd_seed_rice", domain.ProductUpdateRequest{Category: &category})
	require.NoError(t, err)

	report, err = svc.SalesReport(pos, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, reports.sets)
	assert.True(t, report.ProductCategoryTotals["Beras"].Equal(dec("32")))
	assert.NotContains(t, report.ProductCategoryTotals, "Uncategorized")

	spare, err := svc.CreateProduct(admin, domain.ProductCreateRequest{
		SKU: "SPR-001", Name: "Spare", UnitType: domain.UnitPerUnit, Price: dec("1"),
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(admin, spare.ID))

	_, err = svc.SalesReport(pos, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, reports.sets)
}

func TestInventoryReportGroupsLivestock(t *testing.T) {
	svc := newTestService()
	ctx := actorCtx("usr_seed_admin", domain.RoleAdmin)
	_, err := svc.CreateLivestock(ctx, domain.LivestockCreateRequest{Type: "COW", Quantity: 2, DateReceived: "2026-01-10"})
	require.NoError(t, err)

	report, err := svc.InventoryReport(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Products, 4)
	require.Len(t, report.LivestockSummary, 2)
	assert.Equal(t, domain.LivestockChicken, report.LivestockSummary[0].Type)
	assert.Equal(t, domain.LivestockSummaryRow{Type: domain.LivestockCow, Status: domain.LivestockAlive, Count: 2, Quantity: 7}, report.LivestockSummary[1])
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "finance", "finance123")
	require.NoError(t, err)
	assert.Equal(t, "usr_seed_finance", user.ID)

	_, err = svc.Authenticate(ctx, "finance@agrokoperasi.my", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestInactiveAccountsOnlyAdminsMayLogin(t *testing.T) {
	svc := newTestService()
	admin := superAdminCtx()
	inactive := false

	_, err := svc.UpdateUser(admin, "usr_seed_pos01", domain.UserUpdateRequest{Active: &inactive})
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), "pos01", "pos123")
	require.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.UpdateUser(admin, "usr_seed_admin", domain.UserUpdateRequest{Active: &inactive})
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), "admin", "admin123")
	require.NoError(t, err)
}

func TestOnlySuperAdminManagesSuperAdmins(t *testing.T) {
	svc := newTestService()
	admin := actorCtx("usr_seed_admin", domain.RoleAdmin)

	_, err := svc.CreateUser(admin, domain.UserCreateRequest{Username: "boss@agrokoperasi.my", Password: "secret1", Name: "Boss", Role: domain.RoleSuperAdmin})
	require.ErrorIs(t, err, ErrAccessDenied)

	name := "Renamed"
	_, err = svc.UpdateUser(admin, "usr_seed_superadmin", domain.UserUpdateRequest{Name: &name})
	require.ErrorIs(t, err, ErrAccessDenied)

	created, err := svc.CreateUser(admin, domain.UserCreateRequest{Username: "Staff@agrokoperasi.my", Password: "secret1", Name: "Staff"})
	require.NoError(t, err)
	assert.Equal(t, "staff@agrokoperasi.my", created.Username)
	assert.Equal(t, domain.RoleUser, created.Role)
}

func TestPasswordUpdateKeepsOrReplacesHash(t *testing.T) {
	svc := newTestService()
	admin := superAdminCtx()
	branch := "Kuantan"

	_, err := svc.UpdateUser(admin, "usr_seed_pos01", domain.UserUpdateRequest{Branch: &branch})
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), "pos01", "pos123")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(admin, domain.PasswordResetRequest{Username: "pos01", NewPassword: "newpass1"}))
	_, err = svc.Authenticate(context.Background(), "pos01", "pos123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(context.Background(), "pos01", "newpass1")
	require.NoError(t, err)
}

func TestModulePermissions(t *testing.T) {
	svc := newTestService()
	admin := superAdminCtx()

	perms, err := svc.SetPermissions(admin, "usr_seed_pos01", domain.PermissionUpdateRequest{Modules: []domain.ModulePermission{
		{Module: "allowance", Allowed: false},
		{Module: "TELEPORT", Allowed: false},
	}})
	require.NoError(t, err)
	assert.Len(t, perms, len(domain.Modules))
	for _, p := range perms {
		assert.Equal(t, p.Module != domain.ModuleAllowance, p.Allowed, p.Module)
	}

	ok, err := svc.ModuleAllowed(context.Background(), "usr_seed_pos01", domain.ModuleAllowance)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.ModuleAllowed(context.Background(), "usr_seed_pos01", domain.ModuleAllowance, domain.ModuleMyAllowance)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWorkflowsAreAudited(t *testing.T) {
	svc := newTestService()
	_, err := svc.Checkout(actorCtx("usr_seed_pos01", domain.RolePOSUser), domain.CheckoutRequest{
		PaymentMethod: "CASH",
		Items:         []domain.CheckoutItem{{ProductID: "prd_seed_eggs", Quantity: dec("1")}},
	})
	require.NoError(t, err)

	logs, err := svc.ListAuditLogs(superAdminCtx(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, domain.ActionCreate, logs[0].Action)
	assert.Equal(t, "TRANSACTION", logs[0].Entity)
	assert.Equal(t, "usr_seed_pos01", logs[0].ActorID)
}

func TestTransactionFilterIncludesWholeEndDay(t *testing.T) {
	filter, err := transactionFilter("2026-02-01", "2026-02-01")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, filter.To.Sub(filter.From))

	_, err = transactionFilter("2026-02-02", "2026-02-01")
	require.True(t, errors.Is(err, store.ErrValidation))
}
