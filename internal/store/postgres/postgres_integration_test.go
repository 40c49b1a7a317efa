package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("AGROKOPERASI_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set AGROKOPERASI_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestCheckoutDecrementsStockAtomically(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:      fmt.Sprintf("IT-RICE-%d", stamp),
		Name:     "Beras IT",
		UnitType: domain.UnitPerUnit,
		Price:    decimal.RequireFromString("32.00"),
		Stock:    decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	var txIDs []string
	t.Cleanup(func() {
		for _, id := range txIDs {
			_, _ = s.db.ExecContext(ctx, `DELETE FROM transaction_items WHERE transaction_id = $1`, id)
			_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
		}
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	tx, err := s.CreateCheckout(ctx, domain.Transaction{
		UserID:        "usr_it",
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.TransactionItem{{ProductID: product.ID, Quantity: decimal.NewFromInt(3)}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	txIDs = append(txIDs, tx.ID)
	if !tx.TotalAmount.Equal(decimal.RequireFromString("96")) {
		t.Fatalf("expected total 96, got %s", tx.TotalAmount)
	}

	_, err = s.CreateCheckout(ctx, domain.Transaction{
		UserID:        "usr_it",
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.TransactionItem{{ProductID: product.ID, Quantity: decimal.NewFromInt(3)}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	got, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !got.Stock.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected stock 2, got %s", got.Stock)
	}
}

func TestSlaughterMovesLivestockIntoStock(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:      fmt.Sprintf("IT-BEEF-%d", stamp),
		Name:     "Daging IT",
		UnitType: domain.UnitPerKG,
		Price:    decimal.RequireFromString("38.00"),
		Stock:    decimal.Zero,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	herd, err := s.CreateLivestock(ctx, domain.Livestock{
		Type:            domain.LivestockCow,
		Quantity:        2,
		InitialQuantity: 2,
		Status:          domain.LivestockAlive,
		DateReceived:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create livestock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM slaughter_logs WHERE livestock_id = $1`, herd.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM livestock WHERE id = $1`, herd.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	result, err := s.ProcessSlaughter(ctx, domain.SlaughterRequest{
		LivestockID: herd.ID,
		Quantity:    2,
		ProducedProducts: []domain.ProducedProduct{
			{ProductID: product.ID, Quantity: decimal.RequireFromString("120.5")},
			{ProductID: "prd_missing", Quantity: decimal.NewFromInt(1)},
		},
	}, "usr_it", time.Now().UTC())
	if err != nil {
		t.Fatalf("slaughter: %v", err)
	}
	if result.Livestock.Status != domain.LivestockSlaughtered || result.Livestock.Quantity != 0 {
		t.Fatalf("expected slaughtered herd with zero quantity, got %s/%d", result.Livestock.Status, result.Livestock.Quantity)
	}
	if len(result.Applied) != 1 || len(result.Skipped) != 1 {
		t.Fatalf("expected one applied and one skipped product, got %d/%d", len(result.Applied), len(result.Skipped))
	}

	_, err = s.ProcessSlaughter(ctx, domain.SlaughterRequest{LivestockID: herd.ID, Quantity: 1}, "usr_it", time.Now().UTC())
	if !errors.Is(err, store.ErrNotAvailable) {
		t.Fatalf("expected not available, got %v", err)
	}
	if err := s.DeleteLivestock(ctx, herd.ID); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected delete refusal, got %v", err)
	}
}

func TestApproveInvestmentIncrementsSummary(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	before := decimal.Zero
	if sum, err := s.GetActiveSummary(ctx); err == nil {
		before = sum.TotalAmount
	} else if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("active summary: %v", err)
	}

	inv, err := s.CreateMemberInvestment(ctx, domain.MemberInvestment{
		SubmittedBy: "usr_it",
		MemberID:    "usr_it",
		Amount:      decimal.RequireFromString("250.00"),
		Type:        "CASH",
		Date:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create investment: %v", err)
	}

	result, err := s.ApproveInvestment(ctx, inv.ID, "usr_it_finance", time.Now().UTC())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `UPDATE investment_summaries SET total_amount = total_amount - 250 WHERE id = $1`, result.Summary.ID)
	})
	if !result.Summary.TotalAmount.Equal(before.Add(inv.Amount)) {
		t.Fatalf("expected summary %s, got %s", before.Add(inv.Amount), result.Summary.TotalAmount)
	}

	if _, err := s.ApproveInvestment(ctx, inv.ID, "usr_it_finance", time.Now().UTC()); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected second approval to fail, got %v", err)
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()

	const stock, buyers = 4, 12
	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:      fmt.Sprintf("IT-EGG-%d", stamp),
		Name:     "Telur IT",
		UnitType: domain.UnitPerUnit,
		Price:    decimal.RequireFromString("0.50"),
		Stock:    decimal.NewFromInt(stock),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	var (
		mu        sync.Mutex
		txIDs     []string
		soldOut   int
		unexpects []error
	)
	t.Cleanup(func() {
		for _, id := range txIDs {
			_, _ = s.db.ExecContext(ctx, `DELETE FROM transaction_items WHERE transaction_id = $1`, id)
			_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
		}
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.CreateCheckout(ctx, domain.Transaction{
				UserID:        "usr_it",
				PaymentMethod: domain.PaymentCash,
				Items:         []domain.TransactionItem{{ProductID: product.ID, Quantity: decimal.NewFromInt(1)}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				txIDs = append(txIDs, tx.ID)
			case errors.Is(err, store.ErrInsufficientStock):
				soldOut++
			default:
				unexpects = append(unexpects, err)
			}
		}()
	}
	wg.Wait()

	if len(unexpects) > 0 {
		t.Fatalf("expected only insufficient stock failures, got %v", unexpects)
	}
	if len(txIDs) != stock || soldOut != buyers-stock {
		t.Fatalf("expected %d sales and %d sold out, got %d and %d", stock, buyers-stock, len(txIDs), soldOut)
	}
	got, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !got.Stock.IsZero() {
		t.Fatalf("expected stock 0, got %s", got.Stock)
	}
}
