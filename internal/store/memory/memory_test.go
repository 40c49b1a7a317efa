package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
)

func TestCheckoutRejectedLineLeavesStockUntouched(t *testing.T) {
	s := NewSeeded(zap.NewNop())
	ctx := context.Background()

	_, err := s.CreateCheckout(ctx, domain.Transaction{
		UserID:        "usr_seed_pos01",
		PaymentMethod: domain.PaymentCash,
		Items: []domain.TransactionItem{
			{ProductID: "prd_seed_beef", Quantity: decimal.NewFromInt(2)},
			{ProductID: "prd_seed_chicken", Quantity: decimal.NewFromInt(41)},
		},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	beef, err := s.GetProduct(ctx, "prd_seed_beef")
	require.NoError(t, err)
	assert.True(t, beef.Stock.Equal(decimal.NewFromInt(50)), "stock=%s", beef.Stock)

	txs, err := s.ListTransactions(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCheckoutRepeatedProductSeesDecrementedStock(t *testing.T) {
	s := NewSeeded(zap.NewNop())
	ctx := context.Background()

	_, err := s.CreateCheckout(ctx, domain.Transaction{
		PaymentMethod: domain.PaymentQR,
		Items: []domain.TransactionItem{
			{ProductID: "prd_seed_rice", Quantity: decimal.NewFromInt(15)},
			{ProductID: "prd_seed_rice", Quantity: decimal.NewFromInt(6)},
		},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	s := NewSeeded(zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 30)
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateCheckout(ctx, domain.Transaction{
				PaymentMethod: domain.PaymentCash,
				Items:         []domain.TransactionItem{{ProductID: "prd_seed_rice", Quantity: decimal.NewFromInt(1)}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, store.ErrInsufficientStock)
	}
	assert.Equal(t, 20, succeeded)

	rice, err := s.GetProduct(ctx, "prd_seed_rice")
	require.NoError(t, err)
	assert.True(t, rice.Stock.IsZero())
}

func TestSlaughterSkipsUnknownProducts(t *testing.T) {
	s := NewSeeded(zap.NewNop())
	ctx := context.Background()

	result, err := s.ProcessSlaughter(ctx, domain.SlaughterRequest{
		LivestockID: "lvs_seed_cows",
		Quantity:    2,
		ProducedProducts: []domain.ProducedProduct{
			{ProductID: "prd_seed_beef", Quantity: decimal.RequireFromString("120.5")},
			{ProductID: "prd_missing", Quantity: decimal.NewFromInt(3)},
		},
	}, "usr_seed_admin", time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, domain.LivestockPartialSlaughtered, result.Livestock.Status)
	assert.Equal(t, 3, result.Livestock.Quantity)
	require.Len(t, result.Applied, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "prd_missing", result.Skipped[0].ProductID)

	beef, err := s.GetProduct(ctx, "prd_seed_beef")
	require.NoError(t, err)
	assert.Equal(t, "170.5", beef.Stock.String())

	err = s.DeleteLivestock(ctx, "lvs_seed_cows")
	require.ErrorIs(t, err, store.ErrInvalidState)
}

func TestSlaughterOverQuantityChangesNothing(t *testing.T) {
	s := NewSeeded(zap.NewNop())
	ctx := context.Background()

	_, err := s.ProcessSlaughter(ctx, domain.SlaughterRequest{
		LivestockID:      "lvs_seed_cows",
		Quantity:         6,
		ProducedProducts: []domain.ProducedProduct{{ProductID: "prd_seed_beef", Quantity: decimal.NewFromInt(10)}},
	}, "usr_seed_admin", time.Now().UTC())
	require.ErrorIs(t, err, store.ErrInsufficientQuantity)

	cows, err := s.GetLivestock(ctx, "lvs_seed_cows")
	require.NoError(t, err)
	assert.Equal(t, 5, cows.Quantity)
	assert.Empty(t, cows.SlaughterLogs)

	logs, err := s.ListSlaughterLogs(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestInvoiceNumbersArePerPeriod(t *testing.T) {
	s := NewSeeded(zap.NewNop())
	ctx := context.Background()

	newInvoice := func(month int) string {
		inv, err := s.CreateInvoice(ctx, domain.InvoiceAllowance{
			UserID: "usr_seed_pos01",
			Month:  month,
			Year:   2026,
			Status: domain.InvoiceIssued,
			Items:  []domain.InvoiceAllowanceItem{{AllowanceTypeID: "alt_seed_meal", Amount: decimal.NewFromInt(50)}},
		})
		require.NoError(t, err)
		return inv.InvoiceNumber
	}

	assert.Equal(t, "INV-ELAUN-202603-0001", newInvoice(3))
	assert.Equal(t, "INV-ELAUN-202603-0002", newInvoice(3))
	assert.Equal(t, "INV-ELAUN-202604-0001", newInvoice(4))
}

func TestAuditLogsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, action := range []string{domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete} {
		require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{Action: action, Entity: "PRODUCT", Timestamp: base.Add(time.Duration(i) * time.Second)}))
	}

	logs, err := s.ListAuditLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.ActionDelete, logs[0].Action)
	assert.Equal(t, domain.ActionUpdate, logs[1].Action)
}
