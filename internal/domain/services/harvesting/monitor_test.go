package harvesting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
)

type monitorFixture struct {
	monitor      *Monitor
	washSales    *mockWashSaleRepository
	transactions *mockTransactionRepository
	alerter      *mockAlerter
	now          time.Time
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	f := &monitorFixture{
		washSales:    &mockWashSaleRepository{},
		transactions: &mockTransactionRepository{},
		alerter:      &mockAlerter{},
		now:          time.Date(2025, 6, 16, 14, 0, 0, 0, time.UTC),
	}
	f.monitor = NewMonitor(f.washSales, f.transactions, f.alerter, zaptest.NewLogger(t))
	f.monitor.now = func() time.Time { return f.now }
	return f
}

func (f *monitorFixture) openWindow(advisorID uuid.UUID) *entities.WashSaleTransaction {
	sellTxID := uuid.New()
	return &entities.WashSaleTransaction{
		ID:                uuid.New(),
		AdvisorID:         advisorID,
		AccountID:         uuid.New(),
		OpportunityID:     uuid.New(),
		Symbol:            "VTI",
		SaleDate:          f.now.AddDate(0, 0, -10),
		QuantitySold:      decimal.NewFromInt(100),
		LossAmount:        decimal.RequireFromString("1500.00"),
		WindowStart:       f.now.AddDate(0, 0, -40),
		WindowEnd:         f.now.AddDate(0, 0, 20),
		WatchSymbols:      []string{"VTI"},
		Status:            entities.WashSaleStatusInWindow,
		SellTransactionID: &sellTxID,
		DisallowedLoss:    decimal.Zero,
	}
}

func TestMonitor_CheckViolations_PurchaseInWindowViolates(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	advisorID := uuid.New()
	ws := f.openWindow(advisorID)

	repurchase := &entities.AccountTransaction{
		ID:        uuid.New(),
		AccountID: ws.AccountID,
		Symbol:    "VTI",
		Type:      entities.TransactionTypeBuy,
		TradeDate: f.now.AddDate(0, 0, -2),
		Quantity:  decimal.NewFromInt(50),
		NetAmount: decimal.RequireFromString("-4250.00"),
	}

	f.washSales.On("ListOpenByAdvisor", ctx, advisorID).
		Return([]*entities.WashSaleTransaction{ws}, nil)
	f.transactions.On("ListPurchases", ctx, ws.AccountID, []string{"VTI"}, ws.WindowStart, ws.WindowEnd).
		Return([]*entities.AccountTransaction{repurchase}, nil)
	f.washSales.On("Update", ctx, ws).Return(nil)
	f.alerter.On("SendViolationAlert", ctx, ws).Return(nil)

	evaluated, err := f.monitor.CheckViolations(ctx, advisorID)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)

	assert.Equal(t, entities.WashSaleStatusViolated, ws.Status)
	require.NotNil(t, ws.ViolationTransactionID)
	assert.Equal(t, repurchase.ID, *ws.ViolationTransactionID)
	require.NotNil(t, ws.ViolationDate)
	assert.Equal(t, repurchase.TradeDate, *ws.ViolationDate)
	assert.True(t, ws.DisallowedLoss.Equal(decimal.RequireFromString("1500.00")))

	f.washSales.AssertExpectations(t)
	f.alerter.AssertExpectations(t)
}

func TestMonitor_CheckViolations_OriginalSellIgnored(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	advisorID := uuid.New()
	ws := f.openWindow(advisorID)

	// The original sale shows up in the transaction feed; it is not a
	// repurchase.
	original := &entities.AccountTransaction{
		ID:        *ws.SellTransactionID,
		AccountID: ws.AccountID,
		Symbol:    "VTI",
		Type:      entities.TransactionTypeBuy,
		TradeDate: ws.SaleDate,
	}

	f.washSales.On("ListOpenByAdvisor", ctx, advisorID).
		Return([]*entities.WashSaleTransaction{ws}, nil)
	f.transactions.On("ListPurchases", ctx, ws.AccountID, []string{"VTI"}, ws.WindowStart, ws.WindowEnd).
		Return([]*entities.AccountTransaction{original}, nil)

	_, err := f.monitor.CheckViolations(ctx, advisorID)
	require.NoError(t, err)

	assert.Equal(t, entities.WashSaleStatusInWindow, ws.Status)
	f.washSales.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.alerter.AssertNotCalled(t, "SendViolationAlert", mock.Anything, mock.Anything)
}

func TestMonitor_CheckViolations_ExpiredWindowClears(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	advisorID := uuid.New()
	ws := f.openWindow(advisorID)
	ws.WindowEnd = f.now.AddDate(0, 0, -1)

	f.washSales.On("ListOpenByAdvisor", ctx, advisorID).
		Return([]*entities.WashSaleTransaction{ws}, nil)
	f.transactions.On("ListPurchases", ctx, ws.AccountID, []string{"VTI"}, ws.WindowStart, ws.WindowEnd).
		Return([]*entities.AccountTransaction{}, nil)
	f.washSales.On("Update", ctx, ws).Return(nil)

	_, err := f.monitor.CheckViolations(ctx, advisorID)
	require.NoError(t, err)

	assert.Equal(t, entities.WashSaleStatusClear, ws.Status)
	assert.True(t, ws.DisallowedLoss.IsZero())
	f.alerter.AssertNotCalled(t, "SendViolationAlert", mock.Anything, mock.Anything)
}

func TestMonitor_CheckViolations_ActiveCleanWindowUntouched(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	advisorID := uuid.New()
	ws := f.openWindow(advisorID)

	f.washSales.On("ListOpenByAdvisor", ctx, advisorID).
		Return([]*entities.WashSaleTransaction{ws}, nil)
	f.transactions.On("ListPurchases", ctx, ws.AccountID, []string{"VTI"}, ws.WindowStart, ws.WindowEnd).
		Return([]*entities.AccountTransaction{}, nil)

	evaluated, err := f.monitor.CheckViolations(ctx, advisorID)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)

	assert.Equal(t, entities.WashSaleStatusInWindow, ws.Status)
	f.washSales.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestMonitor_CheckViolations_AlertFailureDoesNotPropagate(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()
	advisorID := uuid.New()
	ws := f.openWindow(advisorID)

	repurchase := &entities.AccountTransaction{
		ID:        uuid.New(),
		AccountID: ws.AccountID,
		Symbol:    "VTI",
		Type:      entities.TransactionTypeBuy,
		TradeDate: f.now.AddDate(0, 0, -1),
	}

	f.washSales.On("ListOpenByAdvisor", ctx, advisorID).
		Return([]*entities.WashSaleTransaction{ws}, nil)
	f.transactions.On("ListPurchases", ctx, ws.AccountID, []string{"VTI"}, ws.WindowStart, ws.WindowEnd).
		Return([]*entities.AccountTransaction{repurchase}, nil)
	f.washSales.On("Update", ctx, ws).Return(nil)
	f.alerter.On("SendViolationAlert", ctx, ws).Return(assert.AnError)

	_, err := f.monitor.CheckViolations(ctx, advisorID)
	require.NoError(t, err)
	assert.Equal(t, entities.WashSaleStatusViolated, ws.Status)
}
