package harvesting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/internal/domain/repositories"
	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// ViolationAlerter notifies the advisor when a tracked window is violated.
// Alerts are best effort: failures are logged, never propagated.
type ViolationAlerter interface {
	SendViolationAlert(ctx context.Context, ws *entities.WashSaleTransaction) error
}

// Monitor re-checks open wash-sale windows against the transaction stream.
// Intended to run on a recurring schedule; each run evaluates only windows
// still IN_WINDOW, so a resolved window is never touched again.
type Monitor struct {
	washSales    repositories.WashSaleRepository
	transactions repositories.TransactionRepository
	alerter      ViolationAlerter
	logger       *zap.Logger
	now          func() time.Time
}

// NewMonitor creates a wash-sale violation monitor. alerter may be nil.
func NewMonitor(
	washSales repositories.WashSaleRepository,
	transactions repositories.TransactionRepository,
	alerter ViolationAlerter,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		washSales:    washSales,
		transactions: transactions,
		alerter:      alerter,
		logger:       logger,
		now:          time.Now,
	}
}

// CheckViolations evaluates every open window for the advisor. A purchase
// of any watched symbol inside the window, other than the original sell,
// marks the window VIOLATED with the full tracked loss disallowed. A window
// whose end has passed with no such purchase is marked CLEAR. Returns every
// window evaluated, with its updated status.
func (m *Monitor) CheckViolations(ctx context.Context, advisorID uuid.UUID) ([]*entities.WashSaleTransaction, error) {
	windows, err := m.washSales.ListOpenByAdvisor(ctx, advisorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open wash-sale windows: %w", err)
	}

	now := m.now()
	for _, ws := range windows {
		if err := m.evaluateWindow(ctx, ws, now); err != nil {
			return nil, err
		}
	}

	return windows, nil
}

func (m *Monitor) evaluateWindow(ctx context.Context, ws *entities.WashSaleTransaction, now time.Time) error {
	purchases, err := m.transactions.ListPurchases(ctx, ws.AccountID, ws.WatchSymbols, ws.WindowStart, ws.WindowEnd)
	if err != nil {
		return fmt.Errorf("failed to query purchases for window %s: %w", ws.ID, err)
	}

	var violation *entities.AccountTransaction
	for _, tx := range purchases {
		if ws.SellTransactionID != nil && tx.ID == *ws.SellTransactionID {
			continue
		}
		violation = tx
		break
	}

	switch {
	case violation != nil:
		tradeDate := violation.TradeDate
		ws.Status = entities.WashSaleStatusViolated
		ws.ViolationTransactionID = &violation.ID
		ws.ViolationDate = &tradeDate
		// Partial-quantity proportional disallowance is not modeled; the
		// full tracked loss is disallowed.
		ws.DisallowedLoss = ws.LossAmount
		ws.UpdatedAt = now

		if err := m.washSales.Update(ctx, ws); err != nil {
			return fmt.Errorf("failed to record violation for window %s: %w", ws.ID, err)
		}

		metrics.WashSaleViolations.Inc()
		metrics.WashSaleWindowsClosed.WithLabelValues(string(entities.WashSaleStatusViolated)).Inc()
		m.logger.Warn("wash-sale violation detected",
			zap.String("window_id", ws.ID.String()),
			zap.String("symbol", ws.Symbol),
			zap.String("violating_transaction", violation.ID.String()),
			zap.String("disallowed_loss", ws.DisallowedLoss.String()),
		)
		m.sendAlert(ctx, ws)

	case now.After(ws.WindowEnd):
		ws.Status = entities.WashSaleStatusClear
		ws.UpdatedAt = now

		if err := m.washSales.Update(ctx, ws); err != nil {
			return fmt.Errorf("failed to close window %s: %w", ws.ID, err)
		}

		metrics.WashSaleWindowsClosed.WithLabelValues(string(entities.WashSaleStatusClear)).Inc()
		m.logger.Info("wash-sale window closed clear",
			zap.String("window_id", ws.ID.String()),
			zap.String("symbol", ws.Symbol),
		)
	}

	return nil
}

func (m *Monitor) sendAlert(ctx context.Context, ws *entities.WashSaleTransaction) {
	if m.alerter == nil {
		return
	}
	if err := m.alerter.SendViolationAlert(ctx, ws); err != nil {
		m.logger.Warn("failed to send wash-sale violation alert",
			zap.String("window_id", ws.ID.String()),
			zap.Error(err),
		)
	}
}
