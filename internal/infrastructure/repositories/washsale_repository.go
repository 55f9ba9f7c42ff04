package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// WashSaleRepository persists tracked wash-sale windows.
type WashSaleRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewWashSaleRepository creates a new wash-sale repository
func NewWashSaleRepository(db *sqlx.DB, logger *zap.Logger) *WashSaleRepository {
	return &WashSaleRepository{
		db:     db,
		logger: logger,
	}
}

const washSaleColumns = `
	id, advisor_id, account_id, opportunity_id, symbol,
	sale_date, quantity_sold, loss_amount,
	window_start, window_end, watch_symbols, status,
	sell_transaction_id, violation_transaction_id, violation_date, disallowed_loss,
	created_at, updated_at`

// Create inserts a new tracked window.
func (r *WashSaleRepository) Create(ctx context.Context, ws *entities.WashSaleTransaction) error {
	defer metrics.ObserveDBQuery("create", "wash_sale_transactions", time.Now())
	if err := insertWashSale(ctx, r.db, ws); err != nil {
		r.logger.Error("failed to create wash-sale window",
			zap.Error(err),
			zap.String("window_id", ws.ID.String()),
			zap.String("symbol", ws.Symbol),
		)
		return err
	}

	return nil
}

func insertWashSale(ctx context.Context, ex execer, ws *entities.WashSaleTransaction) error {
	query := `
		INSERT INTO wash_sale_transactions (` + washSaleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := ex.ExecContext(ctx, query,
		ws.ID, ws.AdvisorID, ws.AccountID, ws.OpportunityID, ws.Symbol,
		ws.SaleDate, ws.QuantitySold, ws.LossAmount,
		ws.WindowStart, ws.WindowEnd, pq.StringArray(ws.WatchSymbols), ws.Status,
		ws.SellTransactionID, ws.ViolationTransactionID, ws.ViolationDate, ws.DisallowedLoss,
		ws.CreatedAt, ws.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wash-sale window: %w", err)
	}

	return nil
}

// Update persists the window's status and violation fields.
func (r *WashSaleRepository) Update(ctx context.Context, ws *entities.WashSaleTransaction) error {
	defer metrics.ObserveDBQuery("update", "wash_sale_transactions", time.Now())
	query := `
		UPDATE wash_sale_transactions SET
			status = $2, violation_transaction_id = $3, violation_date = $4,
			disallowed_loss = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		ws.ID, ws.Status, ws.ViolationTransactionID, ws.ViolationDate,
		ws.DisallowedLoss, ws.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update wash-sale window: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("wash-sale window %s not found", ws.ID)
	}

	return nil
}

// GetByID loads one tracked window, or nil when absent.
func (r *WashSaleRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.WashSaleTransaction, error) {
	defer metrics.ObserveDBQuery("get_by_id", "wash_sale_transactions", time.Now())
	query := `SELECT ` + washSaleColumns + ` FROM wash_sale_transactions WHERE id = $1`

	ws, err := scanWashSale(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return ws, nil
}

// ListOpenByAdvisor returns the advisor's IN_WINDOW windows. Resolved
// windows are excluded so they are never re-evaluated.
func (r *WashSaleRepository) ListOpenByAdvisor(ctx context.Context, advisorID uuid.UUID) ([]*entities.WashSaleTransaction, error) {
	defer metrics.ObserveDBQuery("list_open_by_advisor", "wash_sale_transactions", time.Now())
	query := `
		SELECT ` + washSaleColumns + `
		FROM wash_sale_transactions
		WHERE advisor_id = $1 AND status = 'IN_WINDOW'
		ORDER BY window_end ASC`

	return r.list(ctx, query, advisorID)
}

// ListActiveWindows returns windows in the account watching any of the
// given symbols whose window has not closed as of asOf.
func (r *WashSaleRepository) ListActiveWindows(ctx context.Context, accountID uuid.UUID, symbols []string, asOf time.Time) ([]*entities.WashSaleTransaction, error) {
	defer metrics.ObserveDBQuery("list_active_windows", "wash_sale_transactions", time.Now())
	query := `
		SELECT ` + washSaleColumns + `
		FROM wash_sale_transactions
		WHERE account_id = $1
		  AND watch_symbols && $2
		  AND window_end >= $3
		ORDER BY window_end ASC`

	return r.list(ctx, query, accountID, pq.StringArray(symbols), asOf)
}

// ListAdvisorsWithOpenWindows returns the distinct advisors owning at least
// one IN_WINDOW window.
func (r *WashSaleRepository) ListAdvisorsWithOpenWindows(ctx context.Context) ([]uuid.UUID, error) {
	defer metrics.ObserveDBQuery("list_advisors_with_open_windows", "wash_sale_transactions", time.Now())
	query := `
		SELECT DISTINCT advisor_id
		FROM wash_sale_transactions
		WHERE status = 'IN_WINDOW'`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query advisors with open windows: %w", err)
	}
	defer rows.Close()

	var advisors []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan advisor id: %w", err)
		}
		advisors = append(advisors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return advisors, nil
}

func (r *WashSaleRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entities.WashSaleTransaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wash-sale windows: %w", err)
	}
	defer rows.Close()

	var windows []*entities.WashSaleTransaction
	for rows.Next() {
		ws, err := scanWashSale(rows)
		if err != nil {
			return nil, err
		}
		windows = append(windows, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return windows, nil
}

func scanWashSale(row rowScanner) (*entities.WashSaleTransaction, error) {
	var (
		ws           entities.WashSaleTransaction
		watchSymbols pq.StringArray
	)

	err := row.Scan(
		&ws.ID, &ws.AdvisorID, &ws.AccountID, &ws.OpportunityID, &ws.Symbol,
		&ws.SaleDate, &ws.QuantitySold, &ws.LossAmount,
		&ws.WindowStart, &ws.WindowEnd, &watchSymbols, &ws.Status,
		&ws.SellTransactionID, &ws.ViolationTransactionID, &ws.ViolationDate, &ws.DisallowedLoss,
		&ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ws.WatchSymbols = watchSymbols
	return &ws, nil
}
