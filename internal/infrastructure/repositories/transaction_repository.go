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

// TransactionRepository reads normalized custodian trades. This repository
// never writes.
type TransactionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sqlx.DB, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

const transactionColumns = `
	id, account_id, symbol, type, trade_date, quantity, price, net_amount`

// ListPurchases returns BUY trades in the account for any of the given
// symbols with trade dates in [from, to] inclusive.
func (r *TransactionRepository) ListPurchases(ctx context.Context, accountID uuid.UUID, symbols []string, from, to time.Time) ([]*entities.AccountTransaction, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	defer metrics.ObserveDBQuery("list_purchases", "account_transactions", time.Now())

	query := `
		SELECT ` + transactionColumns + `
		FROM account_transactions
		WHERE account_id = $1
		  AND type = 'BUY'
		  AND symbol = ANY($2)
		  AND trade_date >= $3
		  AND trade_date <= $4
		ORDER BY trade_date ASC`

	rows, err := r.db.QueryContext(ctx, query, accountID, pq.StringArray(symbols), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var txs []*entities.AccountTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return txs, nil
}

// GetByID loads one trade, or nil when absent.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AccountTransaction, error) {
	defer metrics.ObserveDBQuery("get_by_id", "account_transactions", time.Now())
	query := `SELECT ` + transactionColumns + ` FROM account_transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func scanTransaction(row rowScanner) (*entities.AccountTransaction, error) {
	var tx entities.AccountTransaction
	err := row.Scan(
		&tx.ID, &tx.AccountID, &tx.Symbol, &tx.Type,
		&tx.TradeDate, &tx.Quantity, &tx.Price, &tx.NetAmount,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
