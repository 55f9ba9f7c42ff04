package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// PositionRepository reads positions and tax lots from the custodian
// aggregation tables. This repository never writes.
type PositionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sqlx.DB, logger *zap.Logger) *PositionRepository {
	return &PositionRepository{
		db:     db,
		logger: logger,
	}
}

const positionColumns = `
	id, advisor_id, client_id, household_id, account_id, account_type,
	symbol, cusip, security_name, quantity, current_price, market_value,
	cost_basis, unrealized_gain_loss, updated_at`

// ListLossPositions returns positions carrying a paper loss within the
// scope. clientID and accountID narrow the query when non-nil.
func (r *PositionRepository) ListLossPositions(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) ([]*entities.Position, error) {
	defer metrics.ObserveDBQuery("list_loss_positions", "positions", time.Now())
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE advisor_id = $1
		  AND ($2::uuid IS NULL OR client_id = $2)
		  AND ($3::uuid IS NULL OR account_id = $3)
		  AND unrealized_gain_loss < 0
		ORDER BY unrealized_gain_loss ASC`

	rows, err := r.db.QueryContext(ctx, query, advisorID, clientID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loss positions: %w", err)
	}
	defer rows.Close()

	var positions []*entities.Position
	for rows.Next() {
		var p entities.Position
		err := rows.Scan(
			&p.ID, &p.AdvisorID, &p.ClientID, &p.HouseholdID, &p.AccountID, &p.AccountType,
			&p.Symbol, &p.CUSIP, &p.SecurityName, &p.Quantity, &p.CurrentPrice, &p.MarketValue,
			&p.CostBasis, &p.UnrealizedGainLoss, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return positions, nil
}

// GetOpenLossLots returns the position's open lots with a paper loss,
// largest loss first.
func (r *PositionRepository) GetOpenLossLots(ctx context.Context, positionID uuid.UUID) ([]*entities.TaxLot, error) {
	defer metrics.ObserveDBQuery("get_open_loss_lots", "tax_lots", time.Now())
	query := `
		SELECT id, position_id, acquisition_date, quantity, cost_basis,
		       current_value, unrealized_gain_loss, is_long_term, is_open
		FROM tax_lots
		WHERE position_id = $1 AND is_open = true AND unrealized_gain_loss < 0
		ORDER BY unrealized_gain_loss ASC`

	rows, err := r.db.QueryContext(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loss lots: %w", err)
	}
	defer rows.Close()

	var lots []*entities.TaxLot
	for rows.Next() {
		var l entities.TaxLot
		err := rows.Scan(
			&l.ID, &l.PositionID, &l.AcquisitionDate, &l.Quantity, &l.CostBasis,
			&l.CurrentValue, &l.UnrealizedGainLoss, &l.IsLongTerm, &l.IsOpen,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax lot: %w", err)
		}
		lots = append(lots, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return lots, nil
}
