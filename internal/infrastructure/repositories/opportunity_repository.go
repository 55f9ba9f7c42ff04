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
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/database"
	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// OpportunityRepository persists harvest opportunities.
type OpportunityRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewOpportunityRepository creates a new opportunity repository
func NewOpportunityRepository(db *sqlx.DB, logger *zap.Logger) *OpportunityRepository {
	return &OpportunityRepository{
		db:     db,
		logger: logger,
	}
}

const opportunityColumns = `
	id, advisor_id, client_id, household_id, account_id, position_id, symbol, cusip,
	quantity, current_price, cost_basis, market_value,
	total_loss, short_term_loss, long_term_loss, tax_rate_applied, estimated_tax_savings,
	lot_ids, status,
	wash_sale_status, wash_sale_risk_amount, blocking_transaction_ids, window_start, window_end,
	recommendations,
	replacement_symbol, notes, reject_reason,
	sell_transaction_id, buy_transaction_id, realized_loss,
	identified_at, recommended_at, approved_at, approved_by, executed_at, expires_at,
	created_at, updated_at`

// Create inserts a new opportunity.
func (r *OpportunityRepository) Create(ctx context.Context, opp *entities.HarvestOpportunity) error {
	defer metrics.ObserveDBQuery("create", "harvest_opportunities", time.Now())
	query := `
		INSERT INTO harvest_opportunities (` + opportunityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33,
			$34, $35, $36, $37, $38, $39)`

	args, err := opportunityArgs(opp)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create harvest opportunity",
			zap.Error(err),
			zap.String("opportunity_id", opp.ID.String()),
			zap.String("symbol", opp.Symbol),
		)
		return fmt.Errorf("failed to create harvest opportunity: %w", err)
	}

	r.logger.Info("harvest opportunity created",
		zap.String("opportunity_id", opp.ID.String()),
		zap.String("symbol", opp.Symbol),
		zap.String("status", string(opp.Status)),
		zap.String("total_loss", opp.TotalLoss.String()),
	)

	return nil
}

// Update replaces the full record in a single statement, so the status
// transition and its recomputed fields land atomically.
func (r *OpportunityRepository) Update(ctx context.Context, opp *entities.HarvestOpportunity) error {
	defer metrics.ObserveDBQuery("update", "harvest_opportunities", time.Now())
	return r.update(ctx, r.db, opp)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *OpportunityRepository) update(ctx context.Context, ex execer, opp *entities.HarvestOpportunity) error {
	query := `
		UPDATE harvest_opportunities SET
			quantity = $2, current_price = $3, cost_basis = $4, market_value = $5,
			total_loss = $6, short_term_loss = $7, long_term_loss = $8,
			tax_rate_applied = $9, estimated_tax_savings = $10,
			lot_ids = $11, status = $12,
			wash_sale_status = $13, wash_sale_risk_amount = $14,
			blocking_transaction_ids = $15, window_start = $16, window_end = $17,
			recommendations = $18,
			replacement_symbol = $19, notes = $20, reject_reason = $21,
			sell_transaction_id = $22, buy_transaction_id = $23, realized_loss = $24,
			recommended_at = $25, approved_at = $26, approved_by = $27, executed_at = $28,
			updated_at = $29
		WHERE id = $1`

	recommendations, err := marshalRecommendations(opp.Recommendations)
	if err != nil {
		return err
	}

	result, err := ex.ExecContext(ctx, query,
		opp.ID,
		opp.Quantity, opp.CurrentPrice, opp.CostBasis, opp.MarketValue,
		opp.TotalLoss, opp.ShortTermLoss, opp.LongTermLoss,
		opp.TaxRateApplied, opp.EstimatedTaxSavings,
		pq.Array(opp.LotIDs), opp.Status,
		opp.WashSaleStatus, opp.WashSaleRiskAmount,
		pq.Array(opp.BlockingTransactionIDs), opp.WindowStart, opp.WindowEnd,
		recommendations,
		opp.ReplacementSymbol, opp.Notes, opp.RejectReason,
		opp.SellTransactionID, opp.BuyTransactionID, opp.RealizedLoss,
		opp.RecommendedAt, opp.ApprovedAt, opp.ApprovedBy, opp.ExecutedAt,
		opp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update harvest opportunity: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("harvest opportunity %s not found", opp.ID)
	}

	return nil
}

// ExecuteHarvest persists the executed opportunity and creates its
// wash-sale tracking window in one transaction.
func (r *OpportunityRepository) ExecuteHarvest(ctx context.Context, opp *entities.HarvestOpportunity, ws *entities.WashSaleTransaction) error {
	defer metrics.ObserveDBQuery("execute_harvest", "harvest_opportunities", time.Now())
	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.update(ctx, tx, opp); err != nil {
			return err
		}
		return insertWashSale(ctx, tx, ws)
	})
}

// GetByID loads one opportunity, or nil when absent.
func (r *OpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.HarvestOpportunity, error) {
	defer metrics.ObserveDBQuery("get_by_id", "harvest_opportunities", time.Now())
	query := `SELECT ` + opportunityColumns + ` FROM harvest_opportunities WHERE id = $1`

	opp, err := scanOpportunity(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return opp, nil
}

// ListLiveByPosition returns opportunities that block a new scan from
// creating another one for the same position.
func (r *OpportunityRepository) ListLiveByPosition(ctx context.Context, positionID uuid.UUID) ([]*entities.HarvestOpportunity, error) {
	defer metrics.ObserveDBQuery("list_live_by_position", "harvest_opportunities", time.Now())
	query := `
		SELECT ` + opportunityColumns + `
		FROM harvest_opportunities
		WHERE position_id = $1
		  AND status IN ('IDENTIFIED', 'WASH_SALE_RISK', 'RECOMMENDED', 'APPROVED', 'EXECUTING')`

	return r.list(ctx, query, positionID)
}

// ListActiveByAdvisor returns non-expired opportunities for the advisor.
// Approved, executing and executed opportunities remain visible past their
// expiry.
func (r *OpportunityRepository) ListActiveByAdvisor(ctx context.Context, advisorID uuid.UUID, asOf time.Time) ([]*entities.HarvestOpportunity, error) {
	defer metrics.ObserveDBQuery("list_active_by_advisor", "harvest_opportunities", time.Now())
	query := `
		SELECT ` + opportunityColumns + `
		FROM harvest_opportunities
		WHERE advisor_id = $1
		  AND status != 'REJECTED'
		  AND (expires_at > $2 OR status IN ('APPROVED', 'EXECUTING', 'EXECUTED'))
		ORDER BY identified_at DESC`

	return r.list(ctx, query, advisorID, asOf)
}

// ListByStatus returns the advisor's opportunities in one status.
func (r *OpportunityRepository) ListByStatus(ctx context.Context, advisorID uuid.UUID, status entities.OpportunityStatus) ([]*entities.HarvestOpportunity, error) {
	defer metrics.ObserveDBQuery("list_by_status", "harvest_opportunities", time.Now())
	query := `
		SELECT ` + opportunityColumns + `
		FROM harvest_opportunities
		WHERE advisor_id = $1 AND status = $2
		ORDER BY identified_at DESC`

	return r.list(ctx, query, advisorID, status)
}

func (r *OpportunityRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entities.HarvestOpportunity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query harvest opportunities: %w", err)
	}
	defer rows.Close()

	var opportunities []*entities.HarvestOpportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opportunities = append(opportunities, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return opportunities, nil
}
