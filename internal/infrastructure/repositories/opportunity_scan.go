package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
)

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func opportunityArgs(opp *entities.HarvestOpportunity) ([]interface{}, error) {
	recommendations, err := marshalRecommendations(opp.Recommendations)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		opp.ID, opp.AdvisorID, opp.ClientID, opp.HouseholdID, opp.AccountID,
		opp.PositionID, opp.Symbol, opp.CUSIP,
		opp.Quantity, opp.CurrentPrice, opp.CostBasis, opp.MarketValue,
		opp.TotalLoss, opp.ShortTermLoss, opp.LongTermLoss,
		opp.TaxRateApplied, opp.EstimatedTaxSavings,
		pq.Array(opp.LotIDs), opp.Status,
		opp.WashSaleStatus, opp.WashSaleRiskAmount,
		pq.Array(opp.BlockingTransactionIDs), opp.WindowStart, opp.WindowEnd,
		recommendations,
		opp.ReplacementSymbol, opp.Notes, opp.RejectReason,
		opp.SellTransactionID, opp.BuyTransactionID, opp.RealizedLoss,
		opp.IdentifiedAt, opp.RecommendedAt, opp.ApprovedAt, opp.ApprovedBy,
		opp.ExecutedAt, opp.ExpiresAt,
		opp.CreatedAt, opp.UpdatedAt,
	}, nil
}

func scanOpportunity(row rowScanner) (*entities.HarvestOpportunity, error) {
	var (
		opp             entities.HarvestOpportunity
		lotIDs          pq.StringArray
		blockingIDs     pq.StringArray
		recommendations []byte
	)

	err := row.Scan(
		&opp.ID, &opp.AdvisorID, &opp.ClientID, &opp.HouseholdID, &opp.AccountID,
		&opp.PositionID, &opp.Symbol, &opp.CUSIP,
		&opp.Quantity, &opp.CurrentPrice, &opp.CostBasis, &opp.MarketValue,
		&opp.TotalLoss, &opp.ShortTermLoss, &opp.LongTermLoss,
		&opp.TaxRateApplied, &opp.EstimatedTaxSavings,
		&lotIDs, &opp.Status,
		&opp.WashSaleStatus, &opp.WashSaleRiskAmount,
		&blockingIDs, &opp.WindowStart, &opp.WindowEnd,
		&recommendations,
		&opp.ReplacementSymbol, &opp.Notes, &opp.RejectReason,
		&opp.SellTransactionID, &opp.BuyTransactionID, &opp.RealizedLoss,
		&opp.IdentifiedAt, &opp.RecommendedAt, &opp.ApprovedAt, &opp.ApprovedBy,
		&opp.ExecutedAt, &opp.ExpiresAt,
		&opp.CreatedAt, &opp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if opp.LotIDs, err = parseUUIDs(lotIDs); err != nil {
		return nil, fmt.Errorf("failed to parse lot ids: %w", err)
	}
	if opp.BlockingTransactionIDs, err = parseUUIDs(blockingIDs); err != nil {
		return nil, fmt.Errorf("failed to parse blocking transaction ids: %w", err)
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &opp.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to decode recommendations: %w", err)
		}
	}

	return &opp, nil
}

// marshalRecommendations stores the cached recommendation list as jsonb,
// NULL when the cache is empty.
func marshalRecommendations(recs []entities.Recommendation) (interface{}, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recommendations: %w", err)
	}
	return data, nil
}

func parseUUIDs(raw pq.StringArray) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
