package harvesting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/internal/domain/repositories"
	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// Config carries engine-wide harvesting knobs.
type Config struct {
	// OpportunityTTLDays is how long an opportunity stays actionable
	OpportunityTTLDays int
	// WashSaleWindowDays is the half-width of the wash-sale window, so the
	// full window spans twice this many days around the sale date
	WashSaleWindowDays int
	// MaxRecommendations returned per opportunity
	MaxRecommendations int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		OpportunityTTLDays: 7,
		WashSaleWindowDays: 30,
		MaxRecommendations: 3,
	}
}

// Scanner finds loss-bearing positions and turns them into harvest
// opportunities. It owns the wash-sale risk check, which the lifecycle
// re-runs at approval time.
type Scanner struct {
	resolver      *SettingsResolver
	positions     repositories.PositionRepository
	opportunities repositories.OpportunityRepository
	transactions  repositories.TransactionRepository
	relationships repositories.RelationshipRepository
	washSales     repositories.WashSaleRepository
	config        *Config
	logger        *zap.Logger
	now           func() time.Time
}

// NewScanner creates a harvest scanner.
func NewScanner(
	resolver *SettingsResolver,
	positions repositories.PositionRepository,
	opportunities repositories.OpportunityRepository,
	transactions repositories.TransactionRepository,
	relationships repositories.RelationshipRepository,
	washSales repositories.WashSaleRepository,
	config *Config,
	logger *zap.Logger,
) *Scanner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scanner{
		resolver:      resolver,
		positions:     positions,
		opportunities: opportunities,
		transactions:  transactions,
		relationships: relationships,
		washSales:     washSales,
		config:        config,
		logger:        logger,
		now:           time.Now,
	}
}

// ScanPortfolio scans the advisor's positions (optionally narrowed to a
// client or account) and creates a harvest opportunity for every position
// that clears the resolved thresholds. Positions that already carry a live
// opportunity are skipped, so repeated scans with no intervening state
// change create nothing new.
func (s *Scanner) ScanPortfolio(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) ([]*entities.HarvestOpportunity, error) {
	start := s.now()
	settings := s.resolver.Resolve(ctx, advisorID, clientID, accountID)

	positions, err := s.positions.ListLossPositions(ctx, advisorID, clientID, accountID)
	if err != nil {
		metrics.RecordScan("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to list loss positions: %w", err)
	}

	var created []*entities.HarvestOpportunity
	for _, position := range positions {
		opp, err := s.evaluatePosition(ctx, position, settings)
		if err != nil {
			metrics.RecordScan("error", time.Since(start).Seconds())
			return nil, err
		}
		if opp == nil {
			continue
		}

		if err := s.opportunities.Create(ctx, opp); err != nil {
			metrics.RecordScan("error", time.Since(start).Seconds())
			return nil, fmt.Errorf("failed to create opportunity for position %s: %w", position.ID, err)
		}

		metrics.OpportunitiesIdentified.WithLabelValues(string(opp.Status)).Inc()
		created = append(created, opp)
	}

	s.logger.Info("portfolio scan complete",
		zap.String("advisor_id", advisorID.String()),
		zap.Int("positions_examined", len(positions)),
		zap.Int("opportunities_created", len(created)),
	)
	metrics.RecordScan("success", time.Since(start).Seconds())

	return created, nil
}

// evaluatePosition applies the candidate filters and aggregation for one
// position. Returns nil when the position does not qualify; that is never
// an error.
func (s *Scanner) evaluatePosition(ctx context.Context, position *entities.Position, settings *entities.HarvestingSettings) (*entities.HarvestOpportunity, error) {
	if !position.UnrealizedGainLoss.IsNegative() {
		return nil, nil
	}
	if settings.IsAccountTypeExcluded(position.AccountType) || settings.IsSymbolExcluded(position.Symbol) {
		return nil, nil
	}
	if position.UnrealizedGainLoss.Abs().LessThan(settings.MinLossAmount) {
		return nil, nil
	}
	// Zero-cost-basis positions are excluded here rather than producing an
	// undefined loss percentage downstream.
	if !position.CostBasis.IsPositive() {
		return nil, nil
	}
	lossPercent := position.UnrealizedGainLoss.Abs().
		Div(position.CostBasis).
		Mul(decimal.NewFromInt(100))
	if lossPercent.LessThan(settings.MinLossPercent) {
		return nil, nil
	}

	// At most one live opportunity per position. A blocked one gets its
	// wash-sale view refreshed instead of a duplicate record.
	live, err := s.opportunities.ListLiveByPosition(ctx, position.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check live opportunities for position %s: %w", position.ID, err)
	}
	if len(live) > 0 {
		for _, existing := range live {
			if existing.Status == entities.OpportunityStatusWashSaleRisk {
				if err := s.refreshWashSaleRisk(ctx, existing); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	}

	lots, err := s.positions.GetOpenLossLots(ctx, position.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lots for position %s: %w", position.ID, err)
	}

	var (
		totalLoss     = decimal.Zero
		shortTermLoss = decimal.Zero
		longTermLoss  = decimal.Zero
		quantity      = decimal.Zero
		costBasis     = decimal.Zero
		marketValue   = decimal.Zero
		lotIDs        []uuid.UUID
	)
	for _, lot := range lots {
		if !lot.UnrealizedGainLoss.IsNegative() || !lot.HasCostBasis() {
			continue
		}
		loss := lot.UnrealizedGainLoss.Abs()
		totalLoss = totalLoss.Add(loss)
		if lot.IsLongTerm {
			longTermLoss = longTermLoss.Add(loss)
		} else {
			shortTermLoss = shortTermLoss.Add(loss)
		}
		quantity = quantity.Add(lot.Quantity)
		costBasis = costBasis.Add(lot.CostBasis)
		marketValue = marketValue.Add(lot.CurrentValue)
		lotIDs = append(lotIDs, lot.ID)
	}

	// A position with no qualifying loss lots is skipped silently.
	if len(lotIDs) == 0 {
		return nil, nil
	}
	if totalLoss.LessThan(settings.MinLossAmount) {
		return nil, nil
	}

	taxSavings := shortTermLoss.Mul(settings.ShortTermRate).
		Add(longTermLoss.Mul(settings.LongTermRate))
	if taxSavings.LessThan(settings.MinTaxSavings) {
		return nil, nil
	}

	analysis, err := s.AnalyzeWashSaleRisk(ctx, position.AccountID, position.Symbol, position.CUSIP)
	if err != nil {
		return nil, fmt.Errorf("wash-sale check failed for position %s: %w", position.ID, err)
	}

	now := s.now()
	status := entities.OpportunityStatusIdentified
	if analysis.Status == entities.WashSaleStatusInWindow {
		status = entities.OpportunityStatusWashSaleRisk
	}

	opp := &entities.HarvestOpportunity{
		ID:          uuid.New(),
		AdvisorID:   position.AdvisorID,
		ClientID:    position.ClientID,
		HouseholdID: position.HouseholdID,
		AccountID:   position.AccountID,
		PositionID:  position.ID,
		Symbol:      position.Symbol,
		CUSIP:       position.CUSIP,

		Quantity:            quantity,
		CurrentPrice:        position.CurrentPrice,
		CostBasis:           costBasis,
		MarketValue:         marketValue,
		TotalLoss:           totalLoss,
		ShortTermLoss:       shortTermLoss,
		LongTermLoss:        longTermLoss,
		TaxRateApplied:      blendedRate(taxSavings, totalLoss),
		EstimatedTaxSavings: taxSavings,
		LotIDs:              lotIDs,

		Status: status,

		WashSaleStatus:         analysis.Status,
		WashSaleRiskAmount:     analysis.RiskAmount,
		BlockingTransactionIDs: transactionIDs(analysis.BlockingTransactions),
		WindowStart:            &analysis.WindowStart,
		WindowEnd:              &analysis.WindowEnd,

		RealizedLoss: decimal.Zero,

		IdentifiedAt: now,
		ExpiresAt:    now.AddDate(0, 0, s.config.OpportunityTTLDays),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return opp, nil
}

// refreshWashSaleRisk re-runs the wash-sale check for a blocked opportunity
// so the advisor sees current blocking transactions, and promotes it to
// IDENTIFIED once the purchases have aged out of the window.
func (s *Scanner) refreshWashSaleRisk(ctx context.Context, opp *entities.HarvestOpportunity) error {
	analysis, err := s.AnalyzeWashSaleRisk(ctx, opp.AccountID, opp.Symbol, opp.CUSIP)
	if err != nil {
		return err
	}

	opp.WashSaleStatus = analysis.Status
	opp.WashSaleRiskAmount = analysis.RiskAmount
	opp.BlockingTransactionIDs = transactionIDs(analysis.BlockingTransactions)
	opp.WindowStart = &analysis.WindowStart
	opp.WindowEnd = &analysis.WindowEnd
	if analysis.Status == entities.WashSaleStatusClear {
		opp.Status = entities.OpportunityStatusIdentified
	}
	opp.UpdatedAt = s.now()

	if err := s.opportunities.Update(ctx, opp); err != nil {
		return fmt.Errorf("failed to refresh wash-sale risk for opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// AnalyzeWashSaleRisk checks purchases of the symbol, or anything
// substantially identical to it, in the account over the look-back half of
// the wash-sale window. The look-forward half cannot be checked here; the
// violation monitor owns it once a window is opened.
func (s *Scanner) AnalyzeWashSaleRisk(ctx context.Context, accountID uuid.UUID, symbol, cusip string) (*entities.WashSaleAnalysis, error) {
	now := s.now()
	windowStart := now.AddDate(0, 0, -s.config.WashSaleWindowDays)
	windowEnd := now.AddDate(0, 0, s.config.WashSaleWindowDays)

	watchSymbols, err := s.watchSymbols(ctx, symbol)
	if err != nil {
		return nil, err
	}

	blocking, err := s.transactions.ListPurchases(ctx, accountID, watchSymbols, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases for %s: %w", symbol, err)
	}

	activeWindows, err := s.washSales.ListActiveWindows(ctx, accountID, watchSymbols, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query active wash-sale windows for %s: %w", symbol, err)
	}

	riskAmount := decimal.Zero
	for _, tx := range blocking {
		riskAmount = riskAmount.Add(tx.NetAmount.Abs())
	}

	status := entities.WashSaleStatusClear
	if len(blocking) > 0 {
		status = entities.WashSaleStatusInWindow
	}

	return &entities.WashSaleAnalysis{
		Status:               status,
		WindowStart:          windowStart,
		WindowEnd:            windowEnd,
		WatchSymbols:         watchSymbols,
		BlockingTransactions: blocking,
		ActiveWindows:        activeWindows,
		RiskAmount:           riskAmount,
	}, nil
}

// watchSymbols returns the symbol plus its substantially-identical relatives.
func (s *Scanner) watchSymbols(ctx context.Context, symbol string) ([]string, error) {
	relationships, err := s.relationships.ListForSymbol(ctx, symbol, entities.RelationshipSubstantiallyIdentical)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships for %s: %w", symbol, err)
	}

	symbols := []string{symbol}
	seen := map[string]bool{symbol: true}
	for _, rel := range relationships {
		other := rel.Other(symbol)
		if !seen[other] {
			seen[other] = true
			symbols = append(symbols, other)
		}
	}

	return symbols, nil
}

// blendedRate is the effective rate implied by the short/long split. Stored
// for display; savings are always recomputed from the split, never from
// this.
func blendedRate(savings, totalLoss decimal.Decimal) decimal.Decimal {
	if totalLoss.IsZero() {
		return decimal.Zero
	}
	return savings.Div(totalLoss)
}

func transactionIDs(txs []*entities.AccountTransaction) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	return ids
}
