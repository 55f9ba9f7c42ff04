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
	"github.com/meridian-wealth/advisory_service/pkg/errors"
	"github.com/meridian-wealth/advisory_service/pkg/metrics"
)

// Service is the harvesting engine facade: it composes the scanner,
// recommender and monitor, and owns the opportunity lifecycle. Every
// transition either fully persists or returns a coded error naming the
// guard that refused it; nothing is retried automatically.
type Service struct {
	resolver      *SettingsResolver
	scanner       *Scanner
	recommender   *Recommender
	monitor       *Monitor
	opportunities repositories.OpportunityRepository
	config        *Config
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates the harvesting service facade.
func NewService(
	resolver *SettingsResolver,
	scanner *Scanner,
	recommender *Recommender,
	monitor *Monitor,
	opportunities repositories.OpportunityRepository,
	config *Config,
	logger *zap.Logger,
) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		resolver:      resolver,
		scanner:       scanner,
		recommender:   recommender,
		monitor:       monitor,
		opportunities: opportunities,
		config:        config,
		logger:        logger,
		now:           time.Now,
	}
}

// ApprovalRequest carries the advisor's approval inputs.
type ApprovalRequest struct {
	ApprovedBy        uuid.UUID
	ReplacementSymbol string
	Notes             string
}

// ExecutionRequest records the realized trades for a completed harvest.
type ExecutionRequest struct {
	SellTransactionID *uuid.UUID
	BuyTransactionID  *uuid.UUID
	// RealizedLoss defaults to the opportunity's estimated total loss
	// when nil.
	RealizedLoss *decimal.Decimal
}

// ScanPortfolio runs a harvest scan for the advisor's scope.
func (s *Service) ScanPortfolio(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) ([]*entities.HarvestOpportunity, error) {
	return s.scanner.ScanPortfolio(ctx, advisorID, clientID, accountID)
}

// AnalyzeWashSaleRisk runs a point-in-time wash-sale check.
func (s *Service) AnalyzeWashSaleRisk(ctx context.Context, accountID uuid.UUID, symbol, cusip string) (*entities.WashSaleAnalysis, error) {
	return s.scanner.AnalyzeWashSaleRisk(ctx, accountID, symbol, cusip)
}

// CheckWashSaleViolations runs the periodic violation sweep for an advisor.
func (s *Service) CheckWashSaleViolations(ctx context.Context, advisorID uuid.UUID) ([]*entities.WashSaleTransaction, error) {
	return s.monitor.CheckViolations(ctx, advisorID)
}

// GetOpportunity loads one opportunity by id.
func (s *Service) GetOpportunity(ctx context.Context, id uuid.UUID) (*entities.HarvestOpportunity, error) {
	opp, err := s.opportunities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if opp == nil {
		return nil, errors.NotFound("harvest opportunity")
	}
	return opp, nil
}

// ListActiveOpportunities returns the advisor's actionable opportunities.
// Expired ones are excluded unless they are approved, executing or executed.
func (s *Service) ListActiveOpportunities(ctx context.Context, advisorID uuid.UUID) ([]*entities.HarvestOpportunity, error) {
	return s.opportunities.ListActiveByAdvisor(ctx, advisorID, s.now())
}

// GetRecommendations returns replacement recommendations for the
// opportunity, computing and caching them on first call.
func (s *Service) GetRecommendations(ctx context.Context, id uuid.UUID) ([]entities.Recommendation, error) {
	opp, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	cached := len(opp.Recommendations) > 0
	recs, err := s.recommender.Recommend(ctx, opp, s.config.MaxRecommendations)
	if err != nil {
		return nil, err
	}

	if !cached {
		opp.UpdatedAt = s.now()
		if err := s.opportunities.Update(ctx, opp); err != nil {
			return nil, fmt.Errorf("failed to cache recommendations: %w", err)
		}
	}

	return recs, nil
}

// MarkRecommended transitions IDENTIFIED -> RECOMMENDED, computing
// replacement recommendations if they are not already cached.
func (s *Service) MarkRecommended(ctx context.Context, id uuid.UUID) (*entities.HarvestOpportunity, error) {
	opp, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	if opp.Status != entities.OpportunityStatusIdentified {
		metrics.RecordTransition(string(entities.OpportunityStatusRecommended), "refused")
		return nil, errors.InvalidState("recommend-requires-identified",
			fmt.Sprintf("cannot recommend opportunity in status %s", opp.Status))
	}

	if _, err := s.recommender.Recommend(ctx, opp, s.config.MaxRecommendations); err != nil {
		return nil, err
	}

	now := s.now()
	opp.Status = entities.OpportunityStatusRecommended
	opp.RecommendedAt = &now
	opp.UpdatedAt = now

	if err := s.opportunities.Update(ctx, opp); err != nil {
		return nil, fmt.Errorf("failed to persist recommendation transition: %w", err)
	}

	metrics.RecordTransition(string(opp.Status), "success")
	return opp, nil
}

// Approve transitions IDENTIFIED or RECOMMENDED -> APPROVED. The wash-sale
// check is re-run first: if blocking purchases now exist, the opportunity
// is demoted to WASH_SALE_RISK with the refreshed blocking list and the
// caller receives a wash-sale error instead of an approval.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, req ApprovalRequest) (*entities.HarvestOpportunity, error) {
	opp, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	switch opp.Status {
	case entities.OpportunityStatusIdentified, entities.OpportunityStatusRecommended:
	default:
		metrics.RecordTransition(string(entities.OpportunityStatusApproved), "refused")
		return nil, errors.InvalidState("approve-requires-identified-or-recommended",
			fmt.Sprintf("cannot approve opportunity in status %s", opp.Status))
	}

	analysis, err := s.scanner.AnalyzeWashSaleRisk(ctx, opp.AccountID, opp.Symbol, opp.CUSIP)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if analysis.Status == entities.WashSaleStatusInWindow {
		opp.Status = entities.OpportunityStatusWashSaleRisk
		opp.WashSaleStatus = analysis.Status
		opp.WashSaleRiskAmount = analysis.RiskAmount
		opp.BlockingTransactionIDs = transactionIDs(analysis.BlockingTransactions)
		opp.WindowStart = &analysis.WindowStart
		opp.WindowEnd = &analysis.WindowEnd
		opp.UpdatedAt = now

		if err := s.opportunities.Update(ctx, opp); err != nil {
			return nil, fmt.Errorf("failed to persist wash-sale demotion: %w", err)
		}

		metrics.RecordTransition(string(entities.OpportunityStatusApproved), "refused")
		s.logger.Warn("approval refused by wash-sale re-check",
			zap.String("opportunity_id", opp.ID.String()),
			zap.String("symbol", opp.Symbol),
			zap.Int("blocking_transactions", len(analysis.BlockingTransactions)),
		)
		return nil, errors.WashSaleRisk("wash sale risk detected: cannot approve this harvest")
	}

	opp.Status = entities.OpportunityStatusApproved
	opp.WashSaleStatus = entities.WashSaleStatusClear
	opp.ApprovedAt = &now
	approvedBy := req.ApprovedBy
	opp.ApprovedBy = &approvedBy
	opp.ReplacementSymbol = req.ReplacementSymbol
	opp.Notes = req.Notes
	opp.UpdatedAt = now

	if err := s.opportunities.Update(ctx, opp); err != nil {
		return nil, fmt.Errorf("failed to persist approval: %w", err)
	}

	metrics.RecordTransition(string(opp.Status), "success")
	return opp, nil
}

// BeginExecution transitions APPROVED -> EXECUTING.
func (s *Service) BeginExecution(ctx context.Context, id uuid.UUID) (*entities.HarvestOpportunity, error) {
	opp, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	if opp.Status != entities.OpportunityStatusApproved {
		metrics.RecordTransition(string(entities.OpportunityStatusExecuting), "refused")
		return nil, errors.InvalidState("execute-requires-approved",
			fmt.Sprintf("cannot begin execution of opportunity in status %s", opp.Status))
	}

	opp.Status = entities.OpportunityStatusExecuting
	opp.UpdatedAt = s.now()

	if err := s.opportunities.Update(ctx, opp); err != nil {
		return nil, fmt.Errorf("failed to persist execution start: %w", err)
	}

	metrics.RecordTransition(string(opp.Status), "success")
	return opp, nil
}

// CompleteExecution transitions EXECUTING or APPROVED -> EXECUTED, records
// the realized trades, and opens the wash-sale tracking window for the sold
// symbol. The opportunity update and the window creation land in one
// transaction.
func (s *Service) CompleteExecution(ctx context.Context, id uuid.UUID, req ExecutionRequest) (*entities.HarvestOpportunity, error) {
	opp, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	switch opp.Status {
	case entities.OpportunityStatusExecuting, entities.OpportunityStatusApproved:
	default:
		metrics.RecordTransition(string(entities.OpportunityStatusExecuted), "refused")
		return nil, errors.InvalidState("complete-requires-executing-or-approved",
			fmt.Sprintf("cannot complete execution of opportunity in status %s", opp.Status))
	}

	now := s.now()
	realizedLoss := opp.TotalLoss
	if req.RealizedLoss != nil {
		realizedLoss = *req.RealizedLoss
	}

	opp.Status = entities.OpportunityStatusExecuted
	opp.ExecutedAt = &now
	opp.SellTransactionID = req.SellTransactionID
	opp.BuyTransactionID = req.BuyTransactionID
	opp.RealizedLoss = realizedLoss
	opp.UpdatedAt = now

	ws := &entities.WashSaleTransaction{
		ID:                uuid.New(),
		AdvisorID:         opp.AdvisorID,
		AccountID:         opp.AccountID,
		OpportunityID:     opp.ID,
		Symbol:            opp.Symbol,
		SaleDate:          now,
		QuantitySold:      opp.Quantity,
		LossAmount:        realizedLoss,
		WindowStart:       now.AddDate(0, 0, -s.config.WashSaleWindowDays),
		WindowEnd:         now.AddDate(0, 0, s.config.WashSaleWindowDays),
		WatchSymbols:      []string{opp.Symbol},
		Status:            entities.WashSaleStatusInWindow,
		SellTransactionID: req.SellTransactionID,
		DisallowedLoss:    decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.opportunities.ExecuteHarvest(ctx, opp, ws); err != nil {
		return nil, fmt.Errorf("failed to persist harvest execution: %w", err)
	}

	savings, _ := opp.EstimatedTaxSavings.Float64()
	metrics.HarvestedSavings.Add(savings)
	metrics.RecordTransition(string(opp.Status), "success")

	s.logger.Info("harvest executed",
		zap.String("opportunity_id", opp.ID.String()),
		zap.String("symbol", opp.Symbol),
		zap.String("realized_loss", realizedLoss.String()),
		zap.String("wash_sale_window_id", ws.ID.String()),
	)

	return opp, nil
}

// Reject transitions any non-terminal status -> REJECTED. A reason is
// required; no further transitions are permitted afterwards.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*entities.HarvestOpportunity, error) {
	if reason == "" {
		return nil, errors.ValidationError("a rejection reason is required")
	}

	opp, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	if opp.Status.IsTerminal() {
		metrics.RecordTransition(string(entities.OpportunityStatusRejected), "refused")
		return nil, errors.InvalidState("reject-requires-non-terminal",
			fmt.Sprintf("cannot reject opportunity in terminal status %s", opp.Status))
	}

	opp.Status = entities.OpportunityStatusRejected
	opp.RejectReason = reason
	opp.UpdatedAt = s.now()

	if err := s.opportunities.Update(ctx, opp); err != nil {
		return nil, fmt.Errorf("failed to persist rejection: %w", err)
	}

	metrics.RecordTransition(string(opp.Status), "success")
	return opp, nil
}

// ResolveSettings exposes settings resolution for the API layer.
func (s *Service) ResolveSettings(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) *entities.HarvestingSettings {
	return s.resolver.Resolve(ctx, advisorID, clientID, accountID)
}
