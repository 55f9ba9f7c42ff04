package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
)

// SettingsRepository defines persistence for harvesting settings.
// Scope rows are keyed (advisor, client?, account?).
type SettingsRepository interface {
	Create(ctx context.Context, settings *entities.HarvestingSettings) error
	Update(ctx context.Context, settings *entities.HarvestingSettings) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.HarvestingSettings, error)
	// GetByScope returns the active settings row matching the exact scope,
	// or nil when none exists.
	GetByScope(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) (*entities.HarvestingSettings, error)
}

// PositionRepository supplies positions and tax lots from the custodian
// aggregation layer. Read-only.
type PositionRepository interface {
	// ListLossPositions returns positions with a negative unrealized
	// gain/loss for the given scope. clientID and accountID narrow the
	// query when non-nil.
	ListLossPositions(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) ([]*entities.Position, error)
	// GetOpenLossLots returns open lots with negative unrealized gain/loss
	// for the position, ordered most-negative first.
	GetOpenLossLots(ctx context.Context, positionID uuid.UUID) ([]*entities.TaxLot, error)
}

// TransactionRepository supplies normalized custodian trades. Read-only.
type TransactionRepository interface {
	// ListPurchases returns BUY transactions in the account for any of the
	// given symbols with trade dates in [from, to] inclusive.
	ListPurchases(ctx context.Context, accountID uuid.UUID, symbols []string, from, to time.Time) ([]*entities.AccountTransaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.AccountTransaction, error)
}

// RelationshipRepository supplies the security relationship graph. Read-only.
type RelationshipRepository interface {
	// ListForSymbol returns active relationships touching symbol on either
	// side, optionally filtered by relationship type.
	ListForSymbol(ctx context.Context, symbol string, types ...entities.RelationshipType) ([]*entities.SecurityRelationship, error)
}

// OpportunityRepository defines persistence for harvest opportunities.
type OpportunityRepository interface {
	Create(ctx context.Context, opp *entities.HarvestOpportunity) error
	// Update persists the full record atomically: status transition and
	// recomputed fields either both land or neither does.
	Update(ctx context.Context, opp *entities.HarvestOpportunity) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.HarvestOpportunity, error)
	// ListLiveByPosition returns opportunities for the position in a state
	// that blocks a new scan from creating another one.
	ListLiveByPosition(ctx context.Context, positionID uuid.UUID) ([]*entities.HarvestOpportunity, error)
	// ListActiveByAdvisor returns non-expired opportunities; approved,
	// executing and executed opportunities are included regardless of expiry.
	ListActiveByAdvisor(ctx context.Context, advisorID uuid.UUID, asOf time.Time) ([]*entities.HarvestOpportunity, error)
	ListByStatus(ctx context.Context, advisorID uuid.UUID, status entities.OpportunityStatus) ([]*entities.HarvestOpportunity, error)
	// ExecuteHarvest persists the executed opportunity and creates its
	// wash-sale tracking window in one transaction.
	ExecuteHarvest(ctx context.Context, opp *entities.HarvestOpportunity, ws *entities.WashSaleTransaction) error
}

// WashSaleRepository defines persistence for tracked wash-sale windows.
type WashSaleRepository interface {
	Create(ctx context.Context, ws *entities.WashSaleTransaction) error
	Update(ctx context.Context, ws *entities.WashSaleTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.WashSaleTransaction, error)
	// ListOpenByAdvisor returns the advisor's windows still in IN_WINDOW
	// status. Windows already resolved to CLEAR or VIOLATED are excluded
	// so they are never re-evaluated.
	ListOpenByAdvisor(ctx context.Context, advisorID uuid.UUID) ([]*entities.WashSaleTransaction, error)
	// ListActiveWindows returns windows in the account watching any of the
	// given symbols whose window_end has not passed as of asOf.
	ListActiveWindows(ctx context.Context, accountID uuid.UUID, symbols []string, asOf time.Time) ([]*entities.WashSaleTransaction, error)
	// ListAdvisorsWithOpenWindows returns the distinct advisors owning at
	// least one IN_WINDOW window, for the periodic violation sweep.
	ListAdvisorsWithOpenWindows(ctx context.Context) ([]uuid.UUID, error)
}
