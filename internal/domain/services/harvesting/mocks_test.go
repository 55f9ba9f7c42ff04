package harvesting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/internal/infrastructure/advisory"
)

// Mock implementations for testing

type mockSettingsRepository struct {
	mock.Mock
}

func (m *mockSettingsRepository) Create(ctx context.Context, settings *entities.HarvestingSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *mockSettingsRepository) Update(ctx context.Context, settings *entities.HarvestingSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *mockSettingsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSettingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.HarvestingSettings, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.HarvestingSettings), args.Error(1)
}

func (m *mockSettingsRepository) GetByScope(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) (*entities.HarvestingSettings, error) {
	args := m.Called(ctx, advisorID, clientID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.HarvestingSettings), args.Error(1)
}

type mockPositionRepository struct {
	mock.Mock
}

func (m *mockPositionRepository) ListLossPositions(ctx context.Context, advisorID uuid.UUID, clientID, accountID *uuid.UUID) ([]*entities.Position, error) {
	args := m.Called(ctx, advisorID, clientID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Position), args.Error(1)
}

func (m *mockPositionRepository) GetOpenLossLots(ctx context.Context, positionID uuid.UUID) ([]*entities.TaxLot, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TaxLot), args.Error(1)
}

type mockTransactionRepository struct {
	mock.Mock
}

func (m *mockTransactionRepository) ListPurchases(ctx context.Context, accountID uuid.UUID, symbols []string, from, to time.Time) ([]*entities.AccountTransaction, error) {
	args := m.Called(ctx, accountID, symbols, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AccountTransaction), args.Error(1)
}

func (m *mockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AccountTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AccountTransaction), args.Error(1)
}

type mockRelationshipRepository struct {
	mock.Mock
}

func (m *mockRelationshipRepository) ListForSymbol(ctx context.Context, symbol string, types ...entities.RelationshipType) ([]*entities.SecurityRelationship, error) {
	args := m.Called(ctx, symbol, types)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SecurityRelationship), args.Error(1)
}

type mockOpportunityRepository struct {
	mock.Mock
}

func (m *mockOpportunityRepository) Create(ctx context.Context, opp *entities.HarvestOpportunity) error {
	args := m.Called(ctx, opp)
	return args.Error(0)
}

func (m *mockOpportunityRepository) Update(ctx context.Context, opp *entities.HarvestOpportunity) error {
	args := m.Called(ctx, opp)
	return args.Error(0)
}

func (m *mockOpportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.HarvestOpportunity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.HarvestOpportunity), args.Error(1)
}

func (m *mockOpportunityRepository) ListLiveByPosition(ctx context.Context, positionID uuid.UUID) ([]*entities.HarvestOpportunity, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.HarvestOpportunity), args.Error(1)
}

func (m *mockOpportunityRepository) ListActiveByAdvisor(ctx context.Context, advisorID uuid.UUID, asOf time.Time) ([]*entities.HarvestOpportunity, error) {
	args := m.Called(ctx, advisorID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.HarvestOpportunity), args.Error(1)
}

func (m *mockOpportunityRepository) ListByStatus(ctx context.Context, advisorID uuid.UUID, status entities.OpportunityStatus) ([]*entities.HarvestOpportunity, error) {
	args := m.Called(ctx, advisorID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.HarvestOpportunity), args.Error(1)
}

func (m *mockOpportunityRepository) ExecuteHarvest(ctx context.Context, opp *entities.HarvestOpportunity, ws *entities.WashSaleTransaction) error {
	args := m.Called(ctx, opp, ws)
	return args.Error(0)
}

type mockWashSaleRepository struct {
	mock.Mock
}

func (m *mockWashSaleRepository) Create(ctx context.Context, ws *entities.WashSaleTransaction) error {
	args := m.Called(ctx, ws)
	return args.Error(0)
}

func (m *mockWashSaleRepository) Update(ctx context.Context, ws *entities.WashSaleTransaction) error {
	args := m.Called(ctx, ws)
	return args.Error(0)
}

func (m *mockWashSaleRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.WashSaleTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WashSaleTransaction), args.Error(1)
}

func (m *mockWashSaleRepository) ListOpenByAdvisor(ctx context.Context, advisorID uuid.UUID) ([]*entities.WashSaleTransaction, error) {
	args := m.Called(ctx, advisorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WashSaleTransaction), args.Error(1)
}

func (m *mockWashSaleRepository) ListActiveWindows(ctx context.Context, accountID uuid.UUID, symbols []string, asOf time.Time) ([]*entities.WashSaleTransaction, error) {
	args := m.Called(ctx, accountID, symbols, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WashSaleTransaction), args.Error(1)
}

func (m *mockWashSaleRepository) ListAdvisorsWithOpenWindows(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockSuggestionClient struct {
	mock.Mock
}

func (m *mockSuggestionClient) Suggest(ctx context.Context, req *advisory.SuggestionRequest) []advisory.Candidate {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]advisory.Candidate)
}

type mockAlerter struct {
	mock.Mock
}

func (m *mockAlerter) SendViolationAlert(ctx context.Context, ws *entities.WashSaleTransaction) error {
	args := m.Called(ctx, ws)
	return args.Error(0)
}
