package harvesting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
	"github.com/meridian-wealth/advisory_service/pkg/errors"
)

type serviceFixture struct {
	service       *Service
	settings      *mockSettingsRepository
	positions     *mockPositionRepository
	opportunities *mockOpportunityRepository
	transactions  *mockTransactionRepository
	relationships *mockRelationshipRepository
	washSales     *mockWashSaleRepository
	now           time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	f := &serviceFixture{
		settings:      &mockSettingsRepository{},
		positions:     &mockPositionRepository{},
		opportunities: &mockOpportunityRepository{},
		transactions:  &mockTransactionRepository{},
		relationships: &mockRelationshipRepository{},
		washSales:     &mockWashSaleRepository{},
		now:           time.Date(2025, 6, 16, 14, 0, 0, 0, time.UTC),
	}

	logger := zaptest.NewLogger(t)
	resolver := NewSettingsResolver(f.settings, nil, logger)
	scanner := NewScanner(resolver, f.positions, f.opportunities, f.transactions, f.relationships, f.washSales, DefaultConfig(), logger)
	scanner.now = func() time.Time { return f.now }
	recommender := NewRecommender(f.relationships, nil, logger)
	monitor := NewMonitor(f.washSales, f.transactions, nil, logger)
	monitor.now = func() time.Time { return f.now }

	f.service = NewService(resolver, scanner, recommender, monitor, f.opportunities, DefaultConfig(), logger)
	f.service.now = func() time.Time { return f.now }
	return f
}

func identifiedOpportunity() *entities.HarvestOpportunity {
	return &entities.HarvestOpportunity{
		ID:                  uuid.New(),
		AdvisorID:           uuid.New(),
		ClientID:            uuid.New(),
		AccountID:           uuid.New(),
		PositionID:          uuid.New(),
		Symbol:              "VTI",
		Quantity:            decimal.NewFromInt(100),
		TotalLoss:           decimal.RequireFromString("1500.00"),
		ShortTermLoss:       decimal.RequireFromString("900.00"),
		LongTermLoss:        decimal.RequireFromString("600.00"),
		EstimatedTaxSavings: decimal.RequireFromString("453.00"),
		Status:              entities.OpportunityStatusIdentified,
		WashSaleStatus:      entities.WashSaleStatusClear,
	}
}

// expectClearWashSale wires the re-check to come back clean.
func (f *serviceFixture) expectClearWashSale(accountID uuid.UUID) {
	f.relationships.On("ListForSymbol", mock.Anything, mock.Anything, []entities.RelationshipType{entities.RelationshipSubstantiallyIdentical}).
		Return([]*entities.SecurityRelationship{}, nil)
	f.transactions.On("ListPurchases", mock.Anything, accountID, mock.Anything, mock.Anything, mock.Anything).
		Return([]*entities.AccountTransaction{}, nil)
	f.washSales.On("ListActiveWindows", mock.Anything, accountID, mock.Anything, mock.Anything).
		Return([]*entities.WashSaleTransaction{}, nil)
}

func TestService_Approve_Succeeds(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()
	approver := uuid.New()

	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)
	f.expectClearWashSale(opp.AccountID)
	f.opportunities.On("Update", ctx, opp).Return(nil)

	approved, err := f.service.Approve(ctx, opp.ID, ApprovalRequest{
		ApprovedBy:        approver,
		ReplacementSymbol: "SCHB",
		Notes:             "client confirmed on call",
	})
	require.NoError(t, err)

	assert.Equal(t, entities.OpportunityStatusApproved, approved.Status)
	assert.Equal(t, entities.WashSaleStatusClear, approved.WashSaleStatus)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, approver, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, f.now, *approved.ApprovedAt)
	assert.Equal(t, "SCHB", approved.ReplacementSymbol)

	f.opportunities.AssertExpectations(t)
}

func TestService_Approve_RefusedByWashSaleRecheck(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()

	blocking := &entities.AccountTransaction{
		ID:        uuid.New(),
		AccountID: opp.AccountID,
		Symbol:    "VTI",
		Type:      entities.TransactionTypeBuy,
		TradeDate: f.now.AddDate(0, 0, -5),
		NetAmount: decimal.RequireFromString("-850.00"),
	}

	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)
	f.relationships.On("ListForSymbol", mock.Anything, "VTI", []entities.RelationshipType{entities.RelationshipSubstantiallyIdentical}).
		Return([]*entities.SecurityRelationship{}, nil)
	f.transactions.On("ListPurchases", mock.Anything, opp.AccountID, mock.Anything, mock.Anything, mock.Anything).
		Return([]*entities.AccountTransaction{blocking}, nil)
	f.washSales.On("ListActiveWindows", mock.Anything, opp.AccountID, mock.Anything, mock.Anything).
		Return([]*entities.WashSaleTransaction{}, nil)
	f.opportunities.On("Update", ctx, opp).Return(nil)

	_, err := f.service.Approve(ctx, opp.ID, ApprovalRequest{ApprovedBy: uuid.New()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeWashSaleRisk))

	// The opportunity is demoted with the refreshed blocking list
	assert.Equal(t, entities.OpportunityStatusWashSaleRisk, opp.Status)
	assert.Equal(t, entities.WashSaleStatusInWindow, opp.WashSaleStatus)
	assert.Equal(t, []uuid.UUID{blocking.ID}, opp.BlockingTransactionIDs)
	assert.True(t, opp.WashSaleRiskAmount.Equal(decimal.RequireFromString("850.00")))

	f.opportunities.AssertCalled(t, "Update", ctx, opp)
}

func TestService_Approve_RefusedFromTerminalStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()
	opp.Status = entities.OpportunityStatusExecuted

	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)

	_, err := f.service.Approve(ctx, opp.ID, ApprovalRequest{ApprovedBy: uuid.New()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))

	f.opportunities.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestService_BeginExecution_RequiresApproved(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()

	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)

	_, err := f.service.BeginExecution(ctx, opp.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))
}

func TestService_CompleteExecution_OpensWashSaleWindow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()
	opp.Status = entities.OpportunityStatusExecuting
	sellTxID := uuid.New()

	var openedWindow *entities.WashSaleTransaction
	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)
	f.opportunities.On("ExecuteHarvest", ctx, opp, mock.Anything).
		Run(func(args mock.Arguments) {
			openedWindow = args.Get(2).(*entities.WashSaleTransaction)
		}).
		Return(nil)

	executed, err := f.service.CompleteExecution(ctx, opp.ID, ExecutionRequest{
		SellTransactionID: &sellTxID,
	})
	require.NoError(t, err)

	assert.Equal(t, entities.OpportunityStatusExecuted, executed.Status)
	require.NotNil(t, executed.ExecutedAt)
	assert.Equal(t, f.now, *executed.ExecutedAt)
	// Realized loss defaults to the estimated total when not supplied
	assert.True(t, executed.RealizedLoss.Equal(decimal.RequireFromString("1500.00")))

	require.NotNil(t, openedWindow)
	assert.Equal(t, opp.ID, openedWindow.OpportunityID)
	assert.Equal(t, "VTI", openedWindow.Symbol)
	assert.Equal(t, []string{"VTI"}, openedWindow.WatchSymbols)
	assert.Equal(t, entities.WashSaleStatusInWindow, openedWindow.Status)
	assert.Equal(t, f.now.AddDate(0, 0, -30), openedWindow.WindowStart)
	assert.Equal(t, f.now.AddDate(0, 0, 30), openedWindow.WindowEnd)
	assert.True(t, openedWindow.LossAmount.Equal(decimal.RequireFromString("1500.00")))
	require.NotNil(t, openedWindow.SellTransactionID)
	assert.Equal(t, sellTxID, *openedWindow.SellTransactionID)
}

func TestService_CompleteExecution_UsesReportedRealizedLoss(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()
	opp.Status = entities.OpportunityStatusExecuting
	reported := decimal.RequireFromString("1480.25")

	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)
	f.opportunities.On("ExecuteHarvest", ctx, opp, mock.Anything).Return(nil)

	executed, err := f.service.CompleteExecution(ctx, opp.ID, ExecutionRequest{RealizedLoss: &reported})
	require.NoError(t, err)
	assert.True(t, executed.RealizedLoss.Equal(reported))
}

func TestService_CompleteExecution_RefusedFromIdentified(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()

	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)

	_, err := f.service.CompleteExecution(ctx, opp.ID, ExecutionRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))

	f.opportunities.AssertNotCalled(t, "ExecuteHarvest", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Reject_RequiresReason(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Reject(context.Background(), uuid.New(), "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	f.opportunities.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_Reject_SetsReason(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()

	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)
	f.opportunities.On("Update", ctx, opp).Return(nil)

	rejected, err := f.service.Reject(ctx, opp.ID, "client prefers to hold")
	require.NoError(t, err)
	assert.Equal(t, entities.OpportunityStatusRejected, rejected.Status)
	assert.Equal(t, "client prefers to hold", rejected.RejectReason)
}

func TestService_Reject_RefusedFromTerminalStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	opp := identifiedOpportunity()
	opp.Status = entities.OpportunityStatusRejected

	f.opportunities.On("GetByID", ctx, opp.ID).Return(opp, nil)

	_, err := f.service.Reject(ctx, opp.ID, "duplicate")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidState))
}

func TestService_GetOpportunity_NotFound(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	id := uuid.New()

	f.opportunities.On("GetByID", ctx, id).Return(nil, nil)

	_, err := f.service.GetOpportunity(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
