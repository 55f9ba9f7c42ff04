package harvesting

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
)

func TestSettingsResolver_AccountScopeWins(t *testing.T) {
	repo := &mockSettingsRepository{}
	resolver := NewSettingsResolver(repo, nil, zaptest.NewLogger(t))

	ctx := context.Background()
	advisorID := uuid.New()
	clientID := uuid.New()
	accountID := uuid.New()

	accountSettings := &entities.HarvestingSettings{
		ID:             uuid.New(),
		AdvisorID:      advisorID,
		ClientID:       &clientID,
		AccountID:      &accountID,
		MinLossAmount:  decimal.NewFromInt(250),
		MinLossPercent: decimal.NewFromInt(3),
		MinTaxSavings:  decimal.NewFromInt(75),
		ShortTermRate:  decimal.New(35, -2),
		LongTermRate:   decimal.New(15, -2),
		IsActive:       true,
	}

	repo.On("GetByScope", ctx, advisorID, &clientID, &accountID).Return(accountSettings, nil).Once()

	settings := resolver.Resolve(ctx, advisorID, &clientID, &accountID)
	assert.True(t, settings.MinLossAmount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, &accountID, settings.AccountID)

	repo.AssertExpectations(t)
}

func TestSettingsResolver_FallsThroughToClientScope(t *testing.T) {
	repo := &mockSettingsRepository{}
	resolver := NewSettingsResolver(repo, nil, zaptest.NewLogger(t))

	ctx := context.Background()
	advisorID := uuid.New()
	clientID := uuid.New()
	accountID := uuid.New()

	clientSettings := &entities.HarvestingSettings{
		ID:            uuid.New(),
		AdvisorID:     advisorID,
		ClientID:      &clientID,
		MinLossAmount: decimal.NewFromInt(500),
		IsActive:      true,
	}

	repo.On("GetByScope", ctx, advisorID, &clientID, &accountID).Return(nil, nil).Once()
	repo.On("GetByScope", ctx, advisorID, &clientID, (*uuid.UUID)(nil)).Return(clientSettings, nil).Once()

	settings := resolver.Resolve(ctx, advisorID, &clientID, &accountID)
	assert.True(t, settings.MinLossAmount.Equal(decimal.NewFromInt(500)))
	assert.Nil(t, settings.AccountID)

	repo.AssertExpectations(t)
}

func TestSettingsResolver_DefaultsWhenNoRowsExist(t *testing.T) {
	repo := &mockSettingsRepository{}
	resolver := NewSettingsResolver(repo, nil, zaptest.NewLogger(t))

	ctx := context.Background()
	advisorID := uuid.New()

	repo.On("GetByScope", ctx, advisorID, (*uuid.UUID)(nil), (*uuid.UUID)(nil)).Return(nil, nil).Once()

	settings := resolver.Resolve(ctx, advisorID, nil, nil)
	assert.True(t, settings.MinLossAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, settings.MinLossPercent.Equal(decimal.NewFromInt(5)))
	assert.True(t, settings.MinTaxSavings.Equal(decimal.NewFromInt(50)))
	assert.True(t, settings.ShortTermRate.Equal(decimal.New(37, -2)))
	assert.True(t, settings.LongTermRate.Equal(decimal.New(20, -2)))

	repo.AssertExpectations(t)
}

func TestSettingsResolver_RepositoryErrorFallsThrough(t *testing.T) {
	repo := &mockSettingsRepository{}
	resolver := NewSettingsResolver(repo, nil, zaptest.NewLogger(t))

	ctx := context.Background()
	advisorID := uuid.New()
	clientID := uuid.New()

	advisorSettings := &entities.HarvestingSettings{
		ID:            uuid.New(),
		AdvisorID:     advisorID,
		MinLossAmount: decimal.NewFromInt(200),
		IsActive:      true,
	}

	repo.On("GetByScope", ctx, advisorID, &clientID, (*uuid.UUID)(nil)).
		Return(nil, errors.New("connection refused")).Once()
	repo.On("GetByScope", ctx, advisorID, (*uuid.UUID)(nil), (*uuid.UUID)(nil)).
		Return(advisorSettings, nil).Once()

	settings := resolver.Resolve(ctx, advisorID, &clientID, nil)
	assert.True(t, settings.MinLossAmount.Equal(decimal.NewFromInt(200)))

	repo.AssertExpectations(t)
}

func TestSettingsResolver_InactiveRowSkipped(t *testing.T) {
	repo := &mockSettingsRepository{}
	resolver := NewSettingsResolver(repo, nil, zaptest.NewLogger(t))

	ctx := context.Background()
	advisorID := uuid.New()

	inactive := &entities.HarvestingSettings{
		ID:            uuid.New(),
		AdvisorID:     advisorID,
		MinLossAmount: decimal.NewFromInt(999),
		IsActive:      false,
	}

	repo.On("GetByScope", ctx, advisorID, (*uuid.UUID)(nil), (*uuid.UUID)(nil)).Return(inactive, nil).Once()

	settings := resolver.Resolve(ctx, advisorID, nil, nil)
	assert.True(t, settings.MinLossAmount.Equal(decimal.NewFromInt(100)))

	repo.AssertExpectations(t)
}
